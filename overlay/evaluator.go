package overlay

import (
	"errors"
	"fmt"
	"sort"

	"kuanb/zonecheck/geom"
	"kuanb/zonecheck/layer"

	"github.com/paulmach/orb"
)

// ErrMalformedFeature marks a reference feature the predicates cannot evaluate
var ErrMalformedFeature = errors.New("malformed reference feature")

// Status is the outcome of evaluating one layer
type Status string

const (
	StatusMatched     Status = "matched"
	StatusNoMatch     Status = "no_match"
	StatusUnavailable Status = "unavailable"
	StatusFailed      Status = "failed"
)

// Match lists the labels of the features containing one input point
type Match struct {
	ID     string   `json:"id"`
	Labels []string `json:"labels"`
}

// Result is the overlay outcome for one layer
type Result struct {
	Layer    string    `json:"layer"`
	Title    string    `json:"title"`
	Mode     geom.Mode `json:"mode"`
	Status   Status    `json:"status"`
	Matched  bool      `json:"matched"`
	Count    int       `json:"count"`    // matching points, or intersecting features for a polygon
	Features int       `json:"features"` // distinct reference features hit
	Labels   []string  `json:"labels"`
	Matches  []Match   `json:"matches,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Evaluator runs the overlay predicates of one geometry against resolved layers
type Evaluator struct {
	Concurrency int // layers evaluated in parallel by EvaluateAll
}

// NewEvaluator creates an evaluator with default parameters
func NewEvaluator() *Evaluator {
	return &Evaluator{
		Concurrency: 4,
	}
}

// Evaluate checks g against every candidate feature of l. It reads both
// arguments only; the returned error is ErrMalformedFeature or a nil input.
func (e *Evaluator) Evaluate(g *geom.Geometry, l *layer.Layer) (Result, error) {
	if l == nil || len(l.Features) == 0 {
		return Result{}, layer.ErrNoFeatures
	}
	res := Result{
		Layer:  l.Name(),
		Title:  l.Config.DisplayName(),
		Labels: []string{},
	}
	if g == nil {
		return res, fmt.Errorf("no geometry to evaluate against %s", l.Name())
	}
	res.Mode = g.Mode

	c := &checker{layer: l, valid: make(map[int]bool)}
	var err error
	switch g.Mode {
	case geom.ModePoint:
		err = c.points(g, &res)
	case geom.ModePolygon:
		err = c.polygon(g, &res)
	default:
		err = fmt.Errorf("unknown geometry mode %q", g.Mode)
	}
	if err != nil {
		return res, err
	}

	res.Matched = res.Count > 0
	res.Status = StatusNoMatch
	if res.Matched {
		res.Status = StatusMatched
	}
	return res, nil
}

// checker holds per-call state so Evaluate stays safe for concurrent use
type checker struct {
	layer *layer.Layer
	valid map[int]bool
}

func (c *checker) feature(idx int) (*layer.Feature, error) {
	f := &c.layer.Features[idx]
	ok, seen := c.valid[idx]
	if !seen {
		ok = len(f.Geometry) > 0
		for _, poly := range f.Geometry {
			if !geom.ValidPolygon(poly) {
				ok = false
				break
			}
		}
		c.valid[idx] = ok
	}
	if !ok {
		return nil, fmt.Errorf("%w: layer %s feature %d", ErrMalformedFeature, c.layer.Name(), idx)
	}
	return f, nil
}

// Step 1 for each point: R-tree candidates. Step 2: exact strictly-within test.
func (c *checker) points(g *geom.Geometry, res *Result) error {
	hit := make(map[int]struct{})
	labels := make(map[string]struct{})
	for _, p := range g.Points {
		var within bool
		pointLabels := []string{}
		for _, idx := range c.layer.Candidates(orb.Bound{Min: p.Point, Max: p.Point}) {
			f, err := c.feature(idx)
			if err != nil {
				return err
			}
			if !geom.PointStrictlyWithinAny(f.Geometry, p.Point) {
				continue
			}
			within = true
			hit[idx] = struct{}{}
			if label := f.Label(c.layer.Config.LabelFields); label != "" {
				pointLabels = append(pointLabels, label)
				labels[label] = struct{}{}
			}
		}
		if !within {
			continue
		}
		res.Count++
		res.Matches = append(res.Matches, Match{ID: p.ID, Labels: distinctSorted(pointLabels)})
	}
	res.Features = len(hit)
	res.Labels = sortedKeys(labels)
	return nil
}

func (c *checker) polygon(g *geom.Geometry, res *Result) error {
	labels := make(map[string]struct{})
	for _, idx := range c.layer.Candidates(g.Polygon.Bound()) {
		f, err := c.feature(idx)
		if err != nil {
			return err
		}
		if !geom.PolygonIntersectsAny(f.Geometry, g.Polygon) {
			continue
		}
		res.Count++
		if label := f.Label(c.layer.Config.LabelFields); label != "" {
			labels[label] = struct{}{}
		}
	}
	res.Features = res.Count
	res.Labels = sortedKeys(labels)
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func distinctSorted(in []string) []string {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	return sortedKeys(set)
}
