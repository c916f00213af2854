package overlay

import (
	"fmt"
	"strings"

	"kuanb/zonecheck/geom"
	"kuanb/zonecheck/layer"
)

// Entry is one line of the report: the layer result and its message
type Entry struct {
	Result
	Message string `json:"message"`
}

// Report holds exactly one entry per configured layer, in configured order
type Report struct {
	Entries []Entry `json:"entries"`
}

// Aggregate merges per-layer results by layer name. A configured layer with
// no result is reported unavailable; results for unconfigured layers are ignored.
func Aggregate(configs []layer.Config, results []Result) Report {
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Layer] = r
	}

	report := Report{Entries: make([]Entry, 0, len(configs))}
	for _, cfg := range configs {
		r, ok := byName[cfg.Name]
		if !ok {
			r = Result{
				Layer:  cfg.Name,
				Status: StatusUnavailable,
				Error:  "not evaluated",
			}
		}
		if r.Title == "" {
			r.Title = cfg.DisplayName()
		}
		if r.Labels == nil {
			r.Labels = []string{}
		}
		report.Entries = append(report.Entries, Entry{Result: r, Message: message(r)})
	}
	return report
}

// Entry returns the entry for a layer name
func (r Report) Entry(name string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Layer == name {
			return e, true
		}
	}
	return Entry{}, false
}

// MatchedLayers returns the names of layers with status matched
func (r Report) MatchedLayers() []string {
	var out []string
	for _, e := range r.Entries {
		if e.Status == StatusMatched {
			out = append(out, e.Layer)
		}
	}
	return out
}

func message(r Result) string {
	switch r.Status {
	case StatusMatched:
		var msg string
		if r.Mode == geom.ModePolygon {
			msg = fmt.Sprintf("Polygon intersects %d feature(s) of %s", r.Features, r.Title)
		} else {
			msg = fmt.Sprintf("%d point(s) within %s", r.Count, r.Title)
		}
		if len(r.Labels) > 0 {
			msg += ": " + strings.Join(r.Labels, ", ")
		}
		return msg
	case StatusNoMatch:
		if r.Mode == geom.ModePolygon {
			return fmt.Sprintf("Polygon does not intersect %s", r.Title)
		}
		return fmt.Sprintf("No point within %s", r.Title)
	case StatusFailed:
		return fmt.Sprintf("%s could not be evaluated and was skipped", r.Title)
	}
	return fmt.Sprintf("%s is unavailable and was not evaluated", r.Title)
}
