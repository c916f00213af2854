package layer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageSize = 1000
	maxPages        = 200
)

// ArcGISProvider queries ArcGIS FeatureServer/MapServer layers as GeoJSON in EPSG:4326
type ArcGISProvider struct {
	HTTPClient     *http.Client
	InsecureClient *http.Client // used for sources with insecure: true
	Token          string
	PageSize       int
}

// NewArcGISProvider creates a provider with the specified timeout
func NewArcGISProvider(timeout time.Duration) *ArcGISProvider {
	return &ArcGISProvider{
		HTTPClient: &http.Client{Timeout: timeout},
		InsecureClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // some government servers ship broken chains
			},
		},
		PageSize: defaultPageSize,
	}
}

// arcgisEnvelope holds the parts of a query response orb does not decode
type arcgisEnvelope struct {
	Properties struct {
		ExceededTransferLimit bool `json:"exceededTransferLimit"`
	} `json:"properties"`
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
	Error                 *struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

// QueryURL returns the /query endpoint for a layer source
func QueryURL(src Source) string {
	base := strings.TrimRight(src.URL, "/")
	if strings.HasSuffix(strings.ToLower(base), "/query") {
		return base
	}
	if src.LayerID != "" {
		return fmt.Sprintf("%s/%s/query", base, src.LayerID)
	}
	return base + "/query"
}

// Fetch pages through the layer until the server stops flagging more results
func (p *ArcGISProvider) Fetch(ctx context.Context, cfg Config) (*geojson.FeatureCollection, error) {
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	all := geojson.NewFeatureCollection()
	for page := 0; page < maxPages; page++ {
		fc, more, err := p.fetchPage(ctx, cfg, page*pageSize, pageSize)
		if err != nil {
			return nil, err
		}
		all.Features = append(all.Features, fc.Features...)
		if !more || len(fc.Features) == 0 {
			break
		}
	}

	if len(all.Features) == 0 {
		return nil, fmt.Errorf("%w: no features found for layer %s at %s", ErrNoFeatures, cfg.Name, cfg.Source.URL)
	}
	return all, nil
}

func (p *ArcGISProvider) fetchPage(ctx context.Context, cfg Config, offset, count int) (*geojson.FeatureCollection, bool, error) {
	u, err := url.Parse(QueryURL(cfg.Source))
	if err != nil {
		return nil, false, fmt.Errorf("invalid ArcGIS url for layer %s: %w", cfg.Name, err)
	}
	where := cfg.Source.Where
	if where == "" {
		where = "1=1"
	}
	q := u.Query()
	q.Set("f", "geojson")
	q.Set("where", where)
	q.Set("outFields", "*")
	q.Set("returnGeometry", "true")
	q.Set("outSR", "4326")
	q.Set("resultOffset", strconv.Itoa(offset))
	q.Set("resultRecordCount", strconv.Itoa(count))
	if p.Token != "" {
		q.Set("token", p.Token)
	}
	u.RawQuery = q.Encode()

	log.Debug().Str("layer", cfg.Name).Str("url", u.String()).Msg("Fetching features")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create feature query request: %w", err)
	}

	client := p.HTTPClient
	if cfg.Source.Insecure && p.InsecureClient != nil {
		client = p.InsecureClient
	}
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, false, fmt.Errorf("feature fetch request timed out for layer %s: %w", cfg.Name, err)
		}
		return nil, false, fmt.Errorf("feature fetch failed for layer %s: %w", cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("feature fetch for layer %s failed with status %d", cfg.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read feature response for layer %s: %w", cfg.Name, err)
	}

	var env arcgisEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("failed to parse feature response for layer %s: %w", cfg.Name, err)
	}
	if env.Error != nil {
		return nil, false, fmt.Errorf("feature query API error for layer %s: %s", cfg.Name, env.Error.Message)
	}

	fc, err := geojson.UnmarshalFeatureCollection(bytes.TrimSpace(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode GeoJSON for layer %s: %w", cfg.Name, err)
	}

	more := env.Properties.ExceededTransferLimit || env.ExceededTransferLimit
	return fc, more, nil
}
