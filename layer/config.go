package layer

import (
	"errors"
	"fmt"
	"strings"
)

// Source types a layer can be fetched from
const (
	SourceArcGIS = "arcgis"
	SourceFile   = "file"
	SourceStatic = "static"
)

var (
	ErrInvalidConfig = errors.New("invalid layer config")
	ErrNoFeatures    = errors.New("layer has no usable features")
	ErrUnknownLayer  = errors.New("unknown layer")
)

// Config describes one reference layer and which attributes label its features
type Config struct {
	Name  string `yaml:"name" json:"name"`
	Title string `yaml:"title,omitempty" json:"title"`

	// GeometryField names a property holding WKT geometry. Empty means the
	// feature's own GeoJSON geometry is used.
	GeometryField string `yaml:"geometry_field,omitempty" json:"geometry_field,omitempty"`

	// LabelFields are read from every matched feature; non-empty values are
	// joined into the label reported for that feature.
	LabelFields []string `yaml:"label_fields" json:"label_fields"`

	Source Source `yaml:"source" json:"-"`
}

// Source tells a provider where the layer lives
type Source struct {
	Type     string `yaml:"type"`
	URL      string `yaml:"url,omitempty"`   // ArcGIS FeatureServer/MapServer base or full layer URL
	LayerID  string `yaml:"layer_id,omitempty"`
	Where    string `yaml:"where,omitempty"` // ArcGIS where clause, defaults to 1=1
	Path     string `yaml:"path,omitempty"`  // GeoJSON file
	Insecure bool   `yaml:"insecure,omitempty"`
}

// DisplayName returns the title, falling back to the name
func (c Config) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

// Validate checks the config once at registration time
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if len(c.LabelFields) == 0 {
		return fmt.Errorf("%w: layer %s: at least one label field is required", ErrInvalidConfig, c.Name)
	}
	for _, f := range c.LabelFields {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("%w: layer %s: empty label field", ErrInvalidConfig, c.Name)
		}
	}

	switch c.Source.Type {
	case SourceArcGIS:
		if c.Source.URL == "" {
			return fmt.Errorf("%w: layer %s: arcgis source needs url", ErrInvalidConfig, c.Name)
		}
	case SourceFile:
		if c.Source.Path == "" {
			return fmt.Errorf("%w: layer %s: file source needs path", ErrInvalidConfig, c.Name)
		}
	case SourceStatic:
	default:
		return fmt.Errorf("%w: layer %s: unknown source type %q", ErrInvalidConfig, c.Name, c.Source.Type)
	}
	return nil
}
