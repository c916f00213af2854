// Package export packages a built geometry for download.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"kuanb/zonecheck/geom"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
)

// DefaultName is used when the caller gives no usable file name
const DefaultName = "koordinat"

// projections maps an SRID to the ESRI WKT written to the .prj sidecar
var projections = map[int]string{
	4326: `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`,
}

// Projection returns the .prj content for srid
func Projection(srid int) (string, error) {
	wkt, ok := projections[srid]
	if !ok {
		return "", fmt.Errorf("no projection definition for SRID %d", srid)
	}
	return wkt, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SafeName reduces name to characters usable in a file name inside the archive
func SafeName(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), filepath.Ext(name))
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_")
	if name == "" {
		return DefaultName
	}
	return name
}

// GeoJSON writes the geometry as a FeatureCollection with an id per feature
func GeoJSON(w io.Writer, g *geom.Geometry) error {
	if g == nil {
		return fmt.Errorf("no geometry to export")
	}
	data, err := g.FeatureCollection().MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ShapefileZip writes name.shp/.shx/.dbf/.prj into a zip archive on w.
// Points carry their row id; the polygon is written with a clockwise outer ring.
func ShapefileZip(w io.Writer, g *geom.Geometry, name string) error {
	if g == nil {
		return fmt.Errorf("no geometry to export")
	}
	name = SafeName(name)

	dir, err := os.MkdirTemp("", "zonecheck-shp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	base := filepath.Join(dir, name)
	if err := writeShapefile(base, g); err != nil {
		return err
	}
	if err := fixDBFName(base); err != nil {
		return err
	}
	prj, err := Projection(geom.SRID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(base+".prj", []byte(prj), 0o644); err != nil {
		return fmt.Errorf("failed to write projection file: %w", err)
	}

	zw := zip.NewWriter(w)
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		if err := addFile(zw, base+ext, name+ext); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zip archive: %w", err)
	}

	log.Debug().Str("name", name).Str("mode", string(g.Mode)).Int("features", g.Len()).Msg("Exported shapefile")
	return nil
}

func writeShapefile(base string, g *geom.Geometry) error {
	var shapeType shp.ShapeType = shp.POINT
	if g.Mode == geom.ModePolygon {
		shapeType = shp.POLYGON
	}
	sw, err := shp.Create(base+".shp", shapeType)
	if err != nil {
		return fmt.Errorf("failed to create shapefile: %w", err)
	}
	defer sw.Close()

	if err := sw.SetFields([]shp.Field{shp.StringField("id", 64)}); err != nil {
		return fmt.Errorf("failed to set shapefile fields: %w", err)
	}

	if g.Mode == geom.ModePolygon {
		n := sw.Write(shpPolygon(g.Polygon))
		return sw.WriteAttribute(int(n), 0, geom.PolygonID)
	}
	for _, p := range g.Points {
		n := sw.Write(&shp.Point{X: p.Point.X(), Y: p.Point.Y()})
		if err := sw.WriteAttribute(int(n), 0, p.ID); err != nil {
			return fmt.Errorf("failed to write id for %s: %w", p.ID, err)
		}
	}
	return nil
}

// fixDBFName moves the attribute table to base.dbf. go-shp derives its name
// from the .shp path without the dot and writes base+"dbf".
func fixDBFName(base string) error {
	if _, err := os.Stat(base + ".dbf"); err == nil {
		return nil
	}
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return fmt.Errorf("failed to place attribute table: %w", err)
	}
	return nil
}

// shpPolygon orders rings the ESRI way: outer clockwise, holes counter-clockwise
func shpPolygon(poly orb.Polygon) *shp.Polygon {
	parts := make([][]shp.Point, 0, len(poly))
	for i, ring := range poly {
		r := ring.Clone()
		want := orb.CCW
		if i == 0 {
			want = orb.CW
		}
		if r.Orientation() != want {
			r.Reverse()
		}
		pts := make([]shp.Point, 0, len(r))
		for _, p := range r {
			pts = append(pts, shp.Point{X: p.X(), Y: p.Y()})
		}
		parts = append(parts, pts)
	}
	out := shp.Polygon(*shp.NewPolyLine(parts))
	return &out
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("failed to copy %s: %w", name, err)
	}
	return nil
}
