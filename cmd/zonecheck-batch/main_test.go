package main

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kuanb/zonecheck/coord"
	"kuanb/zonecheck/geom"
	"kuanb/zonecheck/overlay"
	"kuanb/zonecheck/pipeline"
)

func TestWriteText(t *testing.T) {
	positions := []coord.Position{{ID: "P1", Lon: 124.75, Lat: 1.666667}}
	g, err := geom.Build(positions, geom.ModePoint)
	if err != nil {
		t.Fatal(err)
	}
	res := &pipeline.Result{
		RunID:     "run-1",
		Mode:      geom.ModePoint,
		Positions: positions,
		Geometry:  g,
		Warnings:  []string{"only the first 1 of 2 rows were processed"},
		Report: overlay.Report{Entries: []overlay.Entry{
			{Result: overlay.Result{Layer: "konservasi", Status: overlay.StatusMatched}, Message: "1 point(s) within Kawasan Konservasi: TN Bunaken"},
		}},
	}

	var buf bytes.Buffer
	if err := writeText(&buf, res); err != nil {
		t.Fatalf("writeText() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"run-1", "warning: only the first", "P1", "124.750000", "konservasi", "matched", "TN Bunaken"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteExport(t *testing.T) {
	dir := t.TempDir()
	g, err := geom.Build([]coord.Position{{ID: "P1", Lon: 124.75, Lat: 1.6}}, geom.ModePoint)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "titik.zip")
	if err := writeExport(path, g); err != nil {
		t.Fatalf("writeExport() error: %v", err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("export is not a zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 4 || zr.File[0].Name != "titik.shp" {
		t.Errorf("unexpected archive layout: %d entries, first %q", len(zr.File), zr.File[0].Name)
	}

	failed := filepath.Join(dir, "gagal.zip")
	if err := writeExport(failed, nil); err == nil {
		t.Fatal("writeExport() expected error for missing geometry")
	}
	if _, err := os.Stat(failed); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial export left behind: %v", err)
	}
}
