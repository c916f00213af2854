package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"kuanb/zonecheck/config"
	"kuanb/zonecheck/coord"
	"kuanb/zonecheck/export"
	"kuanb/zonecheck/geom"
	"kuanb/zonecheck/layer"
	"kuanb/zonecheck/logger"
	"kuanb/zonecheck/pipeline"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string        `short:"c" long:"config"  env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	Mode       string        `short:"m" long:"mode"    description:"Geometry mode: point or polygon" default:"point"`
	Layers     []string      `short:"l" long:"layer"   description:"Layer to check (repeatable, default all)"`
	Format     string        `short:"f" long:"format"  description:"Report format" default:"text" choice:"text" choice:"json"`
	Export     string        `short:"o" long:"export"  description:"Write the geometry as a zipped shapefile to this path"`
	Timeout    time.Duration `short:"t" long:"timeout" description:"Overall timeout" default:"2m"`

	Args struct {
		Input string `positional-arg-name:"input.csv" description:"CSV batch, - for stdin"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	_ = godotenv.Load(".env.local")

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	opts.Logger.Setup()

	if err := run(opts); err != nil {
		log.Fatal().Err(err).Msg("Batch check failed")
	}
}

func run(opts Options) error {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rows, err := readRows(opts.Args.Input)
	if err != nil {
		return err
	}

	arcgis := layer.NewArcGISProvider(cfg.HTTPTimeout)
	arcgis.Token = cfg.ArcGISToken
	sources := layer.NewSourceProvider().
		Handle(layer.SourceArcGIS, arcgis).
		Handle(layer.SourceFile, layer.FileProvider{BaseDir: cfg.DataDir})
	registry, err := layer.NewRegistry(sources, cfg.Layers...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	res, err := pipeline.New(registry, cfg.RowLimit()).Run(ctx, pipeline.Request{
		Mode:   geom.Mode(opts.Mode),
		Rows:   rows,
		Layers: opts.Layers,
	})
	if err != nil {
		return err
	}

	if opts.Export != "" {
		if err := writeExport(opts.Export, res.Geometry); err != nil {
			return err
		}
		log.Info().Str("path", opts.Export).Msg("Geometry exported")
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return writeText(os.Stdout, res)
}

func readRows(path string) ([]coord.Row, error) {
	if path == "-" {
		return coord.ReadCSV(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return coord.ReadCSV(f)
}

func writeExport(path string, g *geom.Geometry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	name := export.SafeName(filepath.Base(path))
	if err := export.ShapefileZip(f, g, name); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func writeText(w io.Writer, res *pipeline.Result) error {
	fmt.Fprintf(w, "Run %s (%s, %d feature(s))\n", res.RunID, res.Mode, res.Geometry.Len())
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLONGITUDE\tLATITUDE")
	for _, p := range res.Positions {
		fmt.Fprintf(tw, "%s\t%.6f\t%.6f\n", p.ID, p.Lon, p.Lat)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if res.AreaHectares > 0 {
		fmt.Fprintf(w, "Area: %.2f ha\n", res.AreaHectares)
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LAYER\tSTATUS\tMESSAGE")
	for _, e := range res.Report.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Layer, e.Status, e.Message)
	}
	return tw.Flush()
}
