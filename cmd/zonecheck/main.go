package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kuanb/zonecheck/config"
	"kuanb/zonecheck/layer"
	"kuanb/zonecheck/logger"
	"kuanb/zonecheck/pipeline"
	"kuanb/zonecheck/server"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile   string        `short:"c" long:"config"        env:"CONFIG_FILE"     description:"Path to configuration file"            default:"config.yaml"`
	Addr         string        `short:"a" long:"addr"          env:"LISTEN_ADDRESS"  description:"Address to listen on"                  default:"0.0.0.0"`
	Port         int           `short:"p" long:"port"          env:"LISTEN_PORT"     description:"Port to listen on"                     default:"8080"`
	ArcGISToken  string        `long:"arcgis-token"            env:"ARCGIS_TOKEN"    description:"Token appended to ArcGIS queries"`
	MetricsEvery time.Duration `long:"runtime-metrics"         env:"RUNTIME_METRICS" description:"Interval for runtime metrics logging" default:"30s"`
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

	// Setup Logging
	opts.Logger.Setup()
	log.Info().Msg("zonecheck starting...")

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.ArcGISToken != "" {
		cfg.ArcGISToken = opts.ArcGISToken
	}

	arcgis := layer.NewArcGISProvider(cfg.HTTPTimeout)
	arcgis.Token = cfg.ArcGISToken
	sources := layer.NewSourceProvider().
		Handle(layer.SourceArcGIS, arcgis).
		Handle(layer.SourceFile, layer.FileProvider{BaseDir: cfg.DataDir})
	cache := layer.NewCachedProvider(sources, cfg.CacheTTL)

	registry, err := layer.NewRegistry(cache, cfg.Layers...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register layers")
	}

	srv := server.New(pipeline.New(registry, cfg.RowLimit()), cache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background metrics logging
	if opts.MetricsEvery > 0 {
		go server.LogRuntimeMetrics(ctx, opts.MetricsEvery)
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	log.Info().
		Str("addr", listenAddr).
		Int("layers", len(cfg.Layers)).
		Int("max_rows", cfg.RowLimit()).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("Web server started")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}
