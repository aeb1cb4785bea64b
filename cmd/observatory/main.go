package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-observatory/internal/app"
	"github.com/lueurxax/channel-observatory/internal/ingest/reader"
	"github.com/lueurxax/channel-observatory/internal/network"
	"github.com/lueurxax/channel-observatory/internal/platform/config"
	"github.com/lueurxax/channel-observatory/internal/platform/worker"
	db "github.com/lueurxax/channel-observatory/internal/storage"
)

const usage = "Usage: %s -mode=[metadata|messages|serve|export]"

var errUsage = errors.New("invalid arguments")

type flags struct {
	mode         string
	seedList     string
	channels     string
	channelsFile string
	full         bool
	network      string
	from         string
	to           string
	out          string
	neo4j        bool
}

func parseFlags() flags {
	var f flags

	flag.StringVar(&f.mode, "mode", "", "Command mode (metadata, messages, serve, export)")
	flag.StringVar(&f.seedList, "seed-list", "", "Seed list name; export accepts a comma separated list")
	flag.StringVar(&f.channels, "channels", "", "Comma separated channel handles (metadata mode)")
	flag.StringVar(&f.channelsFile, "channels-file", "", "File with channel handles, one per line or a CSV with a handle column")
	flag.BoolVar(&f.full, "full", false, "Re-fetch complete histories instead of only new posts (messages mode)")
	flag.StringVar(&f.network, "network", string(network.KindForward), "Network to export (forward, domain)")
	flag.StringVar(&f.from, "from", "1970-01-01", "Export range start (YYYY-MM-DD)")
	flag.StringVar(&f.to, "to", time.Now().UTC().Format("2006-01-02"), "Export range end, inclusive (YYYY-MM-DD)")
	flag.StringVar(&f.out, "out", "", "GraphML output path (export mode)")
	flag.BoolVar(&f.neo4j, "neo4j", false, "Also write the exported network to Neo4j")

	flag.Parse()

	return f
}

func main() {
	f := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolOpts := db.PoolOptions{
		MaxConns:          cfg.DBMaxConnections,
		MinConns:          cfg.DBMinConnections,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	}

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, poolOpts, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	application := app.New(cfg, database, &logger)

	// Retrieval commands expose metrics while they run; serve mode owns the server itself.
	if f.mode == "metadata" || f.mode == "messages" {
		go func() {
			defer worker.RecoverPanic(&logger, "health server")

			if err := application.StartHealthServer(ctx); err != nil {
				logger.Error().Err(err).Msg("health check server error")
			}
		}()
	}

	if err := runMode(ctx, application, f); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		if errors.Is(err, errUsage) {
			database.Close()
			log.Fatalf(usage+": %v", os.Args[0], err)
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(appEnv, level string) zerolog.Logger {
	var logger zerolog.Logger

	if appEnv == "local" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if parsed, err := zerolog.ParseLevel(level); err == nil && parsed != zerolog.NoLevel {
		logger = logger.Level(parsed)
	}

	return logger
}

func runMode(ctx context.Context, application *app.App, f flags) error {
	switch f.mode {
	case "metadata":
		if f.seedList == "" {
			return fmt.Errorf("%w: -seed-list is required", errUsage)
		}

		handles, err := loadHandles(f.channels, f.channelsFile)
		if err != nil {
			return err
		}

		return application.RunMetadata(ctx, f.seedList, handles)
	case "messages":
		if f.seedList == "" {
			return fmt.Errorf("%w: -seed-list is required", errUsage)
		}

		return application.RunMessages(ctx, f.seedList, f.full)
	case "serve":
		return application.RunServe(ctx)
	case "export":
		return runExport(ctx, application, f)
	default:
		return fmt.Errorf("%w: unknown mode %q", errUsage, f.mode)
	}
}

func runExport(ctx context.Context, application *app.App, f flags) error {
	kind, ok := network.ParseKind(f.network)
	if !ok {
		return fmt.Errorf("%w: unknown network %q", errUsage, f.network)
	}

	lists := splitList(f.seedList)
	if len(lists) == 0 {
		return fmt.Errorf("%w: -seed-list is required", errUsage)
	}

	if f.out == "" && !f.neo4j {
		return fmt.Errorf("%w: -out or -neo4j is required", errUsage)
	}

	return application.RunExport(ctx, app.ExportOptions{
		SeedLists: lists,
		Network:   kind,
		From:      f.from,
		To:        f.to,
		Out:       f.out,
		Neo4j:     f.neo4j,
	})
}

// loadHandles merges handles from the -channels flag and -channels-file.
func loadHandles(inline, path string) ([]string, error) {
	handles := splitList(inline)

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open channels file: %w", err)
		}
		defer file.Close()

		fromFile, err := reader.ReadHandles(file)
		if err != nil {
			return nil, err
		}

		handles = append(handles, fromFile...)
	}

	if len(handles) == 0 {
		return nil, fmt.Errorf("%w: -channels or -channels-file is required", errUsage)
	}

	return handles, nil
}

func splitList(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
