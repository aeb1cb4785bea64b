// Package app wires configuration, storage and services together and exposes
// one entry point per command mode:
//
//   - metadata: look up channels and add them to a seed list
//   - messages: fetch new posts for every channel of a seed list
//   - serve: run the analysis API next to health and metrics endpoints
//   - export: write a forwarding or domain network to GraphML and optionally Neo4j
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-observatory/internal/analysis"
	"github.com/lueurxax/channel-observatory/internal/core/domain"
	apperrors "github.com/lueurxax/channel-observatory/internal/core/errors"
	"github.com/lueurxax/channel-observatory/internal/ingest/reader"
	"github.com/lueurxax/channel-observatory/internal/network"
	"github.com/lueurxax/channel-observatory/internal/platform/config"
	"github.com/lueurxax/channel-observatory/internal/platform/observability"
	"github.com/lueurxax/channel-observatory/internal/platform/worker"
	db "github.com/lueurxax/channel-observatory/internal/storage"
)

const (
	apiPrefix = "/api"

	logFieldSeedList = "seed_list"
	logFieldRunID    = "run_id"
)

var errNoChannels = errors.New("no channels given")

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// ExportOptions selects the network written by RunExport.
type ExportOptions struct {
	SeedLists []string
	Network   network.Kind
	From      string
	To        string
	Out       string
	Neo4j     bool
}

// StartHealthServer serves probes, metrics and the analysis API until ctx ends.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.database, a.cfg.HealthPort, a.logger)
	srv.Mount(apiPrefix+"/", http.StripPrefix(apiPrefix, a.newAnalysisHandler()))

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// RunServe runs the analysis API in the foreground.
func (a *App) RunServe(ctx context.Context) error {
	a.logger.Info().Int("port", a.cfg.HealthPort).Msg("Starting analysis API")

	return a.StartHealthServer(ctx)
}

// RunMetadata retrieves channel metadata for handles and files them under seedList.
func (a *App) RunMetadata(ctx context.Context, seedList string, handles []string) error {
	if len(handles) == 0 {
		return fmt.Errorf("%w: seed list %s", errNoChannels, seedList)
	}

	a.logger.Info().Str(logFieldSeedList, seedList).Int("channels", len(handles)).Msg("Starting metadata retrieval")

	return a.withRetriever(ctx, func(ctx context.Context, r *reader.Retriever) error {
		summary, err := r.RetrieveAndSaveChannelMetadata(ctx, handles, seedList)

		a.logger.Info().
			Str(logFieldRunID, summary.RunID).
			Int("channels", summary.Channels).
			Int("skipped", summary.Skipped).
			Int("seeds_inserted", summary.Seeds.Inserted).
			Msg("metadata retrieval finished")

		if err != nil {
			return fmt.Errorf("metadata retrieval: %w", err)
		}

		return nil
	})
}

// RunMessages retrieves posts for every channel of seedList.
func (a *App) RunMessages(ctx context.Context, seedList string, full bool) error {
	a.logger.Info().Str(logFieldSeedList, seedList).Bool("full", full).Msg("Starting message retrieval")

	return a.withRetriever(ctx, func(ctx context.Context, r *reader.Retriever) error {
		summary, err := r.RetrieveAndSaveChannelMessages(ctx, seedList, full)

		a.logger.Info().
			Str(logFieldRunID, summary.RunID).
			Int("channels", summary.Channels).
			Int("failed", summary.Failed).
			Int("inserted", summary.Messages.Inserted).
			Int("duplicates", summary.Messages.Duplicates).
			Msg("message retrieval finished")

		if err != nil {
			return fmt.Errorf("message retrieval: %w", err)
		}

		return nil
	})
}

func (a *App) withRetriever(ctx context.Context, fn func(ctx context.Context, r *reader.Retriever) error) error {
	client := reader.NewClient(a.cfg, a.logger)
	opts := reader.OptionsFromConfig(a.cfg)

	return client.Run(ctx, func(ctx context.Context, api reader.API) error {
		return fn(ctx, reader.NewRetriever(api, a.database, opts, a.logger))
	})
}

// RunExport builds a network and writes it as GraphML, and to Neo4j when asked.
func (a *App) RunExport(ctx context.Context, opts ExportOptions) error {
	rng, err := domain.ParseDateRange(opts.From, opts.To)
	if err != nil {
		return err
	}

	builder := a.newBuilder()

	var g *network.Graph

	switch opts.Network {
	case network.KindDomain:
		g, err = builder.DomainNetwork(ctx, opts.SeedLists, rng, a.cfg.NetworkMaxSize)
	default:
		g, err = builder.ForwardNetwork(ctx, opts.SeedLists, rng, a.cfg.NetworkMaxSize)
	}

	if err != nil {
		return fmt.Errorf("build %s network: %w", opts.Network, err)
	}

	if g.Empty() {
		return fmt.Errorf("%s network for %v in %s: %w", opts.Network, opts.SeedLists, rng, apperrors.ErrEmptyGraph)
	}

	if opts.Out != "" {
		if err := writeGraphMLFile(opts.Out, g); err != nil {
			return err
		}

		a.logger.Info().Str("path", opts.Out).Int("nodes", len(g.Nodes)).Int("edges", len(g.Edges)).Msg("GraphML written")
	}

	if opts.Neo4j {
		return a.exportNeo4j(ctx, g)
	}

	return nil
}

func (a *App) exportNeo4j(ctx context.Context, g *network.Graph) (err error) {
	if !a.cfg.Neo4jEnabled() {
		return fmt.Errorf("NEO4J_URI is not set: %w", apperrors.ErrSinkDisabled)
	}

	sink, err := network.NewNeo4jSink(ctx, a.cfg.Neo4jURI, a.cfg.Neo4jUser, a.cfg.Neo4jPassword, a.cfg.Neo4jDatabase, a.logger)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, sink.Close(context.WithoutCancel(ctx)))
	}()

	return worker.RunWithTimeout(ctx, a.cfg.Neo4jTimeout, func(ctx context.Context) error {
		return sink.Export(ctx, g)
	})
}

func writeGraphMLFile(path string, g *network.Graph) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	return network.WriteGraphML(f, g)
}

func (a *App) newBuilder() *network.Builder {
	return network.NewBuilder(a.database, network.Options{
		CommunitySeed:      a.cfg.CommunitySeed,
		CollapseSubdomains: a.cfg.CollapseSubdomains,
	}, a.logger)
}

func (a *App) newAnalysisHandler() *analysis.Handler {
	return analysis.NewHandler(a.database, a.newBuilder(), analysis.Options{
		NetworkMaxSize:   a.cfg.NetworkMaxSize,
		TopMessagesLimit: a.cfg.TopMessagesLimit,
		CacheTTL:         a.cfg.AnalysisCacheTTL,
	}, a.logger)
}
