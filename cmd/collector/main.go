package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/PratikDhanave/group-message-collector/internal/bootstrap"
	"github.com/PratikDhanave/group-message-collector/internal/collector"
	"github.com/PratikDhanave/group-message-collector/internal/config"
	"github.com/PratikDhanave/group-message-collector/internal/dedup"
	"github.com/PratikDhanave/group-message-collector/internal/httpserver"
	"github.com/PratikDhanave/group-message-collector/internal/logging"
	"github.com/PratikDhanave/group-message-collector/internal/models"
	"github.com/PratikDhanave/group-message-collector/internal/mqtt"
	"github.com/PratikDhanave/group-message-collector/internal/pipeline"
	"github.com/PratikDhanave/group-message-collector/internal/sink"
	"github.com/PratikDhanave/group-message-collector/internal/store"
	"github.com/PratikDhanave/group-message-collector/internal/ws"
)

// main boots the service: config → stores → hydrate → event loop → inputs.
func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := logging.New("main")
		l.Fatal().Err(err).Msg("load config")
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		l := logging.New("main")
		l.Fatal().Err(err).Msg("configure logging")
	}
	log := logging.New("main")
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn().Err(envErr).Msg("read .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("collector exited")
	}
	log.Info().Msg("collector stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	log := logging.New("main")

	p := pipeline.New(policyFrom(cfg))

	// Optional Postgres mirror.
	var db *store.PostgresStore
	if cfg.DBURL != "" {
		var err error
		if db, err = store.NewPostgresStore(cfg.DBURL); err != nil {
			return err
		}
		defer db.Close()

		// Ensure required tables/indexes exist so `docker compose up --build` is enough.
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	var scanner recordScanner
	if db != nil {
		scanner = db
	}
	if err := hydrate(ctx, cfg, p, scanner); err != nil {
		return err
	}

	out, err := sink.OpenJSONL(cfg.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	hub := ws.NewHub(logging.New("ws"))
	sinks := sink.Multi{out}
	if db != nil {
		sinks = append(sinks, db)
	}
	sinks = append(sinks, hub)

	col := collector.New(p, sinks,
		collector.WithLogger(logging.New("collector")),
		collector.WithSweepInterval(cfg.SweepInterval),
	)

	deps := httpserver.Deps{Collector: col, Hub: hub, Log: logging.New("http")}
	if db != nil {
		deps.DB = db
		deps.Counter = db
	}
	srv := httpserver.NewHTTPServer(cfg, httpserver.NewRouter(cfg, deps))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return col.Run(gctx) })
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if cfg.MQTTBroker != "" {
		listener := mqtt.NewListener(mqtt.Config{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
			QoS:      1,
		}, col, logging.New("mqtt"))
		g.Go(func() error { return listener.Start(gctx) })
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("output", out.Path()).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func policyFrom(cfg config.Config) pipeline.Policy {
	return pipeline.Policy{
		Exact:             dedup.Policy{Window: seconds(cfg.ExactWindow), Refresh: cfg.ExactRefresh},
		Repost:            dedup.Policy{Window: seconds(cfg.RepostWindow), Refresh: cfg.RepostRefresh},
		IDs:               dedup.Policy{Window: seconds(cfg.IDWindow)},
		RepostMode:        pipeline.RepostMode(cfg.RepostHashMode),
		UnknownAuthorName: cfg.UnknownAuthorName,
	}
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// recordScanner is the Postgres side of hydration.
type recordScanner interface {
	ScanRecords(ctx context.Context, since time.Time, fn func(models.Record)) (int, error)
}

// hydrate replays persisted history so a restart does not re-emit recent
// duplicates.
func hydrate(ctx context.Context, cfg config.Config, p *pipeline.Pipeline, db recordScanner) error {
	log := logging.New("bootstrap")
	start := time.Now()

	switch cfg.HydrateFrom {
	case "postgres":
		since := start.Add(-max(cfg.ExactWindow, cfg.RepostWindow, cfg.IDWindow))
		n, err := db.ScanRecords(ctx, since, p.Hydrate)
		if err != nil {
			return err
		}
		log.Info().Int("loaded", n).Dur("took", time.Since(start)).Msg("hydrated from postgres")
	default:
		res, err := bootstrap.LoadFile(cfg.OutputFile, p.Hydrate)
		if err != nil {
			return err
		}
		log.Info().
			Str("file", cfg.OutputFile).
			Int("loaded", res.Loaded).
			Int("skipped", res.Skipped).
			Dur("took", time.Since(start)).
			Msg("hydrated from log")
	}

	// Entries already outside every window go now rather than on first use.
	if n := p.Sweep(); n > 0 {
		log.Debug().Int("evicted", n).Msg("dropped stale history")
	}
	return nil
}
