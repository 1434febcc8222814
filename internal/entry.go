package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akida/ankitex/internal/anki"
	"github.com/akida/ankitex/internal/cache"
	"github.com/akida/ankitex/internal/parser"
	"github.com/akida/ankitex/internal/sse"
	"github.com/akida/ankitex/internal/status"
	"github.com/akida/ankitex/internal/syncer"
	"github.com/akida/ankitex/internal/template"
)

// newLogger builds the structured JSON logger and installs it as the
// process default.
func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// buildEngine wires the parser, cache, and engine from config. A nil
// store selects the real AnkiConnect client. Callers own closing the
// returned cache DB (may be nil).
func buildEngine(cfg *Config, store syncer.Store, logger *slog.Logger, events func(string, any)) (*syncer.Engine, *cache.DB, error) {
	header, footer, err := template.HeaderFooter(cfg.Document.HeaderFile, cfg.Document.FooterFile)
	if err != nil {
		return nil, nil, err
	}
	p := parser.New(header, footer, logger)

	var db *cache.DB
	if cfg.Cache.Path != "" {
		db, err = cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
	}

	include, exclude, err := cfg.Document.CompileRules()
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}

	if store == nil {
		store = anki.NewClient(cfg.Anki.URL, logger)
	}

	engine := syncer.New(store, p, db, logger, syncer.Options{
		ExtraTags: cfg.Tags.Extra(time.Now()),
		Include:   include,
		Exclude:   exclude,
		Events:    events,
	})
	return engine, db, nil
}

// Run starts the watch daemon with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg)
	logger.Info("configuration loaded",
		slog.String("document_path", cfg.Document.Path),
		slog.String("anki_url", cfg.Anki.URL),
		slog.String("cache_path", cfg.Cache.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker()
	defer broker.Close()

	engine, db, err := buildEngine(cfg, app.store, logger, func(event string, data any) {
		broker.Publish(sse.Event{Type: event, Data: data})
	})
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	if err := engine.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return syncer.Watch(gCtx, engine, cfg.Document.Path, logger)
	})

	if cfg.App.Status.Enabled() {
		srv := &http.Server{
			Addr:    cfg.App.Status.Address(),
			Handler: status.NewRouter(engine, db, broker),
		}

		g.Go(func() error {
			logger.Info("status server starting", slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("status server shutdown error", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("stopped")
	return nil
}
