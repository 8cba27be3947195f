package dietbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitriyy0828-web/diet-bot-v2/internal/app"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/bot"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/bot/telegram"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/config"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/db"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/events"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/intent"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/llm"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/metrics"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/service"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/session"
	"github.com/dmitriyy0828-web/diet-bot-v2/internal/vision"
)

var serveMetricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, watchPath, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Metrics.Addr = serveMetricsAddr
		}
		if !cmd.Flags().Changed("log-level") {
			lvl, _ := config.ParseLevel(cfg.LogLevel)
			levelVar.Set(lvl)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, watchPath)
	},
}

func serve(ctx context.Context, cfg *config.Config, watchPath string) error {
	path, err := resolveDBPath()
	if err != nil {
		return err
	}
	if err := app.EnsureDBDir(path); err != nil {
		return err
	}
	sqldb, err := db.Open(path)
	if err != nil {
		return err
	}
	defer sqldb.Close()
	if err := db.ApplyMigrations(sqldb); err != nil {
		return err
	}

	m := metrics.New()
	client := llm.NewClient(cfg.OpenRouter.APIKey,
		llm.WithBaseURL(cfg.OpenRouter.BaseURL),
		llm.WithAttribution(cfg.OpenRouter.Referer, cfg.OpenRouter.Title),
		llm.WithLogger(logger),
		llm.WithUsageRecorder(service.UsageLedger{DB: sqldb}),
		llm.WithUsageRecorder(m),
	)
	resolver, err := newResolver(sqldb, cfg, m.ObserveLookup, logger)
	if err != nil {
		return err
	}
	extractor := vision.New(client,
		vision.WithDetectModel(vision.ModelConfig(cfg.Models.Vision)),
		vision.WithEstimateModel(vision.ModelConfig(cfg.Models.VisionDetailed)),
		vision.WithLogger(logger),
	)
	interpreter := intent.New(client,
		intent.WithModel(intent.ModelConfig(cfg.Models.Edit)),
		intent.WithLogger(logger),
	)

	var emitter *events.Emitter
	if cfg.NATS.URL != "" {
		e, closeNATS, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer closeNATS()
		emitter = e
	}

	tg, err := telegram.New(cfg.Telegram.Token, logger)
	if err != nil {
		return err
	}
	if err := tg.SetCommands(); err != nil {
		logger.Warn("Register bot commands failed", "error", err)
	}

	var current atomic.Pointer[config.Config]
	current.Store(cfg)
	b, err := bot.New(bot.Options{
		DB:          sqldb,
		Transport:   tg,
		Resolver:    resolver,
		Vision:      extractor,
		Interpreter: interpreter,
		Store:       session.NewStore(),
		Events:      emitter,
		Metrics:     m,
		IsAdmin:     func(id int64) bool { return current.Load().IsAdmin(id) },
		Location:    service.LocalZone(cfg.Stats.UTCOffsetHours),
		EditTimeout: cfg.Session.EditTimeout,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	updates := tg.Updates(gctx, cfg.Telegram.PollTimeout)
	g.Go(func() error {
		return bot.NewDispatcher(b, cfg.Telegram.Workers, logger).Run(gctx, updates)
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if watchPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, watchPath, logger, func(next *config.Config) {
				if err := next.Validate(); err != nil {
					logger.Warn("Ignoring invalid config", "path", watchPath, "error", err)
					return
				}
				if lvl, err := config.ParseLevel(next.LogLevel); err == nil && logLevel == "" {
					levelVar.Set(lvl)
				}
				current.Store(next)
			})
		})
	}

	logger.Info("Bot started", "username", tg.Username(), "db", path, "workers", cfg.Telegram.Workers,
		"providers", resolver.Providers(), "metrics", cfg.Metrics.Addr, "nats", cfg.NATS.URL != "")
	err = g.Wait()
	logger.Info("Bot stopped")
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Listen address for /metrics, e.g. :9090 (overrides METRICS_ADDR)")
}
