package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/toolroom/internal/app"
	"github.com/nhle/toolroom/internal/credential"
	"github.com/nhle/toolroom/internal/eventsource"
	"github.com/nhle/toolroom/internal/logging"
	"github.com/nhle/toolroom/internal/model"
	"github.com/nhle/toolroom/internal/session"
	"github.com/nhle/toolroom/internal/sound"
	"github.com/nhle/toolroom/internal/store"
	appsync "github.com/nhle/toolroom/internal/sync"
)

// connectTimeout bounds opening the event source at startup.
const connectTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config.yaml")
	demo := flag.Bool("demo", false, "use the in-memory event source with sample activity")
	flag.Parse()

	if err := run(*configPath, *demo); err != nil {
		fmt.Fprintf(os.Stderr, "toolroom: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, demo bool) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if demo {
		cfg.EventSource.Driver = "memory"
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	viewer := cfg.ViewerContext()
	if viewer.HomeBranch == "" {
		if cfg.EventSource.Driver != "memory" {
			return fmt.Errorf("viewer.home_branch is not configured in %s", configPath)
		}
		viewer.HomeBranch = demoHomeBranch
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening device store: %w", err)
	}
	defer st.Close()

	source, err := openSource(rootCtx, cfg.EventSource, viewer, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	var player sound.Player = sound.Mute{}
	if cfg.Notifications.Sound {
		player = sound.NewBell(os.Stderr)
	}

	sess, err := session.Open(rootCtx, session.Options{
		Viewer:      viewer,
		Source:      source,
		Store:       st,
		Player:      player,
		Logger:      logger.Named("session"),
		LedgerSize:  cfg.Notifications.LedgerSize,
		ToastLimit:  cfg.Notifications.ToastLimit,
		ToastMaxAge: cfg.Notifications.ToastMaxAge(),
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	refresher := appsync.New(source, appsync.Options{
		Interval: cfg.Notifications.PollInterval(),
		Limit:    cfg.EventSource.FetchLimit,
		Logger:   logger.Named("refresh"),
	})
	defer refresher.Stop()

	// Polling keeps running when push is unavailable.
	_ = sess.Subscribe(rootCtx, func() { refresher.Trigger(true) })

	p := tea.NewProgram(app.New(app.Options{
		Session:   sess,
		Refresher: refresher,
		Logger:    logger.Named("ui"),
		ToastTTL:  cfg.Notifications.ToastTTL(),
	}), tea.WithAltScreen(), tea.WithContext(rootCtx))

	logger.Info("toolroom started",
		zap.String("driver", cfg.EventSource.Driver),
		zap.String("branch", string(viewer.EffectiveBranch())))

	if _, err := p.Run(); err != nil && rootCtx.Err() == nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// openSource connects the configured change log.
func openSource(ctx context.Context, cfg model.EventSourceConfig, viewer model.ViewerContext, logger *zap.Logger) (eventsource.Source, error) {
	switch cfg.Driver {
	case "memory":
		src := newDemoSource(viewer.HomeBranch)
		go runDemoActivity(ctx, src, viewer.HomeBranch, logger.Named("demo"))
		return src, nil
	case "postgres", "":
		dsn, err := eventsource.ResolveDSN(cfg, credential.Get)
		if err != nil {
			return nil, err
		}
		connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		src, err := eventsource.OpenPostgres(connCtx, dsn, eventsource.PostgresOptions{
			NotifyChannel: cfg.NotifyChannel,
			Logger:        logger.Named("eventsource"),
		})
		if err != nil {
			return nil, err
		}
		if cfg.Bootstrap {
			if err := src.Bootstrap(connCtx); err != nil {
				_ = src.Close()
				return nil, err
			}
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown event source driver %q", cfg.Driver)
	}
}
