package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pomodoro/timerd/internal/channel"
	"pomodoro/timerd/internal/config"
	"pomodoro/timerd/internal/db"
	"pomodoro/timerd/internal/handler"
	"pomodoro/timerd/internal/logging"
	"pomodoro/timerd/internal/model"
	"pomodoro/timerd/internal/notify"
	"pomodoro/timerd/internal/repository"
	"pomodoro/timerd/internal/router"
	"pomodoro/timerd/internal/service"
	"pomodoro/timerd/internal/settings"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "timerd",
		Short:         "Background Pomodoro timer service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the timer engine and its HTTP event channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})
	root.AddCommand(newTokenCmd())
	return root
}

func newTokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an observer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.AuthEnabled() {
				return errors.New("TOKEN_SECRET is not configured")
			}
			token, apiErr := service.NewTokenService(cfg.TokenSecret, cfg.TokenTTL).Issue(subject)
			if apiErr != nil {
				return apiErr
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "pomoctl", "token subject")
	return cmd
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if _, err := db.RunMigrations(ctx, database, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	clock := service.SystemClock{}
	timerRepo := repository.NewTimerRepository(repository.NewKVRepository(database))
	if err := timerRepo.EnsureInitialized(ctx, model.DayKey(clock.Now())); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	settingsPath := cfg.SettingsPath
	if settingsPath == "" {
		if settingsPath, err = settings.DefaultPath("timerd"); err != nil {
			return err
		}
	}
	settingsProvider := settings.NewProvider(settingsPath)
	log.Info().Str("path", settingsProvider.Path()).Msg("Settings loaded")

	hub := channel.NewHub()
	sink := notify.NewPreferenceSink(settingsProvider, notify.Multi{notify.LogSink{}, notify.NewHubSink(hub)})
	recorder := service.NewRecorder(timerRepo, clock)

	engine := service.NewTimerEngine(service.EngineDeps{
		Repo:      timerRepo,
		Recorder:  recorder,
		Settings:  settingsProvider,
		Publisher: hub,
		Notifier:  sink,
		Clock:     clock,
	}, service.EngineConfig{
		TickInterval:  cfg.Timer.TickInterval,
		StaleAfter:    cfg.Timer.StaleAfter,
		RecordSkipped: cfg.Timer.RecordSkipped,
	})
	defer engine.Close()

	if err := engine.Recover(ctx); err != nil {
		return fmt.Errorf("recover timer: %w", err)
	}

	dispatcher := channel.NewDispatcher(engine, settingsProvider)
	dispatcher.OnSettingsUpdated(func(s model.Settings) {
		log.Info().Int("focusDuration", s.FocusDuration).Msg("Settings updated by observer")
	})

	opts := router.Options{
		CommandHandler: handler.NewCommandHandler(dispatcher),
		TimerHandler:   handler.NewTimerHandler(engine, timerRepo, recorder),
		EventsHandler:  handler.NewEventsHandler(hub),
		Observers:      hub,
		CORSOrigins:    cfg.CORSOrigins,
	}
	if cfg.AuthEnabled() {
		opts.Tokens = service.NewTokenService(cfg.TokenSecret, cfg.TokenTTL)
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end with the process context; Shutdown alone waits for them.
		BaseContext: func(net.Listener) context.Context { return groupCtx },
	}
	watchdog := service.NewWatchdog(timerRepo, settingsProvider, sink, clock, cfg.Timer.CheckInterval)

	group.Go(func() error {
		log.Info().Str("addr", server.Addr).Bool("auth", cfg.AuthEnabled()).Msg("timerd listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return watchdog.Run(groupCtx)
	})
	group.Go(func() error {
		err := settingsProvider.Watch(groupCtx, func(s model.Settings) {
			log.Info().
				Int("focusDuration", s.FocusDuration).
				Int("breakDuration", s.BreakDuration).
				Int("longBreakDuration", s.LongBreakDuration).
				Msg("Settings file reloaded")
		})
		if err != nil {
			log.Warn().Err(err).Msg("Settings watcher stopped")
		}
		return nil
	})

	err = group.Wait()
	log.Info().Msg("timerd stopped")
	return err
}
