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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"grammartutor/internal/config"
	"grammartutor/internal/course"
	"grammartutor/internal/db"
	"grammartutor/internal/handlers"
	"grammartutor/internal/lessons"
	"grammartutor/internal/middleware"
	"grammartutor/internal/practice"
	"grammartutor/internal/progress"
	"grammartutor/internal/speech"
	"grammartutor/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web app",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config and PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	database, err := db.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer database.Close()
	queries := db.New(database)

	var store practice.SnapshotStore = practice.NewMemoryStore()
	if cfg.Practice.RedisURL != "" {
		rs, err := practice.NewRedisStore(ctx, cfg.Practice.RedisURL, config.Duration(cfg.Practice.SnapshotTTL))
		if err != nil {
			return err
		}
		defer rs.Close()
		store = rs
		log.Info("practice snapshots in redis")
	}

	tracker := progress.NewTracker(database, log)
	c := course.FromCatalog()
	mgr := practice.NewManager(practice.Config{
		AdvanceDelay:  config.Duration(cfg.Practice.AdvanceDelay),
		ShakeDuration: config.Duration(cfg.Practice.ShakeDuration),
		SessionTTL:    config.Duration(cfg.Practice.SessionTTL),
		SnapshotTTL:   config.Duration(cfg.Practice.SnapshotTTL),
	}, store, tracker, c, log)

	speaker, err := speech.New(ctx, cfg, log)
	if err != nil {
		return err
	}

	tmpl, err := handlers.NewTemplateRenderer(web.Templates())
	if err != nil {
		return err
	}
	sessions := middleware.NewSessionStore()
	h := &handlers.Handlers{
		Auth:        handlers.NewAuthHandler(queries, sessions, tmpl, log),
		Lessons:     handlers.NewLessonHandler(queries, tracker, c, tmpl, log),
		Practice:    handlers.NewPracticeHandler(mgr, tmpl, log),
		Speech:      handlers.NewSpeechHandler(speaker, log),
		Preferences: handlers.NewPreferenceHandler(sessions),
		Sessions:    sessions,
		Static:      web.Static(),
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", srv.Addr, "lessons", len(lessons.GetAllLessons()))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		return mgr.Run(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := sessions.Purge(); n > 0 {
					log.Debug("purged expired sessions", "count", n)
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
