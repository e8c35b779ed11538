package cmd

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
	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/api"
	"github.com/framefold/timeline-engine/internal/config"
	"github.com/framefold/timeline-engine/internal/draft"
	"github.com/framefold/timeline-engine/internal/events"
	"github.com/framefold/timeline-engine/internal/logger"
	"github.com/framefold/timeline-engine/internal/remote"
	"github.com/framefold/timeline-engine/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the editing engine server",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Remote.ProjectID == "" {
		log.Fatal("remote.project_id is required (set FRAMEFOLD_REMOTE_PROJECT_ID or the config file)")
	}

	tokens := remote.NewTokenStore(cfg.Remote.Token)
	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.ProjectID, tokens.Provider(), cfg.Remote.RemoteTimeout(), log)

	drafts := draft.NewStore(cfg.Storage.DraftDir, log)
	if err := drafts.Initialize(); err != nil {
		log.Fatal("Failed to initialize draft storage", zap.Error(err))
	}

	hub := events.NewHub(log)
	go hub.Run()

	sess := session.New(session.Config{
		ProjectID:     cfg.Remote.ProjectID,
		Client:        client,
		Publisher:     hub,
		Drafts:        drafts,
		Logger:        log,
		SnapThreshold: cfg.Editor.SnapThreshold,
		AutosaveDelay: cfg.Editor.AutosaveDelay(),
	})

	// pull the authoritative timeline before accepting edits
	loadCtx, cancel := context.WithTimeout(context.Background(), cfg.Remote.RemoteTimeout())
	if err := sess.Reload(loadCtx); err != nil {
		log.Warn("Initial timeline load failed, starting empty", zap.Error(err))
	}
	cancel()

	router := api.NewRouter(sess, hub, tokens, cfg, log)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("Timeline engine listening",
			zap.String("addr", addr),
			zap.String("projectId", cfg.Remote.ProjectID))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", zap.Error(err))
	}
	// flush pending saves so no edit is lost on exit
	if err := sess.Close(shutdownCtx); err != nil {
		log.Error("Session close failed", zap.Error(err))
	}
	hub.Stop()
}
