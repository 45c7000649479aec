package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/aigents-hub/aigents-api/pkg/gateway/config"
	"github.com/aigents-hub/aigents-api/pkg/gateway/live"
	"github.com/aigents-hub/aigents-api/pkg/gateway/live/conns"
	"github.com/aigents-hub/aigents-api/pkg/gateway/notify"
	"github.com/aigents-hub/aigents-api/pkg/gateway/respstate"
	gatewayserver "github.com/aigents-hub/aigents-api/pkg/gateway/server"
	"github.com/aigents-hub/aigents-api/pkg/gateway/session"
	"github.com/aigents-hub/aigents-api/pkg/gateway/tools"
	"github.com/aigents-hub/aigents-api/pkg/images"
	"github.com/aigents-hub/aigents-api/pkg/processing"
	"github.com/aigents-hub/aigents-api/pkg/realtime"
	"github.com/aigents-hub/aigents-api/pkg/vectorstore"
)

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry := session.New(session.Config{
		TTL:           cfg.SessionTTL,
		SweepInterval: cfg.SessionSweepInterval,
	}, logger)
	state := respstate.New()
	notifier := notify.New(registry, logger)
	tracker := conns.NewTracker()

	qdrant := vectorstore.NewQdrantClient(cfg.QdrantEndpoint(), "automobiles", cfg.QdrantAPIKey)
	embedder := vectorstore.NewOpenAIEmbedder(cfg.OpenAIAPIKey)
	autoStore := vectorstore.NewAutomobileStore(qdrant, embedder, logger)
	if err := autoStore.Init(ctx); err != nil {
		logger.Warn("vector store init failed, quick searches will miss", "error", err)
	}

	imageSvc, err := images.New(images.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
		Bucket:    cfg.MinioBucket,
	}, logger)
	if err != nil {
		return fmt.Errorf("image store: %w", err)
	}

	toolHandler := &tools.Handler{
		Quick:  autoStore,
		Deep:   processing.NewAutomobileWorkflow(cfg.OpenAIAPIKey, autoStore, logger),
		News:   processing.NewNewsWorkflow(cfg.OpenAIAPIKey, logger),
		Notify: notifier,
		State:  state,
		Logger: logger,
	}

	var dialer live.UpstreamDialer
	if cfg.UseRealtime {
		dialer = func(ctx context.Context) (live.UpstreamConn, error) {
			return realtime.Dial(ctx, realtime.Options{
				Model:   cfg.RealtimeModel,
				APIKey:  cfg.OpenAIAPIKey,
				BaseURL: cfg.OpenAIBaseURL,
				Logger:  logger,
			})
		}
	}

	srv := gatewayserver.New(gatewayserver.Deps{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		State:    state,
		Notify:   notifier,
		Tools:    toolHandler,
		Images:   imageSvc,
		Dialer:   dialer,
		Tracker:  tracker,
	})

	listenErrCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	// Missing .env is fine in containerized deployments.
	_ = godotenv.Load()

	if err := run(ctx, logger); err != nil {
		fmt.Fprintf(stderr, "aigents-api: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr))
}
