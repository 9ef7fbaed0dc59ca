package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eldersfive/mediator/internal/config"
	"github.com/eldersfive/mediator/internal/handler"
	"github.com/eldersfive/mediator/internal/keyring"
	"github.com/eldersfive/mediator/internal/llm"
	"github.com/eldersfive/mediator/internal/mediation"
	natsclient "github.com/eldersfive/mediator/internal/nats"
	"github.com/eldersfive/mediator/internal/store"
	"github.com/eldersfive/mediator/pkg/logger"
	"github.com/eldersfive/mediator/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mediation API server",
	RunE:  runServe,
}

// migrator is implemented by stores whose schema is not applied on open.
type migrator interface {
	Migrate(ctx context.Context) error
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting mediator", zap.String("version", VersionString()))

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "eldersfive-mediator", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if m, ok := db.(migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	checks := map[string]handler.Pinger{"store": db}

	keyOpts := []keyring.Option{keyring.WithLogger(log)}
	if cfg.RedisURL != "" {
		cache, err := keyring.NewRedisCache(ctx, cfg.RedisURL, keyring.DefaultCacheTTL)
		if err != nil {
			log.Warn("redis unavailable, room keys served from the store only", zap.Error(err))
		} else {
			defer cache.Close()
			keyOpts = append(keyOpts, keyring.WithCache(cache))
			checks["redis"] = cache
		}
	}
	keys := keyring.New(db, keyOpts...)

	var notifier mediation.Notifier
	if cfg.NATSURL != "" {
		nc, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer nc.Close()

		streams := natsclient.NewStreamManager(nc)
		if err := streams.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure stream: %w", err)
		}
		notifier = streams
		checks["nats"] = nc
	}

	opts := llm.Options{Model: cfg.Model}
	provider := llm.Provider(strings.ToLower(cfg.LLMProvider))
	if provider == llm.ProviderOpenAI {
		opts.BaseURL = cfg.OpenAIBaseURL
	}
	client, err := llm.NewClient(provider, cfg.ProviderAPIKey(), opts)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	svc := mediation.NewService(db, keys, client, notifier, mediation.Config{
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
		HistoryLimit: cfg.HistoryLimit,
		Timeout:      cfg.MediationTimeout,
	}, log)

	server := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: newRouter(cfg, routerDeps{
			mediator: svc,
			keys:     keys,
			rooms:    db,
			checks:   checks,
		}, log),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("port", cfg.ServerPort),
			zap.String("llm_provider", client.Name()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}
