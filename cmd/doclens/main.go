package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doclens/doclens/internal/api"
	"github.com/doclens/doclens/internal/chunker"
	"github.com/doclens/doclens/internal/config"
	"github.com/doclens/doclens/internal/extract"
	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/llm/groq"
	"github.com/doclens/doclens/internal/observability"
	"github.com/doclens/doclens/internal/server"
	"github.com/doclens/doclens/internal/session"
	"github.com/doclens/doclens/internal/summarize"
	"github.com/doclens/doclens/internal/vector"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "doclens",
		Short: "Document analysis and retrieval question answering service",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", "", "Config file path (optional)")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-8s %s\n", name, url)
			}
			fmt.Println("  custom   (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println()
			fmt.Println("Configure in doclens.yaml or via environment:")
			fmt.Println("  DOCLENS_LLM_PROVIDER=groq")
			fmt.Println("  DOCLENS_LLM_API_KEY=gsk_...")
			fmt.Println("  DOCLENS_LLM_MODEL=llama3-8b-8192")
		},
	}

	rootCmd.AddCommand(serveCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogging(cfg.Log)

	ctx := context.Background()
	started := time.Now()

	if cfg.Log.AuditPath != "" {
		if err := observability.InitGlobalAuditLogger(&observability.AuditConfig{
			Enabled:    true,
			OutputPath: cfg.Log.AuditPath,
		}); err != nil {
			return fmt.Errorf("audit logger: %w", err)
		}
	}

	tracingCfg := observability.DefaultTracingConfig()
	if cfg.Tracing.Enabled {
		tracingCfg.OTLPEndpoint = cfg.Tracing.Endpoint
	}
	tp, err := observability.InitTracing(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	limited := llm.NewRateLimitProvider(provider, llm.DefaultRateLimitConfig())
	client := llm.NewClientWithOptions(limited, cfg.LLM.MaxTokens, cfg.LLM.Temperature)

	splitter := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap)
	store := session.NewStore()

	deps := api.Deps{
		Store:         store,
		Scraper:       extract.NewScraper(cfg.Server.ScrapeTimeout),
		Splitter:      splitter,
		Client:        client,
		Summarizer:    summarize.New(client, splitter, cfg.Summarizer.ChunkCap),
		NewRepository: repositoryFactory(cfg.Vector),
	}

	apiConfig := api.DefaultConfig()
	apiConfig.ListenAddr = cfg.Server.ListenAddr
	apiServer := api.NewServer(apiConfig, deps)

	graceful := server.NewGracefulServer(
		&server.HealthConfig{Addr: cfg.Server.HealthAddr},
		server.DefaultShutdownConfig(),
	)
	graceful.Health.RegisterCheck("llm", server.LLMHealthChecker(cfg.LLM.Provider, nil))
	graceful.Health.RegisterCheck("vector-store", server.VectorStoreHealthChecker(cfg.Vector.Backend, nil))
	graceful.Health.RegisterCheck("document", server.DocumentSessionChecker(store.Ready))

	hooks := []server.ShutdownHook{
		server.HTTPServerShutdownHook("api-server", apiServer.Stop),
		server.VectorStoreShutdownHook(func() error {
			sess, err := store.Current()
			if err != nil {
				return nil
			}
			return sess.Engine.Close()
		}),
		server.LLMProviderShutdownHook(func() {
			stats := limited.Stats()
			slog.Info("llm rate limiter drained",
				"requests_in_window", stats.RequestsInWindow,
				"tokens_in_window", stats.TokensInWindow,
			)
		}),
		server.TracingShutdownHook(tp.Shutdown),
	}
	for _, h := range hooks {
		graceful.RegisterHook(h.Name, h.Priority, h.Fn)
	}
	graceful.RegisterHook("audit-log", 95, func(ctx context.Context) error {
		observability.Audit().LogServerStop(ctx, time.Since(started))
		return observability.Audit().Close()
	})

	if err := graceful.Start(cfg.Server.HealthAddr); err != nil {
		return fmt.Errorf("health server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()
	observability.Audit().LogServerStart(ctx, cfg.Server.ListenAddr, cfg.Vector.Backend)
	slog.Info("doclens started",
		"addr", cfg.Server.ListenAddr,
		"health_addr", cfg.Server.HealthAddr,
		"provider", cfg.LLM.Provider,
		"vector_backend", cfg.Vector.Backend,
	)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-graceful.Shutdown.ShutdownCh():
	}
	graceful.Wait()
	return nil
}

// buildProvider wires the configured OpenAI-compatible chat provider.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	factory := llm.NewFactory()
	for _, p := range []struct{ name, url string }{
		{"groq", llm.KnownProviders["groq"]},
		{"openai", llm.KnownProviders["openai"]},
		{"ollama", llm.KnownProviders["ollama"]},
		{"custom", ""},
	} {
		p := p
		factory.Register(p.name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = p.url
			}
			return groq.New(c.APIKey, c.Model, base, c.EmbedModel), nil
		})
	}

	return factory.Create(llm.ProviderConfig{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		EmbedModel:  cfg.LLM.EmbedModel,
		Timeout:     cfg.LLM.Timeout,
		MaxAttempts: cfg.LLM.MaxAttempts,
	})
}

// repositoryFactory returns a constructor for the configured vector backend.
// Each analysis gets a fresh store so stale chunks never leak between
// documents; for qdrant that means dropping the previous collection.
func repositoryFactory(cfg config.VectorConfig) func() (vector.Repository, error) {
	if cfg.Backend == "qdrant" {
		return func() (vector.Repository, error) {
			repo, err := vector.NewQdrant(context.Background(), cfg.Host, cfg.Port, cfg.Collection)
			if err != nil {
				return nil, err
			}
			if err := repo.DropCollection(context.Background()); err != nil {
				slog.Warn("dropping previous qdrant collection failed", "error", err)
			}
			return repo, nil
		}
	}
	return func() (vector.Repository, error) {
		return vector.NewMemory(), nil
	}
}

func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
