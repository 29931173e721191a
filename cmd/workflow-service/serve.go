package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/api/rest"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/agent"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/audit"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/breaker"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/cache"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/config"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/database"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/engine"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/lock"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/logger"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/metrics"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/persistence"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/redisclient"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/store"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workflow HTTP service",
	Long: `Start the long-running service: Redis backs the execution leases and
the result cache, the configured database keeps execution state, and
the REST surface accepts and reports workflow executions.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Init(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	})
	defer logger.Sync()

	rdb, err := redisclient.New(&cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	keyed := store.NewRedisStore(rdb)

	var gateway persistence.Gateway = persistence.NewMemoryGateway()
	if cfg.Database.Enabled() {
		db, err := database.Open(&cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close(db) }()

		gw := persistence.NewGormGateway(db)
		if err := gw.AutoMigrate(); err != nil {
			return fmt.Errorf("migrate execution tables: %w", err)
		}
		gateway = gw
	} else {
		logger.Warn("no database configured, execution state is in-memory only")
	}

	invoker, err := buildInvoker(context.Background(), cfg)
	if err != nil {
		return err
	}

	coll := metrics.NewCollector()
	eng, err := engine.New(engine.Options{
		Invoker: invoker,
		Breakers: breaker.NewRegistry(breaker.Config{
			Window:           cfg.Breaker.Window,
			Buckets:          cfg.Breaker.Buckets,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MinRequests:      cfg.Breaker.MinRequests,
			Cooldown:         cfg.Breaker.Cooldown,
		}),
		Cache:   cache.New(keyed, cfg.Cache.TTL, cfg.Cache.CacheableAgents),
		Locks:   lock.NewManager(keyed),
		Gateway: gateway,
		Audit:   audit.NewZapSink(logger.L()),
		Metrics: coll,
		LockTTL: cfg.Lock.TTL,
		LockRetry: lock.RetryPolicy{
			Attempts: cfg.Lock.RetryAttempts,
			Interval: cfg.Lock.RetryInterval,
		},
	})
	if err != nil {
		return err
	}

	srv := rest.NewServer(eng, coll, &rest.Config{
		Address:       cfg.Server.Address,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		EnableCORS:    cfg.Server.EnableCORS,
		MaxConcurrent: cfg.Server.MaxConcurrent,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	if err := srv.ShutdownWithTimeout(shutdownGrace); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
	logger.Info("service stopped")
	return nil
}

// buildInvoker assembles the agent router: the local analytics kinds
// always, the chat-backed insight generator and the MCP bridge when
// configured.
func buildInvoker(ctx context.Context, cfg *config.Config) (*agent.Router, error) {
	router := agent.NewRouter()

	local := agent.NewLocalInvoker()
	for _, kind := range agent.LocalKinds() {
		router.Handle(kind, local)
	}

	if cfg.Agents.Chat.Enabled() {
		chatCfg := agent.ChatConfig{
			Model:   cfg.Agents.Chat.Model,
			APIKey:  cfg.Agents.Chat.APIKey,
			BaseURL: cfg.Agents.Chat.BaseURL,
		}
		if cfg.Agents.Chat.Temperature > 0 {
			t := cfg.Agents.Chat.Temperature
			chatCfg.Temperature = &t
		}
		if cfg.Agents.Chat.MaxTokens > 0 {
			n := cfg.Agents.Chat.MaxTokens
			chatCfg.MaxTokens = &n
		}

		chat, err := agent.NewChatInvoker(ctx, chatCfg)
		if err != nil {
			return nil, fmt.Errorf("chat agent: %w", err)
		}
		router.Handle(agent.KindInsightGenerator, chat)
		logger.Info("insight generator enabled", zap.String("model", cfg.Agents.Chat.Model))
	}

	if cfg.Agents.MCP.Enabled() {
		mcp := agent.NewMCPInvoker(agent.MCPConfig{
			Transport: cfg.Agents.MCP.Transport,
			Command:   cfg.Agents.MCP.Command,
			Args:      cfg.Agents.MCP.Args,
			URL:       cfg.Agents.MCP.URL,
			Timeout:   cfg.Agents.MCP.Timeout,
		})
		router.HandlePrefix(agent.MCPKindPrefix, mcp)
		logger.Info("mcp agent bridge enabled", zap.String("transport", cfg.Agents.MCP.Transport))
	}

	return router, nil
}
