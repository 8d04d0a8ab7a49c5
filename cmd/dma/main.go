package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dma-labs/ajna-dma/internal/config"
	"github.com/dma-labs/ajna-dma/internal/logger"
	"github.com/dma-labs/ajna-dma/internal/metrics"
	"github.com/dma-labs/ajna-dma/internal/scheduler"
	"github.com/dma-labs/ajna-dma/internal/service"
	"github.com/dma-labs/ajna-dma/internal/state"
	"github.com/dma-labs/ajna-dma/internal/strategies"
	"github.com/dma-labs/ajna-dma/internal/web"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

// main is the entry point of the Ajna DMA decision service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Str("network", config.Network).Msg("Ajna DMA service starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Snapshot store ---
	svcCfg := service.Config{
		Network:           config.Network,
		AjnaProxyActions:  config.AjnaProxyActionsAddress,
		OperationExecutor: config.OperationExecutorAddress,
		Params:            config.DefaultProtocolParameters,
	}

	if config.DB.Enabled() {
		db, err := state.OpenDB(state.DBConfig{
			Host: config.DB.Host, Port: config.DB.Port,
			User: config.DB.User, Password: config.DB.Password,
			DBName: config.DB.DBName, SSLMode: config.DB.SSLMode,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB(db)
		if err := state.EnsureSchema(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		store, err := state.NewPostgresStore(db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create snapshot store")
		}
		svcCfg.Storage = store
		svcCfg.DB = db
	} else {
		log.Warn().Msg("DB_HOST not set, snapshots are kept in memory and lost on restart.")
	}

	// --- 3. Swap aggregator ---
	if config.SwapAPI.URL != "" {
		client, err := service.NewSwapClient(config.SwapAPI.URL, config.SwapAPI.APIKey, config.SwapAPI.Caller)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create swap client")
		}
		svcCfg.SwapFetcher = strategies.SwapDataFetcher(client)
	} else {
		log.Warn().Msg("SWAP_API_URL not set, multiply strategies are disabled.")
	}

	// --- 4. Service ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)
	svcCfg.Metrics = m

	svc, err := service.New(svcCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create service")
	}

	// --- 5. Scheduler ---
	sched := scheduler.NewScheduler(ctx, svc.Cache(), config.SnapshotRetentionBlocks)
	sched.OnPruned = m.ObservePruned
	if err := sched.RegisterAll(config.SnapshotPruneCron); err != nil {
		log.Fatal().Err(err).Msg("Failed to register scheduled jobs")
	}
	sched.Start()
	defer sched.Stop()

	// --- 6. Web server ---
	webServer := web.NewWebServer(config.WebPort, svc, registry, m)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting HTTP API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
}
