package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lendchain/core/events"
	"lendchain/core/state"
	"lendchain/native/lending"
	"lendchain/observability/logging"
	obsotel "lendchain/observability/otel"
	"lendchain/services/lendingd/archive"
	"lendchain/services/lendingd/config"
	"lendchain/services/lendingd/genesis"
	"lendchain/services/lendingd/server"
	"lendchain/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		slog.Error("parse log level", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("lendingd", cfg.Environment, logging.Options{
		Level:      logLevel,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdownTracing, err := obsotel.Init(rootCtx, obsotel.Config{
			ServiceName: "lendingd",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logger.Error("tracing setup failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = shutdownTracing(shutdownCtx)
		}()
	}

	var db storage.Database
	if cfg.Storage.DataDir != "" {
		leveldb, err := storage.NewLevelDB(cfg.Storage.DataDir)
		if err != nil {
			logger.Error("open leveldb", "path", cfg.Storage.DataDir, "error", err)
			os.Exit(1)
		}
		db = leveldb
	} else {
		logger.Warn("running on in-memory storage, state will not survive restart")
		db = storage.NewMemDB()
	}
	defer db.Close()

	clock := slotClock(cfg.Chain)

	ledger := lending.NewMemoryLedger()
	oracle := lending.NewStaticOracle()

	if cfg.Storage.GenesisPath != "" {
		gen, err := genesis.Load(cfg.Storage.GenesisPath)
		if err != nil {
			logger.Error("load genesis", "path", cfg.Storage.GenesisPath, "error", err)
			os.Exit(1)
		}
		if err := gen.Apply(oracle, ledger, clock()); err != nil {
			logger.Error("apply genesis", "path", cfg.Storage.GenesisPath, "error", err)
			os.Exit(1)
		}
		logger.Info("genesis applied", "prices", len(gen.Prices), "balances", len(gen.Balances))
	}

	engine := lending.NewEngine()
	engine.SetState(state.NewLendingStore(db))
	engine.SetLedger(ledger)
	engine.SetMinter(ledger)
	engine.SetOracle(oracle)
	engine.SetSlot(clock())

	hub := server.NewEventHub(clock, logger)
	emitters := []events.Emitter{hub}

	if cfg.Storage.ArchivePath != "" {
		arch, err := archive.Open(cfg.Storage.ArchivePath, clock)
		if err != nil {
			logger.Error("open archive", "path", cfg.Storage.ArchivePath, "error", err)
			os.Exit(1)
		}
		defer arch.Close()
		emitters = append(emitters, arch)
	}
	engine.SetEmitter(events.FuncEmitter(func(evt events.Event) {
		for _, emitter := range emitters {
			emitter.Emit(evt)
		}
	}))

	api := server.New(engine, state.NewLendingStore(db), clock, hub, logger, cfg)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(api, "lendingd"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening", "address", cfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing shutdown", "error", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve http", "error", err)
			os.Exit(1)
		}
	}
}

// slotClock derives the current slot from wall time. Slot 0 anchors at the
// configured genesis instant, or process start when none is set.
func slotClock(cfg config.ChainConfig) server.SlotClock {
	genesis := time.Unix(cfg.GenesisUnix, 0)
	if cfg.GenesisUnix == 0 {
		genesis = time.Now()
	}
	interval := cfg.SlotInterval
	return func() uint64 {
		elapsed := time.Since(genesis)
		if elapsed < 0 {
			return 0
		}
		return uint64(elapsed / interval)
	}
}
