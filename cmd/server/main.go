// Package main is the entry point for the evetabi provably-fair dice server.
// It wires together the Key Vault, Explorer Client, Mempool Ingester, Seed
// Registry, Bet Materializer, Payout Engine, Event Bus, and WebSocket hub,
// then starts the public HTTP API alongside the background scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/evetabi/prediction/internal/api"
	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/eventbus"
	"github.com/evetabi/prediction/internal/explorer"
	"github.com/evetabi/prediction/internal/fairness"
	"github.com/evetabi/prediction/internal/ingester"
	"github.com/evetabi/prediction/internal/materializer"
	"github.com/evetabi/prediction/internal/payout"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/scheduler"
	"github.com/evetabi/prediction/internal/seedregistry"
	"github.com/evetabi/prediction/internal/vault"
	"github.com/evetabi/prediction/internal/ws"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting evetabi dice server", "env", cfg.Server.Env, "port", cfg.Server.Port, "network", cfg.Explorer.Network)

	// ── 2. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 4. Repositories ───────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	vaultRepo := repository.NewVaultWalletRepository(db)
	betRepo := repository.NewBetRepository(db)
	seedRepo := repository.NewSeedRepository(db)
	detectedRepo := repository.NewDetectedTxRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)

	// ── 5. Key Vault ──────────────────────────────────────────────────────────
	cipher, err := vault.NewCipher(cfg.Vault.MasterEncryptionKey)
	if err != nil {
		logger.Error("vault cipher init failed", "err", err)
		os.Exit(1)
	}
	vaultSvc := vault.NewService(vaultRepo, cipher)

	// ── 6. Explorer Client (REST + WebSocket) ────────────────────────────────
	explorerClient := explorer.New(cfg.Explorer)
	if cfg.Explorer.VerifyNetworkOnBoot {
		if err := explorerClient.VerifyNetwork(context.Background(), cfg.Explorer.Network == "mainnet"); err != nil {
			logger.Error("explorer network verification failed", "err", err)
			os.Exit(1)
		}
	}
	wsClient := explorer.NewWSClient(cfg.Explorer, cfg.WS)

	// ── 7. Seed Registry ──────────────────────────────────────────────────────
	seedSvc := seedregistry.NewService(seedRepo, fairness.GenerateServerSeed, time.Now)

	// ── 8. Event Bus ──────────────────────────────────────────────────────────
	bus := eventbus.New()

	// ── 9. Payout Engine ──────────────────────────────────────────────────────
	payoutEngine := payout.New(betRepo, detectedRepo, payoutRepo, vaultSvc, userRepo, explorerClient, payout.Config{
		FeeBufferSatoshis: cfg.Bet.FeeBufferSatoshis,
		DefaultTxFee:      cfg.Bet.DefaultTxFeeSatoshis,
		DustLimitSatoshis: cfg.Bet.DustLimitSatoshis,
		SettleDelay:       cfg.Bet.SettleDelay,
		MaxRetries:        cfg.Bet.MaxPayoutRetries,
		NetParams:         cfg.Explorer.NetParams,
	})

	// ── 10. Bet Materializer ──────────────────────────────────────────────────
	materializerSvc := materializer.New(db, betRepo, userRepo, detectedRepo, seedRepo, seedRepo, seedSvc, vaultSvc, payoutEngine, bus, materializer.Config{
		MinBetSatoshis:         cfg.Bet.MinBetSatoshis,
		MaxBetSatoshis:         cfg.Bet.MaxBetSatoshis,
		MinMultiplier:          cfg.Bet.MinMultiplier,
		MaxMultiplier:          cfg.Bet.MaxMultiplier,
		HouseEdge:              cfg.Bet.HouseEdge,
		MinConfirmationsPayout: cfg.Bet.MinConfirmationsPayout,
		SweepPageSize:          cfg.Bet.SweepPageSize,
	})

	// ── 11. Root context + signal handling (created early; the Ingester's
	// deposit callback and the Explorer WS reader both need it) ─────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 12. Mempool Ingester ──────────────────────────────────────────────────
	tip := &ingester.ApproxBlockTip{}
	in := ingester.New(explorerClient, tip.Get, 4096, func(event domain.DepositEvent) {
		if _, err := materializerSvc.Materialize(ctx, event); err != nil {
			logger.Error("materializer: Materialize failed", "txid", event.Txid, "err", err)
		}
	})

	// ── 13. WebSocket Hub — no JWT secret configured, so WS connections are
	// always anonymous; there is no end-user login to bind a token to ────────
	var allowedOrigins []string
	if ori := os.Getenv("WS_ALLOWED_ORIGINS"); ori != "" {
		for _, o := range strings.Split(ori, ",") {
			allowedOrigins = append(allowedOrigins, strings.TrimSpace(o))
		}
	}
	hub := ws.NewHub(nil, allowedOrigins)

	// ── 14. Start WS Hub ──────────────────────────────────────────────────────
	go hub.Run()
	go hub.SubscribeBus(bus)
	logger.Info("websocket hub started")

	// ── 15. Start Explorer WebSocket reader + watch active vaults ───────────
	activeVaults, err := vaultSvc.ListActive(ctx)
	if err != nil {
		logger.Error("failed to list active vaults", "err", err)
		os.Exit(1)
	}
	for _, v := range activeVaults {
		in.Watch(v.Address)
		wsClient.TrackAddress(v.Address)
	}
	go wsClient.Run(ctx, func(frame explorer.Frame) {
		in.HandleFrame(ctx, frame)
	})

	// ── 16. Scheduler (sweep/retry/confirm loops) ────────────────────────────
	sched := scheduler.NewScheduler(materializerSvc, payoutEngine, betRepo, vaultSvc, explorerClient, tip.Get, cfg, logger)
	sched.Start(ctx)

	// ── 17. HTTP Router ───────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		Bets:  betRepo,
		Users: userRepo,
		Seeds: seedSvc,
		Hub:   hub,
		Cfg:   cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 18. Start server ──────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 19. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	db.Close()
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially. Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
