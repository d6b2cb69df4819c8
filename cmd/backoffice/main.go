// Package main is the entry point for the evetabi admin server. Runs on a
// separate port and exposes the vault/seed/withdrawal operations of spec.md
// §4.10, gated by an API key and an IP allowlist rather than user sessions.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/evetabi/prediction/internal/admin"
	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/explorer"
	"github.com/evetabi/prediction/internal/fairness"
	"github.com/evetabi/prediction/internal/payout"
	"github.com/evetabi/prediction/internal/repository"
	"github.com/evetabi/prediction/internal/seedregistry"
	"github.com/evetabi/prediction/internal/vault"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting evetabi admin server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
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

	// ── Repositories ──────────────────────────────────────────────────────────
	vaultRepo := repository.NewVaultWalletRepository(db)
	betRepo := repository.NewBetRepository(db)
	userRepo := repository.NewUserRepository(db)
	detectedRepo := repository.NewDetectedTxRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)

	// ── Key Vault + Explorer + Payout Engine (for cold-storage withdrawal) ──
	cipher, err := vault.NewCipher(cfg.Vault.MasterEncryptionKey)
	if err != nil {
		logger.Error("vault cipher init failed", "err", err)
		os.Exit(1)
	}
	vaultSvc := vault.NewService(vaultRepo, cipher)
	explorerClient := explorer.New(cfg.Explorer)
	payoutEngine := payout.New(betRepo, detectedRepo, payoutRepo, vaultSvc, userRepo, explorerClient, payout.Config{
		FeeBufferSatoshis: cfg.Bet.FeeBufferSatoshis,
		DefaultTxFee:      cfg.Admin.ColdStorageFee,
		DustLimitSatoshis: cfg.Bet.DustLimitSatoshis,
		SettleDelay:       cfg.Bet.SettleDelay,
		MaxRetries:        cfg.Bet.MaxPayoutRetries,
		NetParams:         cfg.Explorer.NetParams,
	})

	// ── Seed Registry ─────────────────────────────────────────────────────────
	seedRepo := repository.NewSeedRepository(db)
	seedSvc := seedregistry.NewService(seedRepo, fairness.GenerateServerSeed, time.Now)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Router ────────────────────────────────────────────────────────────────
	router := admin.SetupRouter(admin.Deps{
		Wallets:    vaultRepo,
		Utxos:      explorerClient,
		Withdrawer: payoutEngine,
		Seeds:      seedSvc,
		Stats:      betRepo,
		Cfg:        cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("admin http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin shutdown error", "err", err)
	}

	db.Close()
	logger.Info("admin server stopped cleanly")
}
