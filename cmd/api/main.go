package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storeops/commerce-core/internal/api"
	"github.com/storeops/commerce-core/internal/config"
	"github.com/storeops/commerce-core/internal/ledger"
	"github.com/storeops/commerce-core/internal/notify"
	"github.com/storeops/commerce-core/internal/service"
	"github.com/storeops/commerce-core/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	poolCfg, err := pgxpool.ParseConfig(cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to parse database config: %v", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer dbPool.Close()

	var emitter notify.Emitter
	if cfg.RedisAddr != "" {
		emitter = notify.NewRedisEmitter(cfg.RedisAddr, cfg.EventChannel)
	} else {
		emitter = notify.NewLogEmitter(logger)
	}

	// Stores
	walletLedger := ledger.NewPostgresLedger(dbPool)
	orderStore := store.NewOrderStore(dbPool)
	returnStore := store.NewReturnStore(dbPool)
	rechargeStore := store.NewRechargeStore(dbPool)
	catalogStore := store.NewCatalogStore(dbPool)

	// Services
	refundSvc := service.NewRefundService(orderStore, returnStore, walletLedger, emitter, logger)
	orderSvc := service.NewOrderService(orderStore, returnStore, refundSvc, catalogStore, emitter, logger)
	paymentSvc := service.NewPaymentService(rechargeStore, walletLedger, emitter, logger,
		cfg.GatewayKeySecret, cfg.GatewayWebhookSecret, cfg.RechargeMin, cfg.RechargeMax)

	handler := api.NewHandler(orderSvc, refundSvc, paymentSvc, walletLedger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	logger.Info("server starting", "port", cfg.Port, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
