package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bikedataproject/fitbit-integration/internal/api"
	"github.com/bikedataproject/fitbit-integration/internal/config"
	"github.com/bikedataproject/fitbit-integration/internal/contributions"
	"github.com/bikedataproject/fitbit-integration/internal/domain"
	"github.com/bikedataproject/fitbit-integration/internal/fitbit"
	persistence "github.com/bikedataproject/fitbit-integration/internal/persistence/postgres"
	"github.com/bikedataproject/fitbit-integration/internal/syncer"
	httptransport "github.com/bikedataproject/fitbit-integration/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fitbitPool, err := pgxpool.New(ctx, cfg.FitbitDBURL)
	if err != nil {
		log.Fatalf("failed to connect to the integration store: %v", err)
	}
	defer fitbitPool.Close()

	bikeDataPool, err := pgxpool.New(ctx, cfg.BikeDataDBURL)
	if err != nil {
		log.Fatalf("failed to connect to the contributions store: %v", err)
	}
	defer bikeDataPool.Close()

	fitbitRepo := persistence.NewFitbitRepository(fitbitPool)
	bikeDataRepo := persistence.NewBikeDataRepository(bikeDataPool)
	writer := contributions.NewWriter(fitbitRepo, bikeDataRepo)

	tokens := fitbit.NewTokenManager(cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL)
	clients := syncer.ClientFactoryFunc(func(ctx context.Context, user *domain.User) (syncer.ActivityAPI, bool, error) {
		return tokens.ClientFor(ctx, user)
	})

	gate := fitbit.NewGate()

	loops := []*syncer.Loop{
		syncer.NewLoop(
			syncer.NewHistorySyncer(fitbitRepo, writer, clients, cfg.RefreshTime, prefixedLogger("history-sync")),
			gate, cfg.RefreshTime, cfg.SyncHistory,
		),
		syncer.NewLoop(
			syncer.NewDaySyncer(fitbitRepo, writer, clients, cfg.SyncFullDaysOnly, cfg.RefreshTime, prefixedLogger("day-sync")),
			gate, cfg.RefreshTime, cfg.SyncDays,
		),
		syncer.NewLoop(
			syncer.NewSubscriptionManager(fitbitRepo, clients, cfg.SubscriptionN, prefixedLogger("subscriptions")),
			gate, cfg.RefreshTime, cfg.SetupSubs,
		),
	}
	for _, loop := range loops {
		go loop.Start(ctx)
	}

	handler := api.NewHandler(fitbitRepo, tokens, cfg.VerificationCode, prefixedLogger("webhook"))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, mux)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("fitbit-integration listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	for _, loop := range loops {
		loop.Wait()
	}
}

func prefixedLogger(name string) *log.Logger {
	return log.New(log.Writer(), "["+name+"] ", log.LstdFlags)
}
