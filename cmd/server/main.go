package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"esusu/internal/config"
	"esusu/internal/db"
	"esusu/internal/handlers"
	"esusu/internal/services"
	"esusu/internal/store"
	"esusu/internal/telemetry"
	"esusu/internal/websocket"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	database, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	accounts := store.NewAccountStore(database)
	transactions := store.NewAccountTransactionStore(database)
	groups := store.NewGroupStore(database)
	memberships := store.NewMembershipStore(database)
	contributions := store.NewContributionStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database, cfg.TxMaxAttempts)
	hub := websocket.NewHub(strings.Split(cfg.AllowedOrigins, ",")...)

	accountService := services.NewAccountService(txRunner, accounts, transactions, audit, hub, cfg.ContributionCurrency)
	groupService := services.NewGroupService(txRunner, groups, memberships, audit, audit, hub)
	contributionService := services.NewContributionService(txRunner, groups, memberships, contributions, audit, services.InstantSettler{}, cfg.ContributionCurrency)

	handler := handlers.New(cfg, accountService, groupService, contributionService, hub)
	server := newHTTPServer(cfg, handler.Routes())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("esusu API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		hub.Close()
		if err != nil {
			return err
		}
		return shutdownTracing(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
