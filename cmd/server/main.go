package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chethans2005/pawPatrol/internal/api"
	"github.com/chethans2005/pawPatrol/internal/config"
	"github.com/chethans2005/pawPatrol/internal/handler"
	"github.com/chethans2005/pawPatrol/internal/infrastructure/kafka"
	"github.com/chethans2005/pawPatrol/internal/infrastructure/redis"
	"github.com/chethans2005/pawPatrol/internal/observability"
	core "github.com/chethans2005/pawPatrol/internal/repository/postgres"
	service "github.com/chethans2005/pawPatrol/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	shutdown, metricsHandler := observability.Setup("pawpatrol", cfg.OTLPEndpoint)
	defer shutdown(context.Background())

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping Postgres: %v", err)
	}

	ledger := core.NewPostgresLedger(db)
	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()
	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	accounts := service.NewAccountService(ledger, redisClient, cfg.JWTSecret)
	catalog := service.NewCatalogService(ledger, redisClient)
	settlement := service.NewSettlementService(ledger, redisClient, producer)

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	settlementConsumer := kafka.NewConsumer(cfg.KafkaBrokers, "settlements", "pawpatrol-cache", redisClient)
	go settlementConsumer.Consume(consumerCtx)
	defer settlementConsumer.Close()
	defer cancelConsumer()

	h := handler.NewHandler(accounts, catalog, settlement)
	router := api.SetupRouter(h, redisClient, cfg.JWTSecret, metricsHandler)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
