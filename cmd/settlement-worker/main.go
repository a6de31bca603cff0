package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"gym-checkin/internal/checkin/db"
	"gym-checkin/internal/config"
	"gym-checkin/internal/database"
	"gym-checkin/internal/kafka"
	"gym-checkin/internal/logger"
	"gym-checkin/internal/settlement"

	"github.com/joho/godotenv"
)

func main() {
	log := logger.NewLogger("settlement-worker")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.OpenPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	payouts, err := settlement.NewStripePayouts(cfg.Stripe.SecretKey, cfg.Stripe.Currency, log)
	if err != nil {
		log.Fatal("STRIPE", err.Error())
	}

	var events settlement.EventPublisher
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		events = producer

		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CheckInRegistered, cfg.Kafka.GroupID, log)
		defer consumer.Close()
	}

	svc := settlement.NewSettlementService(&db.DB{Bun: bunDB}, payouts, events, log)

	var wg sync.WaitGroup
	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.ConsumeCheckIns(ctx, svc.HandleCheckInRegistered); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Check-in consumer exited: %v", err))
				stop()
			}
		}()
	} else {
		log.Warn("KAFKA", "Kafka disabled, settling from periodic sweeps only")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.RunPeriodic(ctx, cfg.CheckIn.SettlementInterval, cfg.CheckIn.SettlementBatchSize)
	}()

	log.Info("APP", "Settlement worker started, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, waiting for workers")
	wg.Wait()
	log.Info("APP", "Settlement worker shutdown complete")
}
