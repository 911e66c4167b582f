package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"spacetrack/internal/config"
	"spacetrack/internal/model"
	"spacetrack/internal/repository"
	"spacetrack/internal/server"
	"spacetrack/internal/service"
)

func main() {
	log.Println("[API] Starting SpaceTrack API Server...")

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("[API] Failed to connect to database: %v", err)
	}
	log.Println("[API] Connected to database")

	// Auto migrate
	if err := autoMigrate(db); err != nil {
		log.Fatalf("[API] Failed to migrate database: %v", err)
	}
	log.Println("[API] Database migrated")

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("[API] Failed to connect to Redis: %v", err)
	}
	log.Println("[API] Connected to Redis")
	defer redisClient.Close()

	// Connect to NATS
	natsConn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatalf("[API] Failed to connect to NATS: %v", err)
	}
	log.Println("[API] Connected to NATS")
	defer natsConn.Close()

	// JetStream is optional. Without it the system still works, history
	// replay just falls back to the database.
	var jetstream *service.JetStreamService
	if cfg.JetStreamEnabled {
		jetstream, err = service.NewJetStreamService(natsConn)
		if err != nil {
			log.Printf("[API] JetStream unavailable, continuing without it: %v", err)
		} else {
			log.Println("[API] JetStream enabled")
		}
	}

	// Create and setup server
	srv := server.NewServer(cfg, db, redisClient, natsConn, jetstream)
	srv.Setup()

	// Start location event publisher
	publisher := service.NewEventPublisher(natsConn, redisClient, jetstream)
	publisher.Start()
	defer publisher.Stop()

	// Start detection consumer
	locationService := service.NewLocationService(repository.NewLocationStore(db), publisher)
	consumer := service.NewDetectionConsumer(natsConn, locationService, cfg.DetectionAPIKey)
	if err := consumer.Start(); err != nil {
		log.Fatalf("[API] Failed to start detection consumer: %v", err)
	}
	defer consumer.Stop()
	log.Println("[API] Detection consumer started")

	// Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	go func() {
		if err := srv.Run(addr); err != nil {
			log.Fatalf("[API] Failed to start server: %v", err)
		}
	}()

	log.Printf("[API] Server ready on %s", addr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("[API] Shutting down...")

	// Graceful shutdown
	srv.Shutdown()
	log.Println("[API] Server stopped")
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Space{},
		&model.Room{},
		&model.Device{},
		&model.DeviceCurrentLocation{},
		&model.DeviceLocationHistory{},
	)
}
