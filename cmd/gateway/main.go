package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"spacetrack/internal/config"
	"spacetrack/internal/gateway"
)

func main() {
	log.Println("[Gateway] Starting SpaceTrack MQTT Gateway...")

	// Load configuration
	cfg := config.Load()
	log.Printf("[Gateway] Configuration loaded: broker=%s topic=%s", cfg.MQTT.BrokerURL, cfg.MQTT.Topic)

	// Connect to NATS
	natsConn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatalf("[Gateway] Failed to connect to NATS: %v", err)
	}
	log.Println("[Gateway] Connected to NATS")
	defer natsConn.Close()

	// Create and start the MQTT bridge
	bridge := gateway.NewBridge(cfg, natsConn)
	if err := bridge.Start(); err != nil {
		log.Fatalf("[Gateway] Failed to start MQTT bridge: %v", err)
	}

	log.Println("[Gateway] Bridge started successfully")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("[Gateway] Shutting down...")

	bridge.Stop()
	log.Println("[Gateway] Bridge stopped")
}
