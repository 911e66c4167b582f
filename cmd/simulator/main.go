package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"spacetrack/internal/model"
	"spacetrack/internal/service"
)

func main() {
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL")
	deviceCode := flag.String("device", "DEV-1", "Device code to simulate")
	rooms := flag.String("rooms", "ROOM-A,ROOM-B,ROOM-C,ROOM-D", "Comma-separated room codes to walk between")
	interval := flag.Duration("interval", 5*time.Second, "Interval between detections")
	apiKey := flag.String("api-key", "", "Detection API key, if the consumer requires one")

	flag.Parse()

	roomCodes := strings.Split(*rooms, ",")
	if len(roomCodes) == 0 {
		log.Fatal("at least one room code is required")
	}

	nc, err := nats.Connect(*natsURL)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer nc.Close()
	log.Printf("connected to NATS at %s, simulating device %s", *natsURL, *deviceCode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	publish := func() {
		msg := model.DetectionMessage{
			APIKey:     *apiKey,
			DeviceCode: *deviceCode,
			RoomCode:   roomCodes[rand.Intn(len(roomCodes))],
		}

		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("failed to encode detection: %v", err)
			return
		}

		if err := nc.Publish(service.SubjectDetection, data); err != nil {
			log.Printf("publish error: %v", err)
			return
		}
		log.Printf("published detection device=%s room=%s", msg.DeviceCode, msg.RoomCode)
	}

	publish()

	for {
		select {
		case <-ctx.Done():
			log.Print("received shutdown signal, disconnecting")
			return
		case <-ticker.C:
			publish()
		}
	}
}
