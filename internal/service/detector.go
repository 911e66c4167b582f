package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"spacetrack/internal/model"
	"spacetrack/internal/repository"
)

// DetectionConsumer subscribes to the sensor uplink and feeds detections
// into the location update engine. Each inbound event is handled by an
// independent ApplyDetection invocation; failures are local to that one
// event and never stop the consumer.
type DetectionConsumer struct {
	nats     *nats.Conn
	location *LocationService
	apiKey   string
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewDetectionConsumer creates a new detection consumer. apiKey is the
// shared secret sensors must present; empty disables the check.
func NewDetectionConsumer(natsConn *nats.Conn, location *LocationService, apiKey string) *DetectionConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &DetectionConsumer{
		nats:     natsConn,
		location: location,
		apiKey:   apiKey,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the detection uplink subject.
func (c *DetectionConsumer) Start() error {
	sub, err := c.nats.Subscribe(SubjectDetection, func(msg *nats.Msg) {
		c.handle(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", SubjectDetection, err)
	}
	c.sub = sub

	log.Printf("[Detector] Subscribed to %s", SubjectDetection)
	return nil
}

// Stop stops the consumer.
func (c *DetectionConsumer) Stop() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.cancel()
	log.Println("[Detector] Stopped")
}

func (c *DetectionConsumer) handle(data []byte) {
	var det model.DetectionMessage
	if err := json.Unmarshal(data, &det); err != nil {
		log.Printf("[Detector] Failed to unmarshal detection: %v", err)
		return
	}

	if c.apiKey != "" && det.APIKey != c.apiKey {
		log.Printf("[Detector] Rejected detection with bad API key (device=%s room=%s)", det.DeviceCode, det.RoomCode)
		return
	}

	if det.DeviceCode == "" || det.RoomCode == "" {
		log.Printf("[Detector] Rejected incomplete detection (device=%q room=%q)", det.DeviceCode, det.RoomCode)
		return
	}

	if _, err := c.location.ApplyDetection(c.ctx, det.DeviceCode, det.RoomCode); err != nil {
		// A malformed or stale event will not become valid on retry; log
		// and move on.
		switch {
		case errors.Is(err, repository.ErrDeviceNotFound), errors.Is(err, repository.ErrRoomNotFound):
			log.Printf("[Detector] Rejected detection (device=%s room=%s): %v", det.DeviceCode, det.RoomCode, err)
		default:
			log.Printf("[Detector] Failed to process detection (device=%s room=%s): %v", det.DeviceCode, det.RoomCode, err)
		}
	}
}
