// Package gateway bridges sensor traffic from an MQTT broker onto the NATS
// detection uplink. Sensors in the field speak MQTT; the update pipeline
// consumes NATS only.
package gateway

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nats-io/nats.go"

	"spacetrack/internal/config"
	"spacetrack/internal/model"
	"spacetrack/internal/service"
)

// Bridge forwards detection messages from an MQTT topic to NATS.
type Bridge struct {
	config *config.Config
	nats   *nats.Conn
	client mqtt.Client
}

// NewBridge creates a new MQTT bridge
func NewBridge(cfg *config.Config, natsConn *nats.Conn) *Bridge {
	return &Bridge{
		config: cfg,
		nats:   natsConn,
	}
}

// Start connects to the MQTT broker and subscribes to the detection topic.
func (b *Bridge) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.config.MQTT.BrokerURL).
		SetClientID(b.config.MQTT.ClientID).
		SetUsername(b.config.MQTT.Username).
		SetPassword(b.config.MQTT.Password).
		SetAutoReconnect(true)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("[Gateway] Connected to MQTT broker %s", b.config.MQTT.BrokerURL)
		if token := client.Subscribe(b.config.MQTT.Topic, 1, b.handleMessage); token.Wait() && token.Error() != nil {
			log.Printf("[Gateway] Failed to subscribe to %s: %v", b.config.MQTT.Topic, token.Error())
			return
		}
		log.Printf("[Gateway] Subscribed to MQTT topic %s", b.config.MQTT.Topic)
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[Gateway] MQTT connection lost: %v", err)
	})

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return nil
}

// Stop disconnects from the MQTT broker.
func (b *Bridge) Stop() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
	log.Println("[Gateway] Stopped")
}

// handleMessage validates an inbound MQTT payload and republishes it on the
// NATS detection uplink. Incomplete payloads are dropped here so the engine
// only sees correlatable events.
func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var det model.DetectionMessage
	if err := json.Unmarshal(msg.Payload(), &det); err != nil {
		log.Printf("[Gateway] Dropping malformed payload on %s: %v", msg.Topic(), err)
		return
	}

	if det.DeviceCode == "" || det.RoomCode == "" {
		log.Printf("[Gateway] Dropping incomplete detection (device=%q room=%q)", det.DeviceCode, det.RoomCode)
		return
	}

	if err := b.nats.Publish(service.SubjectDetection, msg.Payload()); err != nil {
		log.Printf("[Gateway] Failed to forward detection to NATS: %v", err)
	}
}
