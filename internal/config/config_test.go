package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 3000, cfg.APIPort)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "localhost:6379", cfg.RedisURL)
	assert.False(t, cfg.JetStreamEnabled)
	assert.Equal(t, "iot-data", cfg.MQTT.Topic)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.BrokerURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_PORT", "8080")
	t.Setenv("DETECTION_API_KEY", "sensor-secret")
	t.Setenv("JETSTREAM_ENABLED", "true")
	t.Setenv("MQTT_TOPIC", "sensors/detections")

	cfg := Load()

	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, "sensor-secret", cfg.DetectionAPIKey)
	assert.True(t, cfg.JetStreamEnabled)
	assert.Equal(t, "sensors/detections", cfg.MQTT.Topic)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("API_PORT", "not-a-number")
	t.Setenv("JETSTREAM_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 3000, cfg.APIPort)
	assert.False(t, cfg.JetStreamEnabled)
}
