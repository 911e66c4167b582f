// NATS JetStream persistence for the location-changed stream.

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"spacetrack/internal/model"
)

const (
	// StreamLocations persists location-changed notifications for replay.
	StreamLocations = "TRACK_LOCATIONS"

	streamLocationsSubjects = "track.locations.*"
	locationSubjectPrefix   = "track.locations."
)

// JetStreamService persists location-changed notifications so a viewer can
// replay recent movement. Optional: the pipeline runs without it.
type JetStreamService struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewJetStreamService creates the JetStream service and ensures the
// locations stream exists.
func NewJetStreamService(nc *nats.Conn) (*JetStreamService, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	s := &JetStreamService{nc: nc, js: js}
	if err := s.initStream(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JetStreamService) initStream() error {
	cfg := nats.StreamConfig{
		Name:      StreamLocations,
		Subjects:  []string{streamLocationsSubjects},
		Retention: nats.LimitsPolicy,
		MaxMsgs:   -1,
		MaxBytes:  1 * 1024 * 1024 * 1024, // 1GB
		MaxAge:    7 * 24 * time.Hour,     // 7 days
		Storage:   nats.FileStorage,
		Replicas:  1,
	}

	if _, err := s.js.AddStream(&cfg); err != nil {
		if err == nats.ErrStreamNameAlreadyInUse {
			if _, err = s.js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("failed to update stream %s: %w", cfg.Name, err)
			}
			return nil
		}
		return fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
	}
	return nil
}

// IsEnabled reports whether the service is usable.
func (s *JetStreamService) IsEnabled() bool {
	return s != nil && s.js != nil
}

// PublishLocation persists a location-changed payload under the device's
// subject.
func (s *JetStreamService) PublishLocation(deviceCode string, data []byte) error {
	_, err := s.js.Publish(locationSubjectPrefix+deviceCode, data)
	return err
}

// ReplayLocations returns up to batchSize location-changed payloads between
// start and end, optionally filtered to one device code. The second return
// value reports whether more messages remain.
func (s *JetStreamService) ReplayLocations(ctx context.Context, deviceCode string, start, end time.Time, batchSize int) ([]model.LocationChangedMessage, bool, error) {
	subject := streamLocationsSubjects
	if deviceCode != "" {
		subject = locationSubjectPrefix + deviceCode
	}

	sub, err := s.js.SubscribeSync(subject, nats.StartTime(start))
	if err != nil {
		return nil, false, err
	}
	defer sub.Unsubscribe()

	var out []model.LocationChangedMessage
	for {
		select {
		case <-ctx.Done():
			return out, false, ctx.Err()
		default:
		}

		msg, err := sub.NextMsg(1 * time.Second)
		if err != nil {
			if err == nats.ErrTimeout {
				return out, false, nil // no more messages
			}
			return out, false, err
		}

		var loc model.LocationChangedMessage
		if err := json.Unmarshal(msg.Data, &loc); err != nil {
			msg.Ack()
			continue
		}
		msg.Ack()

		if loc.Timestamp.After(end) {
			return out, false, nil
		}

		out = append(out, loc)
		if len(out) >= batchSize {
			return out, true, nil
		}
	}
}

// GetStreamInfo returns stream state for the health endpoint.
func (s *JetStreamService) GetStreamInfo(stream string) (*nats.StreamInfo, error) {
	return s.js.StreamInfo(stream)
}

// Close is a no-op today; the NATS connection is owned by the caller.
func (s *JetStreamService) Close() {}
