package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"spacetrack/internal/geometry"
	"spacetrack/internal/model"
	"spacetrack/internal/repository"
)

const (
	// Placement constants for the single-level demo scope.
	locationLevelIndex = 0
	locationElevation  = 1.0

	// Serialization conflicts are retried; two detections for the same
	// device can race.
	maxTxAttempts = 3
)

// Publisher delivers location-changed notifications to live subscribers.
// Delivery is best-effort and must never block the caller.
type Publisher interface {
	PublishLocationChanged(msg *model.LocationChangedMessage)
}

// LocationService is the location update engine: it turns "device seen in
// room" signals into current-location writes, history entries and
// location-changed notifications.
type LocationService struct {
	store     repository.LocationStore
	publisher Publisher
}

// NewLocationService creates a new location service
func NewLocationService(store repository.LocationStore, publisher Publisher) *LocationService {
	return &LocationService{
		store:     store,
		publisher: publisher,
	}
}

// ApplyDetection processes a sensor signal "device seen in room". Repeated
// detections in the same room are a no-op after the first: no write, no
// history entry, no notification. On a confirmed transition the device gets
// a fresh simulated position inside the new room's polygon, the current
// location is overwritten, one history row is appended, and a notification
// is dispatched after the transaction commits.
func (s *LocationService) ApplyDetection(ctx context.Context, deviceCode, roomCode string) (*model.DeviceCurrentLocation, error) {
	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		current, msg, err := s.applyOnce(ctx, deviceCode, roomCode)
		if err != nil {
			if repository.IsSerializationFailure(err) {
				lastErr = err
				log.Printf("[Location] Transaction conflict for device %s (attempt %d/%d)", deviceCode, attempt, maxTxAttempts)
				continue
			}
			return nil, err
		}

		// Publication is fire-and-forget relative to the transaction: the
		// committed state change is the source of truth.
		if msg != nil {
			s.publisher.PublishLocationChanged(msg)
		}
		return current, nil
	}
	return nil, fmt.Errorf("detection for device %s: %w", deviceCode, lastErr)
}

// applyOnce runs one attempt of the detection transaction. On a confirmed
// transition it returns the new current location and the notification to
// publish; on a same-room re-detection the message is nil.
func (s *LocationService) applyOnce(ctx context.Context, deviceCode, roomCode string) (*model.DeviceCurrentLocation, *model.LocationChangedMessage, error) {
	var current *model.DeviceCurrentLocation
	var msg *model.LocationChangedMessage

	err := s.store.Transaction(ctx, func(tx repository.LocationTx) error {
		device, err := tx.DeviceByCode(deviceCode)
		if err != nil {
			return err
		}

		room, err := tx.RoomByCode(roomCode)
		if err != nil {
			return err
		}

		// Skip the process if the room is still the same
		if device.CurrentLocation != nil && device.CurrentLocation.RoomID == room.ID {
			current = device.CurrentLocation
			return nil
		}

		point, err := geometry.RandomPointInside(polygonFromCorners(room.Corners))
		if err != nil {
			return fmt.Errorf("room %s: %w", room.Code, err)
		}

		now := time.Now().UTC()
		loc := &model.DeviceCurrentLocation{
			DeviceID:   device.ID,
			SpaceID:    room.SpaceID,
			RoomID:     room.ID,
			LevelIndex: locationLevelIndex,
			Elevation:  locationElevation,
			X:          point.X,
			Z:          point.Y,
			Timestamp:  now,
		}
		if device.CurrentLocation != nil {
			loc.ID = device.CurrentLocation.ID
		}

		if err := tx.SaveCurrentLocation(loc); err != nil {
			return err
		}

		if err := tx.AppendHistory(&model.DeviceLocationHistory{
			DeviceID:  device.ID,
			RoomID:    room.ID,
			SpaceID:   room.SpaceID,
			Timestamp: now,
		}); err != nil {
			return err
		}

		current = loc
		msg = buildLocationChanged(device, room, loc)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return current, msg, nil
}

func buildLocationChanged(device *model.Device, room *model.Room, loc *model.DeviceCurrentLocation) *model.LocationChangedMessage {
	return &model.LocationChangedMessage{
		ID:        strconv.FormatUint(uint64(device.ID), 10),
		Name:      device.Name,
		Code:      device.Code,
		Color:     device.Color,
		Image:     device.Image,
		RoomName:  room.Name,
		RoomColor: room.Color,
		RoomCode:  room.Code,
		Timestamp: loc.Timestamp,
		Position: model.Position{
			LevelIndex: loc.LevelIndex,
			Elevation:  loc.Elevation,
			X:          loc.X,
			Z:          loc.Z,
		},
	}
}

// polygonFromCorners maps room corners from the (x, z) floor plane onto
// geometry points.
func polygonFromCorners(corners model.CornerList) geometry.Polygon {
	poly := make(geometry.Polygon, len(corners))
	for i, c := range corners {
		poly[i] = geometry.Point{X: c.X, Y: c.Z}
	}
	return poly
}
