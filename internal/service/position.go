package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"spacetrack/internal/model"
)

// ErrNoLastEvent means no location-changed event is cached for the device.
var ErrNoLastEvent = errors.New("no cached location event")

// PositionService handles read queries over device locations
type PositionService struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewPositionService creates a new position service
func NewPositionService(db *gorm.DB, redisClient *redis.Client) *PositionService {
	return &PositionService{
		db:    db,
		redis: redisClient,
	}
}

// CurrentBySpace returns the current locations of all devices inside a
// space, with device and room display data for the viewer.
func (s *PositionService) CurrentBySpace(ctx context.Context, spaceID uint) ([]model.DeviceCurrentLocation, error) {
	var locations []model.DeviceCurrentLocation

	if err := s.db.Where("space_id = ?", spaceID).
		Preload("Device").
		Preload("Room").
		Find(&locations).Error; err != nil {
		return nil, err
	}

	return locations, nil
}

// CurrentByDeviceCode returns the current location of one device.
func (s *PositionService) CurrentByDeviceCode(ctx context.Context, deviceCode string) (*model.DeviceCurrentLocation, error) {
	var device model.Device
	if err := s.db.Preload("CurrentLocation.Room").Where("code = ?", deviceCode).First(&device).Error; err != nil {
		return nil, err
	}
	if device.CurrentLocation == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return device.CurrentLocation, nil
}

// History returns room-occupancy transitions for a device, newest first.
func (s *PositionService) History(ctx context.Context, deviceCode string, start, end time.Time, limit int) ([]model.DeviceLocationHistory, error) {
	var device model.Device
	if err := s.db.Where("code = ?", deviceCode).First(&device).Error; err != nil {
		return nil, err
	}

	var history []model.DeviceLocationHistory
	query := s.db.Where("device_id = ?", device.ID).
		Preload("Room").
		Order("timestamp DESC")

	if !start.IsZero() {
		query = query.Where("timestamp >= ?", start)
	}
	if !end.IsZero() {
		query = query.Where("timestamp <= ?", end)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&history).Error; err != nil {
		return nil, err
	}

	return history, nil
}

// LastEvent returns the most recent location-changed payload cached for the
// device.
func (s *PositionService) LastEvent(ctx context.Context, deviceCode string) (*model.LocationChangedMessage, error) {
	data, err := s.redis.Get(ctx, lastLocationKeyPrefix+deviceCode).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoLastEvent
		}
		return nil, err
	}

	var msg model.LocationChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
