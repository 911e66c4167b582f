// Package repository holds the narrow transactional store consumed by the
// location update engine. Keeping it behind an interface lets the engine be
// unit tested without a database.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spacetrack/internal/model"
)

var (
	// ErrDeviceNotFound means the detection referenced an unknown device code.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrRoomNotFound means the detection referenced an unknown room code.
	ErrRoomNotFound = errors.New("room not found")
)

// LocationTx is the slice of the store the update engine touches inside a
// single transaction.
type LocationTx interface {
	DeviceByCode(code string) (*model.Device, error)
	RoomByCode(code string) (*model.Room, error)
	SaveCurrentLocation(loc *model.DeviceCurrentLocation) error
	AppendHistory(entry *model.DeviceLocationHistory) error
}

// LocationStore runs engine work inside an atomic transaction. The
// transaction is the unit of mutual exclusion for concurrent detections of
// the same device; no in-process locking is used.
type LocationStore interface {
	Transaction(ctx context.Context, fn func(tx LocationTx) error) error
}

type locationStore struct {
	db *gorm.DB
}

// NewLocationStore returns a PostgreSQL-backed LocationStore.
func NewLocationStore(db *gorm.DB) LocationStore {
	return &locationStore{db: db}
}

// Transaction runs fn under serializable isolation so the read of the
// current location and its overwrite are consistent under concurrency.
func (s *locationStore) Transaction(ctx context.Context, fn func(tx LocationTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&locationTx{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

type locationTx struct {
	db *gorm.DB
}

func (t *locationTx) DeviceByCode(code string) (*model.Device, error) {
	var device model.Device
	if err := t.db.Preload("CurrentLocation").Where("code = ?", code).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (t *locationTx) RoomByCode(code string) (*model.Room, error) {
	var room model.Room
	if err := t.db.Where("code = ?", code).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// SaveCurrentLocation upserts the one-per-device current location row.
func (t *locationTx) SaveCurrentLocation(loc *model.DeviceCurrentLocation) error {
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		UpdateAll: true,
	}).Create(loc).Error
}

func (t *locationTx) AppendHistory(entry *model.DeviceLocationHistory) error {
	return t.db.Create(entry).Error
}

// IsSerializationFailure reports whether err is a serializable-isolation
// conflict (PostgreSQL SQLSTATE 40001), which the engine retries.
func IsSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 40001") ||
		strings.Contains(msg, "could not serialize access")
}
