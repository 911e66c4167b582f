package model

import (
	"time"

	"gorm.io/gorm"
)

// Device represents a trackable tag
type Device struct {
	ID              uint                   `json:"id" gorm:"primaryKey"`
	Code            string                 `json:"code" gorm:"uniqueIndex;size:32;not null"` // external correlation key used by sensor events
	Name            string                 `json:"name" gorm:"size:100"`
	Color           string                 `json:"color" gorm:"size:20"`
	Image           *string                `json:"image"`
	CurrentLocation *DeviceCurrentLocation `json:"current_location,omitempty" gorm:"foreignKey:DeviceID"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	DeletedAt       gorm.DeletedAt         `json:"-" gorm:"index"`
}

// DeviceCurrentLocation is the mutable "where is the device right now"
// projection. At most one row per device; overwritten on every confirmed
// room change. The (X, Z) point lies inside the occupying room's polygon at
// the moment it is written.
type DeviceCurrentLocation struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	DeviceID   uint      `json:"device_id" gorm:"uniqueIndex;not null"`
	Device     *Device   `json:"device,omitempty"`
	SpaceID    uint      `json:"space_id" gorm:"not null"`
	RoomID     uint      `json:"room_id" gorm:"not null"`
	Room       *Room     `json:"room,omitempty"`
	LevelIndex int       `json:"level_index"`
	Elevation  float64   `json:"elevation"`
	X          float64   `json:"x"`
	Z          float64   `json:"z"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DeviceLocationHistory is the append-only log of room-occupancy
// transitions. Rows are never updated or deleted.
type DeviceLocationHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	DeviceID  uint      `json:"device_id" gorm:"index;not null"`
	Device    *Device   `json:"device,omitempty"`
	RoomID    uint      `json:"room_id" gorm:"not null"`
	Room      *Room     `json:"room,omitempty"`
	SpaceID   uint      `json:"space_id" gorm:"not null"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}
