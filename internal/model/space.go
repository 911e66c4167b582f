package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Space represents a physical space (floor plan) containing rooms
type Space struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name" gorm:"size:100;not null"`
	Description  string         `json:"description"`
	FloorPlanID  string         `json:"floor_plan_id" gorm:"size:100"` // external floor-plan asset id used by the viewer
	ImagePreview string         `json:"image_preview"`
	Rooms        []Room         `json:"rooms,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// Room represents a polygonal zone within a space
type Room struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Code      string         `json:"code" gorm:"uniqueIndex;size:32;not null"` // external correlation key used by sensor events
	Name      string         `json:"name" gorm:"size:100"`
	Color     string         `json:"color" gorm:"size:20"`
	SpaceID   uint           `json:"space_id" gorm:"not null"`
	Space     *Space         `json:"space,omitempty"`
	Corners   CornerList     `json:"corners" gorm:"type:jsonb;not null"` // ordered vertex list, replaced wholesale on edit
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Corner is a single polygon vertex on the (x, z) floor plane
type Corner struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// CornerList is an ordered polygon vertex list stored as a JSONB column
type CornerList []Corner

// Value implements driver.Valuer for JSONB storage
func (c CornerList) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB storage
func (c *CornerList) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported corners column type %T", value)
	}
}
