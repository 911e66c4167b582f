package service

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"spacetrack/internal/geometry"
	"spacetrack/internal/model"
)

// RoomService handles room business logic
type RoomService struct {
	db *gorm.DB
}

// NewRoomService creates a new room service
func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{db: db}
}

// List returns list of rooms with pagination
func (s *RoomService) List(ctx context.Context, page, pageSize int) ([]model.Room, int64, error) {
	var rooms []model.Room
	var total int64

	offset := (page - 1) * pageSize

	if err := s.db.Model(&model.Room{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := s.db.Offset(offset).Limit(pageSize).Find(&rooms).Error; err != nil {
		return nil, 0, err
	}

	return rooms, total, nil
}

// GetByID returns a room by ID
func (s *RoomService) GetByID(ctx context.Context, id uint) (*model.Room, error) {
	var room model.Room
	if err := s.db.First(&room, id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// Create creates a new room. An invalid polygon is persisted anyway; it is
// reported by Validate and simply unsuitable for sampling until fixed.
func (s *RoomService) Create(ctx context.Context, room *model.Room) error {
	if len(room.Corners) < 3 {
		return fmt.Errorf("room polygon must have at least 3 corners")
	}

	if v := s.Validate(room.Corners); !v.Valid {
		log.Printf("[Room] Persisting room %s with invalid polygon: %s", room.Code, v.InvalidCause)
	}

	return s.db.Create(room).Error
}

// Update updates a room; corners are replaced wholesale.
func (s *RoomService) Update(ctx context.Context, room *model.Room) error {
	if len(room.Corners) < 3 {
		return fmt.Errorf("room polygon must have at least 3 corners")
	}

	if v := s.Validate(room.Corners); !v.Valid {
		log.Printf("[Room] Persisting room %s with invalid polygon: %s", room.Code, v.InvalidCause)
	}

	return s.db.Save(room).Error
}

// Delete deletes a room
func (s *RoomService) Delete(ctx context.Context, id uint) error {
	return s.db.Delete(&model.Room{}, id).Error
}

// Validate classifies a corner list: valid iff convex and free of
// intersecting edges.
func (s *RoomService) Validate(corners model.CornerList) geometry.Validity {
	return geometry.Check(polygonFromCorners(corners))
}
