package service

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spacetrack/internal/model"
)

// SpaceService handles space business logic
type SpaceService struct {
	db *gorm.DB
}

// NewSpaceService creates a new space service
func NewSpaceService(db *gorm.DB) *SpaceService {
	return &SpaceService{db: db}
}

// List returns list of spaces with pagination
func (s *SpaceService) List(ctx context.Context, page, pageSize int) ([]model.Space, int64, error) {
	var spaces []model.Space
	var total int64

	offset := (page - 1) * pageSize

	if err := s.db.Model(&model.Space{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := s.db.Offset(offset).Limit(pageSize).Find(&spaces).Error; err != nil {
		return nil, 0, err
	}

	return spaces, total, nil
}

// GetByID returns a space by ID including its rooms
func (s *SpaceService) GetByID(ctx context.Context, id uint) (*model.Space, error) {
	var space model.Space
	if err := s.db.Preload("Rooms").First(&space, id).Error; err != nil {
		return nil, err
	}
	return &space, nil
}

// Create creates a new space
func (s *SpaceService) Create(ctx context.Context, space *model.Space) error {
	return s.db.Create(space).Error
}

// Update updates a space
func (s *SpaceService) Update(ctx context.Context, space *model.Space) error {
	return s.db.Save(space).Error
}

// Delete deletes a space
func (s *SpaceService) Delete(ctx context.Context, id uint) error {
	return s.db.Delete(&model.Space{}, id).Error
}

// demoRooms is the default four-room layout seeded into a fresh space.
var demoRooms = []model.Room{
	{
		Name: "Room A",
		Code: "ROOM-A",
		Corners: model.CornerList{
			{X: -1, Z: -8}, {X: 6, Z: -8}, {X: 6, Z: -13}, {X: -1, Z: -13},
		},
	},
	{
		Name: "Room B",
		Code: "ROOM-B",
		Corners: model.CornerList{
			{X: 6, Z: -8}, {X: 13, Z: -8}, {X: 13, Z: -13}, {X: 6, Z: -13},
		},
	},
	{
		Name: "Room C",
		Code: "ROOM-C",
		Corners: model.CornerList{
			{X: -1, Z: 0}, {X: 6, Z: 0}, {X: 6, Z: -5}, {X: -1, Z: -5},
		},
	},
	{
		Name: "Room D",
		Code: "ROOM-D",
		Corners: model.CornerList{
			{X: 6, Z: 0}, {X: 13, Z: 0}, {X: 13, Z: -5}, {X: 6, Z: -5},
		},
	},
}

// SeedDemoRooms upserts the demo room layout into a space, keyed by room
// code. Existing demo rooms get their corners reset.
func (s *SpaceService) SeedDemoRooms(ctx context.Context, spaceID uint) ([]model.Room, error) {
	rooms := make([]model.Room, len(demoRooms))
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i, demo := range demoRooms {
			room := demo
			room.SpaceID = spaceID
			// Returning scans the row back so the upsert yields the real
			// primary key on the conflict-update path too.
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoUpdates: clause.AssignmentColumns([]string{"corners", "updated_at"}),
			}, clause.Returning{}).Create(&room).Error; err != nil {
				return err
			}
			rooms[i] = room
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}
