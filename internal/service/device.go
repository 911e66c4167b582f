package service

import (
	"context"

	"gorm.io/gorm"

	"spacetrack/internal/model"
)

// DeviceService handles device business logic
type DeviceService struct {
	db *gorm.DB
}

// NewDeviceService creates a new device service
func NewDeviceService(db *gorm.DB) *DeviceService {
	return &DeviceService{db: db}
}

// List returns list of devices
func (s *DeviceService) List(ctx context.Context, page, pageSize int) ([]model.Device, int64, error) {
	var devices []model.Device
	var total int64

	offset := (page - 1) * pageSize

	if err := s.db.Model(&model.Device{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := s.db.Preload("CurrentLocation").Offset(offset).Limit(pageSize).Find(&devices).Error; err != nil {
		return nil, 0, err
	}

	return devices, total, nil
}

// GetByID returns a device by ID
func (s *DeviceService) GetByID(ctx context.Context, id uint) (*model.Device, error) {
	var device model.Device
	if err := s.db.Preload("CurrentLocation").First(&device, id).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

// Create creates a new device
func (s *DeviceService) Create(ctx context.Context, device *model.Device) error {
	return s.db.Create(device).Error
}

// Update updates a device
func (s *DeviceService) Update(ctx context.Context, device *model.Device) error {
	return s.db.Save(device).Error
}

// Delete deletes a device
func (s *DeviceService) Delete(ctx context.Context, id uint) error {
	return s.db.Delete(&model.Device{}, id).Error
}
