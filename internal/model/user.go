package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents an admin console user
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Username  string         `json:"username" gorm:"uniqueIndex;size:50"`
	Password  string         `json:"-" gorm:"size:255"` // hashed password
	Email     string         `json:"email" gorm:"uniqueIndex;size:100"`
	Status    int            `json:"status" gorm:"default:1"` // 0: inactive, 1: active
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
