package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"spacetrack/internal/service"
)

// PositionHandler handles device-location read requests
type PositionHandler struct {
	positionService *service.PositionService
}

// NewPositionHandler creates a new position handler
func NewPositionHandler(positionService *service.PositionService) *PositionHandler {
	return &PositionHandler{positionService: positionService}
}

// GetBySpace returns current locations of all devices inside a space
func (h *PositionHandler) GetBySpace(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	locations, err := h.positionService.CurrentBySpace(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": locations})
}

// GetCurrent returns the current location of one device by code
func (h *PositionHandler) GetCurrent(c *gin.Context) {
	code := c.Param("code")

	location, err := h.positionService.CurrentByDeviceCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, location)
}

// GetHistory returns room-occupancy transitions for a device
func (h *PositionHandler) GetHistory(c *gin.Context) {
	code := c.Param("code")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	var start, end time.Time
	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start time"})
			return
		}
		start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end time"})
			return
		}
		end = t
	}

	history, err := h.positionService.History(c.Request.Context(), code, start, end, limit)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}

// GetLastEvent returns the most recent cached location-changed payload
func (h *PositionHandler) GetLastEvent(c *gin.Context) {
	code := c.Param("code")

	msg, err := h.positionService.LastEvent(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrNoLastEvent) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no cached event"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, msg)
}
