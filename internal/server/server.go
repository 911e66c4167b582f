package server

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"spacetrack/internal/config"
	"spacetrack/internal/handler"
	"spacetrack/internal/service"
)

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	config    *config.Config
	db        *gorm.DB
	redis     *redis.Client
	nats      *nats.Conn
	jetstream *service.JetStreamService
	wsHub     *handler.WSHub
	wsHandler *handler.WSHandler
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn, jetstream *service.JetStreamService) *Server {
	return &Server{
		config:    cfg,
		db:        db,
		redis:     redisClient,
		nats:      natsConn,
		jetstream: jetstream,
	}
}

// Setup initializes routes and handlers
func (s *Server) Setup() {
	s.wsHub = handler.NewWSHub(s.nats)
	s.wsHandler = handler.NewWSHandler(s.wsHub)

	// Initialize services
	authService := service.NewAuthService(s.db)
	spaceService := service.NewSpaceService(s.db)
	roomService := service.NewRoomService(s.db)
	deviceService := service.NewDeviceService(s.db)
	positionService := service.NewPositionService(s.db, s.redis)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, s.config)
	spaceHandler := handler.NewSpaceHandler(spaceService)
	roomHandler := handler.NewRoomHandler(roomService)
	deviceHandler := handler.NewDeviceHandler(deviceService)
	positionHandler := handler.NewPositionHandler(positionService)

	// Start WebSocket hub in background
	go s.wsHub.Run()
	log.Println("[Server] WebSocket hub started")

	s.router = gin.Default()

	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Public routes
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/api/v1/auth/login", authHandler.Login)

	// WebSocket routes
	s.router.GET("/ws/location", s.wsHandler.HandleLocation)
	s.router.GET("/ws/stats", s.wsHandler.GetStats)

	// Protected routes
	api := s.router.Group("/api/v1")
	api.Use(authHandler.AuthMiddleware())
	{
		// Auth
		api.GET("/auth/me", authHandler.GetMe)

		// Spaces
		api.GET("/spaces", spaceHandler.List)
		api.POST("/spaces", spaceHandler.Create)
		api.GET("/spaces/:id", spaceHandler.Get)
		api.PUT("/spaces/:id", spaceHandler.Update)
		api.DELETE("/spaces/:id", spaceHandler.Delete)
		api.POST("/spaces/:id/demo-rooms", spaceHandler.SeedDemoRooms)
		api.GET("/spaces/:id/locations", positionHandler.GetBySpace)

		// Rooms
		api.GET("/rooms", roomHandler.List)
		api.POST("/rooms", roomHandler.Create)
		api.POST("/rooms/validate", roomHandler.Validate)
		api.GET("/rooms/:id", roomHandler.Get)
		api.PUT("/rooms/:id", roomHandler.Update)
		api.DELETE("/rooms/:id", roomHandler.Delete)

		// Devices
		api.GET("/devices", deviceHandler.List)
		api.POST("/devices", deviceHandler.Create)
		api.GET("/devices/:id", deviceHandler.Get)
		api.PUT("/devices/:id", deviceHandler.Update)
		api.DELETE("/devices/:id", deviceHandler.Delete)

		// Device locations, keyed by device code
		api.GET("/locations/devices/:code", positionHandler.GetCurrent)
		api.GET("/locations/devices/:code/history", positionHandler.GetHistory)
		api.GET("/locations/devices/:code/last-event", positionHandler.GetLastEvent)

		// JetStream replay
		s.registerJetStreamRoutes(api)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{"status": "ok"}

	if s.jetstream.IsEnabled() {
		health["jetstream"] = "enabled"
		if info, err := s.jetstream.GetStreamInfo(service.StreamLocations); err == nil {
			health["jetstream_locations"] = gin.H{
				"messages": info.State.Msgs,
				"bytes":    info.State.Bytes,
			}
		}
	} else {
		health["jetstream"] = "disabled"
	}

	c.JSON(200, health)
}

// registerJetStreamRoutes registers JetStream related routes
func (s *Server) registerJetStreamRoutes(api *gin.RouterGroup) {
	api.POST("/jetstream/locations/replay", func(c *gin.Context) {
		if !s.jetstream.IsEnabled() {
			c.JSON(503, gin.H{"error": "JetStream is not enabled"})
			return
		}

		var req struct {
			DeviceCode string `json:"device_code"`
			StartTime  string `json:"start_time" binding:"required"`
			EndTime    string `json:"end_time" binding:"required"`
			BatchSize  int    `json:"batch_size"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		start, err := parseRFC3339(req.StartTime)
		if err != nil {
			c.JSON(400, gin.H{"error": "invalid start_time"})
			return
		}
		end, err := parseRFC3339(req.EndTime)
		if err != nil {
			c.JSON(400, gin.H{"error": "invalid end_time"})
			return
		}

		if req.BatchSize <= 0 {
			req.BatchSize = 100
		}

		locations, hasMore, err := s.jetstream.ReplayLocations(c.Request.Context(), req.DeviceCode, start, end, req.BatchSize)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{
			"locations": locations,
			"count":     len(locations),
			"has_more":  hasMore,
		})
	})
}

func parseRFC3339(v string) (time.Time, error) {
	return time.Parse(time.RFC3339, v)
}

// GetWSHub returns the WebSocket hub for external use
func (s *Server) GetWSHub() *handler.WSHub {
	return s.wsHub
}

// GetRouter returns the gin router for testing
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Run starts the HTTP server
func (s *Server) Run(addr string) error {
	log.Printf("[Server] HTTP server listening on %s", addr)
	return s.router.Run(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() {
	if s.wsHub != nil {
		s.wsHub.Stop()
		log.Println("[Server] WebSocket hub stopped")
	}
	if s.jetstream.IsEnabled() {
		s.jetstream.Close()
		log.Println("[Server] JetStream service stopped")
	}
}
