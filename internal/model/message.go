package model

import "time"

// DetectionMessage is a raw "device seen in room" event from the sensor
// ingress. The API key is validated before the event reaches the update
// engine.
type DetectionMessage struct {
	APIKey     string `json:"api_key,omitempty"`
	DeviceCode string `json:"device_code"`
	RoomCode   string `json:"room_code"`
}

// Position is the simulated placement of a device inside a room
type Position struct {
	LevelIndex int     `json:"levelIndex"`
	Elevation  float64 `json:"elevation"`
	X          float64 `json:"x"`
	Z          float64 `json:"z"`
}

// LocationChangedMessage is the notification published to live viewers after
// a confirmed room transition. Field names are part of the viewer contract.
type LocationChangedMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Color     string    `json:"color"`
	Image     *string   `json:"image"`
	RoomName  string    `json:"roomName"`
	RoomColor string    `json:"roomColor"`
	RoomCode  string    `json:"roomCode"`
	Timestamp time.Time `json:"timestamp"`
	Position  Position  `json:"position"`
}
