package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacetrack/internal/geometry"
	"spacetrack/internal/model"
	"spacetrack/internal/repository"
)

// fakeStore is an in-memory LocationStore. Each Transaction call can be
// forced to fail up front to exercise the retry loop.
type fakeStore struct {
	devices map[string]*model.Device
	rooms   map[string]*model.Room

	saved     []*model.DeviceCurrentLocation
	history   []*model.DeviceLocationHistory
	txCount   int
	failFirst int
	failErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices: make(map[string]*model.Device),
		rooms:   make(map[string]*model.Room),
	}
}

func (s *fakeStore) Transaction(_ context.Context, fn func(tx repository.LocationTx) error) error {
	s.txCount++
	if s.txCount <= s.failFirst {
		return s.failErr
	}

	// Stage writes so a failed callback leaves no trace, like a rollback.
	staged := &fakeTx{store: s}
	if err := fn(staged); err != nil {
		return err
	}
	s.saved = append(s.saved, staged.saved...)
	s.history = append(s.history, staged.history...)
	for _, loc := range staged.saved {
		for _, d := range s.devices {
			if d.ID == loc.DeviceID {
				d.CurrentLocation = loc
			}
		}
	}
	return nil
}

type fakeTx struct {
	store   *fakeStore
	saved   []*model.DeviceCurrentLocation
	history []*model.DeviceLocationHistory
}

func (t *fakeTx) DeviceByCode(code string) (*model.Device, error) {
	d, ok := t.store.devices[code]
	if !ok {
		return nil, repository.ErrDeviceNotFound
	}
	return d, nil
}

func (t *fakeTx) RoomByCode(code string) (*model.Room, error) {
	r, ok := t.store.rooms[code]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return r, nil
}

func (t *fakeTx) SaveCurrentLocation(loc *model.DeviceCurrentLocation) error {
	t.saved = append(t.saved, loc)
	return nil
}

func (t *fakeTx) AppendHistory(entry *model.DeviceLocationHistory) error {
	t.history = append(t.history, entry)
	return nil
}

type fakePublisher struct {
	messages []*model.LocationChangedMessage
}

func (p *fakePublisher) PublishLocationChanged(msg *model.LocationChangedMessage) {
	p.messages = append(p.messages, msg)
}

func roomA() *model.Room {
	return &model.Room{
		ID:      1,
		Code:    "ROOM-A",
		Name:    "Room A",
		Color:   "#ff0000",
		SpaceID: 1,
		Corners: model.CornerList{{X: -1, Z: -8}, {X: 6, Z: -8}, {X: 6, Z: -13}, {X: -1, Z: -13}},
	}
}

func roomB() *model.Room {
	return &model.Room{
		ID:      2,
		Code:    "ROOM-B",
		Name:    "Room B",
		Color:   "#00ff00",
		SpaceID: 1,
		Corners: model.CornerList{{X: 6, Z: -8}, {X: 13, Z: -8}, {X: 13, Z: -13}, {X: 6, Z: -13}},
	}
}

func newTestService() (*LocationService, *fakeStore, *fakePublisher) {
	store := newFakeStore()
	store.devices["DEV-1"] = &model.Device{ID: 10, Code: "DEV-1", Name: "Tag 1", Color: "#0000ff"}
	store.rooms["ROOM-A"] = roomA()
	store.rooms["ROOM-B"] = roomB()

	pub := &fakePublisher{}
	return NewLocationService(store, pub), store, pub
}

func TestApplyDetectionFirstSighting(t *testing.T) {
	svc, store, pub := newTestService()

	loc, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-A")
	require.NoError(t, err)
	require.NotNil(t, loc)

	assert.Equal(t, uint(10), loc.DeviceID)
	assert.Equal(t, uint(1), loc.RoomID)
	assert.Equal(t, 0, loc.LevelIndex)
	assert.Equal(t, 1.0, loc.Elevation)

	// The sampled point lies inside the room polygon.
	assert.True(t, geometry.Contains(
		geometry.Polygon{{X: -1, Y: -8}, {X: 6, Y: -8}, {X: 6, Y: -13}, {X: -1, Y: -13}},
		geometry.Point{X: loc.X, Y: loc.Z},
	))

	require.Len(t, store.history, 1)
	assert.Equal(t, uint(10), store.history[0].DeviceID)
	assert.Equal(t, uint(1), store.history[0].RoomID)
	assert.Equal(t, loc.Timestamp, store.history[0].Timestamp)

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, "10", msg.ID)
	assert.Equal(t, "DEV-1", msg.Code)
	assert.Equal(t, "ROOM-A", msg.RoomCode)
	assert.Equal(t, "Room A", msg.RoomName)
	assert.Equal(t, loc.X, msg.Position.X)
	assert.Equal(t, loc.Z, msg.Position.Z)
}

func TestApplyDetectionSameRoomIsNoOp(t *testing.T) {
	svc, store, pub := newTestService()

	first, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-A")
	require.NoError(t, err)

	second, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-A")
	require.NoError(t, err)

	// The re-detection keeps the existing position and writes nothing.
	assert.Equal(t, first.X, second.X)
	assert.Equal(t, first.Z, second.Z)
	assert.Len(t, store.saved, 1)
	assert.Len(t, store.history, 1)
	assert.Len(t, pub.messages, 1)
}

func TestApplyDetectionRoomTransition(t *testing.T) {
	svc, store, pub := newTestService()

	_, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-A")
	require.NoError(t, err)

	loc, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-B")
	require.NoError(t, err)

	assert.Equal(t, uint(2), loc.RoomID)
	assert.True(t, geometry.Contains(
		geometry.Polygon{{X: 6, Y: -8}, {X: 13, Y: -8}, {X: 13, Y: -13}, {X: 6, Y: -13}},
		geometry.Point{X: loc.X, Y: loc.Z},
	))

	require.Len(t, store.history, 2)
	assert.True(t, store.history[1].Timestamp.After(store.history[0].Timestamp))

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "ROOM-B", pub.messages[1].RoomCode)
}

func TestApplyDetectionUnknownDevice(t *testing.T) {
	svc, store, pub := newTestService()

	_, err := svc.ApplyDetection(context.Background(), "NO-SUCH", "ROOM-A")
	require.ErrorIs(t, err, repository.ErrDeviceNotFound)

	assert.Empty(t, store.saved)
	assert.Empty(t, store.history)
	assert.Empty(t, pub.messages)
}

func TestApplyDetectionUnknownRoom(t *testing.T) {
	svc, store, pub := newTestService()

	_, err := svc.ApplyDetection(context.Background(), "DEV-1", "NO-SUCH")
	require.ErrorIs(t, err, repository.ErrRoomNotFound)

	assert.Empty(t, store.saved)
	assert.Empty(t, pub.messages)
}

func TestApplyDetectionRetriesSerializationConflict(t *testing.T) {
	svc, store, pub := newTestService()
	store.failFirst = 2
	store.failErr = errors.New("driver: could not serialize access due to concurrent update (SQLSTATE 40001)")

	loc, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-A")
	require.NoError(t, err)
	require.NotNil(t, loc)

	assert.Equal(t, 3, store.txCount)
	assert.Len(t, pub.messages, 1)
}

func TestApplyDetectionGivesUpAfterMaxAttempts(t *testing.T) {
	svc, store, pub := newTestService()
	store.failFirst = maxTxAttempts
	store.failErr = errors.New("ERROR: could not serialize access due to read/write dependencies among transactions (SQLSTATE 40001)")

	_, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-A")
	require.Error(t, err)
	assert.True(t, repository.IsSerializationFailure(err))

	assert.Equal(t, maxTxAttempts, store.txCount)
	assert.Empty(t, pub.messages)
}

func TestApplyDetectionNonRetryableErrorFailsFast(t *testing.T) {
	svc, store, _ := newTestService()
	store.failFirst = 1
	store.failErr = errors.New("connection refused")

	_, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-A")
	require.Error(t, err)
	assert.Equal(t, 1, store.txCount)
}

func TestApplyDetectionDegenerateRoom(t *testing.T) {
	svc, store, pub := newTestService()
	store.rooms["ROOM-FLAT"] = &model.Room{
		ID:      3,
		Code:    "ROOM-FLAT",
		SpaceID: 1,
		Corners: model.CornerList{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 2, Z: 0}},
	}

	_, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-FLAT")
	require.ErrorIs(t, err, geometry.ErrSamplingExhausted)

	assert.Empty(t, store.saved)
	assert.Empty(t, store.history)
	assert.Empty(t, pub.messages)
}

func TestApplyDetectionPreservesLocationRowID(t *testing.T) {
	svc, store, _ := newTestService()

	_, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-A")
	require.NoError(t, err)

	// Simulate the database having assigned a primary key.
	store.devices["DEV-1"].CurrentLocation.ID = 77
	store.devices["DEV-1"].CurrentLocation.Timestamp = time.Now().UTC().Add(-time.Minute)

	loc, err := svc.ApplyDetection(context.Background(), "DEV-1", "ROOM-B")
	require.NoError(t, err)
	assert.Equal(t, uint(77), loc.ID)
}
