package service

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacetrack/internal/model"
)

type recordingConn struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newRecordingConn() *recordingConn {
	return &recordingConn{messages: make(map[string][][]byte)}
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[subject] = append(c.messages[subject], data)
	return nil
}

func (c *recordingConn) count(subject string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages[subject])
}

// failingConn simulates a disconnected egress channel.
type failingConn struct {
	mu       sync.Mutex
	subjects []string
}

func (c *failingConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	return errors.New("nats: connection closed")
}

func (c *failingConn) attempted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subjects...)
}

func sampleMessage() *model.LocationChangedMessage {
	return &model.LocationChangedMessage{
		ID:        "10",
		Name:      "Tag 1",
		Code:      "DEV-1",
		Color:     "#0000ff",
		RoomName:  "Room A",
		RoomColor: "#ff0000",
		RoomCode:  "ROOM-A",
		Timestamp: time.Now().UTC(),
		Position:  model.Position{Elevation: 1, X: 2.5, Z: -10},
	}
}

func TestDeliverPublishesBothSubjects(t *testing.T) {
	conn := newRecordingConn()
	pub := NewEventPublisher(conn, nil, nil)

	pub.deliver(sampleMessage())

	require.Equal(t, 1, conn.count(SubjectLocationChanged))
	require.Equal(t, 1, conn.count(SubjectLocationChanged+".DEV-1"))

	var decoded model.LocationChangedMessage
	require.NoError(t, json.Unmarshal(conn.messages[SubjectLocationChanged][0], &decoded))
	assert.Equal(t, "DEV-1", decoded.Code)
	assert.Equal(t, "ROOM-A", decoded.RoomCode)
}

func TestDeliverPublishFailureIsContained(t *testing.T) {
	// Delivery is best-effort: a dead egress channel is logged, both
	// subjects are still attempted, caching proceeds, and nothing
	// propagates back to the caller.
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	conn := &failingConn{}
	pub := NewEventPublisher(conn, client, nil)

	pub.deliver(sampleMessage())

	assert.Equal(t, []string{
		SubjectLocationChanged,
		SubjectLocationChanged + ".DEV-1",
	}, conn.attempted())

	cached, err := mr.Get(lastLocationKeyPrefix + "DEV-1")
	require.NoError(t, err)
	assert.Contains(t, cached, `"code":"DEV-1"`)

	// The dispatch loop keeps serving later messages after a failure.
	pub.Start()
	defer pub.Stop()
	pub.PublishLocationChanged(sampleMessage())

	require.Eventually(t, func() bool {
		return len(conn.attempted()) == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeliverCachesLastLocation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	conn := newRecordingConn()
	pub := NewEventPublisher(conn, client, nil)

	pub.deliver(sampleMessage())

	cached, err := mr.Get(lastLocationKeyPrefix + "DEV-1")
	require.NoError(t, err)

	var decoded model.LocationChangedMessage
	require.NoError(t, json.Unmarshal([]byte(cached), &decoded))
	assert.Equal(t, "DEV-1", decoded.Code)

	recent, err := mr.List(recentLocationsKey)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestDeliverTrimsRecentList(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	pub := NewEventPublisher(newRecordingConn(), client, nil)

	for i := 0; i < 150; i++ {
		pub.deliver(sampleMessage())
	}

	recent, err := mr.List(recentLocationsKey)
	require.NoError(t, err)
	assert.Len(t, recent, 100)
}

func TestPublishLocationChangedDispatches(t *testing.T) {
	conn := newRecordingConn()
	pub := NewEventPublisher(conn, nil, nil)
	pub.Start()
	defer pub.Stop()

	pub.PublishLocationChanged(sampleMessage())

	require.Eventually(t, func() bool {
		return conn.count(SubjectLocationChanged) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublishLocationChangedNeverBlocks(t *testing.T) {
	// The dispatch loop is not running, so the queue fills up. Enqueueing
	// beyond capacity must drop, not block.
	pub := NewEventPublisher(newRecordingConn(), nil, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			pub.PublishLocationChanged(sampleMessage())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PublishLocationChanged blocked on a full queue")
	}
}
