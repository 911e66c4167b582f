package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"spacetrack/internal/model"
)

// NATS subjects used by the pipeline.
const (
	// SubjectDetection carries raw "device seen in room" events from sensors.
	SubjectDetection = "track.uplink.DETECTION"
	// SubjectLocationChanged carries notifications for live viewers. A
	// device-specific variant "<subject>.<deviceCode>" is published as well.
	SubjectLocationChanged = "track.location.changed"
)

const (
	lastLocationKeyPrefix = "track:location:last:"
	recentLocationsKey    = "track:location:recent"
	lastLocationTTL       = 24 * time.Hour
)

// EventConn is the publish side of the egress channel. *nats.Conn satisfies
// it.
type EventConn interface {
	Publish(subject string, data []byte) error
}

// EventPublisher broadcasts location-changed notifications. Dispatch is
// asynchronous through a bounded queue: a slow or disconnected egress
// channel never blocks the transaction-serving path, and messages are
// dropped with a log line on backpressure.
type EventPublisher struct {
	conn      EventConn
	redis     *redis.Client
	jetstream *JetStreamService
	queue     chan *model.LocationChangedMessage
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewEventPublisher creates a new event publisher. redisClient and jetstream
// may be nil; they only add caching and replay persistence.
func NewEventPublisher(conn EventConn, redisClient *redis.Client, jetstream *JetStreamService) *EventPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventPublisher{
		conn:      conn,
		redis:     redisClient,
		jetstream: jetstream,
		queue:     make(chan *model.LocationChangedMessage, 256),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start starts the dispatch loop.
func (p *EventPublisher) Start() {
	go p.run()
	log.Println("[Publisher] Started")
}

// Stop stops the dispatch loop and waits for it to exit.
func (p *EventPublisher) Stop() {
	p.cancel()
	<-p.done
	log.Println("[Publisher] Stopped")
}

// PublishLocationChanged enqueues a notification without blocking.
func (p *EventPublisher) PublishLocationChanged(msg *model.LocationChangedMessage) {
	select {
	case p.queue <- msg:
	default:
		log.Printf("[Publisher] Queue full, dropping location-changed for device %s", msg.Code)
	}
}

func (p *EventPublisher) run() {
	defer close(p.done)
	for {
		select {
		case msg := <-p.queue:
			p.deliver(msg)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *EventPublisher) deliver(msg *model.LocationChangedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Publisher] Failed to marshal location-changed: %v", err)
		return
	}

	if err := p.conn.Publish(SubjectLocationChanged, data); err != nil {
		// Delivery is best-effort; the committed state change stands.
		log.Printf("[Publisher] Failed to publish location-changed for device %s: %v", msg.Code, err)
	}

	// Also publish to a device-specific subject for filtered subscribers
	deviceSubject := fmt.Sprintf("%s.%s", SubjectLocationChanged, msg.Code)
	if err := p.conn.Publish(deviceSubject, data); err != nil {
		log.Printf("[Publisher] Failed to publish %s: %v", deviceSubject, err)
	}

	p.cacheLast(msg.Code, data)

	if p.jetstream != nil && p.jetstream.IsEnabled() {
		if err := p.jetstream.PublishLocation(msg.Code, data); err != nil {
			log.Printf("[Publisher] Failed to persist location-changed for device %s: %v", msg.Code, err)
		}
	}
}

// cacheLast keeps the latest payload per device plus a trimmed recent list
// for quick dashboard lookups.
func (p *EventPublisher) cacheLast(deviceCode string, data []byte) {
	if p.redis == nil {
		return
	}
	key := lastLocationKeyPrefix + deviceCode
	p.redis.Set(p.ctx, key, data, lastLocationTTL)
	p.redis.LPush(p.ctx, recentLocationsKey, data)
	p.redis.LTrim(p.ctx, recentLocationsKey, 0, 99)
}
