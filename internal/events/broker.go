// internal/events/broker.go
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event describes a committed change to a job or one of its child records.
// Services publish after their transaction commits; consumers (websocket
// bridges, background refreshers) subscribe per job.
type Event struct {
	Entity   string    `json:"entity"`
	EntityID uuid.UUID `json:"entity_id"`
	JobID    uuid.UUID `json:"job_id"`
	Action   string    `json:"action"`
	At       time.Time `json:"at"`
}

const subscriberBuffer = 16

type subscriber struct {
	id    int
	jobID uuid.UUID
	ch    chan Event
}

// Broker is an in-process fan-out of entity change events, keyed by job id.
// The zero-value uuid subscribes to all jobs. Slow consumers drop events
// rather than block publishers.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*subscriber)}
}

// Subscribe registers interest in events for jobID (uuid.Nil for all jobs)
// and returns the channel plus an unsubscribe func. Always call unsubscribe
// on teardown.
func (b *Broker) Subscribe(jobID uuid.UUID) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{
		id:    b.nextID,
		jobID: jobID,
		ch:    make(chan Event, subscriberBuffer),
	}
	b.subs[sub.id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[sub.id]; ok {
			delete(b.subs, sub.id)
			close(s.ch)
		}
	}

	return sub.ch, unsubscribe
}

func (b *Broker) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.jobID != uuid.Nil && sub.jobID != event.JobID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Drop rather than block a publisher on a stalled consumer.
		}
	}
}

// Close tears down all subscriptions. Publish after Close is a no-op.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
