// Package stream fans out platform activity to live subscribers (SSE clients).
package stream

import (
	"context"
	"sync"
	"time"
)

// Kind labels the activity an event describes.
type Kind string

const (
	KindMemberLinked      Kind = "member.linked"
	KindExecutionDeclared Kind = "execution.declared"
	KindPurchaseCreated   Kind = "purchase.created"
)

// ActivityEvent describes one state change for the live feed.
type ActivityEvent struct {
	Kind          Kind      `json:"kind"`
	InstitutionID string    `json:"institution_id,omitempty"`
	ActorID       string    `json:"actor_id,omitempty"`
	SubjectID     string    `json:"subject_id,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Stream fan-outs activity events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan ActivityEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan ActivityEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan ActivityEvent {
	ch := make(chan ActivityEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt ActivityEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
