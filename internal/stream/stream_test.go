package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	s.Publish(ActivityEvent{Kind: KindPurchaseCreated, ActorID: "u-1", Amount: 120})

	for name, ch := range map[string]<-chan ActivityEvent{"a": a, "b": b} {
		select {
		case evt := <-ch:
			if evt.Kind != KindPurchaseCreated || evt.ActorID != "u-1" {
				t.Fatalf("subscriber %s got unexpected event: %+v", name, evt)
			}
			if evt.Timestamp.IsZero() {
				t.Fatalf("subscriber %s got zero timestamp", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s did not receive event", name)
		}
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed without events")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancellation")
	}

	// Publishing after unsubscribe must not panic.
	s.Publish(ActivityEvent{Kind: KindMemberLinked})
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(ActivityEvent{Kind: KindExecutionDeclared})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
