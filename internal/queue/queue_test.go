package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := NewInMemory(4)
	type payload struct {
		ID    string `json:"id"`
		Count int    `json:"count"`
	}
	msg, err := NewMessage(TypeAudit, payload{ID: "a1", Count: 3})
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatal(err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-messages:
		if got.Type != TypeAudit {
			t.Fatalf("type = %q", got.Type)
		}
		var p payload
		if err := got.Decode(&p); err != nil {
			t.Fatal(err)
		}
		if p.ID != "a1" || p.Count != 3 {
			t.Fatalf("payload = %+v", p)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Publish(ctx, Message{Type: TypeAudit}); err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, Message{Type: TypeAudit}); err == nil {
		t.Fatal("expected publish on a full queue to fail once the context ends")
	}
}

func TestConsumeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	messages, _ := NewInMemory(1).Consume(ctx)
	cancel()
	select {
	case _, ok := <-messages:
		if ok {
			t.Fatal("unexpected message")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
