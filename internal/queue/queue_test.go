package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	want := []Message{
		{Kind: "morning_reminder", UserID: 1, Lang: "en"},
		{Kind: "late_warning", UserID: 2, Lang: "ru"},
		{Kind: "checkout_reminder", UserID: 3, Lang: "uz"},
	}
	for _, msg := range want {
		if err := q.Publish(ctx, msg); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	var got []Message
	for len(got) < len(want) {
		select {
		case msg := <-ch:
			got = append(got, msg)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d messages before timeout", len(got), len(want))
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestInMemoryPublishCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)

	if err := q.Publish(ctx, Message{UserID: 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Queue is full and nobody is draining; a cancelled publish must not
	// block forever.
	cancel()
	if err := q.Publish(ctx, Message{UserID: 2}); err != context.Canceled {
		t.Fatalf("Publish on full queue after cancel = %v, want context.Canceled", err)
	}
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)

	ch, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("got a message after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancellation")
	}
}
