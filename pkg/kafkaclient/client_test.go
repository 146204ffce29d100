package kafkaclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// mockWriter simulates the kafka-go Writer for unit testing.
type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	failures int
	isClosed bool
	written  chan struct{}
}

func newMockWriter() *mockWriter {
	return &mockWriter{written: make(chan struct{}, 100)}
}

func (mw *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.isClosed {
		return errors.New("kafka: writer closed")
	}
	if mw.failures > 0 {
		mw.failures--
		mw.written <- struct{}{}
		return errors.New("broker unavailable")
	}
	mw.messages = append(mw.messages, msgs...)
	mw.written <- struct{}{}
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.isClosed = true
	return nil
}

func (mw *mockWriter) snapshot() []kafka.Message {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return append([]kafka.Message(nil), mw.messages...)
}

type testEvent struct {
	Type    string `json:"type"`
	ImageID string `json:"image_id"`
}

func TestPublisher_PublishesKeyedJSON(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	writer := newMockWriter()
	p := newPublisher(writer)
	p.Start(ctx)

	events := []testEvent{{"round_served", "1"}, {"answer", "1"}, {"round_served", "2"}}
	for _, e := range events {
		if err := p.Publish(ctx, "session-a", e); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	}
	for range events {
		select {
		case <-writer.written:
		case <-ctx.Done():
			t.Fatal("Timed out waiting for writes.")
		}
	}
	p.Stop()

	got := writer.snapshot()
	if len(got) != len(events) {
		t.Fatalf("Expected %d messages, got %d", len(events), len(got))
	}
	for i, msg := range got {
		if string(msg.Key) != "session-a" {
			t.Errorf("message %d key = %q", i, msg.Key)
		}
		var decoded testEvent
		if err := json.Unmarshal(msg.Value, &decoded); err != nil {
			t.Fatalf("message %d is not JSON: %v", i, err)
		}
		if decoded != events[i] {
			t.Errorf("message %d = %+v; want %+v", i, decoded, events[i])
		}
	}
	if !writer.isClosed {
		t.Error("Expected writer to be closed after Stop().")
	}
}

func TestPublisher_WriteFailureDoesNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	writer := newMockWriter()
	writer.failures = 1
	p := newPublisher(writer)
	p.Start(ctx)
	defer p.Stop()

	for i := 0; i < 2; i++ {
		if err := p.Publish(ctx, "k", testEvent{Type: "answer"}); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
		select {
		case <-writer.written:
		case <-ctx.Done():
			t.Fatal("Timed out waiting for write.")
		}
	}
	if got := len(writer.snapshot()); got != 1 {
		t.Errorf("Expected 1 delivered message after one failure, got %d", got)
	}
}

func TestPublisher_StopFlushesQueue(t *testing.T) {
	writer := newMockWriter()
	p := newPublisher(writer)

	// Queue before the loop starts, then stop straight away.
	for i := 0; i < 5; i++ {
		if err := p.Publish(context.Background(), "k", testEvent{Type: "round_served"}); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	}
	p.Start(context.Background())
	p.Stop()

	if got := len(writer.snapshot()); got != 5 {
		t.Errorf("Expected 5 flushed messages, got %d", got)
	}
}

func TestPublisher_PublishAfterStop(t *testing.T) {
	p := newPublisher(newMockWriter())
	p.Start(context.Background())
	p.Stop()
	p.Stop()

	if err := p.Publish(context.Background(), "k", testEvent{}); !errors.Is(err, ErrPublisherStopped) {
		t.Fatalf("err = %v; want ErrPublisherStopped", err)
	}
}

func TestPublisher_UnencodableEvent(t *testing.T) {
	p := newPublisher(newMockWriter())
	if err := p.Publish(context.Background(), "k", func() {}); err == nil {
		t.Fatal("expected encoding error")
	}
}
