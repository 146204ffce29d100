package kafkaclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrPublisherStopped = errors.New("kafka publisher stopped")

// KafkaWriter defines the interface for a Kafka message writer.
// This allows for easy mocking in unit tests.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher queues JSON events and writes them to Kafka from a single
// goroutine so that callers never wait on the broker.
type Publisher struct {
	writer KafkaWriter
	// a channel to signal a graceful shutdown.
	doneChan chan struct{}
	// a wait group to ensure the write loop has exited before the writer is closed.
	wg sync.WaitGroup
	// queued messages waiting for the write loop.
	messageChan chan kafka.Message

	stopOnce sync.Once
}

const (
	queueSize    = 64
	writeTimeout = 5 * time.Second
)

// NewPublisher creates a Publisher writing to topic on broker.
func NewPublisher(topic, broker string) *Publisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(broker),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		// Events are small; send them promptly instead of waiting for a full batch.
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(writer)
}

func newPublisher(writer KafkaWriter) *Publisher {
	return &Publisher{
		writer:      writer,
		doneChan:    make(chan struct{}),
		messageChan: make(chan kafka.Message, queueSize),
	}
}

// Start begins the write loop in a separate goroutine.
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case msg := <-p.messageChan:
				p.write(ctx, msg)
			case <-ctx.Done():
				p.drain(context.Background())
				return
			case <-p.doneChan:
				p.drain(context.Background())
				return
			}
		}
	}()
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		select {
		case msg := <-p.messageChan:
			p.write(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) write(ctx context.Context, msg kafka.Message) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("Failed to publish event key=%s: %v", msg.Key, err)
	}
}

// Publish encodes event as JSON and queues it under key. It blocks only
// while the queue is full.
func (p *Publisher) Publish(ctx context.Context, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	msg := kafka.Message{Key: []byte(key), Value: value, Time: time.Now()}
	select {
	case <-p.doneChan:
		return ErrPublisherStopped
	default:
	}
	select {
	case p.messageChan <- msg:
		return nil
	case <-p.doneChan:
		return ErrPublisherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop flushes queued events and closes the writer.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.wg.Wait()
		if err := p.writer.Close(); err != nil {
			log.Printf("Failed to close Kafka writer: %v", err)
		}
	})
}
