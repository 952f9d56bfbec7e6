// Package queue carries import processing messages from the commit endpoint
// to the staging worker.
//
// Delivery is at-least-once. A delivery that is not acked is redelivered
// by the backend, so consumers must process idempotently.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by Receive after the consumer is closed.
var ErrClosed = errors.New("queue closed")

// Message asks the worker to materialize one import.
type Message struct {
	ImportID string `json:"importId"`
	// Attempts counts failed deliveries on backends that track retries.
	Attempts int `json:"attempts,omitempty"`
}

// Publisher enqueues processing messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Consumer receives processing messages. Receive blocks up to the backend's
// wait time and may return no deliveries.
type Consumer interface {
	Receive(ctx context.Context) ([]*Delivery, error)
}

// Delivery is one received message.
type Delivery struct {
	Message Message

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
}

// Ack removes the message from the queue.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Nack returns the message for redelivery.
func (d *Delivery) Nack(ctx context.Context) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(ctx)
}

func encode(msg Message) (string, error) {
	if msg.ImportID == "" {
		return "", fmt.Errorf("message has no import id")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return string(b), nil
}

func decode(body string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.ImportID == "" {
		return Message{}, fmt.Errorf("message has no import id")
	}
	return msg, nil
}
