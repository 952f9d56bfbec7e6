package queue

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process queue for tests and single-binary runs. Nacked
// messages go to a retry list served after the channel, so a nack never
// blocks on a full buffer.
type Memory struct {
	mu      sync.Mutex
	ch      chan Message
	retry   []Message
	wait    time.Duration
	acked   []Message
	nacked  []Message
	sent    []Message
	sendErr error
}

// NewMemory creates a queue holding up to size pending messages.
func NewMemory(size int, wait time.Duration) *Memory {
	return &Memory{ch: make(chan Message, size), wait: wait}
}

// FailPublish makes every Publish return err; nil restores normal behavior.
func (m *Memory) FailPublish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

func (m *Memory) Publish(ctx context.Context, msg Message) error {
	m.mu.Lock()
	err := m.sendErr
	if err == nil {
		m.sent = append(m.sent, msg)
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case m.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Receive(ctx context.Context) ([]*Delivery, error) {
	select {
	case msg := <-m.ch:
		return m.deliver(msg), nil
	default:
	}
	if msg, ok := m.popRetry(); ok {
		return m.deliver(msg), nil
	}

	timer := time.NewTimer(m.wait)
	defer timer.Stop()
	select {
	case msg := <-m.ch:
		return m.deliver(msg), nil
	case <-timer.C:
		if msg, ok := m.popRetry(); ok {
			return m.deliver(msg), nil
		}
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Memory) popRetry() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.retry) == 0 {
		return Message{}, false
	}
	msg := m.retry[0]
	m.retry = m.retry[1:]
	return msg, true
}

func (m *Memory) deliver(msg Message) []*Delivery {
	return []*Delivery{{
		Message: msg,
		ack: func(context.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.acked = append(m.acked, msg)
			return nil
		},
		nack: func(context.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.nacked = append(m.nacked, msg)
			msg.Attempts++
			m.retry = append(m.retry, msg)
			return nil
		},
	}}
}

// Pending returns the number of undelivered messages, retries included.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ch) + len(m.retry)
}

// Sent returns every message accepted by Publish.
func (m *Memory) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// Acked returns every acked message.
func (m *Memory) Acked() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.acked...)
}

// Nacked returns every nacked message.
func (m *Memory) Nacked() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.nacked...)
}
