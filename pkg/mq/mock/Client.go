// Package mock provides test doubles for the mq package interfaces.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"irriflow.dev/dashboard/pkg/mq"
)

// MockClient is a configurable double for mq.ClientInterface that records
// every call it receives.
type MockClient struct {
	mu sync.Mutex

	// PublishFunc is called when Publish is invoked. If nil, returns PublishError.
	PublishFunc func(ctx context.Context, body []byte) error
	// PublishError is returned by Publish if PublishFunc is nil.
	PublishError error
	// Published holds the body of every Publish call.
	Published [][]byte

	// ConsumeChannel is returned by Consume.
	ConsumeChannel <-chan amqp.Delivery
	// ConsumeError is returned by Consume.
	ConsumeError error
	// ConsumeCalls counts Consume calls.
	ConsumeCalls int

	// WaitReadyError is returned by WaitReady.
	WaitReadyError error

	// CloseError is returned by Close.
	CloseError error
	// CloseCalls counts Close calls.
	CloseCalls int
}

// Publish implements mq.Publisher.
func (m *MockClient) Publish(ctx context.Context, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Published = append(m.Published, append([]byte(nil), body...))
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, body)
	}
	return m.PublishError
}

// Consume implements mq.Subscriber.
func (m *MockClient) Consume(context.Context) (<-chan amqp.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls++
	return m.ConsumeChannel, m.ConsumeError
}

// WaitReady implements mq.ClientInterface.
func (m *MockClient) WaitReady(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.WaitReadyError
}

// Close implements mq.ClientInterface.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	return m.CloseError
}

// PublishedBodies returns a copy of the recorded Publish payloads.
func (m *MockClient) PublishedBodies() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([][]byte(nil), m.Published...)
}

// Acknowledger records acks, nacks and rejects for deliveries built in tests.
type Acknowledger struct {
	mu      sync.Mutex
	Acked   []uint64
	Nacked  []uint64
	Requeue []bool
}

// Ack implements amqp.Acknowledger.
func (a *Acknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Acked = append(a.Acked, tag)
	return nil
}

// Nack implements amqp.Acknowledger.
func (a *Acknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Nacked = append(a.Nacked, tag)
	a.Requeue = append(a.Requeue, requeue)
	return nil
}

// Reject implements amqp.Acknowledger.
func (a *Acknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

// AckCount returns the number of acked deliveries.
func (a *Acknowledger) AckCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Acked)
}

// NackCount returns the number of nacked or rejected deliveries.
func (a *Acknowledger) NackCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Nacked)
}

var (
	_ mq.ClientInterface = (*MockClient)(nil)
	_ amqp.Acknowledger  = (*Acknowledger)(nil)
)
