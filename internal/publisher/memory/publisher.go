// Package memory records terminal job notifications in process, standing in
// for Pub/Sub in tests and single-node deployments.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// Publisher stores published job terminations for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic string
	Event leads.JobTermination
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the termination and returns a pseudo message ID.
func (p *Publisher) Publish(_ context.Context, topic string, event leads.JobTermination) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Event: event})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
