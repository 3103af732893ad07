package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/contexthub-project/contexthub/internal/registry"
)

// Publisher re-emits registry events to JetStream so listeners outside the
// process observe lifecycle and permission transitions. It satisfies
// registry.Notifier.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// Publish sends the event on ctxhub.events.<kind>.
func (p *Publisher) Publish(ctx context.Context, event registry.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", event.Kind, err)
	}
	subject := fmt.Sprintf("%s.%s", SubjectEventPrefix, event.Kind)
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
