package core

import "context"

// Event routing keys
const (
	EventCredentialLocked   = "credential.locked"
	EventCredentialUnlocked = "credential.unlocked"
)

// EventPublisher is any service that can publish domain events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}
