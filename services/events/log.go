package eventsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/trezcool/quizdesk/core"
)

// logPublisher only logs the events. It is used when no broker is configured or reachable.
type logPublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = (*logPublisher)(nil)

func NewLogPublisher(logger core.Logger) core.EventPublisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(_ context.Context, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	p.logger.Info(fmt.Sprintf("[events] %s %s", routingKey, payload))
	return nil
}

func (p *logPublisher) Close() {}

// Published is an event kept by PublisherMock.
type Published struct {
	RoutingKey string
	Body       interface{}
}

// PublisherMock keeps the published events in memory.
type PublisherMock struct {
	mu     sync.Mutex
	events []Published
	Err    error // returned by Publish when set
}

var _ core.EventPublisher = (*PublisherMock)(nil)

func NewPublisherMock() *PublisherMock {
	return &PublisherMock{}
}

func (p *PublisherMock) Publish(_ context.Context, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, Published{RoutingKey: routingKey, Body: body})
	return nil
}

func (p *PublisherMock) Close() {}

// Events returns a copy of the published events.
func (p *PublisherMock) Events() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.events...)
}

// Reset forgets the published events.
func (p *PublisherMock) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
