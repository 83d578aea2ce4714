// Package eventsvc publishes the credential events to RabbitMQ.
package eventsvc

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trezcool/quizdesk/core"
)

var dialTimeout = 10 * time.Second

type rabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   core.Logger
}

var _ core.EventPublisher = (*rabbitPublisher)(nil)

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewRabbitPublisher connects to the broker and declares the durable topic exchange of `conf`.
func NewRabbitPublisher(conf *core.Config, logger core.Logger) (core.EventPublisher, error) {
	cleanURL, err := sanitizeURL(conf.Broker.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing broker url")
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, errors.Wrap(err, "dialing broker")
	}
	pub := &rabbitPublisher{conn: conn, exchange: conf.Broker.Exchange, logger: logger}
	if err = pub.openChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return pub, nil
}

func (p *rabbitPublisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "opening channel")
	}
	if err = ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		return errors.Wrapf(err, "declaring exchange %q", p.exchange)
	}
	p.channel = ch
	return nil
}

// Publish sends `body` as JSON. A closed channel is reopened once.
func (p *rabbitPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		if err = p.openChannel(); err != nil {
			return err
		}
	}
	if err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		p.logger.Warn("publishing event failed, reopening channel", err)
		if err = p.openChannel(); err != nil {
			return err
		}
		if err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
			return errors.Wrapf(err, "publishing %s", routingKey)
		}
	}
	return nil
}

func (p *rabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
