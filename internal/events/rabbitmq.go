// Package events публикует доменные события в topic exchange RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/findme/internal/logger"
)

const (
	exchangeKind     = "topic"
	publishTimeout   = 5 * time.Second
	reconnectBackoff = 5 * time.Second
)

var errClosed = errors.New("rabbitmq: publisher closed")

// Envelope — тело сообщения в exchange.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Recipients []string  `json:"recipients,omitempty"`
	Payload    any       `json:"payload"`
}

// RabbitMQPublisher держит соединение и канал; при разрыве переподключается в фоне.
type RabbitMQPublisher struct {
	mu       sync.RWMutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	url      string
	closed   chan struct{}
	once     sync.Once
}

func NewRabbitMQPublisher(url, exchange string) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{exchange: exchange, url: url, closed: make(chan struct{})}
	if err := p.connect(); err != nil {
		return nil, err
	}
	go p.handleReconnect()
	logger.Logger().Info().Str("exchange", exchange).Msg("rabbitmq: publisher initialized")
	return p, nil
}

func (p *RabbitMQPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, exchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq declare exchange %s: %w", p.exchange, err)
	}
	p.mu.Lock()
	p.conn, p.channel = conn, ch
	p.mu.Unlock()
	return nil
}

// Publish отправляет событие с routing key = тип события.
func (p *RabbitMQPublisher) Publish(ctx context.Context, env Envelope) error {
	select {
	case <-p.closed:
		return errClosed
	default:
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("rabbitmq marshal %s: %w", env.Type, err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()
	err = ch.PublishWithContext(ctx, p.exchange, env.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    env.OccurredAt,
		MessageId:    env.ID,
		Type:         env.Type,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", env.Type, err)
	}
	logger.Logger().Debug().Str("routing_key", env.Type).Int("body_size", len(body)).Msg("rabbitmq: published")
	return nil
}

func (p *RabbitMQPublisher) handleReconnect() {
	for {
		p.mu.RLock()
		notify := p.conn.NotifyClose(make(chan *amqp.Error, 1))
		p.mu.RUnlock()

		select {
		case <-p.closed:
			return
		case closeErr, ok := <-notify:
			if !ok || closeErr == nil {
				// Штатное закрытие соединения (Close).
				return
			}
			logger.Logger().Error().Err(closeErr).Msg("rabbitmq: connection lost, reconnecting")
		}

		for {
			select {
			case <-p.closed:
				return
			case <-time.After(reconnectBackoff):
			}
			if err := p.connect(); err != nil {
				logger.Logger().Error().Err(err).Msg("rabbitmq: reconnect failed")
				continue
			}
			logger.Logger().Info().Msg("rabbitmq: reconnected")
			break
		}
	}
}

// HealthCheck проверяет, что соединение открыто.
func (p *RabbitMQPublisher) HealthCheck() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq: connection is closed")
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.closed)
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.channel != nil {
			if cerr := p.channel.Close(); cerr != nil {
				logger.Errorf("rabbitmq: close channel: %v", cerr)
			}
		}
		if p.conn != nil {
			err = p.conn.Close()
		}
	})
	return err
}
