package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
)

// amqpChannel *amqp091.Channel 中用到的部分
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// RabbitMQPublisher 發佈到 durable topic exchange，routing key 為事件類型
type RabbitMQPublisher struct {
	conn     *amqp091.Connection
	mu       sync.Mutex // amqp channel 不可並行使用
	channel  amqpChannel
	exchange string
}

// NewRabbitMQPublisher 連線並宣告 exchange
//
// 參數:
//
//	rawURL: amqp:// 或 amqps:// 連線字串
//	exchange: topic exchange 名稱
//
// 回傳:
//
//	*RabbitMQPublisher: 發佈器
//	error: 連線或宣告失敗
func NewRabbitMQPublisher(rawURL, exchange string) (*RabbitMQPublisher, error) {
	amqpURL, err := validateAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &RabbitMQPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func validateAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("amqp url must start with amqp:// or amqps://")
	}
	return clean, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.Type + ":" + event.Key + ":" + event.OccurredAt.Format(time.RFC3339Nano),
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ usecase.EventPublisher = (*RabbitMQPublisher)(nil)
