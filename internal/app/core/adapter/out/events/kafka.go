package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
)

// messageWriter kafka.Writer 中用到的部分
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 把帳本事件寫到 Kafka topic
// 以帳戶 ID 作為 message key，同一帳戶的事件落在同一個 partition
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher 建立 Kafka 發佈器
//
// 參數:
//
//	brokers: broker 位址清單
//	topic: 目標 topic
//
// 回傳:
//
//	*KafkaPublisher: 發佈器
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ usecase.EventPublisher = (*KafkaPublisher)(nil)
