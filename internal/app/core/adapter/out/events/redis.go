package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
)

// redisPublisher *redis.Client 中用到的部分
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher 以 Redis Pub/Sub 發佈事件
type RedisPublisher struct {
	rdb     redisPublisher
	channel string
}

func NewRedisPublisher(addr, password string, db int, channel string) *RedisPublisher {
	return &RedisPublisher{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		channel: channel,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

var _ usecase.EventPublisher = (*RedisPublisher)(nil)
