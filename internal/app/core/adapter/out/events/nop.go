package events

import (
	"context"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
)

// NopPublisher 不對外發佈，publisher.type 為 none 時使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }

func (NopPublisher) Close() error { return nil }

var _ usecase.EventPublisher = NopPublisher{}
