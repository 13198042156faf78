package events

import (
	"encoding/json"
	"fmt"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
)

// encode 事件一律以 JSON 傳送，金額為字串
func encode(event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return payload, nil
}
