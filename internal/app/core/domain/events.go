package domain

import (
	"strconv"
	"time"
)

const (
	EventAccountOpened     = "account.opened"
	EventTransactionPosted = "transaction.posted"
)

// Event 帳本變更後對外發佈的事件
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"` // 分區鍵 (帳戶 ID)，確保同帳戶事件有序
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// AccountOpened account.opened 的內容
type AccountOpened struct {
	AccountID         int64  `json:"account_id"`
	Name              string `json:"name"`
	ExternalAccountID string `json:"external_account_id"`
	AccountType       string `json:"account_type"`
	InitialBalance    string `json:"initial_balance"`
}

// TransactionPosted transaction.posted 的內容
type TransactionPosted struct {
	TransactionID int64  `json:"transaction_id"`
	AccountID     int64  `json:"account_id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	BalanceAfter  string `json:"balance_after"`
	Reference     string `json:"reference"`
	Description   string `json:"description,omitempty"`
}

func NewAccountOpenedEvent(a *Account) Event {
	return Event{
		Type:       EventAccountOpened,
		Key:        strconv.FormatInt(a.ID, 10),
		OccurredAt: a.CreatedAt,
		Payload: AccountOpened{
			AccountID:         a.ID,
			Name:              a.Name,
			ExternalAccountID: a.ExternalAccountID,
			AccountType:       string(a.Type),
			InitialBalance:    FormatAmount(a.Balance),
		},
	}
}

func NewTransactionPostedEvent(t *Transaction) Event {
	return Event{
		Type:       EventTransactionPosted,
		Key:        strconv.FormatInt(t.AccountID, 10),
		OccurredAt: t.CreatedAt,
		Payload: TransactionPosted{
			TransactionID: t.ID,
			AccountID:     t.AccountID,
			Type:          t.Type.String(),
			Amount:        FormatAmount(t.Amount),
			BalanceAfter:  FormatAmount(t.BalanceAfter),
			Reference:     t.Reference.String(),
			Description:   t.Description,
		},
	}
}
