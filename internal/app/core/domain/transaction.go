package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型
// 方向由類型決定，金額永遠為正數
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdraw TransactionType = 2
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "deposit"
	case TransactionTypeWithdraw:
		return "withdraw"
	default:
		return fmt.Sprintf("TransactionType(%d)", uint8(t))
	}
}

// ParseTransactionType 解析交易類型字串 (不分大小寫)
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deposit":
		return TransactionTypeDeposit, nil
	case "withdraw":
		return TransactionTypeWithdraw, nil
	default:
		return 0, ErrInvalidTransactionType
	}
}

// Valid 是否為已知的交易類型
func (t TransactionType) Valid() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdraw
}

// MarshalText WAL 與事件中以字串保存，避免數值意義改變
func (t TransactionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, ErrInvalidTransactionType
	}
	return []byte(t.String()), nil
}

func (t *TransactionType) UnmarshalText(b []byte) error {
	parsed, err := ParseTransactionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Transaction 交易紀錄，建立後不可修改
type Transaction struct {
	// ID: 全局遞增的順序號 (由帳本分配，1, 2, 3...)
	ID int64
	// AccountID: 所屬帳戶
	AccountID int64
	// Amount: 金額 (正數)
	Amount decimal.Decimal
	// BalanceAfter: 交易後餘額
	BalanceAfter decimal.Decimal
	// CreatedAt: 交易時間 (由帳本分配)
	CreatedAt time.Time
	// Description: 備註，可為空
	Description string
	// Reference: 外部追蹤號，同一個 Reference 只會被處理一次
	Reference uuid.UUID
	Type      TransactionType
}

// Validate 在任何狀態變更前檢查交易欄位
func (t *Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidTransactionType
	}
	return ValidateAmount(t.Amount)
}

// Replay 以已入帳的交易 t 回應帶相同 Reference 的請求 req
// 帳戶、金額、類型任一不同時回傳 ErrReferenceReused
func (t *Transaction) Replay(req *Transaction) (*Transaction, error) {
	if t.AccountID != req.AccountID || t.Type != req.Type || !t.Amount.Equal(req.Amount) {
		return nil, ErrReferenceReused
	}
	return t.Clone(), nil
}

// Clone 回傳複本，避免呼叫端改寫帳本內部資料
func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}

// TransactionFilter 查詢條件
type TransactionFilter struct {
	// AccountID 為 0 時代表全部帳戶
	AccountID int64
}

// Match 交易是否符合查詢條件
func (f TransactionFilter) Match(t *Transaction) bool {
	return f.AccountID == 0 || f.AccountID == t.AccountID
}
