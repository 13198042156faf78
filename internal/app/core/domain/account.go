package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType 帳戶類型
type AccountType string

const (
	AccountTypeSavings AccountType = "savings"
	AccountTypeCurrent AccountType = "current"
)

// MaxExternalAccountIDLength 外部帳號長度上限 (對應 VARCHAR(20))
const MaxExternalAccountIDLength = 20

// ParseAccountType 解析帳戶類型字串 (不分大小寫)
func ParseAccountType(s string) (AccountType, error) {
	switch AccountType(strings.ToLower(strings.TrimSpace(s))) {
	case AccountTypeSavings:
		return AccountTypeSavings, nil
	case AccountTypeCurrent:
		return AccountTypeCurrent, nil
	default:
		return "", ErrInvalidAccountType
	}
}

type Account struct {
	ID                int64
	Name              string
	ExternalAccountID string
	Type              AccountType
	Balance           decimal.Decimal
	CreatedAt         time.Time
	// LastTransactionAt: 最後一筆交易時間，確保同帳戶的交易時間不倒退
	LastTransactionAt time.Time
}

// NewAccount 建立並驗證一個尚未分配 ID 的帳戶
//
// 參數:
//
//	name: 顯示名稱
//	externalID: 外部帳號 (全系統唯一)
//	accountType: 帳戶類型
//	initialBalance: 初始餘額 (>= 0)
//
// 回傳:
//
//	*Account: 帳戶
//	error: 驗證錯誤
func NewAccount(name, externalID string, accountType AccountType, initialBalance decimal.Decimal) (*Account, error) {
	name = strings.TrimSpace(name)
	externalID = strings.TrimSpace(externalID)
	if name == "" || externalID == "" || len(externalID) > MaxExternalAccountIDLength {
		return nil, ErrInvalidRequest
	}
	parsedType, err := ParseAccountType(string(accountType))
	if err != nil {
		return nil, err
	}
	if err := ValidateBalance(initialBalance); err != nil {
		return nil, err
	}
	return &Account{
		Name:              name,
		ExternalAccountID: externalID,
		Type:              parsedType,
		Balance:           initialBalance,
	}, nil
}

// BalanceAfter 計算交易後餘額，不修改帳戶
func (a *Account) BalanceAfter(t TransactionType, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	switch t {
	case TransactionTypeDeposit:
		next := a.Balance.Add(amount)
		if err := ValidateBalance(next); err != nil {
			return decimal.Zero, err
		}
		return next, nil
	case TransactionTypeWithdraw:
		if a.Balance.LessThan(amount) {
			return decimal.Zero, ErrInsufficientFunds
		}
		return a.Balance.Sub(amount), nil
	default:
		return decimal.Zero, ErrInvalidTransactionType
	}
}

// NextTransactionTime 回傳不早於上一筆交易的時間 (系統時鐘回撥時沿用上一筆時間)
func (a *Account) NextTransactionTime(now time.Time) time.Time {
	if now.Before(a.LastTransactionAt) {
		return a.LastTransactionAt
	}
	return now
}

// Apply 將交易套用到帳戶上，失敗時帳戶與交易皆不變
// 成功時會填入 tran.BalanceAfter
func (a *Account) Apply(tran *Transaction) error {
	next, err := a.BalanceAfter(tran.Type, tran.Amount)
	if err != nil {
		return err
	}
	a.Balance = next
	a.LastTransactionAt = tran.CreatedAt
	tran.BalanceAfter = next
	return nil
}

// Clone 回傳複本
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}
