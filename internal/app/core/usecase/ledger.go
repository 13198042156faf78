package usecase

import (
	"context"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
)

// Ledger 是帳務系統的介面
// 所有實作 (memory / mysql / postgres) 必須保證：
//   - 同一帳戶的「讀餘額 -> 檢查 -> 寫入」為單一不可分割的步驟
//   - 任何錯誤都不會留下部分寫入的狀態
type Ledger interface {
	// CreateAccount 建立帳戶，成功時填入 acc.ID 與 acc.CreatedAt
	CreateAccount(ctx context.Context, acc *domain.Account) error
	// PostTransaction 不分 Deposit/Withdraw，直接看 tran.Type 決定
	// 成功時填入 tran.ID、tran.CreatedAt、tran.BalanceAfter
	PostTransaction(ctx context.Context, tran *domain.Transaction) error
	// GetAccount 取得帳戶
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	// ListAccounts 依建立順序列出帳戶
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	// ListTransactions 依交易 ID (建立順序) 列出交易
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error)
}

// EventPublisher 對外發佈帳本事件
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
	Close() error
}
