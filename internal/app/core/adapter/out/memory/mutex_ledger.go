package memory

import (
	"context"
	"sync"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/fidalex-ledger/pkg/wal"
)

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	book: 帳本資料
//	mu: 保護 book 的讀寫鎖；寫入只發生在建立帳戶與交易提交的瞬間
//	accountLocks: 每個帳戶一把寫入鎖，涵蓋「讀餘額 -> 檢查 -> 寫入」整段流程
//
// 不同帳戶的交易不會互相等待檢查流程，只在提交 (分配 ID + 寫 WAL) 時排隊，
// 確保交易 ID 順序與 WAL 順序一致。
// 提交段包含 WAL 的 fsync，啟用 WAL 時整個帳本的寫入吞吐量受限於單次 fsync 延遲，
// 不同帳戶的提交也會在這裡依磁碟延遲排隊。
type MutexLedger struct {
	book         *book
	mu           sync.RWMutex
	accountLocks map[int64]*sync.Mutex
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	w: Write-Ahead Log 實例 (可為 nil，代表純記憶體)
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(w *wal.WAL) (*MutexLedger, error) {
	ledger := &MutexLedger{
		book:         newBook(w),
		accountLocks: make(map[int64]*sync.Mutex),
	}
	if err := ledger.book.recoverFromWAL(); err != nil {
		return nil, err
	}
	for id := range ledger.book.accounts {
		ledger.accountLocks[id] = &sync.Mutex{}
	}
	return ledger, nil
}

// CreateAccount 建立帳戶
// 唯一性檢查與寫入在同一把全域鎖內完成
func (m *MutexLedger) CreateAccount(ctx context.Context, acc *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.book.createAccount(acc); err != nil {
		return err
	}
	m.accountLocks[acc.ID] = &sync.Mutex{}
	return nil
}

// PostTransaction 處理交易請求 (每個帳戶一把鎖)
//
// 參數:
//
//	ctx: 上下文
//	tran: 交易請求物件，成功時填入 ID / CreatedAt / BalanceAfter
//
// 回傳:
//
//	error: ErrAccountNotFound / ErrInsufficientFunds / ErrInvalidAmount / ErrWALWriteFailed
func (m *MutexLedger) PostTransaction(ctx context.Context, tran *domain.Transaction) error {
	if err := tran.Validate(); err != nil {
		return err
	}

	m.mu.RLock()
	if ok, err := m.book.replay(tran); ok {
		m.mu.RUnlock()
		return err
	}
	lock, ok := m.accountLocks[tran.AccountID]
	acc := m.book.accounts[tran.AccountID]
	m.mu.RUnlock()
	if !ok {
		return domain.ErrAccountNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	// 1. 檢查：持有帳戶鎖期間沒有其他人能改這個帳戶的餘額
	if _, err := acc.BalanceAfter(tran.Type, tran.Amount); err != nil {
		return err
	}

	// 2. 提交：分配 ID、寫 WAL (含 fsync)、更新餘額與交易紀錄 (讀者看到的是一致的快照)
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok, err := m.book.replay(tran); ok {
		return err
	}
	return m.book.commitTransaction(tran)
}

// GetAccount 取得指定帳戶
func (m *MutexLedger) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.getAccount(accountID)
}

// ListAccounts 依建立順序列出所有帳戶
func (m *MutexLedger) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.listAccounts(), nil
}

// ListTransactions 依交易 ID 列出交易
func (m *MutexLedger) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.listTransactions(filter), nil
}

var _ usecase.Ledger = (*MutexLedger)(nil)
