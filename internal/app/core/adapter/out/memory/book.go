package memory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/pkg/wal"
)

const (
	opAccountCreated    = "account_created"
	opTransactionPosted = "transaction_posted"
)

// walRecord WAL 中的一筆記錄
type walRecord struct {
	Op          string              `json:"op"`
	Account     *domain.Account     `json:"account,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

// book 帳本資料本體，本身不做任何同步，由 MutexLedger / LMAXLedger 負責
//
// 結構:
//
//	accounts: 帳戶 ID -> 帳戶 (ID 從 1 開始連續分配，所以 ID 順序即建立順序)
//	byExternal: 外部帳號 -> 帳戶 ID，用於唯一性檢查
//	history: 全部交易，依交易 ID 排序
//	processed: 已處理過的 Reference
type book struct {
	accounts   map[int64]*domain.Account
	ordered    []*domain.Account
	byExternal map[string]int64
	history    []*domain.Transaction
	processed  map[uuid.UUID]*domain.Transaction

	lastAccountID     int64
	lastTransactionID int64

	wal *wal.WAL
	now func() time.Time
}

func newBook(w *wal.WAL) *book {
	return &book{
		accounts:   make(map[int64]*domain.Account),
		byExternal: make(map[string]int64),
		processed:  make(map[uuid.UUID]*domain.Transaction),
		wal:        w,
		now:        time.Now,
	}
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態 (只在建構時呼叫，單執行緒)
//
// 回傳:
//
//	error: 恢復過程錯誤 (記錄無法解析、或重放結果與記錄不一致)
func (b *book) recoverFromWAL() error {
	if b.wal == nil {
		return nil
	}
	return b.wal.ReadAll(func(raw json.RawMessage) error {
		var rec walRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		switch {
		case rec.Op == opAccountCreated && rec.Account != nil:
			if _, dup := b.byExternal[rec.Account.ExternalAccountID]; dup {
				return fmt.Errorf("wal replay: %w: %s", domain.ErrDuplicateAccount, rec.Account.ExternalAccountID)
			}
			b.insertAccount(rec.Account)
			return nil
		case rec.Op == opTransactionPosted && rec.Transaction != nil:
			return b.applyTransaction(rec.Transaction)
		default:
			return fmt.Errorf("wal replay: unknown record %q", rec.Op)
		}
	})
}

// createAccount 檢查唯一性、分配 ID、寫入 WAL 後再放進帳本
// 失敗時帳本不變
func (b *book) createAccount(acc *domain.Account) error {
	if _, dup := b.byExternal[acc.ExternalAccountID]; dup {
		return domain.ErrDuplicateAccount
	}
	staged := acc.Clone()
	staged.ID = b.lastAccountID + 1
	staged.CreatedAt = b.now()

	if b.wal != nil {
		if err := b.wal.Write(walRecord{Op: opAccountCreated, Account: staged}); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
		}
	}
	b.insertAccount(staged.Clone())
	*acc = *staged
	return nil
}

func (b *book) insertAccount(acc *domain.Account) {
	b.accounts[acc.ID] = acc
	b.ordered = append(b.ordered, acc)
	b.byExternal[acc.ExternalAccountID] = acc.ID
	if acc.ID > b.lastAccountID {
		b.lastAccountID = acc.ID
	}
}

// replay 若 tran.Reference 已處理過，將原交易填回 tran 並回傳 true
// 原交易與請求內容不符時回傳 ErrReferenceReused
func (b *book) replay(tran *domain.Transaction) (bool, error) {
	done, ok := b.processed[tran.Reference]
	if !ok {
		return false, nil
	}
	cp, err := done.Replay(tran)
	if err != nil {
		return true, err
	}
	*tran = *cp
	return true, nil
}

// commitTransaction 分配 ID 與時間、寫入 WAL、最後套用到帳戶
// 呼叫端必須持有該帳戶的寫入權
func (b *book) commitTransaction(tran *domain.Transaction) error {
	acc, ok := b.accounts[tran.AccountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	next, err := acc.BalanceAfter(tran.Type, tran.Amount)
	if err != nil {
		return err
	}

	staged := tran.Clone()
	staged.ID = b.lastTransactionID + 1
	staged.CreatedAt = acc.NextTransactionTime(b.now())
	staged.BalanceAfter = next

	// 1. 寫入 WAL (Critical Path)
	if b.wal != nil {
		if err := b.wal.Write(walRecord{Op: opTransactionPosted, Transaction: staged}); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
		}
	}

	// 2. 更新記憶體
	if err := b.applyTransaction(staged); err != nil {
		return err
	}
	*tran = *staged
	return nil
}

// applyTransaction 套用一筆已分配 ID 的交易，並確認餘額與記錄一致
func (b *book) applyTransaction(tran *domain.Transaction) error {
	acc, ok := b.accounts[tran.AccountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	next, err := acc.BalanceAfter(tran.Type, tran.Amount)
	if err != nil {
		return err
	}
	if !next.Equal(tran.BalanceAfter) {
		return fmt.Errorf("ledger inconsistency on transaction %d: recorded balance %s, computed %s",
			tran.ID, tran.BalanceAfter, next)
	}
	stored := tran.Clone()
	if err := acc.Apply(stored); err != nil {
		return err
	}
	b.history = append(b.history, stored)
	b.processed[stored.Reference] = stored
	if stored.ID > b.lastTransactionID {
		b.lastTransactionID = stored.ID
	}
	return nil
}

func (b *book) getAccount(accountID int64) (*domain.Account, error) {
	acc, ok := b.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (b *book) listAccounts() []*domain.Account {
	out := make([]*domain.Account, 0, len(b.ordered))
	for _, acc := range b.ordered {
		out = append(out, acc.Clone())
	}
	return out
}

func (b *book) listTransactions(filter domain.TransactionFilter) []*domain.Transaction {
	out := make([]*domain.Transaction, 0)
	for _, tran := range b.history {
		if filter.Match(tran) {
			out = append(out, tran.Clone())
		}
	}
	return out
}
