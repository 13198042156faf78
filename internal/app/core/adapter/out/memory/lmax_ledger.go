package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/fidalex-ledger/pkg/wal"
)

// ErrLedgerStopped 核心引擎已停止 (或尚未 Start)
var ErrLedgerStopped = errors.New("ledger stopped")

// command 放上輸送帶的指令，fn 只會在核心迴圈內執行
type command struct {
	fn     func(b *book) error
	result chan error // 讓呼叫端等這個 channel
}

// LMAXLedger 單一寫入者帳本
// 所有讀寫都在同一個 goroutine 依序執行，因此 book 完全不需要鎖
type LMAXLedger struct {
	book *book
	// 輸送帶 負責接收指令
	commands chan *command
	// Pool 減少 GC 壓力
	commandPool sync.Pool
	// stopped 在核心迴圈結束時關閉
	stopped chan struct{}
	started atomic.Bool
	once    sync.Once
}

// NewLMAXLedger 建立一個新的 LMAXLedger 實例，需呼叫 Start 後才能使用
//
// 參數:
//
//	w: Write-Ahead Log 實例 (可為 nil)
//	bufferSize: 輸送帶容量
//
// 回傳:
//
//	*LMAXLedger: LMAXLedger 實例
//	error: 初始化錯誤
func NewLMAXLedger(w *wal.WAL, bufferSize int) (*LMAXLedger, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	ledger := &LMAXLedger{
		book:     newBook(w),
		commands: make(chan *command, bufferSize),
		stopped:  make(chan struct{}),
		commandPool: sync.Pool{
			New: func() interface{} {
				return &command{result: make(chan error, 1)}
			},
		},
	}

	// 在啟動前先恢復資料
	if err := ledger.book.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// Start 啟動核心引擎 (非同步)，ctx 取消後會處理完輸送帶上剩下的指令再停止
func (l *LMAXLedger) Start(ctx context.Context) {
	l.once.Do(func() {
		l.started.Store(true)
		go l.run(ctx)
	})
}

// Done 核心迴圈結束時關閉
func (l *LMAXLedger) Done() <-chan struct{} {
	return l.stopped
}

func (l *LMAXLedger) run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的指令處理完
			l.drain()
			return
		case cmd := <-l.commands:
			cmd.result <- cmd.fn(l.book)
		}
	}
}

func (l *LMAXLedger) drain() {
	for {
		select {
		case cmd := <-l.commands:
			cmd.result <- cmd.fn(l.book)
		default:
			return
		}
	}
}

// submit 放入輸送帶並等待結果
// PostTransaction(等待) -> Channel -> Run Loop (核心) -> WAL -> Map Update -> Result Channel -> PostTransaction(收到結果)
// 尚未 Start 時沒有人消費輸送帶，直接回傳 ErrLedgerStopped
func (l *LMAXLedger) submit(ctx context.Context, fn func(b *book) error) error {
	if !l.started.Load() {
		return ErrLedgerStopped
	}
	cmd := l.commandPool.Get().(*command)
	cmd.fn = fn

	select {
	case l.commands <- cmd:
	case <-l.stopped:
		l.commandPool.Put(cmd)
		return ErrLedgerStopped
	case <-ctx.Done():
		l.commandPool.Put(cmd)
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		cmd.fn = nil
		l.commandPool.Put(cmd)
		return err
	case <-l.stopped:
		// 迴圈結束前處理過的指令，結果一定已經在 channel 裡
		select {
		case err := <-cmd.result:
			return err
		default:
			return ErrLedgerStopped
		}
	case <-ctx.Done():
		// 指令已送出，仍可能被執行；cmd 不放回 Pool，避免之後被重複使用
		return ctx.Err()
	}
}

// CreateAccount 建立帳戶
func (l *LMAXLedger) CreateAccount(ctx context.Context, acc *domain.Account) error {
	staged := acc.Clone()
	err := l.submit(ctx, func(b *book) error {
		return b.createAccount(staged)
	})
	if err != nil {
		return err
	}
	*acc = *staged
	return nil
}

// PostTransaction 接收交易請求
//
// 參數:
//
//	ctx: 上下文
//	tran: 交易請求物件
//
// 回傳:
//
//	error: 處理錯誤
func (l *LMAXLedger) PostTransaction(ctx context.Context, tran *domain.Transaction) error {
	if err := tran.Validate(); err != nil {
		return err
	}
	staged := tran.Clone()
	err := l.submit(ctx, func(b *book) error {
		// Idempotency Check (Thread Safe in Loop)
		if ok, err := b.replay(staged); ok {
			return err
		}
		return b.commitTransaction(staged)
	})
	if err != nil {
		return err
	}
	*tran = *staged
	return nil
}

// GetAccount 取得指定帳戶
func (l *LMAXLedger) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	var acc *domain.Account
	err := l.submit(ctx, func(b *book) error {
		var err error
		acc, err = b.getAccount(accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// ListAccounts 依建立順序列出所有帳戶
func (l *LMAXLedger) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	var out []*domain.Account
	err := l.submit(ctx, func(b *book) error {
		out = b.listAccounts()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListTransactions 依交易 ID 列出交易
func (l *LMAXLedger) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	err := l.submit(ctx, func(b *book) error {
		out = b.listTransactions(filter)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ usecase.Ledger = (*LMAXLedger)(nil)
