package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
)

// CreateAccountRequest 建立帳戶請求
type CreateAccountRequest struct {
	Name              string
	ExternalAccountID string
	AccountType       string
	InitialBalance    decimal.Decimal
}

// Validate 在任何帳本變更前檢查欄位，並轉換成 domain.Account
func (r CreateAccountRequest) Validate() (*domain.Account, error) {
	accType, err := domain.ParseAccountType(r.AccountType)
	if err != nil {
		return nil, err
	}
	return domain.NewAccount(r.Name, r.ExternalAccountID, accType, r.InitialBalance)
}

// AppendTransactionRequest 新增交易請求
type AppendTransactionRequest struct {
	AccountID   int64
	Amount      decimal.Decimal
	Type        string
	Description string
	// Reference 選填，空字串時自動產生
	Reference string
}

// Validate 在任何帳本變更前檢查欄位，並轉換成 domain.Transaction
func (r AppendTransactionRequest) Validate() (*domain.Transaction, error) {
	if r.AccountID <= 0 {
		return nil, domain.ErrAccountNotFound
	}
	txType, err := domain.ParseTransactionType(r.Type)
	if err != nil {
		return nil, err
	}
	ref := uuid.New()
	if s := strings.TrimSpace(r.Reference); s != "" {
		if ref, err = uuid.Parse(s); err != nil {
			return nil, domain.ErrInvalidRequest
		}
	}
	tran := &domain.Transaction{
		AccountID:   r.AccountID,
		Amount:      r.Amount,
		Description: strings.TrimSpace(r.Description),
		Reference:   ref,
		Type:        txType,
	}
	if err := tran.Validate(); err != nil {
		return nil, err
	}
	return tran, nil
}

// CoreUseCase 是核心業務邏輯層
type CoreUseCase struct {
	ledger    Ledger
	publisher EventPublisher
	logger    *zap.Logger
}

// Option 設定 CoreUseCase 的選項
type Option func(*CoreUseCase)

// WithPublisher 設定事件發佈器
func WithPublisher(p EventPublisher) Option {
	return func(c *CoreUseCase) {
		c.publisher = p
	}
}

// WithLogger 設定 logger
func WithLogger(l *zap.Logger) Option {
	return func(c *CoreUseCase) {
		c.logger = l
	}
}

func NewCoreUseCase(ledger Ledger, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		ledger: ledger,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateAccount 建立帳戶
//
// 參數:
//
//	ctx: 上下文
//	req: 建立帳戶請求
//
// 回傳:
//
//	*domain.Account: 新帳戶 (複本)
//	error: ErrDuplicateAccount / ErrInvalidAmount / ErrInvalidAccountType / ErrInvalidRequest 或基礎設施錯誤
func (c *CoreUseCase) CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.Account, error) {
	acc, err := req.Validate()
	if err != nil {
		c.logRejected("create account rejected", err, zap.String("external_account_id", req.ExternalAccountID))
		return nil, err
	}
	if err := c.ledger.CreateAccount(ctx, acc); err != nil {
		c.logRejected("create account failed", err, zap.String("external_account_id", acc.ExternalAccountID))
		return nil, err
	}
	c.logger.Info("account created",
		zap.Int64("account_id", acc.ID),
		zap.String("external_account_id", acc.ExternalAccountID),
		zap.String("balance", domain.FormatAmount(acc.Balance)))
	c.publish(ctx, domain.NewAccountOpenedEvent(acc))
	return acc, nil
}

// AppendTransaction 新增一筆存款或提款
//
// 參數:
//
//	ctx: 上下文
//	req: 交易請求
//
// 回傳:
//
//	*domain.Transaction: 已入帳的交易
//	error: ErrAccountNotFound / ErrInvalidAmount / ErrInsufficientFunds / ErrInvalidTransactionType 或基礎設施錯誤
func (c *CoreUseCase) AppendTransaction(ctx context.Context, req AppendTransactionRequest) (*domain.Transaction, error) {
	tran, err := req.Validate()
	if err != nil {
		c.logRejected("transaction rejected", err, zap.Int64("account_id", req.AccountID))
		return nil, err
	}
	if err := c.ledger.PostTransaction(ctx, tran); err != nil {
		c.logRejected("transaction failed", err,
			zap.Int64("account_id", tran.AccountID),
			zap.Stringer("type", tran.Type),
			zap.String("amount", domain.FormatAmount(tran.Amount)))
		return nil, err
	}
	c.logger.Info("transaction posted",
		zap.Int64("transaction_id", tran.ID),
		zap.Int64("account_id", tran.AccountID),
		zap.Stringer("type", tran.Type),
		zap.String("amount", domain.FormatAmount(tran.Amount)),
		zap.String("balance_after", domain.FormatAmount(tran.BalanceAfter)))
	c.publish(ctx, domain.NewTransactionPostedEvent(tran))
	return tran, nil
}

// GetAccount 取得帳戶
func (c *CoreUseCase) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	return c.ledger.GetAccount(ctx, accountID)
}

// ListAccounts 列出所有帳戶 (建立順序)
func (c *CoreUseCase) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return c.ledger.ListAccounts(ctx)
}

// ListTransactions 列出交易 (建立順序)，指定帳戶時會先確認帳戶存在
func (c *CoreUseCase) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	if filter.AccountID != 0 {
		if _, err := c.ledger.GetAccount(ctx, filter.AccountID); err != nil {
			return nil, err
		}
	}
	return c.ledger.ListTransactions(ctx, filter)
}

// publish 事件發佈失敗只記錄，不回滾帳本
func (c *CoreUseCase) publish(ctx context.Context, event domain.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Error("publish event failed",
			zap.String("event", event.Type),
			zap.String("key", event.Key),
			zap.Error(err))
	}
}

func (c *CoreUseCase) logRejected(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if domain.IsCallerError(err) {
		c.logger.Info(msg, fields...)
		return
	}
	c.logger.Error(msg, fields...)
}
