package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/fidalex-ledger/pkg/mysql"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID                int64           `gorm:"primaryKey;autoIncrement"`
	Name              string          `gorm:"size:255;not null"`
	ExternalAccountID string          `gorm:"column:external_account_id;size:20;not null;uniqueIndex"`
	AccountType       string          `gorm:"column:account_type;size:16;not null"`
	Balance           decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CreatedAt         time.Time       `gorm:"type:datetime(6);not null"`
	LastTransactionAt *time.Time      `gorm:"type:datetime(6)"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	AccountID    int64           `gorm:"not null;index"`
	Account      *sqlAccount     `gorm:"foreignKey:AccountID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Amount       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Type         string          `gorm:"size:16;not null"`
	Description  string          `gorm:"size:255"`
	Reference    string          `gorm:"type:char(36);not null;uniqueIndex"`
	CreatedAt    time.Time       `gorm:"type:datetime(6);not null"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func fromDomainAccount(a *domain.Account) sqlAccount {
	row := sqlAccount{
		ID:                a.ID,
		Name:              a.Name,
		ExternalAccountID: a.ExternalAccountID,
		AccountType:       string(a.Type),
		Balance:           a.Balance,
		CreatedAt:         a.CreatedAt,
	}
	if !a.LastTransactionAt.IsZero() {
		at := a.LastTransactionAt
		row.LastTransactionAt = &at
	}
	return row
}

func (r *sqlAccount) toDomain() *domain.Account {
	acc := &domain.Account{
		ID:                r.ID,
		Name:              r.Name,
		ExternalAccountID: r.ExternalAccountID,
		Type:              domain.AccountType(r.AccountType),
		Balance:           r.Balance,
		CreatedAt:         r.CreatedAt.UTC(),
	}
	if r.LastTransactionAt != nil {
		acc.LastTransactionAt = r.LastTransactionAt.UTC()
	}
	return acc
}

func fromDomainTransaction(t *domain.Transaction) sqlTransaction {
	return sqlTransaction{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		Type:         t.Type.String(),
		Description:  t.Description,
		Reference:    t.Reference.String(),
		CreatedAt:    t.CreatedAt,
	}
}

func (r *sqlTransaction) toDomain() (*domain.Transaction, error) {
	txType, err := domain.ParseTransactionType(r.Type)
	if err != nil {
		return nil, fmt.Errorf("transaction %d: %w", r.ID, err)
	}
	ref, err := uuid.Parse(r.Reference)
	if err != nil {
		return nil, fmt.Errorf("transaction %d: bad reference: %w", r.ID, err)
	}
	return &domain.Transaction{
		ID:           r.ID,
		AccountID:    r.AccountID,
		Amount:       r.Amount,
		BalanceAfter: r.BalanceAfter,
		CreatedAt:    r.CreatedAt.UTC(),
		Description:  r.Description,
		Reference:    ref,
		Type:         txType,
	}, nil
}

// errReplayed Reference 已被另一個並行請求寫入
var errReplayed = errors.New("reference already processed")

// MySQLLedger 以 MySQL 為儲存的帳本
// 餘額檢查與寫入在同一個 DB 事務內，並以 SELECT ... FOR UPDATE 鎖住帳戶列
type MySQLLedger struct {
	client *mysql.Client
	now    func() time.Time
}

func NewMySQLLedger(client *mysql.Client) *MySQLLedger {
	return &MySQLLedger{
		client: client,
		now:    utcNow,
	}
}

// utcNow 資料庫欄位為 datetime(6)，先截到微秒讓回傳值與寫入值一致
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Migrate 建立 / 更新資料表
func (ledger *MySQLLedger) Migrate(ctx context.Context) error {
	return ledger.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{})
}

// CreateAccount 建立帳戶，外部帳號重複時由唯一索引擋下
func (ledger *MySQLLedger) CreateAccount(ctx context.Context, acc *domain.Account) error {
	staged := acc.Clone()
	staged.CreatedAt = ledger.now()
	row := fromDomainAccount(staged)
	if err := ledger.client.DB().WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateAccount
		}
		return fmt.Errorf("insert account: %w", err)
	}
	staged.ID = row.ID
	*acc = *staged
	return nil
}

// PostTransaction 在同一個 DB 事務內：鎖帳戶列 -> 檢查餘額 -> 更新餘額 -> 寫交易紀錄
//
// 參數:
//
//	ctx: 上下文
//	tran: 交易請求物件，成功時填入 ID / CreatedAt / BalanceAfter
//
// 回傳:
//
//	error: ErrAccountNotFound / ErrInsufficientFunds / ErrInvalidAmount 或資料庫錯誤
func (ledger *MySQLLedger) PostTransaction(ctx context.Context, tran *domain.Transaction) error {
	if err := tran.Validate(); err != nil {
		return err
	}
	db := ledger.client.DB().WithContext(ctx)

	if done, err := ledger.findByReference(db, tran.Reference); err != nil {
		return err
	} else if done != nil {
		return replayInto(tran, done)
	}

	staged := tran.Clone()
	err := db.Transaction(func(tx *gorm.DB) error {
		// 取得鎖定帳號 悲觀鎖
		var row sqlAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", staged.AccountID).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		acc := row.toDomain()
		staged.CreatedAt = acc.NextTransactionTime(ledger.now())
		if err := acc.Apply(staged); err != nil {
			return err
		}

		if err := tx.Model(&sqlAccount{}).
			Where("id = ?", acc.ID).
			Updates(map[string]any{
				"balance":             acc.Balance,
				"last_transaction_at": acc.LastTransactionAt,
			}).Error; err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		record := fromDomainTransaction(staged)
		if err := tx.Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errReplayed
			}
			return fmt.Errorf("insert transaction: %w", err)
		}
		staged.ID = record.ID
		return nil
	})
	if errors.Is(err, errReplayed) {
		done, findErr := ledger.findByReference(db, tran.Reference)
		if findErr != nil {
			return findErr
		}
		if done == nil {
			return fmt.Errorf("reference %s vanished after conflict", tran.Reference)
		}
		return replayInto(tran, done)
	}
	if err != nil {
		return err
	}
	*tran = *staged
	return nil
}

// replayInto 以已入帳的交易回應重送的請求
func replayInto(tran, done *domain.Transaction) error {
	cp, err := done.Replay(tran)
	if err != nil {
		return err
	}
	*tran = *cp
	return nil
}

func (ledger *MySQLLedger) findByReference(db *gorm.DB, ref uuid.UUID) (*domain.Transaction, error) {
	var row sqlTransaction
	err := db.Where("reference = ?", ref.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return row.toDomain()
}

// GetAccount 取得帳戶
func (ledger *MySQLLedger) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	var row sqlAccount
	err := ledger.client.DB().WithContext(ctx).Where("id = ?", accountID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return row.toDomain(), nil
}

// ListAccounts 依 ID 列出帳戶
func (ledger *MySQLLedger) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	var rows []sqlAccount
	if err := ledger.client.DB().WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// ListTransactions 依 ID 列出交易
func (ledger *MySQLLedger) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	query := ledger.client.DB().WithContext(ctx).Order("id ASC")
	if filter.AccountID != 0 {
		query = query.Where("account_id = ?", filter.AccountID)
	}
	var rows []sqlTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		tran, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, tran)
	}
	return out, nil
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
