package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/fidalex-ledger/pkg/postgres"
)

const (
	constraintExternalAccountID = "accounts_external_account_id_key"
	constraintReference         = "transactions_reference_key"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id                  BIGSERIAL PRIMARY KEY,
		name                VARCHAR(255) NOT NULL,
		external_account_id VARCHAR(20)  NOT NULL,
		account_type        VARCHAR(16)  NOT NULL,
		balance             NUMERIC(14,2) NOT NULL CHECK (balance >= 0),
		created_at          TIMESTAMPTZ  NOT NULL,
		last_transaction_at TIMESTAMPTZ,
		CONSTRAINT ` + constraintExternalAccountID + ` UNIQUE (external_account_id)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id            BIGSERIAL PRIMARY KEY,
		account_id    BIGINT NOT NULL REFERENCES accounts (id),
		amount        NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		balance_after NUMERIC(14,2) NOT NULL,
		type          VARCHAR(16)  NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		reference     UUID NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		CONSTRAINT ` + constraintReference + ` UNIQUE (reference)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions (account_id, id)`,
}

const (
	accountColumns     = `id, name, external_account_id, account_type, balance::text, created_at, last_transaction_at`
	transactionColumns = `id, account_id, amount::text, balance_after::text, type, description, reference::text, created_at`
)

// PostgresLedger 以 PostgreSQL 為儲存的帳本 (pgx)
type PostgresLedger struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{
		pool: pool,
		now: func() time.Time {
			// TIMESTAMPTZ 精度為微秒
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

// Migrate 建立資料表 (冪等)
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateAccount 建立帳戶，外部帳號重複時由唯一限制擋下
func (l *PostgresLedger) CreateAccount(ctx context.Context, acc *domain.Account) error {
	staged := acc.Clone()
	staged.CreatedAt = l.now()
	err := l.pool.QueryRow(ctx,
		`INSERT INTO accounts (name, external_account_id, account_type, balance, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5)
		 RETURNING id`,
		staged.Name, staged.ExternalAccountID, string(staged.Type), domain.FormatAmount(staged.Balance), staged.CreatedAt,
	).Scan(&staged.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err, constraintExternalAccountID) {
			return domain.ErrDuplicateAccount
		}
		return fmt.Errorf("insert account: %w", err)
	}
	*acc = *staged
	return nil
}

// PostTransaction 在同一個事務內：SELECT ... FOR UPDATE -> 檢查餘額 -> 更新 -> 寫交易紀錄
//
// 參數:
//
//	ctx: 上下文
//	tran: 交易請求物件，成功時填入 ID / CreatedAt / BalanceAfter
//
// 回傳:
//
//	error: ErrAccountNotFound / ErrInsufficientFunds / ErrInvalidAmount 或資料庫錯誤
func (l *PostgresLedger) PostTransaction(ctx context.Context, tran *domain.Transaction) error {
	if err := tran.Validate(); err != nil {
		return err
	}
	if done, err := l.findByReference(ctx, tran.Reference); err != nil {
		return err
	} else if done != nil {
		return replayInto(tran, done)
	}

	staged := tran.Clone()
	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		acc, err := scanAccount(tx.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, staged.AccountID))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		staged.CreatedAt = acc.NextTransactionTime(l.now())
		if err := acc.Apply(staged); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET balance = $1::numeric, last_transaction_at = $2 WHERE id = $3`,
			domain.FormatAmount(acc.Balance), acc.LastTransactionAt, acc.ID,
		); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		return tx.QueryRow(ctx,
			`INSERT INTO transactions (account_id, amount, balance_after, type, description, reference, created_at)
			 VALUES ($1, $2::numeric, $3::numeric, $4, $5, $6::uuid, $7)
			 RETURNING id`,
			staged.AccountID,
			domain.FormatAmount(staged.Amount),
			domain.FormatAmount(staged.BalanceAfter),
			staged.Type.String(),
			staged.Description,
			staged.Reference.String(),
			staged.CreatedAt,
		).Scan(&staged.ID)
	})
	if postgres.IsUniqueViolation(err, constraintReference) {
		// 同一個 Reference 被並行請求搶先寫入
		done, findErr := l.findByReference(ctx, tran.Reference)
		if findErr != nil {
			return findErr
		}
		if done == nil {
			return fmt.Errorf("reference %s vanished after conflict", tran.Reference)
		}
		return replayInto(tran, done)
	}
	if err != nil {
		if domain.IsCallerError(err) {
			return err
		}
		return fmt.Errorf("post transaction: %w", err)
	}
	*tran = *staged
	return nil
}

func replayInto(tran, done *domain.Transaction) error {
	cp, err := done.Replay(tran)
	if err != nil {
		return err
	}
	*tran = *cp
	return nil
}

func (l *PostgresLedger) findByReference(ctx context.Context, ref uuid.UUID) (*domain.Transaction, error) {
	tran, err := scanTransaction(l.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1::uuid`, ref.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return tran, nil
}

// GetAccount 取得帳戶
func (l *PostgresLedger) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	acc, err := scanAccount(l.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return acc, nil
}

// ListAccounts 依 ID 列出帳戶
func (l *PostgresLedger) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// ListTransactions 依 ID 列出交易
func (l *PostgresLedger) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter.AccountID != 0 {
		rows, err = l.pool.Query(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 ORDER BY id`, filter.AccountID)
	} else {
		rows, err = l.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
	}
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Transaction, 0)
	for rows.Next() {
		tran, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tran)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc      domain.Account
		accType  string
		balance  string
		lastTxAt *time.Time
	)
	if err := row.Scan(&acc.ID, &acc.Name, &acc.ExternalAccountID, &accType, &balance, &acc.CreatedAt, &lastTxAt); err != nil {
		return nil, err
	}
	var err error
	if acc.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("account %d balance %q: %w", acc.ID, balance, err)
	}
	acc.Type = domain.AccountType(accType)
	acc.CreatedAt = acc.CreatedAt.UTC()
	if lastTxAt != nil {
		acc.LastTransactionAt = lastTxAt.UTC()
	}
	return &acc, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tran         domain.Transaction
		amount       string
		balanceAfter string
		txType       string
		ref          string
	)
	if err := row.Scan(&tran.ID, &tran.AccountID, &amount, &balanceAfter, &txType, &tran.Description, &ref, &tran.CreatedAt); err != nil {
		return nil, err
	}
	return buildTransaction(tran, amount, balanceAfter, txType, ref)
}

// buildTransaction 把以文字讀出的欄位轉回領域型別
func buildTransaction(tran domain.Transaction, amount, balanceAfter, txType, ref string) (*domain.Transaction, error) {
	var err error
	if tran.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transaction %d amount %q: %w", tran.ID, amount, err)
	}
	if tran.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
		return nil, fmt.Errorf("transaction %d balance_after %q: %w", tran.ID, balanceAfter, err)
	}
	if tran.Type, err = domain.ParseTransactionType(txType); err != nil {
		return nil, fmt.Errorf("transaction %d: %w", tran.ID, err)
	}
	if tran.Reference, err = uuid.Parse(ref); err != nil {
		return nil, fmt.Errorf("transaction %d reference %q: %w", tran.ID, ref, err)
	}
	tran.CreatedAt = tran.CreatedAt.UTC()
	return &tran, nil
}

var _ usecase.Ledger = (*PostgresLedger)(nil)
