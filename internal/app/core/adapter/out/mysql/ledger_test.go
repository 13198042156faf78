package mysql

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
)

func TestAccountRowMapping(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	acc := &domain.Account{
		ID:                7,
		Name:              "Ada",
		ExternalAccountID: "EXT-7",
		Type:              domain.AccountTypeCurrent,
		Balance:           decimal.RequireFromString("12.50"),
		CreatedAt:         created,
	}
	row := fromDomainAccount(acc)
	if row.LastTransactionAt != nil {
		t.Fatalf("zero LastTransactionAt should map to NULL")
	}
	if row.AccountType != "current" {
		t.Fatalf("account_type=%q", row.AccountType)
	}

	back := row.toDomain()
	if back.ID != 7 || back.ExternalAccountID != "EXT-7" || !back.Balance.Equal(acc.Balance) || !back.CreatedAt.Equal(created) {
		t.Fatalf("round trip mismatch: %+v", back)
	}

	last := created.Add(time.Minute)
	acc.LastTransactionAt = last
	row = fromDomainAccount(acc)
	if row.LastTransactionAt == nil || !row.LastTransactionAt.Equal(last) {
		t.Fatalf("LastTransactionAt not mapped")
	}
}

func TestTransactionRowMapping(t *testing.T) {
	tran := &domain.Transaction{
		ID:           3,
		AccountID:    1,
		Amount:       decimal.RequireFromString("5.25"),
		BalanceAfter: decimal.RequireFromString("10.00"),
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Description:  "salary",
		Reference:    uuid.New(),
		Type:         domain.TransactionTypeWithdraw,
	}
	row := fromDomainTransaction(tran)
	if row.Type != "withdraw" || row.Reference != tran.Reference.String() {
		t.Fatalf("row=%+v", row)
	}
	back, err := row.toDomain()
	if err != nil {
		t.Fatal(err)
	}
	if back.ID != tran.ID || back.AccountID != tran.AccountID || back.Type != tran.Type ||
		!back.Amount.Equal(tran.Amount) || !back.BalanceAfter.Equal(tran.BalanceAfter) ||
		!back.CreatedAt.Equal(tran.CreatedAt) || back.Reference != tran.Reference || back.Description != tran.Description {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, tran)
	}

	row.Type = "transfer"
	if _, err := row.toDomain(); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	row.Type = "deposit"
	row.Reference = "not-a-uuid"
	if _, err := row.toDomain(); err == nil {
		t.Fatalf("expected error for bad reference")
	}
}

func TestUTCNowTruncatesToMicroseconds(t *testing.T) {
	now := utcNow()
	if now.Location() != time.UTC || now.Nanosecond()%1000 != 0 {
		t.Fatalf("now=%v not truncated UTC", now)
	}
}

func TestReplayIntoChecksRequest(t *testing.T) {
	ref := uuid.New()
	done := &domain.Transaction{ID: 3, AccountID: 1, Amount: decimal.RequireFromString("5.00"),
		BalanceAfter: decimal.RequireFromString("5.00"), Type: domain.TransactionTypeDeposit, Reference: ref}

	req := &domain.Transaction{AccountID: 1, Amount: decimal.RequireFromString("5"), Type: domain.TransactionTypeDeposit, Reference: ref}
	if err := replayInto(req, done); err != nil || req.ID != 3 || !req.BalanceAfter.Equal(done.BalanceAfter) {
		t.Fatalf("replay=%+v err=%v", req, err)
	}

	other := &domain.Transaction{AccountID: 2, Amount: decimal.RequireFromString("999"), Type: domain.TransactionTypeWithdraw, Reference: ref}
	if err := replayInto(other, done); !errors.Is(err, domain.ErrReferenceReused) {
		t.Fatalf("err=%v want ErrReferenceReused", err)
	}
	if other.ID != 0 {
		t.Fatalf("rejected request was overwritten: %+v", other)
	}
}
