package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newUseCase(t *testing.T, opts ...usecase.Option) *usecase.CoreUseCase {
	t.Helper()
	ledger, err := memory.NewMutexLedger(nil)
	if err != nil {
		t.Fatal(err)
	}
	return usecase.NewCoreUseCase(ledger, opts...)
}

func TestCreateAccountAndAppend(t *testing.T) {
	pub := &recordingPublisher{}
	uc := newUseCase(t, usecase.WithPublisher(pub))
	ctx := context.Background()

	acc, err := uc.CreateAccount(ctx, usecase.CreateAccountRequest{
		Name:              " Ada ",
		ExternalAccountID: "EXT-1",
		AccountType:       "Savings",
		InitialBalance:    decimal.RequireFromString("100"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if acc.Name != "Ada" || acc.Type != domain.AccountTypeSavings {
		t.Fatalf("account not normalized: %+v", acc)
	}

	tran, err := uc.AppendTransaction(ctx, usecase.AppendTransactionRequest{
		AccountID: acc.ID,
		Amount:    decimal.RequireFromString("50"),
		Type:      "deposit",
	})
	if err != nil {
		t.Fatal(err)
	}
	if tran.Reference == uuid.Nil {
		t.Fatalf("reference not generated")
	}
	if got := domain.FormatAmount(tran.BalanceAfter); got != "150.00" {
		t.Fatalf("balance after=%s want 150.00", got)
	}

	if len(pub.events) != 2 {
		t.Fatalf("events=%d want 2", len(pub.events))
	}
	if pub.events[0].Type != domain.EventAccountOpened || pub.events[1].Type != domain.EventTransactionPosted {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
}

func TestRejectedRequestsDoNotPublish(t *testing.T) {
	pub := &recordingPublisher{}
	uc := newUseCase(t, usecase.WithPublisher(pub))
	ctx := context.Background()

	acc, err := uc.CreateAccount(ctx, usecase.CreateAccountRequest{
		Name: "Bob", ExternalAccountID: "EXT-2", AccountType: "current", InitialBalance: decimal.RequireFromString("10"),
	})
	if err != nil {
		t.Fatal(err)
	}
	pub.events = nil

	tests := []struct {
		name string
		req  usecase.AppendTransactionRequest
		want error
	}{
		{"unknown account", usecase.AppendTransactionRequest{AccountID: 42, Amount: decimal.NewFromInt(1), Type: "deposit"}, domain.ErrAccountNotFound},
		{"zero account id", usecase.AppendTransactionRequest{AccountID: 0, Amount: decimal.NewFromInt(1), Type: "deposit"}, domain.ErrAccountNotFound},
		{"bad type", usecase.AppendTransactionRequest{AccountID: acc.ID, Amount: decimal.NewFromInt(1), Type: "transfer"}, domain.ErrInvalidTransactionType},
		{"negative", usecase.AppendTransactionRequest{AccountID: acc.ID, Amount: decimal.NewFromInt(-1), Type: "deposit"}, domain.ErrInvalidAmount},
		{"three decimals", usecase.AppendTransactionRequest{AccountID: acc.ID, Amount: decimal.RequireFromString("1.005"), Type: "deposit"}, domain.ErrInvalidAmount},
		{"overdraw", usecase.AppendTransactionRequest{AccountID: acc.ID, Amount: decimal.NewFromInt(11), Type: "withdraw"}, domain.ErrInsufficientFunds},
		{"bad reference", usecase.AppendTransactionRequest{AccountID: acc.ID, Amount: decimal.NewFromInt(1), Type: "deposit", Reference: "nope"}, domain.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := uc.AppendTransaction(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err=%v want %v", err, tt.want)
			}
		})
	}

	_, err = uc.CreateAccount(ctx, usecase.CreateAccountRequest{
		Name: "Bob again", ExternalAccountID: "EXT-2", AccountType: "current",
	})
	if !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Fatalf("err=%v want ErrDuplicateAccount", err)
	}
	_, err = uc.CreateAccount(ctx, usecase.CreateAccountRequest{
		Name: "Eve", ExternalAccountID: "EXT-3", AccountType: "checking",
	})
	if !errors.Is(err, domain.ErrInvalidAccountType) {
		t.Fatalf("err=%v want ErrInvalidAccountType", err)
	}

	if len(pub.events) != 0 {
		t.Fatalf("rejected requests published %d events", len(pub.events))
	}
	got, _ := uc.GetAccount(ctx, acc.ID)
	if !got.Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("balance changed to %s", got.Balance)
	}
}

func TestPublishFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	pub := &recordingPublisher{err: errors.New("broker down")}
	uc := newUseCase(t, usecase.WithPublisher(pub), usecase.WithLogger(zap.New(core)))

	if _, err := uc.CreateAccount(context.Background(), usecase.CreateAccountRequest{
		Name: "Carol", ExternalAccountID: "EXT-4", AccountType: "savings",
	}); err != nil {
		t.Fatalf("publish failure leaked to caller: %v", err)
	}
	if n := logs.FilterMessage("publish event failed").Len(); n != 1 {
		t.Fatalf("publish failure logs=%d want 1", n)
	}
}

func TestListTransactionsFilter(t *testing.T) {
	uc := newUseCase(t)
	ctx := context.Background()

	a, _ := uc.CreateAccount(ctx, usecase.CreateAccountRequest{Name: "A", ExternalAccountID: "A", AccountType: "savings"})
	b, _ := uc.CreateAccount(ctx, usecase.CreateAccountRequest{Name: "B", ExternalAccountID: "B", AccountType: "savings"})
	for _, id := range []int64{a.ID, b.ID, a.ID} {
		if _, err := uc.AppendTransaction(ctx, usecase.AppendTransactionRequest{
			AccountID: id, Amount: decimal.NewFromInt(1), Type: "deposit",
		}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := uc.ListTransactions(ctx, domain.TransactionFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("all=%d err=%v", len(all), err)
	}
	onlyA, err := uc.ListTransactions(ctx, domain.TransactionFilter{AccountID: a.ID})
	if err != nil || len(onlyA) != 2 || onlyA[0].ID != 1 || onlyA[1].ID != 3 {
		t.Fatalf("onlyA=%+v err=%v", onlyA, err)
	}
	if _, err := uc.ListTransactions(ctx, domain.TransactionFilter{AccountID: 99}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("err=%v want ErrAccountNotFound", err)
	}

	accounts, _ := uc.ListAccounts(ctx)
	if len(accounts) != 2 || accounts[0].ID != a.ID || accounts[1].ID != b.ID {
		t.Fatalf("accounts not in creation order: %+v", accounts)
	}
}
