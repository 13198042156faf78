package grpc

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
	pb "github.com/JoeShih716/fidalex-ledger/proto"
)

// GrpcServer ledger.v1.LedgerService 的實作
//
// 欄位 (皆為 google.protobuf.Struct):
//
//	CreateAccount:     name, external_account_id, account_type, initial_balance -> account
//	AppendTransaction: account_id, amount, type, description, reference -> transaction
//	GetAccount:        account_id -> account
//	ListAccounts:      {} -> {accounts: [...]}
//	ListTransactions:  account_id (選填) -> {transactions: [...]}
//
// 金額一律為字串 ("150.00")，ID 為數字。
type GrpcServer struct {
	pb.UnimplementedLedgerServiceServer
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) CreateAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount := decimal.Zero
	if v := stringField(req, "initial_balance"); v != "" {
		var err error
		if amount, err = domain.ParseAmount(v); err != nil {
			return nil, toStatus(err)
		}
	}
	acc, err := s.core.CreateAccount(ctx, usecase.CreateAccountRequest{
		Name:              stringField(req, "name"),
		ExternalAccountID: stringField(req, "external_account_id"),
		AccountType:       stringField(req, "account_type"),
		InitialBalance:    amount,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(accountFields(acc))
}

func (s *GrpcServer) AppendTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := idField(req, "account_id", true)
	if err != nil {
		return nil, toStatus(err)
	}
	amount, err := domain.ParseAmount(stringField(req, "amount"))
	if err != nil {
		return nil, toStatus(err)
	}
	tran, err := s.core.AppendTransaction(ctx, usecase.AppendTransactionRequest{
		AccountID:   accountID,
		Amount:      amount,
		Type:        stringField(req, "type"),
		Description: stringField(req, "description"),
		Reference:   stringField(req, "reference"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(transactionFields(tran))
}

func (s *GrpcServer) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := idField(req, "account_id", true)
	if err != nil {
		return nil, toStatus(err)
	}
	acc, err := s.core.GetAccount(ctx, accountID)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(accountFields(acc))
}

func (s *GrpcServer) ListAccounts(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	accounts, err := s.core.ListAccounts(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	list := make([]any, 0, len(accounts))
	for _, acc := range accounts {
		list = append(list, accountFields(acc))
	}
	return structpb.NewStruct(map[string]any{"accounts": list})
}

func (s *GrpcServer) ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := idField(req, "account_id", false)
	if err != nil {
		return nil, toStatus(err)
	}
	trans, err := s.core.ListTransactions(ctx, domain.TransactionFilter{AccountID: accountID})
	if err != nil {
		return nil, toStatus(err)
	}
	list := make([]any, 0, len(trans))
	for _, tran := range trans {
		list = append(list, transactionFields(tran))
	}
	return structpb.NewStruct(map[string]any{"transactions": list})
}

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

// idField 讀取整數 ID，required 為 false 時缺欄位回傳 0
func idField(req *structpb.Struct, key string, required bool) (int64, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		if required {
			return 0, domain.ErrInvalidRequest
		}
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || n.NumberValue < 0 || n.NumberValue > 1<<53 {
		return 0, domain.ErrInvalidRequest
	}
	return int64(n.NumberValue), nil
}

func accountFields(acc *domain.Account) map[string]any {
	return map[string]any{
		"id":                  float64(acc.ID),
		"name":                acc.Name,
		"external_account_id": acc.ExternalAccountID,
		"account_type":        string(acc.Type),
		"balance":             domain.FormatAmount(acc.Balance),
		"created_at":          acc.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func transactionFields(tran *domain.Transaction) map[string]any {
	return map[string]any{
		"id":            float64(tran.ID),
		"account_id":    float64(tran.AccountID),
		"amount":        domain.FormatAmount(tran.Amount),
		"balance_after": domain.FormatAmount(tran.BalanceAfter),
		"type":          tran.Type.String(),
		"description":   tran.Description,
		"reference":     tran.Reference.String(),
		"created_at":    tran.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// toStatus 將領域錯誤轉成 gRPC status，基礎設施錯誤不外露細節
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrDuplicateAccount):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidAccountType),
		errors.Is(err, domain.ErrInvalidTransactionType),
		errors.Is(err, domain.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

var _ pb.LedgerServiceServer = (*GrpcServer)(nil)
