package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
)

type accountResponse struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	ExternalAccountID string    `json:"external_account_id"`
	AccountType       string    `json:"account_type"`
	Balance           string    `json:"balance"`
	CreatedAt         time.Time `json:"created_at"`
}

type transactionResponse struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	Description  string    `json:"description"`
	Reference    string    `json:"reference"`
	CreatedAt    time.Time `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newAccountResponse(acc *domain.Account) accountResponse {
	return accountResponse{
		ID:                acc.ID,
		Name:              acc.Name,
		ExternalAccountID: acc.ExternalAccountID,
		AccountType:       string(acc.Type),
		Balance:           domain.FormatAmount(acc.Balance),
		CreatedAt:         acc.CreatedAt.UTC(),
	}
}

func newTransactionResponse(tran *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:           tran.ID,
		AccountID:    tran.AccountID,
		Type:         tran.Type.String(),
		Amount:       domain.FormatAmount(tran.Amount),
		BalanceAfter: domain.FormatAmount(tran.BalanceAfter),
		Description:  tran.Description,
		Reference:    tran.Reference.String(),
		CreatedAt:    tran.CreatedAt.UTC(),
	}
}

// writeJSON 統一輸出成功回應
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor 領域錯誤對應的 HTTP 狀態碼，其他錯誤一律 500
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDuplicateAccount),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidAccountType),
		errors.Is(err, domain.ErrInvalidTransactionType),
		errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeErr 統一輸出錯誤，500 不回傳內部細節
func writeErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, code, errorResponse{Error: msg})
}
