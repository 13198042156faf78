package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/domain"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
)

const maxBodyBytes = 1 << 20

// Handler 提供 REST 介面，只負責解析請求、呼叫 usecase、輸出 JSON
type Handler struct {
	core *usecase.CoreUseCase
}

func NewHandler(core *usecase.CoreUseCase) *Handler {
	return &Handler{core: core}
}

// createAccountBody 金額可為 JSON 字串或數字，都以十進位解析，不經過 float
type createAccountBody struct {
	Name              string          `json:"name"`
	ExternalAccountID string          `json:"external_account_id"`
	AccountType       string          `json:"account_type"`
	InitialBalance    decimal.Decimal `json:"initial_balance"`
}

type appendTransactionBody struct {
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

// createAccount POST /accounts
func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var body createAccountBody
	if err := decodeBody(w, r, &body); err != nil {
		writeErr(w, err)
		return
	}
	acc, err := h.core.CreateAccount(r.Context(), usecase.CreateAccountRequest{
		Name:              body.Name,
		ExternalAccountID: body.ExternalAccountID,
		AccountType:       body.AccountType,
		InitialBalance:    body.InitialBalance,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountResponse(acc))
}

// listAccounts GET /accounts
func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.core.ListAccounts(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, newAccountResponse(acc))
	}
	writeJSON(w, http.StatusOK, out)
}

// getAccount GET /accounts/{id}
func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, domain.ErrAccountNotFound)
		return
	}
	acc, err := h.core.GetAccount(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(acc))
}

// accountTransactions GET /accounts/{id}/transactions
func (h *Handler) accountTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, domain.ErrAccountNotFound)
		return
	}
	h.writeTransactions(w, r, domain.TransactionFilter{AccountID: id})
}

// appendTransaction POST /transactions
func (h *Handler) appendTransaction(w http.ResponseWriter, r *http.Request) {
	var body appendTransactionBody
	if err := decodeBody(w, r, &body); err != nil {
		writeErr(w, err)
		return
	}
	tran, err := h.core.AppendTransaction(r.Context(), usecase.AppendTransactionRequest{
		AccountID:   body.AccountID,
		Amount:      body.Amount,
		Type:        body.Type,
		Description: body.Description,
		Reference:   body.Reference,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionResponse(tran))
}

// listTransactions GET /transactions?account_id=
func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	var filter domain.TransactionFilter
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeErr(w, domain.ErrInvalidRequest)
			return
		}
		filter.AccountID = id
	}
	h.writeTransactions(w, r, filter)
}

func (h *Handler) writeTransactions(w http.ResponseWriter, r *http.Request, filter domain.TransactionFilter) {
	trans, err := h.core.ListTransactions(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(trans))
	for _, tran := range trans {
		out = append(out, newTransactionResponse(tran))
	}
	writeJSON(w, http.StatusOK, out)
}

// health GET /health
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
