package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/JoeShih716/fidalex-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ledger, err := memory.NewMutexLedger(nil)
	if err != nil {
		t.Fatal(err)
	}
	core := usecase.NewCoreUseCase(ledger)
	ts := httptest.NewServer(NewRouter(NewHandler(core), zap.NewNop(), nil))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func doList(t *testing.T, ts *httptest.Server, path string) (int, []map[string]any) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out []map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestAccountTransactionFlow(t *testing.T) {
	ts := newTestServer(t)

	code, acc := do(t, ts, http.MethodPost, "/accounts",
		`{"name":"Ada","external_account_id":"ACC-1","account_type":"savings","initial_balance":"100.00"}`)
	if code != http.StatusCreated {
		t.Fatalf("create status=%d body=%v", code, acc)
	}
	if acc["balance"] != "100.00" || acc["id"].(float64) != 1 {
		t.Fatalf("account=%v", acc)
	}

	code, tran := do(t, ts, http.MethodPost, "/transactions", `{"account_id":1,"amount":"50.00","type":"deposit"}`)
	if code != http.StatusCreated || tran["balance_after"] != "150.00" {
		t.Fatalf("deposit status=%d body=%v", code, tran)
	}

	code, body := do(t, ts, http.MethodPost, "/transactions", `{"account_id":1,"amount":"200.00","type":"withdraw"}`)
	if code != http.StatusConflict || body["error"] != "insufficient funds" {
		t.Fatalf("overdraw status=%d body=%v", code, body)
	}

	code, tran = do(t, ts, http.MethodPost, "/api/v1/transactions", `{"account_id":1,"amount":"150.00","type":"withdraw"}`)
	if code != http.StatusCreated || tran["balance_after"] != "0.00" {
		t.Fatalf("withdraw status=%d body=%v", code, tran)
	}

	code, acc = do(t, ts, http.MethodGet, "/accounts/1", "")
	if code != http.StatusOK || acc["balance"] != "0.00" {
		t.Fatalf("get status=%d body=%v", code, acc)
	}

	code, list := doList(t, ts, "/accounts/1/transactions")
	if code != http.StatusOK || len(list) != 2 {
		t.Fatalf("history status=%d len=%d", code, len(list))
	}
	if list[0]["id"].(float64) >= list[1]["id"].(float64) {
		t.Fatalf("transactions not in id order: %v", list)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	ts := newTestServer(t)
	do(t, ts, http.MethodPost, "/accounts", `{"name":"Bob","external_account_id":"ACC-2","account_type":"current","initial_balance":"10"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"duplicate account", http.MethodPost, "/accounts", `{"name":"B2","external_account_id":"ACC-2","account_type":"current"}`, http.StatusConflict},
		{"negative initial balance", http.MethodPost, "/accounts", `{"name":"C","external_account_id":"ACC-3","account_type":"savings","initial_balance":"-1"}`, http.StatusBadRequest},
		{"bad account type", http.MethodPost, "/accounts", `{"name":"C","external_account_id":"ACC-3","account_type":"gold"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/accounts", `{"name":`, http.StatusBadRequest},
		{"unknown account", http.MethodGet, "/accounts/99", "", http.StatusNotFound},
		{"non numeric id", http.MethodGet, "/accounts/abc", "", http.StatusNotFound},
		{"transaction on unknown account", http.MethodPost, "/transactions", `{"account_id":99,"amount":"1","type":"deposit"}`, http.StatusNotFound},
		{"zero amount", http.MethodPost, "/transactions", `{"account_id":1,"amount":"0","type":"deposit"}`, http.StatusBadRequest},
		{"three decimals", http.MethodPost, "/transactions", `{"account_id":1,"amount":"0.015","type":"deposit"}`, http.StatusBadRequest},
		{"amount too large", http.MethodPost, "/transactions", `{"account_id":1,"amount":"1e20","type":"deposit"}`, http.StatusBadRequest},
		{"huge exponent", http.MethodPost, "/transactions", `{"account_id":1,"amount":"1e7000000","type":"deposit"}`, http.StatusBadRequest},
		{"initial balance too large", http.MethodPost, "/accounts", `{"name":"C","external_account_id":"ACC-3","account_type":"savings","initial_balance":"1000000000000"}`, http.StatusBadRequest},
		{"bad type", http.MethodPost, "/transactions", `{"account_id":1,"amount":"1","type":"refund"}`, http.StatusBadRequest},
		{"bad filter", http.MethodGet, "/transactions?account_id=x", "", http.StatusBadRequest},
		{"filter unknown account", http.MethodGet, "/transactions?account_id=99", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, ts, tt.method, tt.path, tt.body)
			if code != tt.want {
				t.Fatalf("status=%d want %d body=%v", code, tt.want, body)
			}
			if _, ok := body["error"]; !ok {
				t.Fatalf("error body missing: %v", body)
			}
		})
	}

	_, acc := do(t, ts, http.MethodGet, "/accounts/1", "")
	if acc["balance"] != "10.00" {
		t.Fatalf("rejected requests changed balance: %v", acc)
	}
}

func TestReusedReferenceIsRejected(t *testing.T) {
	ts := newTestServer(t)
	do(t, ts, http.MethodPost, "/accounts", `{"name":"A","external_account_id":"ACC-A","account_type":"savings","initial_balance":"0"}`)
	do(t, ts, http.MethodPost, "/accounts", `{"name":"B","external_account_id":"ACC-B","account_type":"savings","initial_balance":"0"}`)

	const ref = "5b0d7b52-4c1e-4b8e-9a59-0f3a2b6f7c11"
	code, first := do(t, ts, http.MethodPost, "/transactions", `{"account_id":1,"amount":"5.00","type":"deposit","reference":"`+ref+`"}`)
	if code != http.StatusCreated {
		t.Fatalf("deposit status=%d body=%v", code, first)
	}
	code, again := do(t, ts, http.MethodPost, "/transactions", `{"account_id":1,"amount":"5","type":"deposit","reference":"`+ref+`"}`)
	if code != http.StatusCreated || again["id"] != first["id"] {
		t.Fatalf("replay status=%d body=%v", code, again)
	}
	code, body := do(t, ts, http.MethodPost, "/transactions", `{"account_id":2,"amount":"999","type":"withdraw","reference":"`+ref+`"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("reused reference status=%d body=%v", code, body)
	}
	_, acc := do(t, ts, http.MethodGet, "/accounts/2", "")
	if acc["balance"] != "0.00" {
		t.Fatalf("balance b=%v", acc["balance"])
	}
}

func TestConcurrentWithdrawalsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	do(t, ts, http.MethodPost, "/accounts", `{"name":"C","external_account_id":"ACC-C","account_type":"savings","initial_balance":"100"}`)

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i, amt := range []string{"60", "70"} {
		wg.Add(1)
		go func(i int, amt string) {
			defer wg.Done()
			resp, err := http.Post(ts.URL+"/transactions", "application/json",
				strings.NewReader(`{"account_id":1,"amount":"`+amt+`","type":"withdraw"}`))
			if err != nil {
				return
			}
			resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i, amt)
	}
	wg.Wait()

	created, conflict := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflict++
		}
	}
	if created != 1 || conflict != 1 {
		t.Fatalf("codes=%v want one 201 and one 409", codes)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	code, body := do(t, ts, http.MethodGet, "/health", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health status=%d body=%v", code, body)
	}
}
