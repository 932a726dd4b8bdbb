package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"billexpress/internal/infrastructure/cache"
	"billexpress/internal/infrastructure/logger"
	"billexpress/internal/testutil"
	"billexpress/pkg/response"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	log := logger.Discard()
	h := NewHandler(testutil.NewDB(t), cache.NewMemoryMirror(), testutil.Config(), log)
	return SetupRouter(h, log)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, r *gin.Engine, method, path, user string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

type accountJSON struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Balance        string `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
	IsDefault      bool   `json:"is_default"`
}

func TestRouter_RequiresUser(t *testing.T) {
	r := newTestRouter(t)
	status, env := do(t, r, http.MethodGet, "/api/v1/accounts", "", nil)
	if status != http.StatusUnauthorized || env.Code != response.CodeUnauthorized {
		t.Errorf("GET /accounts without user = %d/%d, want 401", status, env.Code)
	}
}

func TestRouter_LedgerFlow(t *testing.T) {
	r := newTestRouter(t)

	_, env := do(t, r, http.MethodGet, "/api/v1/accounts", "u1", nil)
	var list struct {
		Accounts  []accountJSON `json:"accounts"`
		Synthetic bool          `json:"synthetic"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	if len(list.Accounts) != 1 || !list.Accounts[0].IsDefault || list.Synthetic {
		t.Fatalf("accounts = %+v, want one persisted default", list)
	}
	efectivo := list.Accounts[0]

	status, env := do(t, r, http.MethodPost, "/api/v1/accounts", "u1", map[string]interface{}{"name": "Banco"})
	if status != http.StatusOK {
		t.Fatalf("create account = %d %s", status, env.Message)
	}
	var banco accountJSON
	_ = json.Unmarshal(env.Data, &banco)

	status, env = do(t, r, http.MethodPost, "/api/v1/incomes", "u1", map[string]interface{}{
		"account_id": efectivo.ID,
		"amount":     "500",
		"date":       "2024-03-01",
	})
	if status != http.StatusOK {
		t.Fatalf("record income = %d %s", status, env.Message)
	}

	status, env = do(t, r, http.MethodPost, "/api/v1/transfers", "u1", map[string]interface{}{
		"from_account_id": efectivo.ID,
		"to_account_id":   banco.ID,
		"amount":          "200",
	})
	if status != http.StatusOK {
		t.Fatalf("transfer = %d %s", status, env.Message)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/accounts/"+efectivo.ID, "u1", nil)
	var got accountJSON
	_ = json.Unmarshal(env.Data, &got)
	if got.Balance != "300" || got.BalanceDisplay != "$300.00" {
		t.Errorf("Efectivo = %+v, want 300", got)
	}

	status, env = do(t, r, http.MethodPost, "/api/v1/transfers", "u1", map[string]interface{}{
		"from_account_id": banco.ID,
		"to_account_id":   efectivo.ID,
		"amount":          "1000",
	})
	if status != http.StatusUnprocessableEntity || env.Code != response.CodeInsufficientFunds {
		t.Errorf("overdraft transfer = %d/%d, want insufficient funds", status, env.Code)
	}

	status, env = do(t, r, http.MethodDelete, "/api/v1/accounts/"+efectivo.ID, "u1", nil)
	if status != http.StatusConflict || env.Code != response.CodeDefaultAccount {
		t.Errorf("delete default = %d/%d, want default account conflict", status, env.Code)
	}

	status, env = do(t, r, http.MethodGet, "/api/v1/accounts/"+efectivo.ID, "u2", nil)
	if status != http.StatusForbidden {
		t.Errorf("foreign read = %d/%d, want 403", status, env.Code)
	}

	status, env = do(t, r, http.MethodPost, "/api/v1/accounts/"+banco.ID+"/recompute", "u1", nil)
	if status != http.StatusOK {
		t.Errorf("recompute = %d %s", status, env.Message)
	}

	status, env = do(t, r, http.MethodPost, "/api/v1/reconcile/sweep", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("sweep = %d %s", status, env.Message)
	}
	var report struct {
		AccountsChecked           int `json:"accounts_checked"`
		AccountsWithDiscrepancies int `json:"accounts_with_discrepancies"`
	}
	_ = json.Unmarshal(env.Data, &report)
	if report.AccountsChecked != 2 || report.AccountsWithDiscrepancies != 0 {
		t.Errorf("sweep report = %+v", report)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/transfers", "u1", nil)
	var transfers struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(env.Data, &transfers)
	if transfers.Total != 1 {
		t.Errorf("transfers total = %d, want 1", transfers.Total)
	}
}

func TestRouter_BadRequests(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"account without name", http.MethodPost, "/api/v1/accounts", map[string]interface{}{}, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/v1/incomes", map[string]interface{}{"account_id": "a", "amount": "1", "date": "01/03/2024"}, http.StatusBadRequest},
		{"same account transfer", http.MethodPost, "/api/v1/transfers", map[string]interface{}{"from_account_id": "a", "to_account_id": "a", "amount": "1"}, http.StatusBadRequest},
		{"missing account", http.MethodDelete, "/api/v1/accounts/nope", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		status, env := do(t, r, tc.method, tc.path, "u1", tc.body)
		if status != tc.status {
			t.Errorf("%s: status = %d (%s), want %d", tc.name, status, env.Message, tc.status)
		}
	}
}
