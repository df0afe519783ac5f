package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/api"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/auth"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/hub"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/ledger"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/ratelimit"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/testutils"
)

func setupAPI(t *testing.T) (*gin.Engine, *testutils.MockStore, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutils.NewMockStore()
	wsHub := hub.NewHub(zap.NewNop())
	engine := ledger.NewEngine(store, wsHub, nil, zap.NewNop(), "ACME")
	tokens := auth.NewManager("test-secret", 15*time.Minute)
	handler := api.NewHandler(store, engine, wsHub, tokens, ratelimit.Nop{}, zap.NewNop(), 1000000)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, store, tokens
}

func doJSON(router *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRegister_Success(t *testing.T) {
	router, store, _ := setupAPI(t)

	w := doJSON(router, http.MethodPost, "/register", `{"username":"alice","password":"hunter2"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	account := store.Account("alice")
	if account == nil {
		t.Fatal("Account was not persisted")
	}
	if account.Balance != 1000000 {
		t.Errorf("Expected starting balance 1000000, got %f", account.Balance)
	}
	if account.PasswordHash == "hunter2" {
		t.Error("Password must not be stored in plaintext")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	router, _, _ := setupAPI(t)

	doJSON(router, http.MethodPost, "/register", `{"username":"alice","password":"hunter2"}`, "")
	w := doJSON(router, http.MethodPost, "/register", `{"username":"alice","password":"other"}`, "")

	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate username, got %d", w.Code)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	router, _, _ := setupAPI(t)

	w := doJSON(router, http.MethodPost, "/register", `{"username":"alice"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestLogin_Flow(t *testing.T) {
	router, _, _ := setupAPI(t)
	doJSON(router, http.MethodPost, "/register", `{"username":"alice","password":"hunter2"}`, "")

	w := doJSON(router, http.MethodPost, "/login", `{"username":"alice","password":"hunter2"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid login response: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Errorf("Unexpected login response: %+v", resp)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	router, _, _ := setupAPI(t)
	doJSON(router, http.MethodPost, "/register", `{"username":"alice","password":"hunter2"}`, "")

	w := doJSON(router, http.MethodPost, "/login", `{"username":"alice","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	router, _, _ := setupAPI(t)

	w := doJSON(router, http.MethodPost, "/login", `{"username":"ghost","password":"x"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestStatus_RequiresAuth(t *testing.T) {
	router, _, _ := setupAPI(t)

	w := doJSON(router, http.MethodGet, "/user/status?current_price=1300", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestStatus_InvalidPrice(t *testing.T) {
	router, store, tokens := setupAPI(t)
	store.SeedAccount("alice", "x", 1000)
	token, _ := tokens.IssueToken("alice")

	for _, q := range []string{"", "current_price=abc", "current_price=-5"} {
		w := doJSON(router, http.MethodGet, "/user/status?"+q, "", token)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Query %q: expected 400, got %d", q, w.Code)
		}
	}
}

func TestTrade_BuyThenStatus(t *testing.T) {
	router, store, tokens := setupAPI(t)
	store.SeedAccount("alice", "x", 1000000)
	token, _ := tokens.IssueToken("alice")

	w := doJSON(router, http.MethodPost, "/trade/buy", `{"amount":5,"price":1000}`, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "success") {
		t.Errorf("Expected success body, got %s", w.Body.String())
	}

	w = doJSON(router, http.MethodGet, "/user/status?current_price=1300", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var holdings ledger.Holdings
	if err := json.Unmarshal(w.Body.Bytes(), &holdings); err != nil {
		t.Fatalf("Invalid status response: %v", err)
	}
	want := ledger.Holdings{Cash: 995000, Holdings: 5, Evaluation: 6500, Profit: 1500, TotalAsset: 1001500}
	if holdings != want {
		t.Errorf("Expected %+v, got %+v", want, holdings)
	}
}

func TestTrade_Rejections(t *testing.T) {
	router, store, tokens := setupAPI(t)
	store.SeedAccount("alice", "x", 100)
	token, _ := tokens.IssueToken("alice")

	cases := []struct {
		name string
		path string
		body string
	}{
		{"insufficient funds", "/trade/buy", `{"amount":10,"price":1000}`},
		{"insufficient holdings", "/trade/sell", `{"amount":1,"price":100}`},
		{"zero amount", "/trade/buy", `{"amount":0,"price":100}`},
		{"negative price", "/trade/buy", `{"amount":1,"price":-1}`},
		{"unknown action", "/trade/hold", `{"amount":1,"price":100}`},
	}

	for _, tc := range cases {
		w := doJSON(router, http.MethodPost, tc.path, tc.body, token)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}

	if cash := store.Account("alice").Balance; cash != 100 {
		t.Errorf("Rejected trades must not touch cash, got %f", cash)
	}
}

func TestTrade_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := testutils.NewMockStore()
	store.SeedAccount("alice", "x", 1000000)
	wsHub := hub.NewHub(zap.NewNop())
	engine := ledger.NewEngine(store, wsHub, nil, zap.NewNop(), "ACME")
	tokens := auth.NewManager("test-secret", 15*time.Minute)

	handler := api.NewHandler(store, engine, wsHub, tokens, denyAll{}, zap.NewNop(), 1000000)
	router := gin.New()
	handler.RegisterRoutes(router)

	token, _ := tokens.IssueToken("alice")
	w := doJSON(router, http.MethodPost, "/trade/buy", `{"amount":1,"price":100}`, token)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
	if cash := store.Account("alice").Balance; cash != 1000000 {
		t.Errorf("Throttled trade must not settle, cash is %f", cash)
	}
}

type denyAll struct{}

func (denyAll) Allow(ctx context.Context, key string) (bool, error) { return false, nil }
