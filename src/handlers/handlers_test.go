package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finwatch/src/database"
	"github.com/username/finwatch/src/ledger"
	"github.com/username/finwatch/src/market"
	"github.com/username/finwatch/src/model"
	"github.com/username/finwatch/src/security"
	"github.com/username/finwatch/src/services"
	"github.com/username/finwatch/src/watchlist"
)

var testCSRFKey = []byte("0123456789abcdef0123456789abcdef")

type stubMarket struct {
	quotes *atomic.Int32
}

func (stubMarket) Search(_ context.Context, t watchlist.InstrumentType, query string) ([]market.Instrument, error) {
	return []market.Instrument{{Type: t, Key: watchlist.Key(t, query), Symbol: strings.ToUpper(query), Name: "Result"}}, nil
}

func (m stubMarket) Quote(_ context.Context, t watchlist.InstrumentType, symbol string) (market.Quote, error) {
	if m.quotes != nil {
		m.quotes.Add(1)
	}
	if symbol == "NOPE" {
		return market.Quote{}, market.ErrNoQuote
	}
	return market.Quote{Symbol: symbol, Name: "Apple Inc.", Price: 190, ChangePercent: watchlist.Float(1.5)}, nil
}

func (stubMarket) Popular(t watchlist.InstrumentType) []market.Instrument {
	return market.PopularList(t)
}

type noQuotes struct{}

func (noQuotes) QuoteSource(watchlist.InstrumentType) watchlist.QuoteSource {
	return watchlist.QuoteSourceFunc(func(context.Context, []string) (map[string]watchlist.PriceUpdate, error) {
		return map[string]watchlist.PriceUpdate{}, nil
	})
}

// flakyTable is the SQLite watchlist table with switchable failures.
type flakyTable struct {
	*model.WatchlistTable
	fail atomic.Bool
}

var errTableDown = errors.New("table unavailable")

func (f *flakyTable) Insert(ctx context.Context, e watchlist.Entry) error {
	if f.fail.Load() {
		return errTableDown
	}
	return f.WatchlistTable.Insert(ctx, e)
}

func (f *flakyTable) Delete(ctx context.Context, owner string, t watchlist.InstrumentType, symbol string) error {
	if f.fail.Load() {
		return errTableDown
	}
	return f.WatchlistTable.Delete(ctx, owner, t, symbol)
}

func (f *flakyTable) SelectByOwner(ctx context.Context, owner string) ([]watchlist.Entry, error) {
	if f.fail.Load() {
		return nil, errTableDown
	}
	return f.WatchlistTable.SelectByOwner(ctx, owner)
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	table   *flakyTable
	quotes  *atomic.Int32
	csrf    string
	token   string
	refresh string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := database.OpenForTest()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	table := &flakyTable{WatchlistTable: model.NewWatchlistTable(db)}
	workspaces := services.NewManager(table, noQuotes{}, services.WorkspaceOptions{
		Intervals: map[watchlist.InstrumentType]time.Duration{
			watchlist.US:     time.Hour,
			watchlist.Indian: time.Hour,
			watchlist.Crypto: time.Hour,
		},
		RemoteTimeout: time.Second,
	})
	t.Cleanup(workspaces.Shutdown)

	ledgerService := services.NewLedgerService(model.NewLedgerRepository(db), table)
	mkt := stubMarket{quotes: new(atomic.Int32)}
	users := NewUserHandler(db, security.NewAuthService("test-secret-test-secret-test-secret", time.Hour), workspaces, table, time.Hour)
	router := &Router{
		Users:          users,
		Watchlist:      NewWatchlistHandler(workspaces, mkt),
		Market:         NewMarketHandler(mkt),
		Transactions:   NewTransactionHandler(ledgerService),
		Expenses:       NewExpenseHandler(ledgerService),
		Subscriptions:  NewSubscriptionHandler(db, services.NewSubscriptionService(db, services.NewMockPaymentProvider())),
		Assistant:      NewAssistantHandler(services.NewAssistantService(ledgerService, nil, "USD")),
		CSRFAuthKey:    testCSRFKey,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	return &testAPI{t: t, handler: router.Handler(), table: table, quotes: mkt.quotes}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.csrf != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: a.csrf})
		req.Header.Set(csrfHeaderName, a.csrf)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) fetchCSRF() {
	a.t.Helper()
	rec := a.do(http.MethodGet, "/api/auth/csrf", nil)
	require.Equal(a.t, http.StatusOK, rec.Code)
	a.csrf = decode[map[string]string](a.t, rec)["csrfToken"]
	require.NotEmpty(a.t, a.csrf)
}

// signUp registers and logs in a local user.
func (a *testAPI) signUp(email, password string) {
	a.t.Helper()
	a.fetchCSRF()
	rec := a.do(http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	a.login(email, password)
}

func (a *testAPI) login(email, password string) *httptest.ResponseRecorder {
	a.t.Helper()
	a.token = ""
	rec := a.do(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password})
	if rec.Code == http.StatusOK {
		body := decode[map[string]any](a.t, rec)
		a.token, _ = body["access_token"].(string)
		a.refresh, _ = body["refresh_token"].(string)
	}
	return rec
}

func TestCSRFProtectsStateChanges(t *testing.T) {
	api := newTestAPI(t)
	body := map[string]string{"email": "ana@example.com", "password": "secret1"}

	rec := api.do(http.MethodPost, "/api/auth/register", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	api.fetchCSRF()
	_, sig, _ := strings.Cut(api.csrf, ".")
	api.csrf = "forged-nonce." + sig
	rec = api.do(http.MethodPost, "/api/auth/register", body)
	assert.Equal(t, http.StatusForbidden, rec.Code, "signature must match the key")

	api.fetchCSRF()
	rec = api.do(http.MethodPost, "/api/auth/register", body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/auth/register", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthSessionLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")
	require.NotEmpty(t, api.token)

	rec := api.do(http.MethodGet, "/api/user/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana@example.com", decode[map[string]any](t, rec)["email"])

	oldRefresh := api.refresh
	rec = api.do(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": oldRefresh})
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decode[tokenPair](t, rec)
	assert.NotEqual(t, oldRefresh, pair.RefreshToken)

	rec = api.do(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": oldRefresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "refresh tokens are single use")

	api.token = pair.AccessToken
	rec = api.do(http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/api/user/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "session is gone after logout")

	assert.Equal(t, http.StatusUnauthorized, api.login("ana@example.com", "wrong-password").Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/watchlist", "/api/transactions", "/api/stats", "/api/assistant", "/api/notifications"} {
		rec := api.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := api.do(http.MethodGet, "/api/subscription/plans", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]services.Plan](t, rec), 3)
}

func TestWatchlistAddRemove(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")

	rec := api.do(http.MethodPost, "/api/watchlist", map[string]string{"type": "us", "symbol": " aapl "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[watchlist.Entry](t, rec)
	assert.Equal(t, "us-AAPL", added.Key)
	assert.Equal(t, "Apple Inc.", added.DisplayName)
	require.NotNil(t, added.LastPrice)
	assert.Equal(t, 190.0, *added.LastPrice)

	rec = api.do(http.MethodPost, "/api/watchlist", map[string]string{"type": "crypto", "symbol": "BTC", "name": "Bitcoin"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(http.MethodGet, "/api/watchlist?type=us", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]watchlist.Entry](t, rec), 1)

	rec = api.do(http.MethodGet, "/api/watchlist", nil)
	assert.Len(t, decode[[]watchlist.Entry](t, rec), 2)

	rec = api.do(http.MethodGet, "/api/stats", nil)
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["watchlist_count"])

	rec = api.do(http.MethodPost, "/api/watchlist", map[string]string{"type": "bonds", "symbol": "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodDelete, "/api/watchlist/us/aapl", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(http.MethodDelete, "/api/watchlist/us/AAPL", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "removing an absent instrument succeeds")

	rec = api.do(http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[[]watchlist.Notification](t, rec)
	require.NotEmpty(t, notes)
	assert.Equal(t, "Added to watchlist", notes[0].Title)

	rec = api.do(http.MethodGet, "/api/notifications", nil)
	assert.Empty(t, decode[[]watchlist.Notification](t, rec), "inbox is drained")
}

func TestWatchlistAddRejectsInvalidSymbolBeforeLookup(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")

	for _, symbol := range []string{"AAPL<script>", "   ", "BRK/B"} {
		rec := api.do(http.MethodPost, "/api/watchlist", map[string]string{"type": "us", "symbol": symbol})
		assert.Equal(t, http.StatusBadRequest, rec.Code, symbol)
	}
	assert.Zero(t, api.quotes.Load(), "no quote lookup for rejected symbols")

	rec := api.do(http.MethodGet, "/api/watchlist", nil)
	assert.Empty(t, decode[[]watchlist.Entry](t, rec))
}

func TestWatchlistRemoteFailures(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")

	rec := api.do(http.MethodGet, "/api/watchlist", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	api.table.fail.Store(true)
	rec = api.do(http.MethodPost, "/api/watchlist", map[string]string{"type": "us", "symbol": "MSFT"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = api.do(http.MethodPost, "/api/watchlist/reload", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	api.table.fail.Store(false)
	rec = api.do(http.MethodGet, "/api/watchlist", nil)
	assert.Empty(t, decode[[]watchlist.Entry](t, rec), "failed add was rolled back")
}

func TestWatchlistMoversAndAggregate(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/watchlist", map[string]string{"type": "us", "symbol": "AAPL"}).Code)

	rec := api.do(http.MethodGet, "/api/watchlist/movers?direction=gainers&n=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]watchlist.Entry](t, rec), 1)

	rec = api.do(http.MethodGet, "/api/watchlist/movers", nil)
	movers := decode[watchlist.Movers](t, rec)
	assert.Len(t, movers.Gainers, 1)
	assert.Empty(t, movers.Losers)

	rec = api.do(http.MethodGet, "/api/watchlist/movers?n=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/watchlist/aggregate?type=us", nil)
	agg := decode[watchlist.Aggregate](t, rec)
	assert.Equal(t, 1, agg.Count)
	assert.Equal(t, 190.0, agg.Total)

	rec = api.do(http.MethodGet, "/api/watchlist/aggregate", nil)
	assert.Len(t, decode[[]watchlist.Aggregate](t, rec), 3)

	rec = api.do(http.MethodGet, "/api/watchlist/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["entries"])
}

func TestMarketEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")

	rec := api.do(http.MethodGet, "/api/market/search?type=crypto&q=btc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTC", decode[[]market.Instrument](t, rec)[0].Symbol)

	rec = api.do(http.MethodGet, "/api/market/search?type=us&q=", nil)
	assert.Empty(t, decode[[]market.Instrument](t, rec))

	rec = api.do(http.MethodGet, "/api/market/popular?type=indian", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]market.Instrument](t, rec))

	rec = api.do(http.MethodGet, "/api/market/quote?type=us&symbol=aapl", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 190.0, decode[market.Quote](t, rec).Price)

	rec = api.do(http.MethodGet, "/api/market/quote?type=us&symbol=NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/market/quote?type=fx&symbol=EUR", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")

	rec := api.do(http.MethodPost, "/api/transactions", map[string]any{"amount": 5000, "type": "credit", "category": "Salary", "description": "=SUM(A1)"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = api.do(http.MethodPost, "/api/transactions", map[string]any{"amount": "1200", "type": "debit", "category": "Rent", "description": "April rent"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rent := decode[map[string]any](t, rec)

	rec = api.do(http.MethodPost, "/api/transactions", map[string]any{"amount": "-3", "type": "debit", "category": "Rent", "description": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPut, "/api/transactions/does-not-exist", map[string]any{"amount": "1", "type": "debit", "category": "Rent", "description": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPut, "/api/transactions/"+rent["id"].(string), map[string]any{"amount": "1000", "type": "debit", "category": "Rent", "description": "April rent"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, "/api/expenses", map[string]any{"amount": "250", "category": "Food", "description": "groceries"})
	require.Equal(t, http.StatusCreated, rec.Code)
	expense := decode[map[string]any](t, rec)

	rec = api.do(http.MethodGet, "/api/transactions/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4000", decode[map[string]any](t, rec)["net_balance"])

	rec = api.do(http.MethodGet, "/api/stats", nil)
	stats := decode[map[string]any](t, rec)
	assert.Equal(t, "3750", stats["net_balance"])
	assert.EqualValues(t, 1, stats["expense_count"])

	rec = api.do(http.MethodGet, "/api/stats/spending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	spending := decode[ledger.Spending](t, rec)
	assert.Equal(t, "1250", spending.TotalSpending.String())
	require.Len(t, spending.Categories, 2)
	assert.Equal(t, "Rent", spending.Categories[0].Category)
	assert.Equal(t, "80", spending.Categories[0].Percent.String())
	assert.Equal(t, "Food", spending.Categories[1].Category)
	assert.Equal(t, "20", spending.Categories[1].Percent.String())

	rec = api.do(http.MethodGet, "/api/stats/timeline?timeframe=week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]map[string]any](t, rec))
	rec = api.do(http.MethodGet, "/api/stats/timeline?timeframe=decade", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/transactions/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "'=SUM(A1)")
	assert.Contains(t, rec.Body.String(), "Date,Type,Category,Description,Amount")

	rec = api.do(http.MethodPut, "/api/expenses/"+expense["id"].(string), map[string]any{"amount": "300", "category": "Food", "description": "groceries"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(http.MethodDelete, "/api/expenses/"+expense["id"].(string), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(http.MethodDelete, "/api/expenses/"+expense["id"].(string), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/transactions/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec)["credit"], "Salary")

	rec = api.do(http.MethodGet, "/api/assistant", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	insight := decode[services.Insight](t, rec)
	assert.False(t, insight.Generated)
	assert.Contains(t, insight.HTML, "<h1")
}

func TestLedgerIsolatedPerUser(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")
	rec := api.do(http.MethodPost, "/api/transactions", map[string]any{"amount": "10", "type": "credit", "category": "Gift", "description": "birthday"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]any](t, rec)["id"].(string)

	api.signUp("bo@example.com", "secret2")
	rec = api.do(http.MethodGet, "/api/transactions", nil)
	assert.Empty(t, decode[[]map[string]any](t, rec))
	rec = api.do(http.MethodDelete, "/api/transactions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscriptionCheckout(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")

	rec := api.do(http.MethodGet, "/api/subscription", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["subscribed"])

	rec = api.do(http.MethodPost, "/api/subscription/checkout", map[string]string{"plan": "gold"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/subscription/checkout", map[string]string{"plan": "pro"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub := decode[map[string]any](t, rec)
	assert.Equal(t, true, sub["subscribed"])
	assert.Equal(t, "pro", sub["subscription_tier"])
	assert.True(t, strings.HasPrefix(sub["stripe_customer_id"].(string), "mock_"))

	rec = api.do(http.MethodGet, "/api/subscription", nil)
	assert.Equal(t, true, decode[map[string]any](t, rec)["subscribed"])
}

func TestUpdateProfile(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")

	rec := api.do(http.MethodPut, "/api/user/me", map[string]string{"name": "  Ana Lima ", "photo_url": "https://cdn.example.com/ana.png"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Ana Lima", body["display_name"])
	assert.Equal(t, "https://cdn.example.com/ana.png", body["photo_url"])

	rec = api.do(http.MethodGet, "/api/user/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana Lima", decode[map[string]any](t, rec)["display_name"])

	for _, bad := range []map[string]string{
		{"name": ""},
		{"name": "<script>alert(1)</script>"},
		{"name": "Ana", "photo_url": "javascript:alert(1)"},
	} {
		rec = api.do(http.MethodPut, "/api/user/me", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	rec = api.do(http.MethodGet, "/api/user/me", nil)
	assert.Equal(t, "https://cdn.example.com/ana.png", decode[map[string]any](t, rec)["photo_url"], "rejected updates change nothing")

	api.token = ""
	rec = api.do(http.MethodPut, "/api/user/me", map[string]string{"name": "Eve"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePasswordAndDeleteAccount(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("ana@example.com", "secret1")
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/watchlist", map[string]string{"type": "us", "symbol": "AAPL"}).Code)

	rec := api.do(http.MethodPost, "/api/user/change-password", ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "secret9", ConfirmNewPassword: "secret9"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = api.do(http.MethodPost, "/api/user/change-password", ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret9", ConfirmNewPassword: "other99"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(http.MethodPost, "/api/user/change-password", ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret9", ConfirmNewPassword: "secret9"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, api.login("ana@example.com", "secret9").Code)

	rec = api.do(http.MethodPost, "/api/user/delete-account", DeleteAccountRequest{Password: "secret1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = api.do(http.MethodPost, "/api/user/delete-account", DeleteAccountRequest{Password: "secret9"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rows, err := api.table.SelectByOwner(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, rows, "watchlist purged")

	assert.Equal(t, http.StatusUnauthorized, api.login("ana@example.com", "secret9").Code)
}

func TestUnknownAPIRouteIsJSON404(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode[map[string]string](t, rec)["error"])
}
