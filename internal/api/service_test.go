package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"github.com/rarestbarbie/majesty-sub001/internal/api"
	"github.com/rarestbarbie/majesty-sub001/internal/config"
	"github.com/rarestbarbie/majesty-sub001/internal/metrics"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/sim"
	"github.com/rarestbarbie/majesty-sub001/internal/store"
	"github.com/rarestbarbie/majesty-sub001/internal/ticker"
)

// newTestEnv creates a test Service over the example scenario with an
// in-memory store and chi router.
func newTestEnv(t *testing.T) (*api.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	s, err := sim.New(cfg)
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	reg, err := ticker.FromScenario(cfg.Scenario)
	if err != nil {
		t.Fatalf("tickers: %v", err)
	}
	ms := store.NewMemoryStore()
	svc := api.NewService(s, ms, reg, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	return svc, ms, r
}

func do(t *testing.T, router chi.Router, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// --- Market tests ---

func TestListMarkets(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/markets")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	markets := decode[[]api.MarketView](t, w)
	if len(markets) != 5 {
		t.Fatalf("expected 5 markets, got %d", len(markets))
	}
	if markets[0].Ticker != "CROWN-MARK" {
		t.Errorf("expected CROWN-MARK first, got %s", markets[0].Ticker)
	}
	for i := 1; i < len(markets); i++ {
		if markets[i-1].Pair.Compare(markets[i].Pair) >= 0 {
			t.Errorf("markets out of canonical order at %d", i)
		}
	}
}

func TestGetMarket_Orientation(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/markets/CROWN-GRAIN")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	forward := decode[api.MarketView](t, w)
	if !forward.Price.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected 2 grain per crown, got %s", forward.Price)
	}
	if forward.Reserves != [2]int64{20000, 40000} {
		t.Errorf("unexpected reserves %v", forward.Reserves)
	}

	w = do(t, router, "GET", "/api/v1/markets/grain-crown")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	backward := decode[api.MarketView](t, w)
	if !backward.Price.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("expected 0.5 crown per grain, got %s", backward.Price)
	}
	if backward.Base != model.Good(1) || backward.Pair != forward.Pair {
		t.Errorf("unexpected orientation %+v", backward)
	}
}

func TestGetMarket_Errors(t *testing.T) {
	_, _, router := newTestEnv(t)

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/markets/CROWN-SILK", http.StatusBadRequest},
		{"/api/v1/markets/CROWN", http.StatusBadRequest},
		{"/api/v1/markets/GRAIN-WOOL", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := do(t, router, "GET", tt.path)
		if w.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, w.Code)
		}
		body := decode[map[string]string](t, w)
		if body["error"] == "" {
			t.Errorf("%s: expected error message", tt.path)
		}
	}
}

// --- Turn tests ---

func TestAdvanceTurn_RecordsHistory(t *testing.T) {
	_, ms, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/turn?n=3")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[api.TurnResponse](t, w)
	if len(resp.Reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(resp.Reports))
	}
	for i, r := range resp.Reports {
		if r.Day != int64(i+1) {
			t.Errorf("report %d: expected day %d, got %d", i, i+1, r.Day)
		}
	}

	w = do(t, router, "GET", "/api/v1/markets/CROWN-GRAIN/history?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	history := decode[[]model.MarketClose](t, w)
	if len(history) != 2 || history[0].Day != 2 || history[1].Day != 3 {
		t.Fatalf("expected days 2 and 3, got %+v", history)
	}

	stored, err := ms.GetHistory(context.Background(), "fiat:1/good:1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 {
		t.Errorf("expected 3 stored closes, got %d", len(stored))
	}
}

func yieldSamples(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.ArbitrageYield.Write(&m); err != nil {
		t.Fatalf("read histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestAdvanceTurn_ObservesArbitrageYield(t *testing.T) {
	_, _, router := newTestEnv(t)

	before := yieldSamples(t)
	w := do(t, router, "POST", "/api/v1/turn?n=5")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	loops := 0
	for _, r := range decode[api.TurnResponse](t, w).Reports {
		loops += len(r.Arbitrage)
	}
	if got := yieldSamples(t) - before; got != uint64(loops) {
		t.Errorf("expected one yield sample per loop (%d), got %d", loops, got)
	}
}

func TestAdvanceTurn_InvalidCount(t *testing.T) {
	_, _, router := newTestEnv(t)
	for _, n := range []string{"0", "-1", "x", "101"} {
		w := do(t, router, "POST", "/api/v1/turn?n="+n)
		if w.Code != http.StatusBadRequest {
			t.Errorf("n=%s: expected 400, got %d", n, w.Code)
		}
	}
}

func TestGetMarketHistory_InvalidLimit(t *testing.T) {
	_, _, router := newTestEnv(t)
	w := do(t, router, "GET", "/api/v1/markets/CROWN-GRAIN/history?limit=-3")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// --- Agent tests ---

func TestGetAgent(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/agents/2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if v := decode[api.AgentView](t, w); v.Kind != "factory" || v.Factory == nil || v.Factory.Type != "mill" {
		t.Errorf("expected mill factory, got %+v", v)
	}

	w = do(t, router, "GET", "/api/v1/agents/1002")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if v := decode[api.AgentView](t, w); v.Kind != "pop" || v.Pop == nil || v.Pop.Size != 40 {
		t.Errorf("expected clerk pop of 40, got %+v", v)
	}

	if w := do(t, router, "GET", "/api/v1/agents/4242"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := do(t, router, "GET", "/api/v1/agents/abc"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// --- Snapshot tests ---

func TestCreateSnapshot(t *testing.T) {
	svc, ms, router := newTestEnv(t)
	if _, err := svc.Step(context.Background()); err != nil {
		t.Fatal(err)
	}

	w := do(t, router, "POST", "/api/v1/snapshots")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	info := decode[model.SnapshotInfo](t, w)
	if info.Day != 1 || info.ID == "" || info.Size == 0 {
		t.Errorf("unexpected snapshot info %+v", info)
	}

	latest, data, err := ms.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != info.ID || len(data) != info.Size {
		t.Errorf("stored snapshot does not match %+v", info)
	}

	cfg, _ := config.Load("")
	restored, err := sim.Decode(cfg, data)
	if err != nil {
		t.Fatalf("decode stored snapshot: %v", err)
	}
	if restored.Day != 1 {
		t.Errorf("expected restored day 1, got %d", restored.Day)
	}

	w = do(t, router, "GET", "/api/v1/snapshots")
	if infos := decode[[]model.SnapshotInfo](t, w); len(infos) != 1 {
		t.Errorf("expected 1 snapshot listed, got %d", len(infos))
	}
}
