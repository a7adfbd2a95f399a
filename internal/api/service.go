// Package api provides the HTTP handlers for inspecting and driving a
// running simulation: markets, price history, agents, turns and
// snapshots.
//
// All prices leave the server as shopspring/decimal; amounts are integers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/rarestbarbie/majesty-sub001/internal/amm"
	"github.com/rarestbarbie/majesty-sub001/internal/economy"
	"github.com/rarestbarbie/majesty-sub001/internal/metrics"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/sim"
	"github.com/rarestbarbie/majesty-sub001/internal/store"
	"github.com/rarestbarbie/majesty-sub001/internal/ticker"
)

// MaxTurnsPerRequest bounds POST /turn?n=.
const MaxTurnsPerRequest = 100

// Service owns the simulation. A mutex serializes turns against reads
// (single-instance).
type Service struct {
	sim     *sim.Simulation
	store   store.Store
	tickers *ticker.Registry
	mu      sync.Mutex
	wsHub   *WSHub // optional WebSocket hub for turn broadcasts
}

// NewService creates a new simulation service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(s *sim.Simulation, st store.Store, reg *ticker.Registry, hub *WSHub) *Service {
	return &Service{
		sim:     s,
		store:   st,
		tickers: reg,
		wsHub:   hub,
	}
}

// --- Response types ---

// MarketView is one market as seen through a ticker.
type MarketView struct {
	Ticker    string          `json:"ticker"`
	Pair      model.Pair      `json:"pair"`
	Base      model.Asset     `json:"base"`
	Quote     model.Asset     `json:"quote"`
	Reserves  [2]int64        `json:"reserves"`
	Price     decimal.Decimal `json:"price"`
	Yesterday decimal.Decimal `json:"yesterday"`
	Fee       decimal.Decimal `json:"fee"`
	Today     amm.Interval    `json:"today"`
}

// AgentView is a factory or pop.
type AgentView struct {
	Kind    string           `json:"kind"`
	Factory *economy.Factory `json:"factory,omitempty"`
	Pop     *economy.Pop     `json:"pop,omitempty"`
}

// TurnResponse is the JSON body returned from POST /turn.
type TurnResponse struct {
	Reports []sim.Report `json:"reports"`
}

// --- Turn loop ---

// Step advances the simulation one turn, records history and metrics, and
// broadcasts the result.
func (s *Service) Step(ctx context.Context) (sim.Report, error) {
	s.mu.Lock()
	start := time.Now()
	report := s.sim.Step()
	closes := s.sim.Closes(report)
	msg := s.message(report)
	markets := len(s.sim.Exchange.Markets)
	s.mu.Unlock()

	s.record(report, closes, markets, time.Since(start))
	if err := s.store.InsertCloses(ctx, closes); err != nil {
		return report, fmt.Errorf("record closes for day %d: %w", report.Day, err)
	}
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
	return report, nil
}

// Save encodes the simulation and stores it as a new snapshot.
func (s *Service) Save(ctx context.Context) (*model.SnapshotInfo, error) {
	s.mu.Lock()
	data, err := s.sim.Encode()
	day, seed := s.sim.Day, s.sim.Seed
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	info := store.NewSnapshotInfo(day, seed, len(data))
	if err := s.store.SaveSnapshot(ctx, info, data); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	slog.Info("snapshot saved", "id", info.ID, "day", day, "bytes", len(data))
	return info, nil
}

func (s *Service) message(r sim.Report) WSMessage {
	prices := make(map[string]string, len(s.sim.Exchange.Markets))
	for _, p := range s.sim.Exchange.Pairs() {
		prices[s.tickers.Format(p)] = s.sim.Exchange.Markets[p].Pool.Price().Decimal().String()
	}
	return WSMessage{
		Type:            "turn_complete",
		Day:             r.Day,
		Hires:           r.Hires,
		Produced:        r.Produced,
		ArbitrageLoops:  len(r.Arbitrage),
		ArbitrageProfit: r.ArbitrageProfit(),
		Prices:          prices,
	}
}

func (s *Service) record(r sim.Report, closes []model.MarketClose, markets int, took time.Duration) {
	metrics.TurnsTotal.Inc()
	metrics.TurnDuration.Observe(took.Seconds())
	metrics.Day.Set(float64(r.Day))
	metrics.ActiveMarkets.Set(float64(markets))
	metrics.Hires.Add(float64(r.Hires))
	for _, c := range closes {
		metrics.MarketVolume.WithLabelValues(s.tickerOf(c.Pair)).Add(float64(c.VolumeBase))
	}
	for _, o := range r.Arbitrage {
		cur := s.tickers.Symbol(o.Home)
		metrics.ArbitrageLoops.WithLabelValues(cur).Inc()
		metrics.ArbitrageProfit.WithLabelValues(cur).Add(float64(o.Profit))
		metrics.ArbitrageYield.Observe(o.Yield().Float64())
	}
	for cur, v := range r.Injected {
		metrics.Injected.WithLabelValues(s.tickers.Symbol(model.Fiat(cur))).Add(float64(v))
	}
	for cur, v := range r.Drained {
		metrics.Drained.WithLabelValues(s.tickers.Symbol(model.Fiat(cur))).Add(float64(v))
	}
	for cur, v := range r.Money {
		metrics.MoneySupply.WithLabelValues(s.tickers.Symbol(model.Fiat(cur))).Set(float64(v))
	}
}

func (s *Service) tickerOf(pair string) string {
	p, err := model.ParsePair(pair)
	if err != nil {
		return pair
	}
	return s.tickers.Format(p)
}

// --- HTTP Handlers ---

// Routes mounts the /api/v1 handlers.
func (s *Service) Routes(r chi.Router) {
	r.Get("/markets", s.ListMarkets)
	r.Get("/markets/{ticker}", s.GetMarket)
	r.Get("/markets/{ticker}/history", s.GetMarketHistory)
	r.Get("/agents/{id}", s.GetAgent)
	r.Post("/turn", s.AdvanceTurn)
	r.Get("/snapshots", s.ListSnapshots)
	r.Post("/snapshots", s.CreateSnapshot)
	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}
}

// ListMarkets handles GET /api/v1/markets
// Returns every market in canonical orientation.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	pairs := s.sim.Exchange.Pairs()
	views := make([]MarketView, 0, len(pairs))
	for _, p := range pairs {
		v, _ := s.sim.Exchange.Lookup(p.X, p.Y)
		views = append(views, s.view(s.tickers.Format(p), v))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, views)
}

// GetMarket handles GET /api/v1/markets/{ticker}
// The price is quote per base in the ticker's orientation.
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	t, err := s.tickers.Parse(chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sim.Exchange.Lookup(t.Base, t.Quote)
	if !ok {
		writeError(w, "market not found: "+t.Symbol, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.view(t.Symbol, v))
}

func (s *Service) view(symbol string, v amm.View) MarketView {
	m := v.Market()
	in, out := v.Reserves()
	return MarketView{
		Ticker:    symbol,
		Pair:      m.Pair,
		Base:      v.In(),
		Quote:     v.Out(),
		Reserves:  [2]int64{in, out},
		Price:     v.Price().Decimal(),
		Yesterday: v.Yesterday().Decimal(),
		Fee:       m.Pool.Fee.Decimal(),
		Today:     m.Today,
	}
}

// GetMarketHistory handles GET /api/v1/markets/{ticker}/history?limit=N
// Returns recorded closes in canonical orientation, oldest first.
func (s *Service) GetMarketHistory(w http.ResponseWriter, r *http.Request) {
	t, err := s.tickers.Parse(chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	closes, err := s.store.GetHistory(r.Context(), t.Pair.String(), limit)
	if err != nil {
		writeError(w, "failed to get market history", http.StatusInternalServerError)
		return
	}
	if closes == nil {
		closes = []model.MarketClose{}
	}
	writeJSON(w, http.StatusOK, closes)
}

// GetAgent handles GET /api/v1/agents/{id}
func (s *Service) GetAgent(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, "agent id must be an integer", http.StatusBadRequest)
		return
	}
	id := model.ID(n)

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.sim.Factory(id); ok {
		writeJSON(w, http.StatusOK, AgentView{Kind: "factory", Factory: f})
		return
	}
	if p, ok := s.sim.Pop(id); ok {
		writeJSON(w, http.StatusOK, AgentView{Kind: "pop", Pop: p})
		return
	}
	writeError(w, "agent not found", http.StatusNotFound)
}

// AdvanceTurn handles POST /api/v1/turn?n=N
// Runs N turns (default 1) and returns their reports.
func (s *Service) AdvanceTurn(w http.ResponseWriter, r *http.Request) {
	n := 1
	if v := r.URL.Query().Get("n"); v != "" {
		var err error
		if n, err = strconv.Atoi(v); err != nil || n < 1 || n > MaxTurnsPerRequest {
			writeError(w, fmt.Sprintf("n must be between 1 and %d", MaxTurnsPerRequest), http.StatusBadRequest)
			return
		}
	}

	resp := TurnResponse{Reports: make([]sim.Report, 0, n)}
	for range n {
		report, err := s.Step(r.Context())
		if err != nil {
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Reports = append(resp.Reports, report)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateSnapshot handles POST /api/v1/snapshots
func (s *Service) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := s.Save(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// ListSnapshots handles GET /api/v1/snapshots
func (s *Service) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.ListSnapshots(r.Context())
	if err != nil {
		writeError(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []model.SnapshotInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

