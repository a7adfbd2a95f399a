package amm

import (
	"slices"

	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// Settings configures markets the exchange creates on demand.
type Settings struct {
	Fee           exact.Fraction `json:"fee" yaml:"fee"`
	Dividend      exact.Fraction `json:"dividend" yaml:"dividend"`
	SeedLiquidity int64          `json:"seed_liquidity" yaml:"seed_liquidity"`
	HistoryLength int            `json:"history_length" yaml:"history_length"`
	Threshold     float64        `json:"threshold,omitempty" yaml:"threshold"`
}

// Exchange owns one market per unordered asset pair. Markets are created
// lazily and live as long as the exchange.
//
// Concurrent Sell calls on the same market must be serialized by the caller;
// the turn loop does this by running transact phases sequentially.
type Exchange struct {
	Settings Settings               `json:"settings"`
	Markets  map[model.Pair]*Market `json:"markets"`
	Injected map[model.Asset]int64  `json:"injected"`
	Drained  map[model.Asset]int64  `json:"drained"`
}

// NewExchange creates an empty exchange.
func NewExchange(s Settings) *Exchange {
	return &Exchange{
		Settings: s,
		Markets:  make(map[model.Pair]*Market),
		Injected: make(map[model.Asset]int64),
		Drained:  make(map[model.Asset]int64),
	}
}

// View returns the market for (sell, buy) oriented to sell `sell`,
// creating it with seed liquidity on both sides if it does not exist.
func (e *Exchange) View(sell, buy model.Asset) View {
	pair, flipped := model.NewPair(sell, buy)
	m, ok := e.Markets[pair]
	if !ok {
		seed := max(e.Settings.SeedLiquidity, 1)
		m = newMarket(pair, Pool{Base: seed, Quote: seed, Fee: e.Settings.Fee}, e.Settings.Dividend, e.Settings.HistoryLength)
		e.Markets[pair] = m
		e.Injected[pair.X] += seed
		e.Injected[pair.Y] += seed
	}
	return orient(m, flipped)
}

// orient views m selling its base, or its quote when flipped.
func orient(m *Market, flipped bool) View {
	v := View{m: m}
	if flipped {
		return v.Conjugate()
	}
	return v
}

// Lookup is View without creation.
func (e *Exchange) Lookup(sell, buy model.Asset) (View, bool) {
	pair, flipped := model.NewPair(sell, buy)
	m, ok := e.Markets[pair]
	if !ok {
		return View{}, false
	}
	return orient(m, flipped), true
}

// Open installs a market with explicit reserves, replacing nothing: an
// existing market receives the reserves as a deposit instead.
func (e *Exchange) Open(base, quote model.Asset, baseAmount, quoteAmount int64) View {
	v, ok := e.Lookup(base, quote)
	if !ok {
		pair, flipped := model.NewPair(base, quote)
		x, y := baseAmount, quoteAmount
		if flipped {
			x, y = y, x
		}
		m := newMarket(pair, Pool{Base: x, Quote: y, Fee: e.Settings.Fee}, e.Settings.Dividend, e.Settings.HistoryLength)
		e.Markets[pair] = m
		e.Injected[base] += baseAmount
		e.Injected[quote] += quoteAmount
		return orient(m, flipped)
	}
	if v.flipped {
		v.m.Pool.Deposit(quoteAmount, baseAmount)
	} else {
		v.m.Pool.Deposit(baseAmount, quoteAmount)
	}
	e.Injected[base] += baseAmount
	e.Injected[quote] += quoteAmount
	return v
}

// Pairs lists every market in canonical order.
func (e *Exchange) Pairs() []model.Pair {
	pairs := make([]model.Pair, 0, len(e.Markets))
	for p := range e.Markets {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, model.Pair.Compare)
	return pairs
}

// Reserves sums an asset across every pool.
func (e *Exchange) Reserves(a model.Asset) int64 {
	var total int64
	for p, m := range e.Markets {
		if p.X == a {
			total += m.Pool.Base
		}
		if p.Y == a {
			total += m.Pool.Quote
		}
	}
	return total
}

// Turn closes every market in canonical order, drains dividends into
// Drained, and returns the closed intervals.
func (e *Exchange) Turn() map[model.Pair]Interval {
	closes := make(map[model.Pair]Interval, len(e.Markets))
	for _, p := range e.Pairs() {
		closed, base, quote := e.Markets[p].close()
		closes[p] = closed
		e.Drained[p.X] += base
		e.Drained[p.Y] += quote
	}
	return closes
}

// ResetFlows zeroes the injection and drain counters.
func (e *Exchange) ResetFlows() {
	clear(e.Injected)
	clear(e.Drained)
}
