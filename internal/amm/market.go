package amm

import (
	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// Interval is one turn of price and volume for a market, in canonical
// orientation (quote per base).
type Interval struct {
	Open        exact.Fraction `json:"open"`
	High        exact.Fraction `json:"high"`
	Low         exact.Fraction `json:"low"`
	Close       exact.Fraction `json:"close"`
	VolumeBase  int64          `json:"volume_base"`
	VolumeQuote int64          `json:"volume_quote"`
}

func openInterval(price exact.Fraction) Interval {
	return Interval{Open: price, High: price, Low: price, Close: price}
}

// Market is a pool plus its rolling history and the dividend fraction
// drained from it each turn.
type Market struct {
	Pair     model.Pair     `json:"pair"`
	Pool     Pool           `json:"pool"`
	Dividend exact.Fraction `json:"dividend"`
	Today    Interval       `json:"today"`
	History  []Interval     `json:"history"`
	Length   int            `json:"length"`
}

func newMarket(pair model.Pair, pool Pool, dividend exact.Fraction, length int) *Market {
	return &Market{
		Pair:     pair,
		Pool:     pool,
		Dividend: dividend,
		Today:    openInterval(pool.Price()),
		Length:   length,
	}
}

// Yesterday is the previous close, or the spot price before any close.
func (m *Market) Yesterday() exact.Fraction {
	if n := len(m.History); n > 0 {
		return m.History[n-1].Close
	}
	return m.Pool.Price()
}

func (m *Market) record(base, quote int64) {
	price := m.Pool.Price()
	m.Today.Close = price
	m.Today.High = exact.Max(m.Today.High, price)
	m.Today.Low = exact.Min(m.Today.Low, price)
	m.Today.VolumeBase += base
	m.Today.VolumeQuote += quote
}

// close rolls today's interval into history and drains the dividend.
func (m *Market) close() (closed Interval, base, quote int64) {
	closed = m.Today
	m.History = append(m.History, closed)
	if m.Length > 0 && len(m.History) > m.Length {
		m.History = append(m.History[:0], m.History[len(m.History)-m.Length:]...)
	}
	base, quote = m.Pool.Drain(m.Dividend)
	m.Today = openInterval(m.Pool.Price())
	return closed, base, quote
}

// View is a market seen from one side: it sells In and buys Out. A flipped
// view is the conjugate of the canonical orientation; the pool itself is
// never reoriented.
type View struct {
	m       *Market
	flipped bool
}

func (v View) Market() *Market { return v.m }

// In is the asset this view sells.
func (v View) In() model.Asset {
	if v.flipped {
		return v.m.Pair.Y
	}
	return v.m.Pair.X
}

// Out is the asset this view buys.
func (v View) Out() model.Asset {
	if v.flipped {
		return v.m.Pair.X
	}
	return v.m.Pair.Y
}

// Conjugate returns the same market seen from the other side.
func (v View) Conjugate() View {
	return View{m: v.m, flipped: !v.flipped}
}

// Reserves returns the in-side and out-side reserves.
func (v View) Reserves() (in, out int64) {
	if v.flipped {
		return v.m.Pool.Quote, v.m.Pool.Base
	}
	return v.m.Pool.Base, v.m.Pool.Quote
}

// Capacity is the largest input a single swap accepts.
func (v View) Capacity() int64 {
	in, _ := v.Reserves()
	return in
}

// Price is the spot price, Out per In.
func (v View) Price() exact.Fraction {
	in, out := v.Reserves()
	return exact.New(out, in)
}

// Yesterday is the previous close, Out per In.
func (v View) Yesterday() exact.Fraction {
	p := v.m.Yesterday()
	if v.flipped {
		return p.Inverse()
	}
	return p
}

// Quote simulates selling in without touching the pool.
func (v View) Quote(in int64) (cost, received int64) {
	inR, outR := v.Reserves()
	return quote(inR, outR, in, v.m.Pool.Fee)
}

// InputFor is the minimal input receiving at least want (capped one unit
// below the out reserve), ignoring the per-swap capacity.
func (v View) InputFor(want int64) int64 {
	inR, outR := v.Reserves()
	return inputFor(inR, outR, min(want, outR-1), v.m.Pool.Fee)
}

// Sell swaps an exact input and records the trade.
func (v View) Sell(in int64) (cost, received int64) {
	if v.flipped {
		cost, received = v.m.Pool.SellQuote(in)
		v.m.record(received, cost)
	} else {
		cost, received = v.m.Pool.SellBase(in)
		v.m.record(cost, received)
	}
	return cost, received
}

// SellLimited spends at most maxIn to receive up to want.
func (v View) SellLimited(maxIn, want int64) (cost, received int64) {
	if maxIn <= 0 || want <= 0 {
		return 0, 0
	}
	return v.Sell(min(maxIn, v.InputFor(want)))
}
