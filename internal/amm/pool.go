// Package amm implements the constant-product liquidity pools every
// tradeable good and currency pair is exchanged through, the exchange that
// owns them, and triangular arbitrage across them.
//
// All reserves and amounts are int64 and every division floors in the
// pool's favour, so base·quote never decreases across a swap.
package amm

import (
	"errors"
	"math/bits"

	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/invariant"
)

var (
	// ErrInvalidFee is returned when a fee is outside [0, 1).
	ErrInvalidFee = errors.New("amm: fee must be in [0, 1)")

	// ErrEmptyReserve is returned when a pool would start with a zero side.
	ErrEmptyReserve = errors.New("amm: pool reserves must be positive")
)

// Pool is a two-asset constant-product market maker.
type Pool struct {
	Base  int64          `json:"base"`
	Quote int64          `json:"quote"`
	Fee   exact.Fraction `json:"fee"`
}

// NewPool creates a pool with the given reserves and fee.
func NewPool(base, quote int64, fee exact.Fraction) (*Pool, error) {
	if fee.Sign() < 0 || !fee.Less(exact.One) {
		return nil, ErrInvalidFee
	}
	if base <= 0 || quote <= 0 {
		return nil, ErrEmptyReserve
	}
	return &Pool{Base: base, Quote: quote, Fee: fee}, nil
}

// Price is the spot price, quote per base.
func (p *Pool) Price() exact.Fraction {
	return exact.New(p.Quote, p.Base)
}

// SellBase swaps an exact base input for quote. The input is bounded by the
// current base reserve; cost is what was actually taken.
func (p *Pool) SellBase(in int64) (cost, received int64) {
	cost, received, p.Base, p.Quote = swap(p.Base, p.Quote, in, p.Fee)
	return cost, received
}

// SellQuote swaps an exact quote input for base.
func (p *Pool) SellQuote(in int64) (cost, received int64) {
	cost, received, p.Quote, p.Base = swap(p.Quote, p.Base, in, p.Fee)
	return cost, received
}

// Deposit adds liquidity to both sides.
func (p *Pool) Deposit(base, quote int64) {
	invariant.Check(base >= 0 && quote >= 0, "negative deposit %d/%d", base, quote)
	p.Base += base
	p.Quote += quote
}

// Drain removes floor(f·reserve) from each side, never leaving a side
// below one unit, and returns what was removed.
func (p *Pool) Drain(f exact.Fraction) (base, quote int64) {
	if f.Sign() <= 0 {
		return 0, 0
	}
	base = min(f.ScaleFloor(p.Base), p.Base-1)
	quote = min(f.ScaleFloor(p.Quote), p.Quote-1)
	p.Base -= base
	p.Quote -= quote
	return base, quote
}

// quote simulates an exact-input swap without mutating anything.
func quote(inR, outR, in int64, fee exact.Fraction) (cost, received int64) {
	in = min(in, inR)
	if in <= 0 {
		return 0, 0
	}
	eff := exact.One.Sub(fee).ScaleFloor(in)
	if eff <= 0 {
		return 0, 0
	}
	next := exact.MulDivCeil(inR, outR, inR+eff)
	received = outR - next
	if received <= 0 {
		return 0, 0
	}
	return in, received
}

// inputFor is the minimal input that receives at least want, ignoring the
// bounded-swap cap. want must be below outR.
func inputFor(inR, outR, want int64, fee exact.Fraction) int64 {
	if want <= 0 {
		return 0
	}
	invariant.Check(want < outR, "want %d exhausts reserve %d", want, outR)
	eff := exact.MulDivCeil(inR, outR, outR-want) - inR
	keep := exact.One.Sub(fee)
	return exact.MulDivCeil(eff, keep.Den(), keep.Num())
}

func swap(inR, outR, in int64, fee exact.Fraction) (cost, received, newIn, newOut int64) {
	hi0, lo0 := mul128(inR, outR)
	cost, received = quote(inR, outR, in, fee)
	newIn, newOut = inR+cost, outR-received
	invariant.Check(newIn > 0 && newOut > 0, "swap drained pool to %d/%d", newIn, newOut)
	hi1, lo1 := mul128(newIn, newOut)
	invariant.Check(hi1 > hi0 || (hi1 == hi0 && lo1 >= lo0), "swap decreased pool product")
	return cost, received, newIn, newOut
}

func mul128(a, b int64) (hi, lo uint64) {
	return bits.Mul64(uint64(a), uint64(b))
}
