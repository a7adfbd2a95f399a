// Package random is the single seeded generator threaded through every
// sampling call in the simulation. The core creates no entropy of its own:
// the same seed and agent order reproduce the same trajectory bit for bit.
package random

import (
	"math"
	"math/rand/v2"

	"github.com/rarestbarbie/majesty-sub001/internal/exact"
)

// Source is a seeded PCG generator. It is not safe for concurrent use; the
// turn loop owns it and passes it by pointer.
type Source struct {
	pcg *rand.PCG
	r   *rand.Rand
}

// New returns a generator seeded with seed.
func New(seed uint64) *Source {
	pcg := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Source{pcg: pcg, r: rand.New(pcg)}
}

// Int64N returns a uniform value in [0, n).
func (s *Source) Int64N(n int64) int64 {
	return s.r.Int64N(n)
}

// Float64 returns a uniform value in [0, 1).
func (s *Source) Float64() float64 {
	return s.r.Float64()
}

// Roll succeeds with probability p. p ≤ 0 never succeeds and p ≥ 1 always
// does; neither consumes randomness.
func (s *Source) Roll(p exact.Fraction) bool {
	if p.Sign() <= 0 {
		return false
	}
	if !p.Less(exact.One) {
		return true
	}
	return s.r.Int64N(p.Den()) < p.Num()
}

// Shuffle permutes n elements through swap.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// Shuffle permutes xs in place.
func Shuffle[T any](s *Source, xs []T) {
	s.r.Shuffle(len(xs), func(i, j int) { xs[i], xs[j] = xs[j], xs[i] })
}

// exactBinomialLimit bounds the trial count sampled one Bernoulli at a time.
const exactBinomialLimit = 256

// Binomial draws the number of successes in n trials of probability p.
// Large n uses a rounded normal approximation clamped to [0, n].
func (s *Source) Binomial(n int64, p exact.Fraction) int64 {
	if n <= 0 || p.Sign() <= 0 {
		return 0
	}
	if !p.Less(exact.One) {
		return n
	}
	if n <= exactBinomialLimit {
		var k int64
		for i := int64(0); i < n; i++ {
			if s.r.Int64N(p.Den()) < p.Num() {
				k++
			}
		}
		return k
	}
	pf := p.Float64()
	mean := float64(n) * pf
	sd := math.Sqrt(mean * (1 - pf))
	k := int64(math.Round(mean + sd*s.r.NormFloat64()))
	return max(0, min(n, k))
}

// MarshalBinary captures the generator state for snapshots.
func (s *Source) MarshalBinary() ([]byte, error) {
	return s.pcg.MarshalBinary()
}

// UnmarshalBinary restores a state captured by MarshalBinary.
func (s *Source) UnmarshalBinary(data []byte) error {
	if s.pcg == nil {
		s.pcg = &rand.PCG{}
		s.r = rand.New(s.pcg)
	}
	return s.pcg.UnmarshalBinary(data)
}
