package exact

import (
	"math"
	"math/bits"

	"github.com/rarestbarbie/majesty-sub001/internal/invariant"
)

// MulDiv returns floor(a·b/c) for non-negative a, b and positive c. The
// product is carried in 128 bits, so pool products like 10^10·10^10 do not
// overflow.
func MulDiv(a, b, c int64) int64 {
	q, _ := mulDiv(a, b, c)
	return q
}

// MulDivCeil returns ceil(a·b/c) under the same domain as MulDiv.
func MulDivCeil(a, b, c int64) int64 {
	q, r := mulDiv(a, b, c)
	if r != 0 {
		invariant.Check(q < math.MaxInt64, "muldiv ceil overflow: %d*%d/%d", a, b, c)
		q++
	}
	return q
}

// MulDivRem returns floor(a·b/c) and the remainder a·b mod c.
func MulDivRem(a, b, c int64) (int64, int64) {
	return mulDiv(a, b, c)
}

func mulDiv(a, b, c int64) (int64, int64) {
	invariant.Check(a >= 0 && b >= 0 && c > 0, "muldiv domain: %d*%d/%d", a, b, c)
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	invariant.Check(hi < uint64(c), "muldiv overflow: %d*%d/%d", a, b, c)
	q, r := bits.Div64(hi, lo, uint64(c))
	invariant.Check(q <= math.MaxInt64, "muldiv overflow: %d*%d/%d", a, b, c)
	return int64(q), int64(r)
}

// cmpProducts compares a·b with c·d for arbitrary signs.
func cmpProducts(a, b, c, d int64) int {
	sl := sign(a) * sign(b)
	sr := sign(c) * sign(d)
	if sl != sr {
		if sl < sr {
			return -1
		}
		return 1
	}
	if sl == 0 {
		return 0
	}
	lh, ll := bits.Mul64(abs(a), abs(b))
	rh, rl := bits.Mul64(abs(c), abs(d))
	m := 0
	switch {
	case lh < rh || (lh == rh && ll < rl):
		m = -1
	case lh > rh || (lh == rh && ll > rl):
		m = 1
	}
	return m * sl
}

func sign(x int64) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}

func abs(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// mulChecked multiplies two int64 values, failing the invariant on overflow.
func mulChecked(a, b int64) int64 {
	hi, lo := bits.Mul64(abs(a), abs(b))
	invariant.Check(hi == 0 && lo <= math.MaxInt64, "fraction overflow: %d*%d", a, b)
	p := int64(lo)
	if sign(a)*sign(b) < 0 {
		return -p
	}
	return p
}
