// Package exact provides the integer-exact arithmetic the simulation core
// uses wherever float drift would break conservation: reduced rational
// fractions, 128-bit multiply-divide, and per-turn reservoirs.
package exact

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rarestbarbie/majesty-sub001/internal/invariant"
)

// PriceScale is the number of decimal places used when a Fraction is shown
// as a decimal.
var PriceScale int32 = 8

// ErrInvalidFraction is returned when text cannot be parsed as a fraction.
var ErrInvalidFraction = errors.New("exact: invalid fraction")

// Fraction is an exact rational n/d, always reduced with d > 0. Zero is
// always stored as the zero value, so equal fractions are equal structs.
type Fraction struct {
	n, d int64
}

var (
	Zero = Fraction{}
	One  = Fraction{1, 1}
)

// New returns n/d reduced.
func New(n, d int64) Fraction {
	invariant.Check(d != 0, "fraction with zero denominator")
	if d < 0 {
		n, d = -n, -d
	}
	if n == 0 {
		return Zero
	}
	g := gcd(n, d)
	return Fraction{n / g, d / g}
}

// Int returns n/1.
func Int(n int64) Fraction {
	if n == 0 {
		return Zero
	}
	return Fraction{n, 1}
}

// Num returns the numerator.
func (f Fraction) Num() int64 { return f.n }

// Den returns the denominator.
func (f Fraction) Den() int64 {
	if f.d == 0 {
		return 1
	}
	return f.d
}

func (f Fraction) IsZero() bool { return f.n == 0 }
func (f Fraction) Sign() int    { return sign(f.n) }

func (f Fraction) Add(g Fraction) Fraction {
	fd, gd := f.Den(), g.Den()
	l := gd / gcd(fd, gd)
	return New(mulChecked(f.n, l)+mulChecked(g.n, fd/gcd(fd, gd)), mulChecked(fd, l))
}

func (f Fraction) Sub(g Fraction) Fraction {
	return f.Add(Fraction{-g.n, g.Den()})
}

func (f Fraction) Mul(g Fraction) Fraction {
	if f.n == 0 || g.n == 0 {
		return Zero
	}
	a := gcd(f.n, g.Den())
	b := gcd(g.n, f.Den())
	return New(mulChecked(f.n/a, g.n/b), mulChecked(f.Den()/b, g.Den()/a))
}

// Inverse returns d/n. The fraction must be non-zero.
func (f Fraction) Inverse() Fraction {
	invariant.Check(f.n != 0, "inverse of zero fraction")
	return New(f.Den(), f.n)
}

// Cmp returns -1, 0 or +1.
func (f Fraction) Cmp(g Fraction) int {
	return cmpProducts(f.n, g.Den(), g.n, f.Den())
}

func (f Fraction) Less(g Fraction) bool  { return f.Cmp(g) < 0 }
func (f Fraction) Equal(g Fraction) bool { return f.Cmp(g) == 0 }

// Min returns the smaller of f and g.
func Min(f, g Fraction) Fraction {
	if g.Less(f) {
		return g
	}
	return f
}

// Max returns the larger of f and g.
func Max(f, g Fraction) Fraction {
	if f.Less(g) {
		return g
	}
	return f
}

func (f Fraction) Float64() float64 {
	return float64(f.n) / float64(f.Den())
}

// ScaleFloor returns floor(x·f) for x ≥ 0 and f ≥ 0.
func (f Fraction) ScaleFloor(x int64) int64 {
	return MulDiv(x, f.n, f.Den())
}

// ScaleCeil returns ceil(x·f) for x ≥ 0 and f ≥ 0.
func (f Fraction) ScaleCeil(x int64) int64 {
	return MulDivCeil(x, f.n, f.Den())
}

// Decimal converts the fraction for display and NUMERIC storage.
func (f Fraction) Decimal() decimal.Decimal {
	return decimal.NewFromInt(f.n).DivRound(decimal.NewFromInt(f.Den()), PriceScale)
}

// FromDecimal converts a terminating decimal exactly.
func FromDecimal(v decimal.Decimal) (Fraction, error) {
	coef := v.Coefficient()
	if !coef.IsInt64() {
		return Zero, fmt.Errorf("%w: %s out of range", ErrInvalidFraction, v)
	}
	n := coef.Int64()
	exp := v.Exponent()
	d := int64(1)
	for ; exp > 0; exp-- {
		if n > math.MaxInt64/10 || n < math.MinInt64/10 {
			return Zero, fmt.Errorf("%w: %s out of range", ErrInvalidFraction, v)
		}
		n *= 10
	}
	for ; exp < 0; exp++ {
		if d > math.MaxInt64/10 {
			return Zero, fmt.Errorf("%w: %s too precise", ErrInvalidFraction, v)
		}
		d *= 10
	}
	return New(n, d), nil
}

func (f Fraction) String() string {
	if f.Den() == 1 {
		return strconv.FormatInt(f.n, 10)
	}
	return strconv.FormatInt(f.n, 10) + "/" + strconv.FormatInt(f.Den(), 10)
}

// Parse accepts "n/d", "n", or a decimal literal such as "0.003".
func Parse(s string) (Fraction, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		if err != nil {
			return Zero, fmt.Errorf("%w: %q", ErrInvalidFraction, s)
		}
		d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err != nil || d == 0 {
			return Zero, fmt.Errorf("%w: %q", ErrInvalidFraction, s)
		}
		return New(n, d), nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidFraction, s)
	}
	return FromDecimal(v)
}

func (f Fraction) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Fraction) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
