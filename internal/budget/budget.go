// Package budget splits a fund across integer demands without rounding
// overrun. It backs every cash split in the economy: input tiers, payrolls,
// dividends, buybacks, and cost-weighted stockpile purchases.
package budget

import (
	"math"
	"sort"

	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/invariant"
)

// Distribute grants asks from funds. If the asks fit, each is granted in
// full; otherwise funds are split in proportion to the asks by the
// largest-remainder method, so the grants sum to exactly funds. It returns
// nil when every ask is zero, which callers treat as "nothing to do" rather
// than "grant zero to everyone".
func Distribute(funds int64, asks []int64) []int64 {
	total := sum(asks)
	if total == 0 {
		return nil
	}
	if total <= funds {
		return append([]int64(nil), asks...)
	}
	return split(max(funds, 0), asks, total)
}

// Proportional splits exactly funds in proportion to weights, regardless of
// how large the weights are. It returns nil when every weight is zero.
func Proportional(funds int64, weights []int64) []int64 {
	total := sum(weights)
	if total == 0 {
		return nil
	}
	return split(max(funds, 0), weights, total)
}

func sum(xs []int64) int64 {
	var total int64
	for _, x := range xs {
		invariant.Check(x >= 0, "budget: negative demand %d", x)
		invariant.Check(total <= math.MaxInt64-x, "budget: demand total overflows")
		total += x
	}
	return total
}

func split(funds int64, weights []int64, total int64) []int64 {
	grants := make([]int64, len(weights))
	remainders := make([]int64, len(weights))
	left := funds
	for i, w := range weights {
		grants[i], remainders[i] = exact.MulDivRem(w, funds, total)
		left -= grants[i]
	}
	invariant.Check(left >= 0 && left <= int64(len(weights)), "budget: remainder %d out of range", left)
	if left == 0 {
		return grants
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	// All remainders share the denominator total, so they compare directly.
	// Ties go to the lower index.
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})
	for _, i := range order[:left] {
		grants[i]++
	}
	return grants
}
