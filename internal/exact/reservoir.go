package exact

import (
	"golang.org/x/exp/constraints"

	"github.com/rarestbarbie/majesty-sub001/internal/invariant"
)

// Reservoir is a running total with today's inflow and outflow. Backs cash,
// stock, and share counts. Added and Removed are reset once per turn by
// Turn, at the start of the turn that will overwrite them.
type Reservoir[T constraints.Integer] struct {
	Total   T `json:"total"`
	Added   T `json:"added"`
	Removed T `json:"removed"`
}

func (r *Reservoir[T]) Add(n T) {
	invariant.Check(n >= 0, "reservoir add of negative amount %d", n)
	r.Total += n
	r.Added += n
}

func (r *Reservoir[T]) Remove(n T) {
	invariant.Check(n >= 0, "reservoir remove of negative amount %d", n)
	invariant.Check(n <= r.Total, "reservoir remove %d exceeds total %d", n, r.Total)
	r.Total -= n
	r.Removed += n
}

// Turn zeroes the per-turn deltas.
func (r *Reservoir[T]) Turn() {
	r.Added = 0
	r.Removed = 0
}

// Before is the total at the start of the turn.
func (r Reservoir[T]) Before() T {
	return r.Total - r.Added + r.Removed
}

// Change is the net movement this turn.
func (r Reservoir[T]) Change() T {
	return r.Added - r.Removed
}
