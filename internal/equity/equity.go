// Package equity tracks ownership of share-issuing agents: who holds how
// many shares, and how dividends, buybacks and splits move cash and shares
// between the issuer and its holders.
package equity

import (
	"sort"

	"github.com/rarestbarbie/majesty-sub001/internal/budget"
	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/invariant"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/random"
)

// Stake is one owner's holding in an issuer.
type Stake struct {
	Owner  model.ID               `json:"owner"`
	Shares exact.Reservoir[int64] `json:"shares"`
}

// Payout is cash owed to one holder, and for buybacks the shares it gave up.
type Payout struct {
	Owner  model.ID `json:"owner"`
	Amount int64    `json:"amount"`
	Shares int64    `json:"shares,omitempty"`
}

// Ledger is the set of stakes in one issuer, ordered by owner.
type Ledger struct {
	Stakes []Stake `json:"stakes"`
	Splits int     `json:"splits"`
}

func (l *Ledger) find(owner model.ID) (int, bool) {
	i := sort.Search(len(l.Stakes), func(i int) bool { return l.Stakes[i].Owner >= owner })
	return i, i < len(l.Stakes) && l.Stakes[i].Owner == owner
}

// Issue creates shares for owner.
func (l *Ledger) Issue(owner model.ID, shares int64) {
	if shares <= 0 {
		return
	}
	i, ok := l.find(owner)
	if !ok {
		l.Stakes = append(l.Stakes, Stake{})
		copy(l.Stakes[i+1:], l.Stakes[i:])
		l.Stakes[i] = Stake{Owner: owner}
	}
	l.Stakes[i].Shares.Add(shares)
}

// Outstanding is the total number of shares held.
func (l *Ledger) Outstanding() int64 {
	var n int64
	for _, s := range l.Stakes {
		n += s.Shares.Total
	}
	return n
}

// Stake returns the shares held by owner.
func (l *Ledger) Stake(owner model.ID) int64 {
	if i, ok := l.find(owner); ok {
		return l.Stakes[i].Shares.Total
	}
	return 0
}

// shuffled returns stake indices in a random order so the remainder units
// of a split do not always land on the same holders.
func (l *Ledger) shuffled(rng *random.Source) []int {
	order := make([]int, len(l.Stakes))
	for i := range order {
		order[i] = i
	}
	random.Shuffle(rng, order)
	return order
}

// Dividend splits amount across holders in proportion to their shares. It
// returns nil when there is nothing to pay or nobody to pay it to.
func (l *Ledger) Dividend(amount int64, rng *random.Source) []Payout {
	if amount <= 0 {
		return nil
	}
	order := l.shuffled(rng)
	weights := make([]int64, len(order))
	for k, i := range order {
		weights[k] = l.Stakes[i].Shares.Total
	}
	grants := budget.Proportional(amount, weights)
	if grants == nil {
		return nil
	}
	payouts := make([]Payout, 0, len(grants))
	for k, i := range order {
		if grants[k] > 0 {
			payouts = append(payouts, Payout{Owner: l.Stakes[i].Owner, Amount: grants[k]})
		}
	}
	return payouts
}

// Buyback retires as many shares as budget buys at price (cash per share),
// taken from holders in proportion to their holdings. The cash paid never
// exceeds budget.
func (l *Ledger) Buyback(budgetCash int64, price exact.Fraction, rng *random.Source) []Payout {
	if budgetCash <= 0 || price.Sign() <= 0 {
		return nil
	}
	target := price.Inverse().ScaleFloor(budgetCash)
	if target == 0 {
		return nil
	}
	order := l.shuffled(rng)
	holdings := make([]int64, len(order))
	for k, i := range order {
		holdings[k] = l.Stakes[i].Shares.Total
	}
	taken := budget.Distribute(target, holdings)
	if taken == nil {
		return nil
	}

	var payouts []Payout
	var paid int64
	for k, i := range order {
		if taken[k] == 0 {
			continue
		}
		cash := price.ScaleFloor(taken[k])
		l.Stakes[i].Shares.Remove(taken[k])
		paid += cash
		payouts = append(payouts, Payout{Owner: l.Stakes[i].Owner, Amount: cash, Shares: taken[k]})
	}
	invariant.Check(paid <= budgetCash, "equity: buyback paid %d of budget %d", paid, budgetCash)
	return payouts
}

// Split scales every holding by ratio, rounding down.
func (l *Ledger) Split(ratio exact.Fraction) {
	invariant.Check(ratio.Sign() > 0, "equity: split by non-positive ratio %s", ratio)
	for i := range l.Stakes {
		s := &l.Stakes[i].Shares
		next := ratio.ScaleFloor(s.Total)
		if next > s.Total {
			s.Add(next - s.Total)
		} else {
			s.Remove(s.Total - next)
		}
	}
	l.Splits++
}

// Prune drops stakes whose owner no longer exists and stakes that held no
// shares at either end of the turn. It returns the shares retired.
func (l *Ledger) Prune(alive func(model.ID) bool) int64 {
	var retired int64
	kept := l.Stakes[:0]
	for _, s := range l.Stakes {
		if !alive(s.Owner) {
			retired += s.Shares.Total
			continue
		}
		if s.Shares.Total == 0 && s.Shares.Before() == 0 {
			continue
		}
		kept = append(kept, s)
	}
	l.Stakes = kept
	return retired
}

// Change is the net number of shares issued this turn, negative after a
// buyback.
func (l *Ledger) Change() int64 {
	var n int64
	for _, s := range l.Stakes {
		n += s.Shares.Change()
	}
	return n
}

// Turn resets every stake's per-turn deltas.
func (l *Ledger) Turn() {
	for i := range l.Stakes {
		l.Stakes[i].Shares.Turn()
	}
}
