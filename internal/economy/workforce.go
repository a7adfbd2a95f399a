package economy

import (
	"sort"

	"github.com/rarestbarbie/majesty-sub001/internal/account"
	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/invariant"
	"github.com/rarestbarbie/majesty-sub001/internal/labor"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/random"
)

// Member is the part of a pop employed by one workforce.
type Member struct {
	Pop   model.ID `json:"pop"`
	Count int64    `json:"count"`
}

// Workforce is an employer's staff for one job. Raise is the probability,
// left by yesterday's matching, that the next hiring round raises Wage.
type Workforce struct {
	Limit   int64          `json:"limit"`
	Count   int64          `json:"count"`
	Hired   int64          `json:"hired"`
	Fired   int64          `json:"fired"`
	Quit    int64          `json:"quit"`
	Wage    int64          `json:"wage"`
	Raise   exact.Fraction `json:"raise"`
	Members []Member       `json:"members"`
}

// Turn zeroes today's movements.
func (f *Workforce) Turn() {
	f.Hired, f.Fired, f.Quit = 0, 0, 0
}

// Open is the number of unfilled positions.
func (f *Workforce) Open() int64 {
	return max(0, f.Limit-f.Count)
}

// Payroll is a day's pay for the current headcount.
func (f *Workforce) Payroll() int64 {
	return f.Count * f.Wage
}

// Hire adds count people from pop.
func (f *Workforce) Hire(pop model.ID, count int64) {
	if count <= 0 {
		return
	}
	i := sort.Search(len(f.Members), func(i int) bool { return f.Members[i].Pop >= pop })
	if i == len(f.Members) || f.Members[i].Pop != pop {
		f.Members = append(f.Members, Member{})
		copy(f.Members[i+1:], f.Members[i:])
		f.Members[i] = Member{Pop: pop}
	}
	f.Members[i].Count += count
	f.Count += count
	f.Hired += count
}

// release removes count people of member i and returns them to their pop.
func (f *Workforce) release(pop Population, i int, count int64) {
	m := &f.Members[i]
	invariant.Check(count <= m.Count, "workforce: release %d of %d", count, m.Count)
	m.Count -= count
	f.Count -= count
	pop.Release(m.Pop, count)
}

func (f *Workforce) compact() {
	kept := f.Members[:0]
	for _, m := range f.Members {
		if m.Count > 0 {
			kept = append(kept, m)
		}
	}
	f.Members = kept
}

// Run pays the workforce from funds through a shuffled payscale, then lays
// off the heads it could not pay or posts an offer for the openings the
// leftover funds can afford. Only whole wages are paid; a shortfall inside
// a member leaves the remainder unspent. Yesterday's raise probability is
// consumed whatever the outcome.
func (f *Workforce) Run(w *World, self model.ID, from *account.Account, funds int64, cat account.Category, key labor.Key) {
	funds = min(funds, from.Balance())
	if f.Wage <= 0 {
		f.Wage = 1
	}
	raise := f.Raise
	f.Raise = exact.Zero

	order := make([]int, len(f.Members))
	for i := range order {
		order[i] = i
	}
	random.Shuffle(w.Rng, order)

	var paid, realized int64
	unpaid := make([]int64, len(f.Members))
	for _, i := range order {
		m := f.Members[i]
		to, ok := w.Population.Account(m.Pop)
		if !ok {
			unpaid[i] = m.Count
			continue
		}
		heads := min(m.Count, (funds-paid)/f.Wage)
		amount := heads * f.Wage
		account.Transfer(from, to, amount, cat, cat)
		paid += amount
		realized += heads
		unpaid[i] = m.Count - heads
	}

	if realized < f.Count {
		for i, n := range unpaid {
			if n > 0 {
				f.release(w.Population, i, n)
				f.Fired += n
			}
		}
		f.compact()
		return
	}

	open := f.Open()
	if open == 0 {
		return
	}
	if w.Rng.Roll(raise) {
		f.Wage += max(1, w.Settings.WageRaise.ScaleCeil(f.Wage))
	}
	affordable := (funds - paid) / f.Wage
	if hire := min(open, affordable); hire > 0 {
		w.Labor.Post(key, labor.Offer{Employer: self, Wage: f.Wage, Size: hire})
	}
}

// Quits draws today's voluntary departures.
func (f *Workforce) Quits(w *World, rate exact.Fraction) {
	for i := range f.Members {
		if n := w.Rng.Binomial(f.Members[i].Count, rate); n > 0 {
			f.release(w.Population, i, n)
			f.Quit += n
		}
	}
	f.compact()
}

// Shrink lays off members, highest pop ID first, until Count fits Limit.
func (f *Workforce) Shrink(pop Population) {
	for i := len(f.Members) - 1; i >= 0 && f.Count > f.Limit; i-- {
		n := min(f.Members[i].Count, f.Count-f.Limit)
		f.release(pop, i, n)
		f.Fired += n
	}
	f.compact()
}
