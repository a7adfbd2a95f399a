// Package labor clears posted job offers against unemployed population
// cohorts once per turn.
package labor

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/random"
)

// Job is the kind of position an offer is for.
type Job uint8

const (
	Worker Job = iota
	Clerk
)

// ErrInvalidJob is returned when text names no known job.
var ErrInvalidJob = errors.New("labor: invalid job")

func (j Job) String() string {
	if j == Clerk {
		return "clerk"
	}
	return "worker"
}

func (j Job) MarshalText() ([]byte, error) { return []byte(j.String()), nil }

func (j *Job) UnmarshalText(text []byte) error {
	switch string(text) {
	case "worker":
		*j = Worker
	case "clerk":
		*j = Clerk
	default:
		return fmt.Errorf("%w: %q", ErrInvalidJob, text)
	}
	return nil
}

// Key groups offers and cohorts that can match each other.
type Key struct {
	Job      Job
	Location model.Location
}

// Offer is a block of openings posted by an employer at one wage.
type Offer struct {
	Employer model.ID `json:"employer"`
	Wage     int64    `json:"wage"`
	Size     int64    `json:"size"`
}

// Position identifies an employer's hiring queue for one job.
type Position struct {
	Employer model.ID
	Job      Job
}

// Hire is a match of count people from pop into an employer's offer.
type Hire struct {
	Employer model.ID       `json:"employer"`
	Pop      model.ID       `json:"pop"`
	Job      Job            `json:"job"`
	Location model.Location `json:"location"`
	Count    int64          `json:"count"`
	Wage     int64          `json:"wage"`
}

// Result is the outcome of one matching pass. Raise holds, for employers
// left with unfilled openings, the probability that they raise wages on
// their next turn.
type Result struct {
	Hires []Hire
	Raise map[Position]exact.Fraction
}

type cohort struct {
	pop  model.ID
	left int64
}

// Market accumulates one turn of offers and unemployed cohorts.
type Market struct {
	offers  map[Key][]Offer
	cohorts map[Key][]cohort
}

func NewMarket() *Market {
	return &Market{
		offers:  make(map[Key][]Offer),
		cohorts: make(map[Key][]cohort),
	}
}

// Post adds an offer block. Empty offers are ignored.
func (m *Market) Post(k Key, o Offer) {
	if o.Size <= 0 {
		return
	}
	m.offers[k] = append(m.offers[k], o)
}

// Register adds a cohort's unemployed count.
func (m *Market) Register(k Key, pop model.ID, unemployed int64) {
	if unemployed <= 0 {
		return
	}
	m.cohorts[k] = append(m.cohorts[k], cohort{pop: pop, left: unemployed})
}

// Match clears every key and resets the market. Offers are filled highest
// wage first from a shuffled cohort order. Of the N offers left unfilled at
// a key, with rate = p/pr, the last q = N·p/pr receive raise probability 1,
// the one before them r/pr where r = N·p mod pr, and the rest nothing.
func (m *Market) Match(rng *random.Source, rate exact.Fraction) Result {
	res := Result{Raise: make(map[Position]exact.Fraction)}

	keys := make([]Key, 0, len(m.offers))
	for k := range m.offers {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int {
		return cmp.Or(cmp.Compare(a.Job, b.Job), cmp.Compare(a.Location, b.Location))
	})

	for _, k := range keys {
		offers := m.offers[k]
		slices.SortStableFunc(offers, func(a, b Offer) int { return cmp.Compare(a.Wage, b.Wage) })

		cohorts := m.cohorts[k]
		random.Shuffle(rng, cohorts)

		var unfilled []Offer
		cursor := 0
		for i := len(offers) - 1; i >= 0; i-- {
			o := offers[i]
			want := o.Size
			for step := 0; step < len(cohorts) && want > 0; step++ {
				c := &cohorts[cursor]
				if n := min(want, c.left); n > 0 {
					c.left -= n
					want -= n
					res.Hires = append(res.Hires, Hire{
						Employer: o.Employer,
						Pop:      c.pop,
						Job:      k.Job,
						Location: k.Location,
						Count:    n,
						Wage:     o.Wage,
					})
				}
				if c.left == 0 {
					cursor = (cursor + 1) % len(cohorts)
				}
			}
			if want > 0 {
				unfilled = append(unfilled, o)
			}
		}
		raise(res.Raise, k.Job, unfilled, rate)
	}

	clear(m.offers)
	clear(m.cohorts)
	return res
}

// raise assigns graduated raise probabilities. unfilled is in processing
// order, so its tail holds the lowest bidders.
func raise(into map[Position]exact.Fraction, job Job, unfilled []Offer, rate exact.Fraction) {
	n := int64(len(unfilled))
	if n == 0 || rate.Sign() <= 0 {
		return
	}
	p, pr := rate.Num(), rate.Den()
	q, r := exact.MulDivRem(n, p, pr)
	q = min(q, n)

	set := func(o Offer, f exact.Fraction) {
		at := Position{Employer: o.Employer, Job: job}
		if prev, ok := into[at]; !ok || prev.Less(f) {
			into[at] = f
		}
	}
	for i := n - q; i < n; i++ {
		set(unfilled[i], exact.One)
	}
	if i := n - q - 1; i >= 0 && r > 0 {
		set(unfilled[i], exact.New(r, pr))
	}
}
