package labor

import (
	"testing"

	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/random"
)

var half = exact.New(1, 2)

func hired(res Result, employer model.ID) int64 {
	var n int64
	for _, h := range res.Hires {
		if h.Employer == employer {
			n += h.Count
		}
	}
	return n
}

func TestMatch_HighestBidderFirst(t *testing.T) {
	m := NewMarket()
	k := Key{Job: Worker, Location: 1}
	m.Post(k, Offer{Employer: 1, Wage: 10, Size: 5})
	m.Post(k, Offer{Employer: 2, Wage: 8, Size: 5})
	m.Register(k, 100, 7)

	res := m.Match(random.New(1), half)

	if got := hired(res, 1); got != 5 {
		t.Errorf("wage-10 offer hired %d, want 5", got)
	}
	if got := hired(res, 2); got != 2 {
		t.Errorf("wage-8 offer hired %d, want 2", got)
	}
	p, ok := res.Raise[Position{Employer: 2, Job: Worker}]
	if !ok || !p.Equal(half) {
		t.Errorf("wage-8 employer raise probability %v (present %v), want 1/2", p, ok)
	}
	if _, ok := res.Raise[Position{Employer: 1, Job: Worker}]; ok {
		t.Error("filled employer should not be queued for a raise")
	}
}

func TestMatch_CyclesCohorts(t *testing.T) {
	m := NewMarket()
	k := Key{Job: Clerk, Location: 3}
	m.Post(k, Offer{Employer: 1, Wage: 5, Size: 10})
	m.Register(k, 100, 4)
	m.Register(k, 101, 3)
	m.Register(k, 102, 2)

	res := m.Match(random.New(42), half)
	if got := hired(res, 1); got != 9 {
		t.Errorf("hired %d, want every unemployed (9)", got)
	}
	for _, h := range res.Hires {
		if h.Job != Clerk || h.Location != 3 || h.Wage != 5 {
			t.Errorf("unexpected hire %+v", h)
		}
	}
}

func TestMatch_KeysDoNotMix(t *testing.T) {
	m := NewMarket()
	m.Post(Key{Job: Worker, Location: 1}, Offer{Employer: 1, Wage: 5, Size: 3})
	m.Register(Key{Job: Worker, Location: 2}, 100, 3)
	m.Register(Key{Job: Clerk, Location: 1}, 101, 3)

	res := m.Match(random.New(1), half)
	if len(res.Hires) != 0 {
		t.Errorf("offers matched across keys: %+v", res.Hires)
	}
}

func TestMatch_Resets(t *testing.T) {
	m := NewMarket()
	k := Key{Job: Worker, Location: 1}
	m.Post(k, Offer{Employer: 1, Wage: 5, Size: 3})
	m.Register(k, 100, 3)
	m.Match(random.New(1), half)

	res := m.Match(random.New(1), half)
	if len(res.Hires) != 0 || len(res.Raise) != 0 {
		t.Error("second match should see an empty market")
	}
}

func TestRaise_Graduated(t *testing.T) {
	tests := []struct {
		name string
		n    int
		rate exact.Fraction
		want []exact.Fraction
	}{
		{"half of four", 4, half, []exact.Fraction{exact.Zero, exact.Zero, exact.One, exact.One}},
		{"half of three", 3, half, []exact.Fraction{exact.Zero, half, exact.One}},
		{"third of two", 2, exact.New(1, 3), []exact.Fraction{exact.Zero, exact.New(2, 3)}},
		{"all", 2, exact.One, []exact.Fraction{exact.One, exact.One}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			unfilled := make([]Offer, tc.n)
			for i := range unfilled {
				unfilled[i] = Offer{Employer: model.ID(i + 1)}
			}
			got := make(map[Position]exact.Fraction)
			raise(got, Worker, unfilled, tc.rate)
			for i, want := range tc.want {
				p := got[Position{Employer: model.ID(i + 1), Job: Worker}]
				if !p.Equal(want) {
					t.Errorf("offer %d: probability %s, want %s", i, p, want)
				}
			}
		})
	}
}
