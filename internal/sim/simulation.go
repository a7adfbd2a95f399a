// Package sim runs the turn loop: every agent kind through the four
// phases, then labor matching, arbitrage, the exchange's close, account
// settlement, and a conservation audit of every currency.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rarestbarbie/majesty-sub001/internal/account"
	"github.com/rarestbarbie/majesty-sub001/internal/amm"
	"github.com/rarestbarbie/majesty-sub001/internal/config"
	"github.com/rarestbarbie/majesty-sub001/internal/economy"
	"github.com/rarestbarbie/majesty-sub001/internal/invariant"
	"github.com/rarestbarbie/majesty-sub001/internal/labor"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/random"
)

// ErrConservation is returned by Audit when cash appeared or vanished
// outside the explicit channels.
var ErrConservation = errors.New("sim: conservation violated")

// Report summarizes one turn.
type Report struct {
	Day       int64                       `json:"day"`
	Hires     int64                       `json:"hires"`
	Produced  int64                       `json:"produced"`
	Arbitrage []amm.Opportunity           `json:"arbitrage"`
	Closes    map[model.Pair]amm.Interval `json:"closes"`
	// Injected counts subsidies, new pool liquidity and local sales.
	Injected map[model.Currency]int64 `json:"injected"`
	// Drained counts pool dividends and local purchases.
	Drained map[model.Currency]int64 `json:"drained"`
	Money   map[model.Currency]int64 `json:"money"`
}

// ArbitrageProfit is the total profit of the turn's executed loops.
func (r Report) ArbitrageProfit() int64 {
	var total int64
	for _, o := range r.Arbitrage {
		total += o.Profit
	}
	return total
}

// Simulation owns the whole economy. It is not safe for concurrent use.
type Simulation struct {
	Day       int64
	Seed      uint64
	Exchange  *amm.Exchange
	Routes    *amm.RouteCache
	Desks     map[model.Currency]*account.Account
	Factories []*economy.Factory
	Pops      []*economy.Pop
	Money     map[model.Currency]int64

	rules       config.Simulation
	rng         *random.Source
	tables      *Tables
	authorities Authorities
	local       *LocalMarket
	labor       *labor.Market
	currencies  []model.Currency
	factoryByID map[model.ID]*economy.Factory
	popByID     map[model.ID]*economy.Pop
}

// New builds the starting world of a scenario.
func New(cfg *config.Config) (*Simulation, error) {
	s := newShell(cfg)
	s.Seed = cfg.Simulation.Seed
	s.rng = random.New(s.Seed)
	s.Exchange = amm.NewExchange(cfg.Simulation.Exchange)
	s.Routes = amm.NewRouteCache(cfg.Simulation.RouteCacheSize)
	s.Desks = make(map[model.Currency]*account.Account)
	for _, cur := range s.currencies {
		s.Desks[cur] = &account.Account{Liquid: cfg.Simulation.ArbitrageCapital}
	}

	for _, m := range cfg.Scenario.Markets {
		s.Exchange.Open(m.Base, m.Quote, m.BaseAmount, m.QuoteAmount)
	}
	s.Exchange.ResetFlows()

	for _, a := range cfg.Scenario.Factories {
		f, err := economy.NewFactory(s.tables, a.ID, a.Type, a.Location, a.Size)
		if err != nil {
			return nil, fmt.Errorf("factory %d: %w", a.ID, err)
		}
		f.Account.Liquid = a.Cash
		s.Factories = append(s.Factories, f)
	}
	for _, a := range cfg.Scenario.Pops {
		p, err := economy.NewPop(s.tables, a.ID, a.Type, a.Location, a.Size)
		if err != nil {
			return nil, fmt.Errorf("pop %d: %w", a.ID, err)
		}
		p.Account.Liquid = a.Cash
		s.Pops = append(s.Pops, p)
	}
	s.index()
	s.Money = s.Measure()
	return s, nil
}

// newShell builds the static parts of a simulation from its config.
func newShell(cfg *config.Config) *Simulation {
	sc := cfg.Scenario
	s := &Simulation{
		rules:       cfg.Simulation,
		tables:      newTables(sc.FactoryTypes, sc.PopTypes, sc.Resources),
		authorities: make(Authorities),
		labor:       labor.NewMarket(),
	}
	s.local = newLocalMarket(s.tables)
	for _, a := range sc.Authorities {
		for _, loc := range a.Locations {
			s.authorities[loc] = a.Authority
		}
	}
	for _, c := range sc.Currencies {
		s.currencies = append(s.currencies, c.ID)
	}
	slices.Sort(s.currencies)
	return s
}

func (s *Simulation) index() {
	slices.SortFunc(s.Factories, func(a, b *economy.Factory) int { return compareID(a.ID, b.ID) })
	slices.SortFunc(s.Pops, func(a, b *economy.Pop) int { return compareID(a.ID, b.ID) })
	s.factoryByID = make(map[model.ID]*economy.Factory, len(s.Factories))
	for _, f := range s.Factories {
		s.factoryByID[f.ID] = f
	}
	s.popByID = make(map[model.ID]*economy.Pop, len(s.Pops))
	for _, p := range s.Pops {
		s.popByID[p.ID] = p
	}
}

func compareID(a, b model.ID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Factory returns the factory with id.
func (s *Simulation) Factory(id model.ID) (*economy.Factory, bool) {
	f, ok := s.factoryByID[id]
	return f, ok
}

// Pop returns the pop with id.
func (s *Simulation) Pop(id model.ID) (*economy.Pop, bool) {
	p, ok := s.popByID[id]
	return p, ok
}

// Currencies lists the scenario's currencies in order.
func (s *Simulation) Currencies() []model.Currency {
	return s.currencies
}

// Step runs one full turn.
func (s *Simulation) Step() Report {
	s.Day++
	s.Exchange.ResetFlows()
	s.local.reset()

	w := &economy.World{
		Day:        s.Day,
		Rng:        s.rng,
		Exchange:   s.Exchange,
		Local:      s.local,
		Labor:      s.labor,
		Metadata:   s.tables,
		Population: population{s},
		Settings:   s.rules.Economy,
	}
	ctx := economy.Context{Authorities: s.authorities, Metadata: s.tables}

	factories := make([]economy.Agent, len(s.Factories))
	for i, f := range s.Factories {
		factories[i] = f
	}
	pops := make([]economy.Agent, len(s.Pops))
	for i, p := range s.Pops {
		pops[i] = p
	}
	random.Shuffle(s.rng, factories)
	random.Shuffle(s.rng, pops)
	for _, kind := range [][]economy.Agent{factories, pops} {
		run(ctx, w, kind)
	}

	report := Report{Day: s.Day}
	for _, f := range s.Factories {
		report.Produced += f.Produced
	}
	report.Hires = s.hire(s.labor.Match(s.rng, s.rules.RaiseRate))
	report.Arbitrage = s.arbitrage()
	report.Closes = s.Exchange.Turn()

	for _, f := range s.Factories {
		f.Account.Settle()
	}
	for _, p := range s.Pops {
		p.Account.Settle()
	}
	for _, cur := range s.currencies {
		s.Desks[cur].Settle()
	}

	report.Injected, report.Drained = s.flows(w)
	expected := make(map[model.Currency]int64, len(s.currencies))
	for _, cur := range s.currencies {
		expected[cur] = s.Money[cur] + report.Injected[cur] - report.Drained[cur]
	}
	err := s.Audit(expected)
	invariant.Check(err == nil, "%v", err)

	s.Money = s.Measure()
	report.Money = s.Money
	slog.Info("turn complete",
		"day", s.Day,
		"produced", report.Produced,
		"hires", report.Hires,
		"arbitrage_loops", len(report.Arbitrage),
		"arbitrage_profit", report.ArbitrageProfit(),
	)
	return report
}

// run drives one agent kind through the four phases, each phase across
// every agent before the next begins.
func run(ctx economy.Context, w *economy.World, agents []economy.Agent) {
	for _, a := range agents {
		a.Compute(ctx)
	}
	for _, a := range agents {
		a.Allocate(w)
	}
	for _, a := range agents {
		a.Transact(w)
	}
	for _, a := range agents {
		a.Advance(w)
	}
}

// hire applies matched hires and hands raise probabilities to employers.
func (s *Simulation) hire(res labor.Result) int64 {
	var total int64
	for _, h := range res.Hires {
		f, ok := s.factoryByID[h.Employer]
		if !ok {
			continue
		}
		p, ok := s.popByID[h.Pop]
		if !ok {
			continue
		}
		workforce(f, h.Job).Hire(h.Pop, h.Count)
		p.Employed += h.Count
		total += h.Count
		slog.Debug("hired", "factory", f.ID, "pop", p.ID, "job", h.Job.String(), "count", h.Count, "wage", h.Wage)
	}
	for at, p := range res.Raise {
		if f, ok := s.factoryByID[at.Employer]; ok {
			workforce(f, at.Job).Raise = p
		}
	}
	return total
}

func workforce(f *economy.Factory, job labor.Job) *economy.Workforce {
	if job == labor.Clerk {
		return &f.Clerks
	}
	return &f.Workers
}

// arbitrage runs every currency's desk over cached and newly found loops.
func (s *Simulation) arbitrage() []amm.Opportunity {
	resources := s.tables.Tradeable()
	var executed []amm.Opportunity
	for _, cur := range s.currencies {
		home := model.Fiat(cur)
		desk := s.Desks[cur]
		var partners []model.Asset
		for _, other := range s.currencies {
			if other != cur {
				partners = append(partners, model.Fiat(other))
			}
		}
		for _, o := range s.Exchange.Arbitrage(home, desk.Balance(), s.Routes, resources, partners) {
			desk.Debit(account.Spend, o.Volume)
			desk.Credit(account.Revenue, o.Volume+o.Profit)
			executed = append(executed, o)
		}
	}
	return executed
}

// flows collects the turn's explicit injections and drains per currency.
func (s *Simulation) flows(w *economy.World) (injected, drained map[model.Currency]int64) {
	injected = make(map[model.Currency]int64)
	drained = make(map[model.Currency]int64)
	for _, cur := range s.currencies {
		fiat := model.Fiat(cur)
		injected[cur] = w.Injected[cur] + s.Exchange.Injected[fiat] + s.local.Inflow[cur]
		drained[cur] = s.Exchange.Drained[fiat] + s.local.Outflow[cur]
	}
	return injected, drained
}

// Measure totals the cash of every currency: agent accounts, arbitrage
// desks and exchange reserves. Agents without an authority hold no
// currency and are left out.
func (s *Simulation) Measure() map[model.Currency]int64 {
	money := make(map[model.Currency]int64, len(s.currencies))
	for _, cur := range s.currencies {
		money[cur] = s.Exchange.Reserves(model.Fiat(cur)) + s.Desks[cur].Balance()
	}
	for _, f := range s.Factories {
		if a, ok := s.authorities.Resolve(f.Location); ok {
			money[a.Currency] += f.Account.Balance()
		}
	}
	for _, p := range s.Pops {
		if a, ok := s.authorities.Resolve(p.Location); ok {
			money[a.Currency] += p.Account.Balance()
		}
	}
	return money
}

// Audit compares the cash held against expected totals.
func (s *Simulation) Audit(expected map[model.Currency]int64) error {
	got := s.Measure()
	for _, cur := range s.currencies {
		if got[cur] != expected[cur] {
			return fmt.Errorf("%w: currency %d holds %d, expected %d", ErrConservation, cur, got[cur], expected[cur])
		}
	}
	return nil
}

// population exposes pops to agents.
type population struct{ s *Simulation }

func (p population) Account(id model.ID) (*account.Account, bool) {
	pop, ok := p.s.popByID[id]
	if !ok {
		return nil, false
	}
	return &pop.Account, true
}

func (p population) Residents(loc model.Location) []economy.Resident {
	var out []economy.Resident
	for _, pop := range p.s.Pops {
		if pop.Location == loc {
			out = append(out, economy.Resident{ID: pop.ID, Size: pop.Size})
		}
	}
	return out
}

func (p population) Release(id model.ID, count int64) {
	if pop, ok := p.s.popByID[id]; ok {
		pop.Employed -= count
		invariant.Check(pop.Employed >= 0, "pop %d employment went negative", id)
	}
}

func (p population) Exists(id model.ID) bool {
	_, ok := p.s.popByID[id]
	return ok
}
