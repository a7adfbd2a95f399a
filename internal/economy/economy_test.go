package economy

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/rarestbarbie/majesty-sub001/internal/account"
	"github.com/rarestbarbie/majesty-sub001/internal/amm"
	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/labor"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/random"
)

const (
	grain model.Resource = 1
	flour model.Resource = 2
	bread model.Resource = 3
	home  model.Location = 1
	wild  model.Location = 9
)

type fakeMeta struct {
	factories map[string]*FactoryType
	pops      map[string]*PopType
	resources map[model.Resource]ResourceInfo
}

func (m fakeMeta) Factory(name string) (*FactoryType, bool) {
	t, ok := m.factories[name]
	return t, ok
}

func (m fakeMeta) Pop(name string) (*PopType, bool) {
	t, ok := m.pops[name]
	return t, ok
}

func (m fakeMeta) Resource(id model.Resource) (ResourceInfo, bool) {
	r, ok := m.resources[id]
	return r, ok
}

type fakeAuthorities map[model.Location]Authority

func (a fakeAuthorities) Resolve(loc model.Location) (Authority, bool) {
	x, ok := a[loc]
	return x, ok
}

type fakeLocal struct {
	price        int64
	spent, taken int64
}

func (l *fakeLocal) Price(model.Location, model.Resource) (int64, bool) { return l.price, true }

func (l *fakeLocal) Buy(_ model.Location, _ model.Currency, _ model.Resource, budget, want int64) (int64, int64) {
	units := min(want, budget/l.price)
	l.spent += units * l.price
	return units * l.price, units
}

func (l *fakeLocal) Sell(_ model.Location, _ model.Currency, _ model.Resource, units int64) int64 {
	l.taken += units * l.price
	return units * l.price
}

type fakePopulation map[model.ID]*Pop

func (p fakePopulation) Account(id model.ID) (*account.Account, bool) {
	if pop, ok := p[id]; ok {
		return &pop.Account, true
	}
	return nil, false
}

func (p fakePopulation) Residents(loc model.Location) []Resident {
	var out []Resident
	for _, pop := range p {
		if pop.Location == loc {
			out = append(out, Resident{ID: pop.ID, Size: pop.Size})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p fakePopulation) Release(id model.ID, n int64) {
	if pop, ok := p[id]; ok {
		pop.Employed -= n
	}
}

func (p fakePopulation) Exists(id model.ID) bool {
	_, ok := p[id]
	return ok
}

func testMeta() fakeMeta {
	return fakeMeta{
		factories: map[string]*FactoryType{
			"mill": {
				Name:      "mill",
				Materials: []Input{{Resource: grain, Amount: exact.One}},
				Output:    []Input{{Resource: flour, Amount: exact.Int(2)}},
				Workers:   2,
			},
		},
		pops: map[string]*PopType{
			"laborer": {
				Name: "laborer",
				Job:  labor.Worker,
				Life: []Input{{Resource: grain, Amount: exact.New(1, 10)}},
			},
		},
		resources: map[model.Resource]ResourceInfo{
			grain: {ID: grain, Name: "grain", Tradeable: true},
			flour: {ID: flour, Name: "flour", Tradeable: true},
			bread: {ID: bread, Name: "bread", LocalPrice: 3},
		},
	}
}

type fixture struct {
	meta  fakeMeta
	ctx   Context
	world *World
	pops  fakePopulation
	local *fakeLocal
}

func newFixture() *fixture {
	meta := testMeta()
	pops := fakePopulation{}
	local := &fakeLocal{price: 3}
	return &fixture{
		meta:  meta,
		pops:  pops,
		local: local,
		ctx: Context{
			Authorities: fakeAuthorities{home: {ID: 50, Currency: 1, MinimumWage: 1, Unemployment: 2}},
			Metadata:    meta,
		},
		world: &World{
			Rng: random.New(11),
			Exchange: amm.NewExchange(amm.Settings{
				Fee:           exact.Zero,
				Dividend:      exact.Zero,
				SeedLiquidity: 1_000_000,
				HistoryLength: 5,
			}),
			Local:      local,
			Labor:      labor.NewMarket(),
			Metadata:   meta,
			Population: pops,
			Settings:   DefaultSettings(),
		},
	}
}

func (fx *fixture) pop(t *testing.T, id model.ID, size int64) *Pop {
	t.Helper()
	p, err := NewPop(fx.meta, id, "laborer", home, size)
	if err != nil {
		t.Fatal(err)
	}
	fx.pops[id] = p
	return p
}

func (fx *fixture) money() int64 {
	total := fx.world.Exchange.Reserves(model.Fiat(1))
	for _, p := range fx.pops {
		total += p.Account.Balance()
	}
	return total
}

func TestNewFactory_UnknownType(t *testing.T) {
	_, err := NewFactory(testMeta(), 1, "smelter", home, 1)
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := NewPop(testMeta(), 1, "noble", home, 1); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestFactory_NoAuthorityIsInert(t *testing.T) {
	fx := newFixture()
	f, _ := NewFactory(fx.meta, 1, "mill", wild, 10)
	f.Account.Liquid = 1000

	f.Compute(fx.ctx)
	f.Allocate(fx.world)
	f.Transact(fx.world)
	f.Advance(fx.world)

	if f.Active() {
		t.Error("factory without authority should be inactive")
	}
	if f.Account.Balance() != 1000 || len(fx.world.Exchange.Markets) != 0 {
		t.Error("inactive factory must not trade")
	}
}

func TestFactory_ComputeIsIdempotent(t *testing.T) {
	fx := newFixture()
	fx.pop(t, 100, 50)
	f, _ := NewFactory(fx.meta, 1, "mill", home, 10)
	f.Account.Liquid = 500
	f.Workers.Hire(100, 4)

	f.Compute(fx.ctx)
	first := *f
	f.Compute(fx.ctx)
	if !reflect.DeepEqual(first, *f) {
		t.Errorf("second compute changed state:\n%+v\n%+v", first, *f)
	}
}

func TestFactory_Turn(t *testing.T) {
	fx := newFixture()
	pop := fx.pop(t, 100, 50)
	f, err := NewFactory(fx.meta, 1, "mill", home, 10)
	if err != nil {
		t.Fatal(err)
	}
	f.Account.Liquid = 10_000
	f.Workers.Hire(100, 20)
	pop.Employed = 20
	f.Workers.Turn()

	w := fx.world
	f.Compute(fx.ctx)
	f.Allocate(w)

	if f.Budget.Total() > 10_000 {
		t.Fatalf("budget %d exceeds cash", f.Budget.Total())
	}
	if f.Equity.Stake(100) != 1000 {
		t.Errorf("initial shares %d, want 1000 to the local pop", f.Equity.Stake(100))
	}
	injected := w.Exchange.Injected[model.Fiat(1)]
	before := 10_000 + injected

	f.Transact(w)
	f.Advance(w)

	if f.Produced != 10 {
		t.Errorf("produced %d, want 10", f.Produced)
	}
	if pop.Account.Dividends != 200 {
		t.Errorf("dividend %d, want 200", pop.Account.Dividends)
	}
	if pop.Account.Wages != 20 {
		t.Errorf("wages %d, want 20", pop.Account.Wages)
	}
	if f.Equity.Outstanding() >= 1000 {
		t.Error("buyback should retire shares")
	}
	after := fx.money() + f.Account.Balance()
	want := before + w.Exchange.Injected[model.Fiat(1)] - injected + w.Injected[1]
	if after != want {
		t.Errorf("money not conserved: %d, want %d", after, want)
	}
}

func TestWorkforce_LayoffOnShortfall(t *testing.T) {
	fx := newFixture()
	a := fx.pop(t, 1, 10)
	b := fx.pop(t, 2, 10)
	var wf Workforce
	wf.Limit, wf.Wage = 10, 10
	wf.Hire(1, 5)
	wf.Hire(2, 5)
	a.Employed, b.Employed = 5, 5
	wf.Turn()

	from := &account.Account{Liquid: 60}
	wf.Run(fx.world, 99, from, 60, account.Wages, labor.Key{Job: labor.Worker, Location: home})

	if wf.Count != 6 || wf.Fired != 4 {
		t.Errorf("count %d fired %d, want 6 and 4", wf.Count, wf.Fired)
	}
	if a.Employed+b.Employed != 6 {
		t.Errorf("pops report %d employed", a.Employed+b.Employed)
	}
	if from.Balance() != 0 || a.Account.Wages+b.Account.Wages != 60 {
		t.Errorf("payroll moved %d", a.Account.Wages+b.Account.Wages)
	}
}

func TestWorkforce_PaysWholeWagesOnly(t *testing.T) {
	fx := newFixture()
	a := fx.pop(t, 1, 10)
	var wf Workforce
	wf.Limit, wf.Wage = 10, 10
	wf.Hire(1, 5)
	a.Employed = 5
	wf.Turn()

	from := &account.Account{Liquid: 15}
	wf.Run(fx.world, 99, from, 15, account.Wages, labor.Key{Job: labor.Worker, Location: home})

	if wf.Count != 1 || wf.Fired != 4 {
		t.Errorf("count %d fired %d, want 1 and 4", wf.Count, wf.Fired)
	}
	if a.Account.Wages != 10 {
		t.Errorf("paid %d, want one wage of 10", a.Account.Wages)
	}
	if from.Balance() != 5 {
		t.Errorf("employer kept %d, want the unspent 5", from.Balance())
	}
}

func TestWorkforce_LayoffClearsRaise(t *testing.T) {
	fx := newFixture()
	fx.pop(t, 1, 10).Employed = 5
	var wf Workforce
	wf.Limit, wf.Wage, wf.Raise = 10, 10, exact.One
	wf.Hire(1, 5)

	from := &account.Account{Liquid: 20}
	wf.Run(fx.world, 99, from, 20, account.Wages, labor.Key{Job: labor.Worker, Location: home})

	if wf.Fired == 0 {
		t.Fatal("expected a layoff")
	}
	if !wf.Raise.IsZero() {
		t.Errorf("raise %s survived a layoff round", wf.Raise)
	}
	if wf.Wage != 10 {
		t.Errorf("wage %d changed without hiring", wf.Wage)
	}
}

func TestWorkforce_PostsAffordableOffer(t *testing.T) {
	tests := []struct {
		name  string
		raise exact.Fraction
		wage  int64
		size  int64
	}{
		{"no raise", exact.Zero, 10, 5},
		{"certain raise", exact.One, 11, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture()
			fx.pop(t, 1, 5).Employed = 5
			var wf Workforce
			wf.Limit, wf.Wage, wf.Raise = 10, 10, tc.raise
			wf.Hire(1, 5)

			key := labor.Key{Job: labor.Worker, Location: home}
			from := &account.Account{Liquid: 100}
			wf.Run(fx.world, 99, from, 100, account.Wages, key)

			fx.world.Labor.Register(key, 7, 100)
			res := fx.world.Labor.Match(random.New(1), exact.New(1, 2))
			if len(res.Hires) != 1 {
				t.Fatalf("expected one hire block, got %+v", res.Hires)
			}
			if h := res.Hires[0]; h.Wage != tc.wage || h.Count != tc.size || h.Employer != 99 {
				t.Errorf("hire %+v, want wage %d size %d", h, tc.wage, tc.size)
			}
			if !wf.Raise.IsZero() {
				t.Error("raise probability is consumed by the hiring round")
			}
		})
	}
}

func TestPop_Turn(t *testing.T) {
	fx := newFixture()
	p := fx.pop(t, 100, 100)
	p.Employed = 40
	p.Account.Liquid = 100
	w := fx.world

	p.Compute(fx.ctx)
	p.Allocate(w)
	p.Transact(w)
	p.Advance(w)

	if p.Satisfaction[Life] != 900 {
		t.Errorf("life satisfaction %d, want 900", p.Satisfaction[Life])
	}
	if p.Satisfaction[Everyday] != 1000 || p.Satisfaction[Luxury] != 1000 {
		t.Error("tiers without needs are fully satisfied")
	}
	if p.Sentiment != 556 {
		t.Errorf("sentiment %d, want 556", p.Sentiment)
	}
	if p.Account.Subsidies != 120 || w.Injected[1] != 120 {
		t.Errorf("unemployment support %d injected %d, want 120", p.Account.Subsidies, w.Injected[1])
	}

	w.Labor.Post(labor.Key{Job: labor.Worker, Location: home}, labor.Offer{Employer: 5, Wage: 3, Size: 100})
	res := w.Labor.Match(w.Rng, exact.New(1, 2))
	if len(res.Hires) != 1 || res.Hires[0].Count != 60 {
		t.Errorf("expected the 60 unemployed to be registered, got %+v", res.Hires)
	}
}

func TestPop_InelasticNeedsUseLocalMarket(t *testing.T) {
	fx := newFixture()
	fx.meta.pops["laborer"].Everyday = []Input{{Resource: bread, Amount: exact.New(1, 10)}}
	p := fx.pop(t, 100, 100)
	p.Employed = 100
	p.Account.Liquid = 1000

	p.Compute(fx.ctx)
	p.Allocate(fx.world)
	p.Transact(fx.world)

	if fx.local.spent != 30 {
		t.Errorf("local spend %d, want 10 bread at 3", fx.local.spent)
	}
	if p.Satisfaction[Everyday] != 1000 {
		t.Errorf("everyday satisfaction %d", p.Satisfaction[Everyday])
	}
}
