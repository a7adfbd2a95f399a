package sim

import (
	"github.com/rarestbarbie/majesty-sub001/internal/economy"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// Tables is the in-memory metadata for a scenario.
type Tables struct {
	factories map[string]*economy.FactoryType
	pops      map[string]*economy.PopType
	resources map[model.Resource]economy.ResourceInfo
	order     []model.Resource
}

func newTables(factories []economy.FactoryType, pops []economy.PopType, resources []economy.ResourceInfo) *Tables {
	t := &Tables{
		factories: make(map[string]*economy.FactoryType, len(factories)),
		pops:      make(map[string]*economy.PopType, len(pops)),
		resources: make(map[model.Resource]economy.ResourceInfo, len(resources)),
	}
	for i := range factories {
		t.factories[factories[i].Name] = &factories[i]
	}
	for i := range pops {
		t.pops[pops[i].Name] = &pops[i]
	}
	for _, r := range resources {
		t.resources[r.ID] = r
		t.order = append(t.order, r.ID)
	}
	return t
}

func (t *Tables) Factory(name string) (*economy.FactoryType, bool) {
	f, ok := t.factories[name]
	return f, ok
}

func (t *Tables) Pop(name string) (*economy.PopType, bool) {
	p, ok := t.pops[name]
	return p, ok
}

func (t *Tables) Resource(id model.Resource) (economy.ResourceInfo, bool) {
	r, ok := t.resources[id]
	return r, ok
}

// Tradeable lists the goods traded on the exchange, in scenario order.
func (t *Tables) Tradeable() []model.Asset {
	var out []model.Asset
	for _, id := range t.order {
		if t.resources[id].Tradeable {
			out = append(out, model.Good(id))
		}
	}
	return out
}

// Authorities resolves locations to their governing authority.
type Authorities map[model.Location]economy.Authority

func (a Authorities) Resolve(loc model.Location) (economy.Authority, bool) {
	x, ok := a[loc]
	return x, ok
}

// LocalMarket trades non-tradeable goods at their fixed local price. Cash
// paid to it leaves the economy and cash it pays enters it.
type LocalMarket struct {
	tables  *Tables
	Inflow  map[model.Currency]int64
	Outflow map[model.Currency]int64
}

func newLocalMarket(t *Tables) *LocalMarket {
	return &LocalMarket{
		tables:  t,
		Inflow:  make(map[model.Currency]int64),
		Outflow: make(map[model.Currency]int64),
	}
}

func (l *LocalMarket) reset() {
	clear(l.Inflow)
	clear(l.Outflow)
}

func (l *LocalMarket) Price(_ model.Location, res model.Resource) (int64, bool) {
	r, ok := l.tables.Resource(res)
	if !ok || r.LocalPrice <= 0 {
		return 0, false
	}
	return r.LocalPrice, true
}

func (l *LocalMarket) Buy(loc model.Location, cur model.Currency, res model.Resource, budget, want int64) (cost, units int64) {
	price, ok := l.Price(loc, res)
	if !ok {
		return 0, 0
	}
	units = min(want, budget/price)
	cost = units * price
	l.Outflow[cur] += cost
	return cost, units
}

func (l *LocalMarket) Sell(loc model.Location, cur model.Currency, res model.Resource, units int64) int64 {
	price, ok := l.Price(loc, res)
	if !ok {
		return 0
	}
	proceeds := units * price
	l.Inflow[cur] += proceeds
	return proceeds
}
