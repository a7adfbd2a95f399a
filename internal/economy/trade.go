package economy

import (
	"github.com/rarestbarbie/majesty-sub001/internal/account"
	"github.com/rarestbarbie/majesty-sub001/internal/budget"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// need is today's purchase target for one resource.
type need struct {
	resource  model.Resource
	units     int64
	tradeable bool
	cost      int64
}

// needs prices what it takes to hold days of inputs scaled by scale, less
// what is already in stock. Estimates use yesterday's prices.
func (w *World) needs(loc model.Location, cur model.Currency, inputs []Input, scale, days int64, stock Stockpile) []need {
	out := make([]need, 0, len(inputs))
	for _, in := range inputs {
		want := in.Amount.ScaleCeil(scale)*days - stock.Units(in.Resource)
		if want <= 0 {
			continue
		}
		info, ok := w.Metadata.Resource(in.Resource)
		if !ok {
			continue
		}
		n := need{resource: in.Resource, units: want, tradeable: info.Tradeable}
		if info.Tradeable {
			p := w.Exchange.View(model.Fiat(cur), model.Good(in.Resource)).Yesterday()
			if p.Sign() > 0 {
				n.cost = p.Inverse().ScaleCeil(want)
			}
		} else if price, ok := w.Local.Price(loc, in.Resource); ok {
			n.cost = price * want
		}
		if n.cost > 0 {
			out = append(out, n)
		}
	}
	return out
}

// tier sums the estimated cost of needs.
func tier(needs []need) Tier {
	var t Tier
	for _, n := range needs {
		if n.tradeable {
			t.Tradeable += n.cost
		} else {
			t.Inelastic += n.cost
		}
	}
	return t
}

// buy spends a tier budget on needs, weighting each sub-tier by cost, and
// stocks what it gets. It returns the cash spent.
func (w *World) buy(acct *account.Account, loc model.Location, cur model.Currency, t Tier, needs []need, stock *Stockpile) int64 {
	var spent int64
	for _, tradeable := range []bool{true, false} {
		funds := t.Inelastic
		if tradeable {
			funds = t.Tradeable
		}
		var picked []need
		var costs []int64
		for _, n := range needs {
			if n.tradeable == tradeable {
				picked = append(picked, n)
				costs = append(costs, n.cost)
			}
		}
		grants := budget.Distribute(funds, costs)
		for i, n := range picked {
			if grants == nil {
				break
			}
			limit := min(grants[i], acct.Balance())
			if limit <= 0 {
				continue
			}
			var cost, units int64
			if tradeable {
				cost, units = w.Exchange.View(model.Fiat(cur), model.Good(n.resource)).SellLimited(limit, n.units)
			} else {
				cost, units = w.Local.Buy(loc, cur, n.resource, limit, n.units)
			}
			if units == 0 {
				continue
			}
			acct.Debit(account.Spend, cost)
			stock.Get(n.resource).Add(units)
			spent += cost
		}
	}
	return spent
}

// sell offers units of res for cur and books the proceeds as revenue. It
// returns the units sold.
func (w *World) sell(acct *account.Account, loc model.Location, cur model.Currency, res model.Resource, units int64) int64 {
	if units <= 0 {
		return 0
	}
	info, ok := w.Metadata.Resource(res)
	if !ok {
		return 0
	}
	if info.Tradeable {
		sold, proceeds := w.Exchange.View(model.Good(res), model.Fiat(cur)).Sell(units)
		acct.Credit(account.Revenue, proceeds)
		return sold
	}
	proceeds := w.Local.Sell(loc, cur, res, units)
	if proceeds == 0 {
		return 0
	}
	acct.Credit(account.Revenue, proceeds)
	return units
}
