package economy

import (
	"fmt"
	"log/slog"

	"github.com/rarestbarbie/majesty-sub001/internal/account"
	"github.com/rarestbarbie/majesty-sub001/internal/budget"
	"github.com/rarestbarbie/majesty-sub001/internal/equity"
	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/labor"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// FactoryBudget is the output of a factory's Allocate phase, consumed once
// by Transact.
type FactoryBudget struct {
	Materials Tier  `json:"materials"`
	Overhead  Tier  `json:"overhead"`
	Workers   int64 `json:"workers"`
	Clerks    int64 `json:"clerks"`
	Dividend  int64 `json:"dividend"`
	Buyback   int64 `json:"buyback"`
}

// Total is the cash the budget commits.
func (b FactoryBudget) Total() int64 {
	return b.Materials.Total() + b.Overhead.Total() + b.Workers + b.Clerks + b.Dividend + b.Buyback
}

// Factory is a production facility owned by shareholders.
type Factory struct {
	ID        model.ID        `json:"id"`
	Type      string          `json:"type"`
	Location  model.Location  `json:"location"`
	Size      int64           `json:"size"`
	Account   account.Account `json:"account"`
	Equity    equity.Ledger   `json:"equity"`
	Workers   Workforce       `json:"workers"`
	Clerks    Workforce       `json:"clerks"`
	Stockpile Stockpile       `json:"stockpile"`
	Inventory Stockpile       `json:"inventory"`
	Produced  int64           `json:"produced"`

	Budget FactoryBudget `json:"-"`

	kind      *FactoryType
	authority Authority
	active    bool
	materials []need
	overhead  []need
}

// NewFactory creates a factory of a known type.
func NewFactory(meta Metadata, id model.ID, typ string, loc model.Location, size int64) (*Factory, error) {
	if _, ok := meta.Factory(typ); !ok {
		return nil, fmt.Errorf("%w: factory %q", ErrUnknownType, typ)
	}
	return &Factory{ID: id, Type: typ, Location: loc, Size: size}, nil
}

// Active reports whether the last Compute resolved an authority.
func (f *Factory) Active() bool { return f.active }

// Currency is the currency of the governing authority.
func (f *Factory) Currency() model.Currency { return f.authority.Currency }

// SharePrice is cash per outstanding share, or zero with no shares.
func (f *Factory) SharePrice() exact.Fraction {
	n := f.Equity.Outstanding()
	if n == 0 || f.Account.Balance() <= 0 {
		return exact.Zero
	}
	return exact.New(f.Account.Balance(), n)
}

// Compute resolves the factory's authority and type, refreshes its
// workforce limits and zeroes today's deltas.
func (f *Factory) Compute(ctx Context) {
	f.active = false
	f.Budget = FactoryBudget{}
	f.materials, f.overhead = nil, nil
	f.Workers.Turn()
	f.Clerks.Turn()
	f.Stockpile.Turn()
	f.Inventory.Turn()
	f.Equity.Turn()

	kind, ok := ctx.Metadata.Factory(f.Type)
	if !ok {
		return
	}
	authority, ok := ctx.Authorities.Resolve(f.Location)
	if !ok {
		return
	}
	f.kind = kind
	f.authority = authority
	f.Workers.Limit = f.Size * kind.Workers
	f.Clerks.Limit = f.Size * kind.Clerks
	f.active = true
}

// Allocate plans today's spending on yesterday's prices.
func (f *Factory) Allocate(w *World) {
	if !f.active {
		return
	}
	if f.Equity.Outstanding() == 0 {
		f.issue(w)
	}

	f.Workers.Wage = max(f.Workers.Wage, f.authority.MinimumWage, 1)
	f.Clerks.Wage = max(f.Clerks.Wage, f.authority.MinimumWage, 1)

	days := w.Settings.StockpileDays
	f.materials = w.needs(f.Location, f.Currency(), f.kind.Materials, f.Size, days, f.Stockpile)
	f.overhead = w.needs(f.Location, f.Currency(), f.kind.Overhead, f.Size, days, f.Stockpile)
	materials, overhead := tier(f.materials), tier(f.overhead)

	balance := f.Account.Balance()
	asks := []int64{
		materials.Tradeable,
		materials.Inelastic,
		overhead.Tradeable,
		overhead.Inelastic,
		f.Workers.Limit * f.Workers.Wage,
		f.Clerks.Limit * f.Clerks.Wage,
		w.Settings.DividendShare.ScaleFloor(max(balance, 0)),
		w.Settings.BuybackShare.ScaleFloor(max(balance, 0)),
	}
	grants := budget.Distribute(balance, asks)
	if grants == nil {
		return
	}
	f.Budget = FactoryBudget{
		Materials: Tier{Tradeable: grants[0], Inelastic: grants[1]},
		Overhead:  Tier{Tradeable: grants[2], Inelastic: grants[3]},
		Workers:   grants[4],
		Clerks:    grants[5],
		Dividend:  grants[6],
		Buyback:   grants[7],
	}
}

// issue grants the initial shares to the pops at the factory's location,
// weighted by size.
func (f *Factory) issue(w *World) {
	residents := w.Population.Residents(f.Location)
	sizes := make([]int64, len(residents))
	for i, r := range residents {
		sizes[i] = r.Size
	}
	shares := budget.Proportional(f.Size*w.Settings.SharesPerSize, sizes)
	for i, n := range shares {
		f.Equity.Issue(residents[i].ID, n)
	}
}

// Transact buys inputs, pays staff, produces and sells output, posts the
// hiring decision, and pays shareholders.
func (f *Factory) Transact(w *World) {
	if !f.active {
		return
	}
	cur := f.Currency()
	w.buy(&f.Account, f.Location, cur, f.Budget.Materials, f.materials, &f.Stockpile)
	w.buy(&f.Account, f.Location, cur, f.Budget.Overhead, f.overhead, &f.Stockpile)

	f.Workers.Shrink(w.Population)
	f.Clerks.Shrink(w.Population)
	f.Workers.Run(w, f.ID, &f.Account, f.Budget.Workers, account.Wages, labor.Key{Job: labor.Worker, Location: f.Location})
	if f.kind.Clerks > 0 {
		f.Clerks.Run(w, f.ID, &f.Account, f.Budget.Clerks, account.Salaries, labor.Key{Job: labor.Clerk, Location: f.Location})
	}

	f.Produced = f.produce()
	for _, out := range f.kind.Output {
		units := out.Amount.ScaleFloor(f.Produced)
		if units > 0 {
			f.Inventory.Get(out.Resource).Add(units)
		}
	}
	for i := range f.Inventory {
		s := &f.Inventory[i]
		if sold := w.sell(&f.Account, f.Location, cur, s.Resource, s.Units.Total); sold > 0 {
			s.Units.Remove(sold)
		}
	}

	f.payDividend(w)
	f.buyback(w)
}

// produce runs the day's production limited by size, staff and materials,
// and consumes inputs. Clerks raise output by up to half.
func (f *Factory) produce() int64 {
	units := f.Size
	if f.kind.Workers > 0 {
		units = min(units, f.Workers.Count/f.kind.Workers)
	}
	for _, in := range f.kind.Materials {
		if in.Amount.Sign() <= 0 {
			continue
		}
		units = min(units, in.Amount.Inverse().ScaleFloor(f.Stockpile.Units(in.Resource)))
	}
	units = max(units, 0)
	for _, in := range f.kind.Materials {
		if used := in.Amount.ScaleCeil(units); used > 0 {
			f.Stockpile.Get(in.Resource).Remove(min(used, f.Stockpile.Units(in.Resource)))
		}
	}
	for _, in := range f.kind.Overhead {
		if used := min(in.Amount.ScaleCeil(f.Size), f.Stockpile.Units(in.Resource)); used > 0 {
			f.Stockpile.Get(in.Resource).Remove(used)
		}
	}
	if f.Clerks.Limit > 0 && units > 0 {
		units += exact.New(f.Clerks.Count, 2*f.Clerks.Limit).ScaleFloor(units)
	}
	return units
}

func (f *Factory) payDividend(w *World) {
	amount := min(f.Budget.Dividend, f.Account.Balance())
	for _, p := range f.Equity.Dividend(amount, w.Rng) {
		if to, ok := w.Population.Account(p.Owner); ok {
			account.Transfer(&f.Account, to, p.Amount, account.Dividends, account.Dividends)
		}
	}
}

func (f *Factory) buyback(w *World) {
	price := f.SharePrice()
	amount := min(f.Budget.Buyback, f.Account.Balance())
	payouts := f.Equity.Buyback(amount, price, w.Rng)
	for _, p := range payouts {
		if to, ok := w.Population.Account(p.Owner); ok {
			account.Transfer(&f.Account, to, p.Amount, account.Equity, account.Equity)
		}
	}
	if len(payouts) > 0 {
		slog.Debug("share buyback", "factory", f.ID, "day", w.Day, "price", price.String(), "net_shares", f.Equity.Change())
	}
}

// Advance applies quits, share splits and the authority's payroll support.
func (f *Factory) Advance(w *World) {
	if !f.active {
		return
	}
	f.Workers.Quits(w, w.Settings.QuitRate)
	f.Clerks.Quits(w, w.Settings.QuitRate)

	if price := f.SharePrice(); w.Settings.SplitPrice.Sign() > 0 && w.Settings.SplitPrice.Less(price) {
		if w.Rng.Roll(w.Settings.SplitChance) {
			f.Equity.Split(exact.Int(2))
			slog.Debug("share split", "factory", f.ID, "day", w.Day, "price", price.String())
		}
	}
	f.Equity.Prune(w.Population.Exists)

	// The authority tops up a factory that cannot meet a day of payroll at
	// the minimum wage.
	floor := (f.Workers.Count + f.Clerks.Count) * f.authority.MinimumWage
	if short := floor - f.Account.Balance(); short > 0 {
		f.Account.Credit(account.Subsidies, short)
		w.Inject(f.Currency(), short)
	}
}
