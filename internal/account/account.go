// Package account is the categorized cash ledger every agent carries.
// Money moves between accounts within a turn as signed per-category
// deltas; Settle folds them into the liquid balance at the turn boundary.
package account

import (
	"fmt"

	"github.com/rarestbarbie/majesty-sub001/internal/invariant"
)

// Category tags the cause of a same-turn cash movement.
type Category uint8

const (
	Revenue Category = iota
	Spend
	Wages
	Salaries
	Subsidies
	Dividends
	Equity
	Inheritance
)

var categoryNames = [...]string{"revenue", "spend", "wages", "salaries", "subsidies", "dividends", "equity", "inheritance"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", c)
}

// Account holds a liquid balance plus this turn's deltas by category.
// Balance is always Liquid plus the sum of the deltas.
type Account struct {
	Liquid      int64 `json:"liquid"`
	Revenue     int64 `json:"revenue"`
	Spend       int64 `json:"spend"`
	Wages       int64 `json:"wages"`
	Salaries    int64 `json:"salaries"`
	Subsidies   int64 `json:"subsidies"`
	Dividends   int64 `json:"dividends"`
	Equity      int64 `json:"equity"`
	Inheritance int64 `json:"inheritance"`
}

func (a *Account) field(c Category) *int64 {
	switch c {
	case Revenue:
		return &a.Revenue
	case Spend:
		return &a.Spend
	case Wages:
		return &a.Wages
	case Salaries:
		return &a.Salaries
	case Subsidies:
		return &a.Subsidies
	case Dividends:
		return &a.Dividends
	case Equity:
		return &a.Equity
	case Inheritance:
		return &a.Inheritance
	}
	panic(fmt.Sprintf("account: unknown category %d", c))
}

// Balance is the true cash position, including unsettled deltas.
func (a *Account) Balance() int64 {
	return a.Liquid + a.Delta()
}

// Delta is the net of this turn's categorized movements.
func (a *Account) Delta() int64 {
	return a.Revenue + a.Spend + a.Wages + a.Salaries + a.Subsidies + a.Dividends + a.Equity + a.Inheritance
}

// Get returns the delta booked under c.
func (a *Account) Get(c Category) int64 {
	return *a.field(c)
}

// Credit books an inflow under c.
func (a *Account) Credit(c Category, amount int64) {
	invariant.Check(amount >= 0, "account: credit of negative amount %d", amount)
	*a.field(c) += amount
}

// Debit books an outflow under c. The balance may not go negative.
func (a *Account) Debit(c Category, amount int64) {
	invariant.Check(amount >= 0, "account: debit of negative amount %d", amount)
	invariant.Check(amount <= a.Balance(), "account: debit %d exceeds balance %d", amount, a.Balance())
	*a.field(c) -= amount
}

// Settle folds the deltas into Liquid. Total cash does not change.
func (a *Account) Settle() {
	a.Liquid = a.Balance()
	invariant.Check(a.Liquid >= 0, "account: settled to negative balance %d", a.Liquid)
	*a = Account{Liquid: a.Liquid}
}

// Transfer moves amount from one account to another, debiting under out
// and crediting under in.
func Transfer(from, to *Account, amount int64, out, in Category) {
	if amount == 0 {
		return
	}
	from.Debit(out, amount)
	to.Credit(in, amount)
}
