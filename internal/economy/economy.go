// Package economy implements the per-agent turn protocol. Every agent
// kind runs Compute, Allocate, Transact and Advance once per day, each
// phase across all agents of the kind before the next phase begins, so
// allocation is planned on yesterday's prices before anyone trades today.
package economy

import (
	"errors"
	"sort"

	"github.com/rarestbarbie/majesty-sub001/internal/account"
	"github.com/rarestbarbie/majesty-sub001/internal/amm"
	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/labor"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/random"
)

// ErrUnknownType is returned when an agent references a type missing from
// the metadata tables. It is only raised at creation.
var ErrUnknownType = errors.New("economy: unknown agent type")

// Agent is the turn protocol shared by every agent kind.
type Agent interface {
	Compute(ctx Context)
	Allocate(w *World)
	Transact(w *World)
	Advance(w *World)
}

// Authority is the governing entity of a location.
type Authority struct {
	ID           model.ID       `json:"id" yaml:"id"`
	Currency     model.Currency `json:"currency" yaml:"currency"`
	MinimumWage  int64          `json:"minimum_wage" yaml:"minimum_wage"`
	Unemployment int64          `json:"unemployment" yaml:"unemployment"`
}

// AuthorityResolver maps a location to its governing authority, if any.
type AuthorityResolver interface {
	Resolve(loc model.Location) (Authority, bool)
}

// LocalMarkets trades non-tradeable goods at a location. Cash crossing
// this boundary leaves or enters the economy.
type LocalMarkets interface {
	Price(loc model.Location, res model.Resource) (int64, bool)
	Buy(loc model.Location, cur model.Currency, res model.Resource, budget, want int64) (cost, units int64)
	Sell(loc model.Location, cur model.Currency, res model.Resource, units int64) (proceeds int64)
}

// Input is an amount of a resource per unit of size (factories) or per
// person (pops), per day.
type Input struct {
	Resource model.Resource `json:"resource" yaml:"resource"`
	Amount   exact.Fraction `json:"amount" yaml:"amount"`
}

// ResourceInfo is the static description of a good.
type ResourceInfo struct {
	ID         model.Resource `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Tradeable  bool           `json:"tradeable" yaml:"tradeable"`
	LocalPrice int64          `json:"local_price" yaml:"local_price"`
}

// FactoryType is the static configuration of a kind of factory.
type FactoryType struct {
	Name      string  `json:"name" yaml:"name"`
	Materials []Input `json:"materials" yaml:"materials"`
	Overhead  []Input `json:"overhead" yaml:"overhead"`
	Output    []Input `json:"output" yaml:"output"`
	Workers   int64   `json:"workers" yaml:"workers"`
	Clerks    int64   `json:"clerks" yaml:"clerks"`
}

// PopType is the static configuration of a kind of population cohort.
type PopType struct {
	Name     string    `json:"name" yaml:"name"`
	Job      labor.Job `json:"job" yaml:"job"`
	Life     []Input   `json:"life" yaml:"life"`
	Everyday []Input   `json:"everyday" yaml:"everyday"`
	Luxury   []Input   `json:"luxury" yaml:"luxury"`
}

// Metadata is the read-only table of agent and resource types.
type Metadata interface {
	Factory(name string) (*FactoryType, bool)
	Pop(name string) (*PopType, bool)
	Resource(id model.Resource) (ResourceInfo, bool)
}

// Resident is a pop as seen by other agents at its location.
type Resident struct {
	ID   model.ID
	Size int64
}

// Population gives agents access to the accounts and employment of pops.
type Population interface {
	Account(id model.ID) (*account.Account, bool)
	Residents(loc model.Location) []Resident
	Release(id model.ID, count int64)
	Exists(id model.ID) bool
}

// Settings are the tunable rules of the turn protocol.
type Settings struct {
	StockpileDays int64          `json:"stockpile_days" yaml:"stockpile_days"`
	QuitRate      exact.Fraction `json:"quit_rate" yaml:"quit_rate"`
	WageRaise     exact.Fraction `json:"wage_raise" yaml:"wage_raise"`
	DividendShare exact.Fraction `json:"dividend_share" yaml:"dividend_share"`
	BuybackShare  exact.Fraction `json:"buyback_share" yaml:"buyback_share"`
	SharesPerSize int64          `json:"shares_per_size" yaml:"shares_per_size"`
	SplitPrice    exact.Fraction `json:"split_price" yaml:"split_price"`
	SplitChance   exact.Fraction `json:"split_chance" yaml:"split_chance"`
	SentimentRate int64          `json:"sentiment_rate" yaml:"sentiment_rate"`
}

// DefaultSettings returns the rules used when a scenario leaves them unset.
func DefaultSettings() Settings {
	return Settings{
		StockpileDays: 3,
		QuitRate:      exact.New(1, 100),
		WageRaise:     exact.New(1, 20),
		DividendShare: exact.New(1, 50),
		BuybackShare:  exact.New(1, 100),
		SharesPerSize: 100,
		SplitPrice:    exact.Int(1000),
		SplitChance:   exact.New(1, 10),
		SentimentRate: 8,
	}
}

// Context is what Compute may read.
type Context struct {
	Authorities AuthorityResolver
	Metadata    Metadata
}

// World is the shared state the mutating phases run against. It is owned
// by the turn loop; agents mutate it one at a time in a fixed order.
type World struct {
	Day        int64
	Rng        *random.Source
	Exchange   *amm.Exchange
	Local      LocalMarkets
	Labor      *labor.Market
	Metadata   Metadata
	Population Population
	Settings   Settings
	Injected   map[model.Currency]int64
	Subsidies  int64
}

// Inject records cash created outside the economy, such as subsidies.
func (w *World) Inject(cur model.Currency, amount int64) {
	if amount <= 0 {
		return
	}
	if w.Injected == nil {
		w.Injected = make(map[model.Currency]int64)
	}
	w.Injected[cur] += amount
	w.Subsidies += amount
}

// Tier is one spending category split by where it is spent.
type Tier struct {
	Tradeable int64 `json:"tradeable"`
	Inelastic int64 `json:"inelastic"`
}

// Total is the tier's whole budget.
func (t Tier) Total() int64 { return t.Tradeable + t.Inelastic }

// Stock is a held quantity of one resource.
type Stock struct {
	Resource model.Resource         `json:"resource"`
	Units    exact.Reservoir[int64] `json:"units"`
}

// Stockpile is a resource-ordered set of stocks.
type Stockpile []Stock

func (s *Stockpile) find(res model.Resource) (int, bool) {
	i := sort.Search(len(*s), func(i int) bool { return (*s)[i].Resource >= res })
	return i, i < len(*s) && (*s)[i].Resource == res
}

// Units returns the held amount of res.
func (s Stockpile) Units(res model.Resource) int64 {
	if i, ok := s.find(res); ok {
		return s[i].Units.Total
	}
	return 0
}

// Get returns the stock of res, creating it if absent.
func (s *Stockpile) Get(res model.Resource) *exact.Reservoir[int64] {
	i, ok := s.find(res)
	if !ok {
		*s = append(*s, Stock{})
		copy((*s)[i+1:], (*s)[i:])
		(*s)[i] = Stock{Resource: res}
	}
	return &(*s)[i].Units
}

// Turn zeroes today's movements.
func (s Stockpile) Turn() {
	for i := range s {
		s[i].Units.Turn()
	}
}
