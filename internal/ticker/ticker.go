// Package ticker handles market ticker parsing and formatting. A ticker
// names the two assets of a market, each by its scenario symbol or by its
// raw "kind:id" form: CROWN-GRAIN, GRAIN-CROWN and fiat:1-good:1 all
// address the same market.
package ticker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rarestbarbie/majesty-sub001/internal/config"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// tickerRegex matches: {asset}-{asset} where an asset is a symbol such as
// GRAIN or a raw asset such as good:1.
var tickerRegex = regexp.MustCompile(
	`^([A-Za-z][A-Za-z0-9_]*|(?:fiat|good):[0-9]+)-([A-Za-z][A-Za-z0-9_]*|(?:fiat|good):[0-9]+)$`,
)

var (
	ErrInvalidTicker = errors.New("ticker: invalid ticker format")
	ErrUnknownSymbol = errors.New("ticker: unknown symbol")
	ErrDuplicate     = errors.New("ticker: duplicate symbol")
)

// Ticker is a parsed market address.
type Ticker struct {
	Symbol  string      `json:"ticker"`
	Base    model.Asset `json:"base"`
	Quote   model.Asset `json:"quote"`
	Pair    model.Pair  `json:"pair"`
	Flipped bool        `json:"flipped"`
}

// Registry maps symbols to assets and back.
type Registry struct {
	assets  map[string]model.Asset
	symbols map[model.Asset]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		assets:  make(map[string]model.Asset),
		symbols: make(map[model.Asset]string),
	}
}

// FromScenario registers every currency and resource of a scenario by its
// upper-cased name.
func FromScenario(sc config.Scenario) (*Registry, error) {
	r := NewRegistry()
	for _, c := range sc.Currencies {
		if err := r.Add(model.Fiat(c.ID), c.Name); err != nil {
			return nil, err
		}
	}
	for _, res := range sc.Resources {
		if err := r.Add(model.Good(res.ID), res.Name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a symbol for an asset. Symbols are case-insensitive.
func (r *Registry) Add(a model.Asset, name string) error {
	sym := strings.ToUpper(name)
	if !tickerRegex.MatchString(sym + "-X") {
		return fmt.Errorf("%w: symbol %q", ErrInvalidTicker, name)
	}
	if _, ok := r.assets[sym]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, sym)
	}
	if _, ok := r.symbols[a]; ok {
		return fmt.Errorf("%w: %s already named", ErrDuplicate, a)
	}
	r.assets[sym] = a
	r.symbols[a] = sym
	return nil
}

// Symbol returns the symbol of an asset, or its raw form if it has none.
func (r *Registry) Symbol(a model.Asset) string {
	if sym, ok := r.symbols[a]; ok {
		return sym
	}
	return a.String()
}

func (r *Registry) resolve(tok string) (model.Asset, error) {
	if strings.Contains(tok, ":") {
		return model.ParseAsset(tok)
	}
	a, ok := r.assets[strings.ToUpper(tok)]
	if !ok {
		return model.Asset{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, tok)
	}
	return a, nil
}

// Parse parses and validates a ticker string.
// Format: {base}-{quote}
func (r *Registry) Parse(ticker string) (*Ticker, error) {
	matches := tickerRegex.FindStringSubmatch(ticker)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected {base}-{quote})", ErrInvalidTicker, ticker)
	}
	base, err := r.resolve(matches[1])
	if err != nil {
		return nil, err
	}
	quote, err := r.resolve(matches[2])
	if err != nil {
		return nil, err
	}
	if base == quote {
		return nil, fmt.Errorf("%w: %s names one asset twice", ErrInvalidTicker, ticker)
	}
	pair, flipped := model.NewPair(base, quote)
	return &Ticker{
		Symbol:  r.Symbol(base) + "-" + r.Symbol(quote),
		Base:    base,
		Quote:   quote,
		Pair:    pair,
		Flipped: flipped,
	}, nil
}

// Format returns the canonical ticker of a pair.
func (r *Registry) Format(p model.Pair) string {
	return r.Symbol(p.X) + "-" + r.Symbol(p.Y)
}
