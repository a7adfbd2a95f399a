// Package model defines the identifiers and records shared across the
// simulation core and its persistence layer.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ID identifies an agent (factory, pop) or an authority.
type ID int64

// Location is an opaque tile/region handle resolved by the map collaborator.
type Location int32

// Resource identifies a good in the metadata tables.
type Resource int32

// Currency identifies a fiat currency issued by an authority.
type Currency int32

// AssetKind orders assets: every fiat sorts before every good.
type AssetKind uint8

const (
	KindFiat AssetKind = iota
	KindGood
)

var ErrInvalidAsset = errors.New("model: invalid asset")

// Asset is anything a liquidity pool can hold. Assets are totally ordered by
// (Kind, ID), which is what canonicalizes an unordered market pair.
type Asset struct {
	Kind AssetKind
	ID   int32
}

func Fiat(c Currency) Asset { return Asset{Kind: KindFiat, ID: int32(c)} }
func Good(r Resource) Asset { return Asset{Kind: KindGood, ID: int32(r)} }

func (a Asset) IsFiat() bool { return a.Kind == KindFiat }

// Currency returns the currency of a fiat asset.
func (a Asset) Currency() (Currency, bool) {
	return Currency(a.ID), a.Kind == KindFiat
}

// Resource returns the resource of a good asset.
func (a Asset) Resource() (Resource, bool) {
	return Resource(a.ID), a.Kind == KindGood
}

// Compare returns -1, 0 or +1 under the asset total order.
func (a Asset) Compare(b Asset) int {
	switch {
	case a.Kind != b.Kind:
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func (a Asset) String() string {
	if a.Kind == KindFiat {
		return "fiat:" + strconv.Itoa(int(a.ID))
	}
	return "good:" + strconv.Itoa(int(a.ID))
}

// ParseAsset parses "fiat:N" or "good:N".
func ParseAsset(s string) (Asset, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
	}
	n, err := strconv.ParseInt(id, 10, 32)
	if err != nil || n < 0 {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
	}
	switch kind {
	case "fiat":
		return Asset{Kind: KindFiat, ID: int32(n)}, nil
	case "good":
		return Asset{Kind: KindGood, ID: int32(n)}, nil
	}
	return Asset{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidAsset, kind)
}

func (a Asset) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Asset) UnmarshalText(text []byte) error {
	v, err := ParseAsset(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Pair is an unordered asset pair stored smaller-first.
type Pair struct {
	X Asset `json:"x"`
	Y Asset `json:"y"`
}

// NewPair canonicalizes (a, b). flipped reports whether a was the larger.
func NewPair(a, b Asset) (p Pair, flipped bool) {
	if b.Compare(a) < 0 {
		return Pair{X: b, Y: a}, true
	}
	return Pair{X: a, Y: b}, false
}

// Compare orders pairs lexically.
func (p Pair) Compare(q Pair) int {
	if c := p.X.Compare(q.X); c != 0 {
		return c
	}
	return p.Y.Compare(q.Y)
}

func (p Pair) String() string { return p.X.String() + "/" + p.Y.String() }

// ParsePair parses "x/y" in either order and canonicalizes it.
func ParsePair(s string) (Pair, error) {
	a, b, ok := strings.Cut(s, "/")
	if !ok {
		return Pair{}, fmt.Errorf("%w: pair %q", ErrInvalidAsset, s)
	}
	x, err := ParseAsset(a)
	if err != nil {
		return Pair{}, err
	}
	y, err := ParseAsset(b)
	if err != nil {
		return Pair{}, err
	}
	if x == y {
		return Pair{}, fmt.Errorf("%w: pair of identical assets %q", ErrInvalidAsset, s)
	}
	p, _ := NewPair(x, y)
	return p, nil
}

func (p Pair) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Pair) UnmarshalText(text []byte) error {
	v, err := ParsePair(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarketClose is the per-turn closing record of one market, appended to
// history storage. Prices are quote per base in canonical orientation.
type MarketClose struct {
	Pair        string          `json:"pair" db:"pair"`
	Day         int64           `json:"day" db:"day"`
	Open        decimal.Decimal `json:"open" db:"open"`
	High        decimal.Decimal `json:"high" db:"high"`
	Low         decimal.Decimal `json:"low" db:"low"`
	Close       decimal.Decimal `json:"close" db:"close"`
	VolumeBase  int64           `json:"volume_base" db:"volume_base"`
	VolumeQuote int64           `json:"volume_quote" db:"volume_quote"`
	Base        int64           `json:"base" db:"base"`
	Quote       int64           `json:"quote" db:"quote"`
}

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	ID        string    `json:"id" db:"id"`
	Day       int64     `json:"day" db:"day"`
	Seed      uint64    `json:"seed" db:"seed"`
	Size      int       `json:"size" db:"size"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
