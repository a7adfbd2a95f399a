package ticker

import (
	"errors"
	"testing"

	"github.com/rarestbarbie/majesty-sub001/internal/config"
	"github.com/rarestbarbie/majesty-sub001/internal/economy"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := FromScenario(config.Scenario{
		Currencies: []config.Currency{{ID: 1, Name: "crown"}, {ID: 2, Name: "mark"}},
		Resources:  []economy.ResourceInfo{{ID: 1, Name: "grain"}, {ID: 5, Name: "cloth"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r
}

func TestParse_Valid(t *testing.T) {
	r := testRegistry(t)
	crownGrain := model.Pair{X: model.Fiat(1), Y: model.Good(1)}

	tests := []struct {
		ticker  string
		symbol  string
		flipped bool
	}{
		{"CROWN-GRAIN", "CROWN-GRAIN", false},
		{"crown-grain", "CROWN-GRAIN", false},
		{"GRAIN-CROWN", "GRAIN-CROWN", true},
		{"fiat:1-good:1", "CROWN-GRAIN", false},
		{"good:1-CROWN", "GRAIN-CROWN", true},
	}
	for _, tt := range tests {
		c, err := r.Parse(tt.ticker)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.ticker, err)
			continue
		}
		if c.Pair != crownGrain {
			t.Errorf("%s: expected pair %s, got %s", tt.ticker, crownGrain, c.Pair)
		}
		if c.Symbol != tt.symbol {
			t.Errorf("%s: expected symbol %s, got %s", tt.ticker, tt.symbol, c.Symbol)
		}
		if c.Flipped != tt.flipped {
			t.Errorf("%s: expected flipped=%v", tt.ticker, tt.flipped)
		}
	}
}

func TestParse_InvalidFormat(t *testing.T) {
	r := testRegistry(t)
	tests := []string{
		"",
		"CROWN",
		"CROWN-",
		"CROWN/GRAIN",
		"CROWN-GRAIN-MARK",
		"fiat:x-good:1",
		"gold:1-good:1",
		"CROWN-CROWN",
		"fiat:1-CROWN",
	}
	for _, ticker := range tests {
		if _, err := r.Parse(ticker); !errors.Is(err, ErrInvalidTicker) {
			t.Errorf("%q: expected ErrInvalidTicker, got %v", ticker, err)
		}
	}
}

func TestParse_UnknownSymbol(t *testing.T) {
	r := testRegistry(t)
	if _, err := r.Parse("CROWN-SILK"); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestParse_UnnamedAssetsUseRawForm(t *testing.T) {
	r := testRegistry(t)
	c, err := r.Parse("fiat:1-good:9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Symbol != "CROWN-good:9" {
		t.Errorf("expected CROWN-good:9, got %s", c.Symbol)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	r := testRegistry(t)
	for _, p := range []model.Pair{
		{X: model.Fiat(1), Y: model.Fiat(2)},
		{X: model.Fiat(2), Y: model.Good(5)},
		{X: model.Good(1), Y: model.Good(5)},
	} {
		c, err := r.Parse(r.Format(p))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", p, err)
		}
		if c.Pair != p || c.Flipped {
			t.Errorf("%s: round trip gave %s flipped=%v", p, c.Pair, c.Flipped)
		}
	}
}

func TestAdd_Duplicates(t *testing.T) {
	r := testRegistry(t)
	if err := r.Add(model.Good(2), "Grain"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for reused symbol, got %v", err)
	}
	if err := r.Add(model.Good(1), "wheat"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for renamed asset, got %v", err)
	}
	if err := r.Add(model.Good(3), "raw silk"); !errors.Is(err, ErrInvalidTicker) {
		t.Errorf("expected ErrInvalidTicker for symbol with space, got %v", err)
	}
}
