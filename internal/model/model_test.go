package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAsset_FiatSortsBeforeGood(t *testing.T) {
	if Fiat(99).Compare(Good(0)) >= 0 {
		t.Error("expected every fiat to sort before every good")
	}
	if Good(1).Compare(Good(2)) >= 0 {
		t.Error("expected goods ordered by id")
	}
	if Fiat(3).Compare(Fiat(3)) != 0 {
		t.Error("expected equal assets to compare 0")
	}
}

func TestParseAsset(t *testing.T) {
	tests := []struct {
		in   string
		want Asset
		err  bool
	}{
		{"fiat:1", Fiat(1), false},
		{"good:42", Good(42), false},
		{"fiat", Asset{}, true},
		{"coin:1", Asset{}, true},
		{"good:-1", Asset{}, true},
		{"good:x", Asset{}, true},
	}
	for _, tt := range tests {
		got, err := ParseAsset(tt.in)
		if tt.err {
			if !errors.Is(err, ErrInvalidAsset) {
				t.Errorf("%q: expected ErrInvalidAsset, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewPair_Canonical(t *testing.T) {
	p, flipped := NewPair(Good(1), Fiat(2))
	if !flipped {
		t.Error("expected flipped when the larger asset comes first")
	}
	if p.X != Fiat(2) || p.Y != Good(1) {
		t.Errorf("got %v", p)
	}

	q, flipped := NewPair(Fiat(2), Good(1))
	if flipped || q != p {
		t.Errorf("expected %v unflipped, got %v flipped=%v", p, q, flipped)
	}
}

func TestParsePair(t *testing.T) {
	p, err := ParsePair("good:3/fiat:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.String() != "fiat:1/good:3" {
		t.Errorf("got %s", p)
	}

	for _, s := range []string{"fiat:1", "fiat:1/fiat:1", "fiat:1/bogus"} {
		if _, err := ParsePair(s); !errors.Is(err, ErrInvalidAsset) {
			t.Errorf("%q: expected ErrInvalidAsset, got %v", s, err)
		}
	}
}

func TestPair_JSONKey(t *testing.T) {
	in := map[Pair]int{{X: Fiat(1), Y: Good(2)}: 7}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"fiat:1/good:2":7}` {
		t.Errorf("got %s", data)
	}

	var out map[Pair]int
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[Pair{X: Fiat(1), Y: Good(2)}] != 7 {
		t.Errorf("got %v", out)
	}
}
