package random

import (
	"testing"

	"github.com/rarestbarbie/majesty-sub001/internal/exact"
)

func TestSource_Deterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Int64N(1_000_000), b.Int64N(1_000_000); x != y {
			t.Fatalf("draw %d diverged: %d vs %d", i, x, y)
		}
	}
}

func TestSource_ShuffleDeterministic(t *testing.T) {
	xs := []int{1, 2, 3, 4, 5, 6, 7, 8}
	ys := append([]int(nil), xs...)
	Shuffle(New(7), xs)
	Shuffle(New(7), ys)
	for i := range xs {
		if xs[i] != ys[i] {
			t.Fatalf("shuffles diverged: %v vs %v", xs, ys)
		}
	}
}

func TestRoll_Bounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 50; i++ {
		if s.Roll(exact.Zero) {
			t.Fatal("p=0 should never succeed")
		}
		if !s.Roll(exact.One) {
			t.Fatal("p=1 should always succeed")
		}
	}
}

func TestBinomial_Range(t *testing.T) {
	s := New(3)
	tests := []struct {
		n int64
		p exact.Fraction
	}{
		{0, exact.New(1, 2)},
		{10, exact.New(1, 2)},
		{200, exact.New(1, 20)},
		{100_000, exact.New(1, 3)},
	}
	for _, tt := range tests {
		k := s.Binomial(tt.n, tt.p)
		if k < 0 || k > tt.n {
			t.Errorf("Binomial(%d, %s) = %d out of range", tt.n, tt.p, k)
		}
	}
	if k := s.Binomial(50, exact.One); k != 50 {
		t.Errorf("p=1 should return n, got %d", k)
	}
}

func TestMarshalBinary_Resumes(t *testing.T) {
	a := New(99)
	a.Int64N(10)
	state, err := a.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var b Source
	if err := b.UnmarshalBinary(state); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		if x, y := a.Int64N(1000), b.Int64N(1000); x != y {
			t.Fatalf("restored source diverged at %d: %d vs %d", i, x, y)
		}
	}
}
