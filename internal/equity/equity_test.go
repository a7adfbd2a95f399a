package equity

import (
	"testing"

	"github.com/rarestbarbie/majesty-sub001/internal/exact"
	"github.com/rarestbarbie/majesty-sub001/internal/model"
	"github.com/rarestbarbie/majesty-sub001/internal/random"
)

func sumPayouts(ps []Payout) (cash, shares int64) {
	for _, p := range ps {
		cash += p.Amount
		shares += p.Shares
	}
	return cash, shares
}

func TestIssue_KeepsOwnerOrder(t *testing.T) {
	var l Ledger
	l.Issue(30, 5)
	l.Issue(10, 5)
	l.Issue(20, 5)
	l.Issue(10, 1)
	l.Issue(40, 0)

	if len(l.Stakes) != 3 {
		t.Fatalf("expected 3 stakes, got %d", len(l.Stakes))
	}
	for i, want := range []model.ID{10, 20, 30} {
		if l.Stakes[i].Owner != want {
			t.Errorf("stake %d owner %d, want %d", i, l.Stakes[i].Owner, want)
		}
	}
	if l.Stake(10) != 6 || l.Outstanding() != 16 {
		t.Errorf("stake(10)=%d outstanding=%d", l.Stake(10), l.Outstanding())
	}
}

func TestDividend_PaysExactlyAmount(t *testing.T) {
	var l Ledger
	l.Issue(1, 1)
	l.Issue(2, 1)
	l.Issue(3, 1)

	payouts := l.Dividend(100, random.New(7))
	cash, _ := sumPayouts(payouts)
	if cash != 100 {
		t.Fatalf("paid %d, want 100", cash)
	}
	for _, p := range payouts {
		if p.Amount < 33 || p.Amount > 34 {
			t.Errorf("owner %d got %d", p.Owner, p.Amount)
		}
	}
}

func TestDividend_NothingToPay(t *testing.T) {
	var l Ledger
	if l.Dividend(100, random.New(1)) != nil {
		t.Error("no holders should skip the dividend")
	}
	l.Issue(1, 10)
	if l.Dividend(0, random.New(1)) != nil {
		t.Error("zero dividend should be skipped")
	}
}

func TestDividend_Deterministic(t *testing.T) {
	var l Ledger
	for owner := model.ID(1); owner <= 7; owner++ {
		l.Issue(owner, 3)
	}
	a := l.Dividend(10, random.New(99))
	b := l.Dividend(10, random.New(99))
	if len(a) != len(b) {
		t.Fatal("same seed should give the same payouts")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("payout %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestBuyback(t *testing.T) {
	var l Ledger
	l.Issue(1, 60)
	l.Issue(2, 40)

	// 2.5 per share, budget 101 buys 40 shares for 100.
	payouts := l.Buyback(101, exact.New(5, 2), random.New(3))
	cash, shares := sumPayouts(payouts)
	if shares != 40 {
		t.Errorf("retired %d shares, want 40", shares)
	}
	if cash > 101 {
		t.Errorf("paid %d over budget", cash)
	}
	if l.Outstanding() != 60 {
		t.Errorf("outstanding %d, want 60", l.Outstanding())
	}
	if l.Stake(1) != 36 || l.Stake(2) != 24 {
		t.Errorf("stakes %d/%d, want 36/24", l.Stake(1), l.Stake(2))
	}
}

func TestBuyback_BoundedByHoldings(t *testing.T) {
	var l Ledger
	l.Issue(1, 10)
	payouts := l.Buyback(1_000_000, exact.One, random.New(3))
	_, shares := sumPayouts(payouts)
	if shares != 10 || l.Outstanding() != 0 {
		t.Errorf("retired %d, outstanding %d", shares, l.Outstanding())
	}
}

func TestSplit(t *testing.T) {
	var l Ledger
	l.Issue(1, 7)
	l.Issue(2, 4)
	l.Split(exact.Int(2))
	if l.Stake(1) != 14 || l.Stake(2) != 8 || l.Splits != 1 {
		t.Errorf("after 2:1 split: %d/%d splits=%d", l.Stake(1), l.Stake(2), l.Splits)
	}
	l.Split(exact.New(1, 3))
	if l.Stake(1) != 4 || l.Stake(2) != 2 {
		t.Errorf("after 1:3 reverse split: %d/%d", l.Stake(1), l.Stake(2))
	}
}

func TestPrune(t *testing.T) {
	var l Ledger
	l.Issue(1, 5)
	l.Issue(2, 7)
	l.Issue(3, 4)
	i, _ := l.find(3)
	l.Stakes[i].Shares.Remove(4)
	l.Turn()

	retired := l.Prune(func(id model.ID) bool { return id != 2 })
	if retired != 7 {
		t.Errorf("retired %d, want 7", retired)
	}
	if len(l.Stakes) != 1 || l.Stakes[0].Owner != 1 {
		t.Errorf("unexpected survivors %+v", l.Stakes)
	}
}

func TestPrune_KeepsStakeEmptiedThisTurn(t *testing.T) {
	var l Ledger
	l.Issue(1, 5)
	l.Turn()
	l.Stakes[0].Shares.Remove(5)

	l.Prune(func(model.ID) bool { return true })
	if len(l.Stakes) != 1 {
		t.Fatalf("expected the emptied stake to survive until the next turn, got %+v", l.Stakes)
	}
	l.Turn()
	l.Prune(func(model.ID) bool { return true })
	if len(l.Stakes) != 0 {
		t.Errorf("expected the stake to be pruned, got %+v", l.Stakes)
	}
}

func TestLedger_Change(t *testing.T) {
	var l Ledger
	l.Issue(1, 5)
	l.Issue(2, 3)
	if got := l.Change(); got != 8 {
		t.Errorf("change = %d, want 8", got)
	}
	l.Turn()
	l.Stakes[0].Shares.Remove(2)
	if got := l.Change(); got != -2 {
		t.Errorf("change = %d, want -2", got)
	}
}

func TestTurn_ResetsDeltas(t *testing.T) {
	var l Ledger
	l.Issue(1, 5)
	l.Turn()
	if l.Stakes[0].Shares.Added != 0 || l.Stakes[0].Shares.Total != 5 {
		t.Errorf("unexpected reservoir %+v", l.Stakes[0].Shares)
	}
}
