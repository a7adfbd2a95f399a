package exact

import "testing"

func TestReservoir_Turn(t *testing.T) {
	var r Reservoir[int64]
	r.Add(100)
	r.Turn()

	r.Add(30)
	r.Remove(50)
	if r.Total != 80 {
		t.Errorf("total = %d, want 80", r.Total)
	}
	if r.Before() != 100 {
		t.Errorf("before = %d, want 100", r.Before())
	}
	if r.Change() != -20 {
		t.Errorf("change = %d, want -20", r.Change())
	}

	r.Turn()
	if r.Added != 0 || r.Removed != 0 || r.Total != 80 {
		t.Errorf("turn should reset deltas only: %+v", r)
	}
}

func TestReservoir_OverdrawPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic removing more than total")
		}
	}()
	var r Reservoir[int]
	r.Add(1)
	r.Remove(2)
}
