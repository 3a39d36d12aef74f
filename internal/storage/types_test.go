package storage

import "testing"

func TestMatchKDA(t *testing.T) {
	tests := []struct {
		k, d, a int
		want    float64
	}{
		{10, 2, 5, 7.5},
		{3, 0, 4, 7},
		{0, 5, 0, 0},
	}
	for _, tt := range tests {
		m := Match{Kills: tt.k, Deaths: tt.d, Assists: tt.a}
		if got := m.KDA(); got != tt.want {
			t.Errorf("KDA(%d/%d/%d) = %v, want %v", tt.k, tt.d, tt.a, got, tt.want)
		}
	}
}

func TestMatchCSPerMinute(t *testing.T) {
	m := Match{CS: 180, GameDurationSeconds: 1800}
	if got, ok := m.CSPerMinute(); !ok || got != 6 {
		t.Errorf("CSPerMinute() = %v, %v", got, ok)
	}
	zero := Match{CS: 10}
	if _, ok := zero.CSPerMinute(); ok {
		t.Error("expected zero-length game to be excluded")
	}
}

func TestParseEventType(t *testing.T) {
	if ParseEventType("death") != EventDeath {
		t.Error("expected death")
	}
	if ParseEventType("ITEM_PURCHASE") != EventItemPurchase {
		t.Error("expected case-insensitive parse")
	}
	if ParseEventType("dragon_soul") != EventOther {
		t.Error("expected unknown type to map to other")
	}
}
