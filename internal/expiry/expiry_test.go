package expiry

import (
	"testing"
	"time"

	"github.com/larderapp/larder/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 8, 29, 23, 50, 0, 0, time.UTC)

	tests := []struct {
		name       string
		bestBefore time.Time
		want       int
	}{
		{"today late evening", date(2026, 8, 29), 0},
		{"tomorrow", date(2026, 8, 30), 1},
		{"in three days", date(2026, 9, 1), 3},
		{"yesterday", date(2026, 8, 28), -1},
		{"last week", date(2026, 8, 22), -7},
		{"next month", date(2026, 9, 29), 31},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntil(now, tt.bestBefore); got != tt.want {
				t.Errorf("DaysUntil = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDaysUntilIgnoresTimeOfDay(t *testing.T) {
	// A check at 23:59 and one at 00:01 must agree on the day count.
	late := time.Date(2026, 8, 29, 23, 59, 0, 0, time.UTC)
	early := time.Date(2026, 8, 29, 0, 1, 0, 0, time.UTC)
	bb := date(2026, 8, 31)

	if DaysUntil(late, bb) != DaysUntil(early, bb) {
		t.Errorf("day count shifted with hour: %d vs %d", DaysUntil(late, bb), DaysUntil(early, bb))
	}
}

func TestExpiring(t *testing.T) {
	now := date(2026, 8, 29)
	products := []model.Product{
		{Name: "milk", BestBefore: date(2026, 8, 30)},    // 1 day
		{Name: "yogurt", BestBefore: date(2026, 9, 1)},   // 3 days, boundary
		{Name: "cheese", BestBefore: date(2026, 9, 2)},   // 4 days, outside
		{Name: "old ham", BestBefore: date(2026, 8, 20)}, // long expired
		{Name: "rice", BestBefore: time.Time{}},          // no date
	}

	got := Expiring(products, now, DefaultHorizonDays)
	if len(got) != 3 {
		t.Fatalf("expected 3 expiring products, got %d", len(got))
	}
	names := map[string]bool{}
	for _, p := range got {
		names[p.Name] = true
	}
	if !names["milk"] || !names["yogurt"] || !names["old ham"] {
		t.Errorf("expiring set = %v", names)
	}
}

func TestAlertBody(t *testing.T) {
	now := date(2026, 8, 29)
	tests := []struct {
		bestBefore time.Time
		want       string
	}{
		{date(2026, 8, 29), "milk expires today"},
		{date(2026, 8, 30), "milk expires tomorrow"},
		{date(2026, 9, 1), "milk expires in 3 days"},
		{date(2026, 8, 28), "milk expired yesterday"},
		{date(2026, 8, 25), "milk expired 4 days ago"},
	}
	for _, tt := range tests {
		p := model.Product{Name: "milk", BestBefore: tt.bestBefore}
		if got := AlertBody(p, now); got != tt.want {
			t.Errorf("AlertBody(%v) = %q, want %q", tt.bestBefore, got, tt.want)
		}
	}
}
