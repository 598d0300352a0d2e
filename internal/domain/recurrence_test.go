package domain

import (
	"testing"
	"time"
)

func TestExpandInstances_OneOff(t *testing.T) {
	e := Event{
		Title:    "Launch party",
		StartsAt: time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC),
		Location: "Hall A",
	}

	instances := ExpandInstances(e)
	if len(instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(instances))
	}
	if !instances[0].StartsAt.Equal(e.StartsAt) {
		t.Errorf("expected instance at %v, got %v", e.StartsAt, instances[0].StartsAt)
	}
	if instances[0].Location != "Hall A" {
		t.Errorf("expected location carried over, got %q", instances[0].Location)
	}
}

func TestExpandInstances_Weekly(t *testing.T) {
	start := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	e := Event{
		StartsAt:      start,
		Recurrence:    RecurrenceWeekly,
		RecurrenceEnd: start.AddDate(0, 0, 28),
	}

	instances := ExpandInstances(e)
	if len(instances) != 5 {
		t.Fatalf("expected 5 weekly instances, got %d", len(instances))
	}
	for i, inst := range instances {
		want := start.AddDate(0, 0, 7*i)
		if !inst.StartsAt.Equal(want) {
			t.Errorf("instance %d: expected %v, got %v", i, want, inst.StartsAt)
		}
	}
}

func TestExpandInstances_DailyInclusiveEnd(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	e := Event{
		StartsAt:      start,
		Recurrence:    RecurrenceDaily,
		RecurrenceEnd: start.AddDate(0, 0, 2),
	}

	instances := ExpandInstances(e)
	if len(instances) != 3 {
		t.Fatalf("expected 3 daily instances, got %d", len(instances))
	}
	last := instances[len(instances)-1]
	if !last.StartsAt.Equal(e.RecurrenceEnd) {
		t.Errorf("expected last instance on the end date, got %v", last.StartsAt)
	}
}

func TestExpandInstances_MonthlyEndBeforeNextStep(t *testing.T) {
	start := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	e := Event{
		StartsAt:      start,
		Recurrence:    RecurrenceMonthly,
		RecurrenceEnd: start.AddDate(0, 1, -1),
	}

	instances := ExpandInstances(e)
	if len(instances) != 1 {
		t.Fatalf("expected 1 instance when the end precedes the second occurrence, got %d", len(instances))
	}
}

func TestParseRecurrence(t *testing.T) {
	for _, valid := range []string{"", "daily", "weekly", "monthly"} {
		if _, err := ParseRecurrence(valid); err != nil {
			t.Errorf("expected %q to parse, got %v", valid, err)
		}
	}
	if _, err := ParseRecurrence("yearly"); err == nil {
		t.Error("expected yearly to be rejected")
	}
}
