package schedule

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusScheduled, StatusNoShow, false},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusCancelled, StatusScheduled, true},
		{StatusCancelled, StatusConfirmed, true},
		{StatusCancelled, StatusCompleted, false},
		{StatusCompleted, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusNoShow, StatusScheduled, false},
		{StatusNoShow, StatusCancelled, false},
		{StatusScheduled, StatusScheduled, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusOccupies(t *testing.T) {
	occupied := map[Status]bool{
		StatusScheduled: true,
		StatusConfirmed: true,
		StatusCancelled: false,
		StatusCompleted: false,
		StatusNoShow:    false,
	}
	for status, want := range occupied {
		if got := status.Occupies(); got != want {
			t.Errorf("%s.Occupies() = %v, want %v", status, got, want)
		}
	}
}

func TestTransformApply_ShiftDays(t *testing.T) {
	start := time.Date(2026, 9, 7, 10, 30, 0, 0, time.UTC)

	got := Transform{Mode: TransformShiftDays, Days: 7}.Apply(start)
	want := time.Date(2026, 9, 14, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Apply = %v, want %v", got, want)
	}

	got = Transform{Mode: TransformShiftDays, Days: -3}.Apply(start)
	want = time.Date(2026, 9, 4, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("negative shift = %v, want %v", got, want)
	}
}

func TestTransformApply_MoveToFixedDate(t *testing.T) {
	start := time.Date(2026, 9, 7, 16, 45, 0, 0, time.UTC)
	target := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	got := Transform{Mode: TransformMoveToFixedDate, Date: target}.Apply(start)
	want := time.Date(2026, 10, 1, 16, 45, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Apply = %v, want %v (time of day preserved)", got, want)
	}
}

func TestWindowsFor(t *testing.T) {
	wh := WorkingHours{Windows: []WorkingWindow{
		{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 13 * 60},
		{Weekday: time.Monday, StartMinute: 14 * 60, EndMinute: 18 * 60},
		{Weekday: time.Friday, StartMinute: 9 * 60, EndMinute: 12 * 60},
	}}

	if got := len(wh.WindowsFor(time.Monday)); got != 2 {
		t.Fatalf("Monday windows = %d, want 2", got)
	}
	if got := len(wh.WindowsFor(time.Friday)); got != 1 {
		t.Fatalf("Friday windows = %d, want 1", got)
	}
	if got := len(wh.WindowsFor(time.Sunday)); got != 0 {
		t.Fatalf("Sunday windows = %d, want 0", got)
	}
}
