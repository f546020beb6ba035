package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// monday is a known Monday used by the slot fixtures.
var monday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func mondayAt(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func setupMondayMorning(store *memStore, profID uuid.UUID) {
	store.setHours(profID, WorkingWindow{
		Weekday:     time.Monday,
		StartMinute: 9 * 60,
		EndMinute:   13 * 60,
	})
}

func TestComputeSlots_EmptyMondayMorning(t *testing.T) {
	store := newMemStore()
	profID := uuid.New()
	setupMondayMorning(store, profID)

	av := NewAvailability(store, store, 15*time.Minute)
	slots, err := av.ComputeSlots(context.Background(), profID, monday, monday.AddDate(0, 0, 1), 30)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}

	// 09:00 through 12:30 at 15-minute steps.
	if len(slots) != 17 {
		t.Fatalf("slots = %d, want 17", len(slots))
	}
	if !slots[0].Start.Equal(mondayAt(9, 0)) {
		t.Fatalf("first slot = %v, want %v", slots[0].Start, mondayAt(9, 0))
	}
	if !slots[16].Start.Equal(mondayAt(12, 30)) {
		t.Fatalf("last slot = %v, want %v", slots[16].Start, mondayAt(12, 30))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.After(slots[i-1].Start) {
			t.Fatalf("slots out of order at %d: %v then %v", i, slots[i-1].Start, slots[i].Start)
		}
	}
}

func TestComputeSlots_InvalidInputs(t *testing.T) {
	store := newMemStore()
	profID := uuid.New()
	setupMondayMorning(store, profID)
	av := NewAvailability(store, store, 15*time.Minute)

	_, err := av.ComputeSlots(context.Background(), profID, monday, monday, 30)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("error = %v, want ErrInvalidRange", err)
	}

	_, err = av.ComputeSlots(context.Background(), profID, monday.AddDate(0, 0, 1), monday, 30)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("error = %v, want ErrInvalidRange", err)
	}

	_, err = av.ComputeSlots(context.Background(), profID, monday, monday.AddDate(0, 0, 1), 0)
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("error = %v, want ErrInvalidDuration", err)
	}
}

func TestComputeSlots_UnknownProfessional(t *testing.T) {
	store := newMemStore()
	av := NewAvailability(store, store, 15*time.Minute)

	_, err := av.ComputeSlots(context.Background(), uuid.New(), monday, monday.AddDate(0, 0, 1), 30)
	if !errors.Is(err, ErrProfessionalNotFound) {
		t.Fatalf("error = %v, want ErrProfessionalNotFound", err)
	}
}

func TestComputeSlots_NoWorkingHoursThatDay(t *testing.T) {
	store := newMemStore()
	profID := uuid.New()
	setupMondayMorning(store, profID)
	av := NewAvailability(store, store, 15*time.Minute)

	// Tuesday has no template entry.
	tuesday := monday.AddDate(0, 0, 1)
	slots, err := av.ComputeSlots(context.Background(), profID, tuesday, tuesday.AddDate(0, 0, 1), 30)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("slots = %d, want 0", len(slots))
	}
}

func TestComputeSlots_BookingRemovesOverlappingStarts(t *testing.T) {
	store := newMemStore()
	profID := uuid.New()
	setupMondayMorning(store, profID)
	store.put(Appointment{
		ID:             uuid.New(),
		PatientID:      uuid.New(),
		ProfessionalID: profID,
		Start:          mondayAt(10, 0),
		End:            mondayAt(10, 30),
		Status:         StatusConfirmed,
	})

	av := NewAvailability(store, store, 15*time.Minute)
	slots, err := av.ComputeSlots(context.Background(), profID, monday, monday.AddDate(0, 0, 1), 30)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}

	for _, s := range slots {
		if overlaps(s.Start, s.End, mondayAt(10, 0), mondayAt(10, 30)) {
			t.Fatalf("slot %v-%v overlaps the booking", s.Start, s.End)
		}
	}
	// 09:00..09:30 (3) + 10:30..12:30 (9).
	if len(slots) != 12 {
		t.Fatalf("slots = %d, want 12", len(slots))
	}
	// Back-to-back before and after the booking must both exist.
	if !containsSlotStart(slots, mondayAt(9, 30)) {
		t.Fatalf("expected slot at 09:30 ending exactly at the booking start")
	}
	if !containsSlotStart(slots, mondayAt(10, 30)) {
		t.Fatalf("expected slot at 10:30 starting exactly at the booking end")
	}
}

func TestComputeSlots_CancelledBookingsDoNotOccupy(t *testing.T) {
	store := newMemStore()
	profID := uuid.New()
	setupMondayMorning(store, profID)
	store.put(Appointment{
		ID:             uuid.New(),
		ProfessionalID: profID,
		Start:          mondayAt(10, 0),
		End:            mondayAt(10, 30),
		Status:         StatusCancelled,
	})

	av := NewAvailability(store, store, 15*time.Minute)
	slots, err := av.ComputeSlots(context.Background(), profID, monday, monday.AddDate(0, 0, 1), 30)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if len(slots) != 17 {
		t.Fatalf("slots = %d, want 17", len(slots))
	}
}

func TestComputeSlots_OverlappingBusyIntervalsAreMerged(t *testing.T) {
	store := newMemStore()
	profID := uuid.New()
	setupMondayMorning(store, profID)
	// Appointment and block overlap; the union 10:00-11:15 must be busy with
	// no phantom free time between them.
	store.put(Appointment{
		ID:             uuid.New(),
		ProfessionalID: profID,
		Start:          mondayAt(10, 0),
		End:            mondayAt(10, 45),
		Status:         StatusScheduled,
	})
	store.addBlock(Block{
		ProfessionalID: profID,
		Start:          mondayAt(10, 30),
		End:            mondayAt(11, 15),
		Reason:         "maintenance",
	})

	av := NewAvailability(store, store, 15*time.Minute)
	slots, err := av.ComputeSlots(context.Background(), profID, monday, monday.AddDate(0, 0, 1), 30)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}

	for _, s := range slots {
		if overlaps(s.Start, s.End, mondayAt(10, 0), mondayAt(11, 15)) {
			t.Fatalf("slot %v-%v overlaps merged busy window", s.Start, s.End)
		}
	}
	if containsSlotStart(slots, mondayAt(10, 45)) {
		t.Fatalf("phantom slot emitted inside merged busy window")
	}
}

func TestComputeSlots_GapShorterThanDurationYieldsNoSlot(t *testing.T) {
	store := newMemStore()
	profID := uuid.New()
	setupMondayMorning(store, profID)
	store.put(Appointment{
		ID:             uuid.New(),
		ProfessionalID: profID,
		Start:          mondayAt(9, 0),
		End:            mondayAt(10, 0),
		Status:         StatusScheduled,
	})
	store.put(Appointment{
		ID:             uuid.New(),
		ProfessionalID: profID,
		Start:          mondayAt(10, 15),
		End:            mondayAt(13, 0),
		Status:         StatusScheduled,
	})

	av := NewAvailability(store, store, 15*time.Minute)
	slots, err := av.ComputeSlots(context.Background(), profID, monday, monday.AddDate(0, 0, 1), 30)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("slots = %v, want none (gap is only 15 minutes)", slots)
	}
}

func TestComputeSlots_ExactGapYieldsExactlyOneSlot(t *testing.T) {
	store := newMemStore()
	profID := uuid.New()
	setupMondayMorning(store, profID)
	store.put(Appointment{
		ID:             uuid.New(),
		ProfessionalID: profID,
		Start:          mondayAt(9, 0),
		End:            mondayAt(10, 0),
		Status:         StatusScheduled,
	})
	store.put(Appointment{
		ID:             uuid.New(),
		ProfessionalID: profID,
		Start:          mondayAt(10, 30),
		End:            mondayAt(13, 0),
		Status:         StatusScheduled,
	})

	av := NewAvailability(store, store, 15*time.Minute)
	slots, err := av.ComputeSlots(context.Background(), profID, monday, monday.AddDate(0, 0, 1), 30)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("slots = %d, want exactly 1 covering the gap", len(slots))
	}
	if !slots[0].Start.Equal(mondayAt(10, 0)) || !slots[0].End.Equal(mondayAt(10, 30)) {
		t.Fatalf("slot = %v-%v, want 10:00-10:30", slots[0].Start, slots[0].End)
	}
}

func TestComputeSlots_MultipleWindowsAndDays(t *testing.T) {
	store := newMemStore()
	profID := uuid.New()
	store.setHours(profID,
		WorkingWindow{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 11 * 60},
		WorkingWindow{Weekday: time.Monday, StartMinute: 15 * 60, EndMinute: 16 * 60},
		WorkingWindow{Weekday: time.Tuesday, StartMinute: 9 * 60, EndMinute: 10 * 60},
	)

	av := NewAvailability(store, store, 15*time.Minute)
	slots, err := av.ComputeSlots(context.Background(), profID, monday, monday.AddDate(0, 0, 2), 60)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}

	// Monday 09:00-11:00 gives 5 one-hour slots, 15:00-16:00 gives 1,
	// Tuesday 09:00-10:00 gives 1.
	if len(slots) != 7 {
		t.Fatalf("slots = %d, want 7", len(slots))
	}
	last := slots[len(slots)-1]
	if last.Start.Day() != monday.AddDate(0, 0, 1).Day() {
		t.Fatalf("expected final slot on Tuesday, got %v", last.Start)
	}
}

func TestComputeSlots_IsRestartable(t *testing.T) {
	store := newMemStore()
	profID := uuid.New()
	setupMondayMorning(store, profID)
	av := NewAvailability(store, store, 15*time.Minute)

	first, err := av.ComputeSlots(context.Background(), profID, monday, monday.AddDate(0, 0, 1), 30)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	second, err := av.ComputeSlots(context.Background(), profID, monday, monday.AddDate(0, 0, 1), 30)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("slot %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func containsSlotStart(slots []Slot, start time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return true
		}
	}
	return false
}
