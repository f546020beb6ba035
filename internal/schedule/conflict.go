package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictValidator is a pure predicate over store reads: it never mutates
// anything and holds no state between calls.
type ConflictValidator struct {
	store    AppointmentStore
	calendar CalendarSource
}

func NewConflictValidator(store AppointmentStore, calendar CalendarSource) *ConflictValidator {
	return &ConflictValidator{store: store, calendar: calendar}
}

// HasConflict reports whether the candidate interval overlaps any
// scheduled/confirmed appointment or any block for the professional, or for
// the assigned resource when one is given. excludeID lets a move-in-place
// check ignore the appointment's own prior slot; pass uuid.Nil otherwise.
//
// Intervals are half-open: an appointment ending exactly when the candidate
// starts does not conflict.
func (v *ConflictValidator) HasConflict(ctx context.Context, professionalID uuid.UUID, start, end time.Time, excludeID uuid.UUID, resource *string) (bool, error) {
	appts, err := v.store.ListByProfessionalAndRange(ctx, professionalID, start, end)
	if err != nil {
		return false, fmt.Errorf("list appointments: %w", err)
	}
	if conflictsWithAppointments(appts, start, end, excludeID) {
		return true, nil
	}

	blocks, err := v.calendar.ListBlocks(ctx, professionalID, start, end)
	if err != nil {
		return false, fmt.Errorf("list blocks: %w", err)
	}
	if conflictsWithBlocks(blocks, start, end) {
		return true, nil
	}

	if resource == nil || *resource == "" {
		return false, nil
	}

	resAppts, err := v.store.ListByResourceAndRange(ctx, *resource, start, end)
	if err != nil {
		return false, fmt.Errorf("list appointments by resource: %w", err)
	}
	if conflictsWithAppointments(resAppts, start, end, excludeID) {
		return true, nil
	}

	resBlocks, err := v.calendar.ListBlocksByResource(ctx, *resource, start, end)
	if err != nil {
		return false, fmt.Errorf("list blocks by resource: %w", err)
	}
	return conflictsWithBlocks(resBlocks, start, end), nil
}

func conflictsWithAppointments(appts []Appointment, start, end time.Time, excludeID uuid.UUID) bool {
	for _, ap := range appts {
		if ap.ID == excludeID || !ap.Status.Occupies() {
			continue
		}
		if overlaps(ap.Start, ap.End, start, end) {
			return true
		}
	}
	return false
}

func conflictsWithBlocks(blocks []Block, start, end time.Time) bool {
	for _, b := range blocks {
		if overlaps(b.Start, b.End, start, end) {
			return true
		}
	}
	return false
}

// overlaps implements the half-open overlap rule:
// aStart < bEnd && bStart < aEnd.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
