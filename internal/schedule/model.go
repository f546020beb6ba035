package schedule

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Occupies reports whether an appointment in this status holds its time
// interval on the calendar. Cancelled, completed and no-show appointments
// never conflict with new bookings.
func (s Status) Occupies() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// CanTransition reports whether a status change is allowed. Transitions are
// monotonic except that scheduled/confirmed and cancelled are mutually
// reversible until the appointment is completed. Completed is terminal.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusScheduled:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled || to == StatusCompleted || to == StatusNoShow
	case StatusCancelled:
		return to == StatusScheduled || to == StatusConfirmed
	default:
		// completed and no_show are terminal
		return false
	}
}

// HistoryEntry is one line of an appointment's append-only audit trail.
type HistoryEntry struct {
	At          time.Time
	Actor       string
	Description string
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	SiteID         uuid.UUID
	Start          time.Time
	End            time.Time
	Status         Status
	TreatmentID    *uuid.UUID
	Resource       *string // assigned room/box, if any
	Notes          string
	Version        int64
	History        []HistoryEntry
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a *Appointment) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// WorkingWindow is one recurring availability window within a weekday,
// expressed as minutes from midnight so templates stay timezone-agnostic.
type WorkingWindow struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

type WorkingHours struct {
	ProfessionalID uuid.UUID
	Windows        []WorkingWindow
}

// WindowsFor returns the windows covering the given weekday.
func (wh WorkingHours) WindowsFor(day time.Weekday) []WorkingWindow {
	var out []WorkingWindow
	for _, w := range wh.Windows {
		if w.Weekday == day {
			out = append(out, w)
		}
	}
	return out
}

// Block is an administrative unavailability interval (vacation, room
// maintenance). It carries no patient and is treated as an opaque occupied
// interval by conflict checks.
type Block struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	Resource       *string
	Start          time.Time
	End            time.Time
	Reason         string
}

// Slot is a computed free window. Slots are ephemeral: they are regenerated
// on every availability query and never persisted.
type Slot struct {
	Start time.Time
	End   time.Time
}

type TransformMode string

const (
	TransformShiftDays       TransformMode = "shift_days"
	TransformMoveToFixedDate TransformMode = "move_to_fixed_date"
)

// Transform describes how a bulk reprogram relocates each appointment.
// Time-of-day is always preserved.
type Transform struct {
	Mode TransformMode
	Days int       // shift_days
	Date time.Time // move_to_fixed_date; only the date portion is used
}

// Apply computes the new start for an appointment currently starting at t.
func (tr Transform) Apply(t time.Time) time.Time {
	switch tr.Mode {
	case TransformShiftDays:
		return t.AddDate(0, 0, tr.Days)
	case TransformMoveToFixedDate:
		return time.Date(
			tr.Date.Year(), tr.Date.Month(), tr.Date.Day(),
			t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
			t.Location(),
		)
	default:
		return t
	}
}

type BulkReprogramRequest struct {
	AppointmentIDs []uuid.UUID
	Transform      Transform
	NotifyPatients bool
	Reason         string
	Actor          string
}

type BulkFailure struct {
	AppointmentID uuid.UUID
	Reason        string
}

// BulkReprogramResult enumerates every requested id exactly once: either in
// the succeeded count or in the failure list. It is returned to the caller
// and never persisted; the durable audit lives in each appointment's history.
type BulkReprogramResult struct {
	Succeeded int
	Failed    int
	Failures  []BulkFailure
}

// MoveNotification is the intent handed to the notification dispatcher for
// each successfully relocated appointment. Delivery is the dispatcher's
// concern; the engine never retries.
type MoveNotification struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	OldStart      time.Time
	NewStart      time.Time
	Reason        string
}
