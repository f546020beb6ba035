package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrPatientNotFound      = errors.New("patient not found")

	// ErrVersionConflict means a conditional write lost a race against a
	// concurrent update and nothing was written.
	ErrVersionConflict = errors.New("appointment was modified concurrently")
)

// IntervalChange carries the fields a Move rewrites. The professional and
// resource are always set to the post-move values, even when unchanged.
type IntervalChange struct {
	Start          time.Time
	End            time.Time
	ProfessionalID uuid.UUID
	Resource       *string
}

// AppointmentStore contains all appointment persistence needed by the engine.
type AppointmentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Range listings return every appointment whose interval overlaps
	// [start, end), regardless of status. Status filtering happens in the
	// conflict validator and availability calculator.
	ListByProfessionalAndRange(ctx context.Context, professionalID uuid.UUID, start, end time.Time) ([]Appointment, error)
	ListByResourceAndRange(ctx context.Context, resource string, start, end time.Time) ([]Appointment, error)

	// Create persists a new appointment together with its first history
	// entry in a single transaction.
	Create(ctx context.Context, appt *Appointment, entry HistoryEntry) error

	// CompareAndSwap rewrites the appointment interval iff the stored
	// version still equals expectedVersion, appending the history entry in
	// the same transaction. Returns ErrVersionConflict on a lost race.
	CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, change IntervalChange, entry HistoryEntry) (*Appointment, error)

	// UpdateStatus transitions from -> to conditionally; a guard failure on
	// an existing appointment surfaces as ErrVersionConflict.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, entry HistoryEntry) (*Appointment, error)
}

// CalendarSource provides the read-only working-hours templates and
// administrative blocks this engine schedules around.
type CalendarSource interface {
	GetWorkingHours(ctx context.Context, professionalID uuid.UUID) (WorkingHours, error)
	ListBlocks(ctx context.Context, professionalID uuid.UUID, start, end time.Time) ([]Block, error)
	ListBlocksByResource(ctx context.Context, resource string, start, end time.Time) ([]Block, error)
}

// Notifier receives move intents for patients that opted into notification.
// Implementations must not block the scheduling path on delivery.
type Notifier interface {
	AppointmentMoved(ctx context.Context, n MoveNotification)
}

// NopNotifier drops every intent. Used when no dispatcher is configured.
type NopNotifier struct{}

func (NopNotifier) AppointmentMoved(context.Context, MoveNotification) {}
