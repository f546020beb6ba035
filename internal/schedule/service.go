package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/medagenda/clinic-scheduling/internal/redis"
)

var (
	ErrSlotConflict = errors.New("requested interval conflicts with an existing booking or block")

	// ErrCalendarBusy means the calendar lock could not be acquired because
	// another writer holds it. Callers should retry shortly.
	ErrCalendarBusy = errors.New("calendar is being modified, please retry")

	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError marks input problems that are rejected before any store
// access.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

const timeLayout = "2006-01-02 15:04"

// Scheduler orchestrates creation and relocation of single appointments.
// Each check-then-write runs under a per-calendar distributed lock, with the
// store's version CompareAndSwap as a second guard in case the lock TTL
// lapses mid-write.
type Scheduler struct {
	store     AppointmentStore
	validator *ConflictValidator
	locker    redisclient.Locker
	log       zerolog.Logger
}

func NewScheduler(store AppointmentStore, validator *ConflictValidator, locker redisclient.Locker, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		validator: validator,
		locker:    locker,
		log:       log,
	}
}

type CreateInput struct {
	PatientID       uuid.UUID
	ProfessionalID  uuid.UUID
	SiteID          uuid.UUID
	Start           time.Time
	DurationMinutes int
	TreatmentID     *uuid.UUID
	Resource        *string
	Notes           string
	Actor           string
}

// Create books a new appointment. On conflict nothing is written and
// ErrSlotConflict is returned.
func (s *Scheduler) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, validationError("patient_id is required")
	}
	if in.ProfessionalID == uuid.Nil {
		return nil, validationError("professional_id is required")
	}
	if in.Start.IsZero() {
		return nil, validationError("start is required")
	}
	if in.DurationMinutes <= 0 {
		return nil, validationError("duration_minutes must be positive")
	}

	start := in.Start
	end := start.Add(time.Duration(in.DurationMinutes) * time.Minute)

	var created *Appointment
	err := s.locker.WithCalendarLock(ctx, lockKeys(in.ProfessionalID, in.Resource), func(lockCtx context.Context) error {
		conflict, err := s.validator.HasConflict(lockCtx, in.ProfessionalID, start, end, uuid.Nil, in.Resource)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if conflict {
			return ErrSlotConflict
		}

		appt := &Appointment{
			ID:             uuid.New(),
			PatientID:      in.PatientID,
			ProfessionalID: in.ProfessionalID,
			SiteID:         in.SiteID,
			Start:          start,
			End:            end,
			Status:         StatusScheduled,
			TreatmentID:    in.TreatmentID,
			Resource:       in.Resource,
			Notes:          in.Notes,
			Version:        1,
		}
		entry := HistoryEntry{
			At:          time.Now().UTC(),
			Actor:       actorOrDefault(in.Actor),
			Description: "created",
		}
		if err := s.store.Create(lockCtx, appt, entry); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrCalendarBusy
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("professional_id", created.ProfessionalID.String()).
		Time("start", created.Start).
		Msg("appointment created")

	return created, nil
}

type MoveInput struct {
	AppointmentID     uuid.UUID
	NewStart          time.Time
	NewProfessionalID *uuid.UUID
	NewResource       *string
	Actor             string
	Reason            string
}

// Move relocates an appointment, preserving its duration. The target
// professional's calendar (and resource, if any) is locked for the
// check-then-write; the prior state is untouched on any failure.
func (s *Scheduler) Move(ctx context.Context, in MoveInput) (*Appointment, error) {
	if in.AppointmentID == uuid.Nil {
		return nil, validationError("appointment_id is required")
	}
	if in.NewStart.IsZero() {
		return nil, validationError("new_start is required")
	}

	appt, err := s.store.Get(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	if !appt.Status.Occupies() {
		return nil, validationError(fmt.Sprintf("appointment in status %q cannot be moved", appt.Status))
	}

	targetProfessional := appt.ProfessionalID
	if in.NewProfessionalID != nil && *in.NewProfessionalID != uuid.Nil {
		targetProfessional = *in.NewProfessionalID
	}
	targetResource := appt.Resource
	if in.NewResource != nil {
		targetResource = in.NewResource
	}

	newStart := in.NewStart
	newEnd := newStart.Add(appt.Duration())

	var moved *Appointment
	err = s.locker.WithCalendarLock(ctx, lockKeys(targetProfessional, targetResource), func(lockCtx context.Context) error {
		conflict, err := s.validator.HasConflict(lockCtx, targetProfessional, newStart, newEnd, appt.ID, targetResource)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if conflict {
			return ErrSlotConflict
		}

		change := IntervalChange{
			Start:          newStart,
			End:            newEnd,
			ProfessionalID: targetProfessional,
			Resource:       targetResource,
		}
		entry := HistoryEntry{
			At:          time.Now().UTC(),
			Actor:       actorOrDefault(in.Actor),
			Description: moveDescription(appt.Start, newStart, in.Reason),
		}
		updated, err := s.store.CompareAndSwap(lockCtx, appt.ID, appt.Version, change, entry)
		if err != nil {
			return err
		}
		moved = updated
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrCalendarBusy
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", moved.ID.String()).
		Time("from", appt.Start).
		Time("to", moved.Start).
		Msg("appointment moved")

	return moved, nil
}

// ChangeStatus applies one status transition, validated against the
// transition rules. Cancellation is the only soft delete; appointments are
// never removed.
func (s *Scheduler) ChangeStatus(ctx context.Context, id uuid.UUID, to Status, actor string) (*Appointment, error) {
	if id == uuid.Nil {
		return nil, validationError("appointment_id is required")
	}

	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	entry := HistoryEntry{
		At:          time.Now().UTC(),
		Actor:       actorOrDefault(actor),
		Description: fmt.Sprintf("status changed from %s to %s", appt.Status, to),
	}
	updated, err := s.store.UpdateStatus(ctx, id, appt.Status, to, entry)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from", string(appt.Status)).
		Str("to", string(to)).
		Msg("appointment status changed")

	return updated, nil
}

// Get returns the appointment with its full history.
func (s *Scheduler) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.Get(ctx, id)
}

func lockKeys(professionalID uuid.UUID, resource *string) []string {
	keys := []string{"professional:" + professionalID.String()}
	if resource != nil && *resource != "" {
		keys = append(keys, "resource:"+*resource)
	}
	return keys
}

func moveDescription(oldStart, newStart time.Time, reason string) string {
	desc := fmt.Sprintf("moved from %s to %s", oldStart.Format(timeLayout), newStart.Format(timeLayout))
	if reason != "" {
		desc = fmt.Sprintf("%s (reason: %q)", desc, reason)
	}
	return desc
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}
