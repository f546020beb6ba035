package schedule

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const DefaultBulkWorkers = 4

// Reasons recorded in BulkReprogramResult failure entries.
const (
	failureNotFound  = "not found"
	failureConflict  = "schedule conflict"
	failureRace      = "concurrent update"
	failureBusy      = "calendar busy, retry"
	failureCancelled = "cancelled"
)

// BulkEngine applies one transform across many appointments, collecting
// per-item outcomes. A batch is never all-or-nothing: one item's conflict
// does not block or roll back the others.
type BulkEngine struct {
	scheduler *Scheduler
	store     AppointmentStore
	notifier  Notifier
	workers   int
	log       zerolog.Logger
}

func NewBulkEngine(scheduler *Scheduler, store AppointmentStore, notifier Notifier, workers int, log zerolog.Logger) *BulkEngine {
	if workers <= 0 {
		workers = DefaultBulkWorkers
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &BulkEngine{
		scheduler: scheduler,
		store:     store,
		notifier:  notifier,
		workers:   workers,
		log:       log,
	}
}

type bulkOutcome struct {
	failureReason string // empty on success
	notification  MoveNotification
}

// Execute runs the batch. Request-level validation failures reject the whole
// batch with nothing processed; everything after that is recorded per item.
// Cancellation mid-flight leaves committed moves intact and marks the
// remaining items as cancelled — partial progress is a normal result, not an
// error.
func (e *BulkEngine) Execute(ctx context.Context, req BulkReprogramRequest) (BulkReprogramResult, error) {
	if err := validateBulkRequest(req); err != nil {
		return BulkReprogramResult{}, err
	}

	outcomes := make([]bulkOutcome, len(req.AppointmentIDs))

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := e.workers
	if workers > len(req.AppointmentIDs) {
		workers = len(req.AppointmentIDs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					outcomes[idx] = bulkOutcome{failureReason: failureCancelled}
					continue
				}
				outcomes[idx] = e.processOne(ctx, req, idx)
			}
		}()
	}

	for i := range req.AppointmentIDs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Assemble in input order so the failure list is stable across runs.
	var result BulkReprogramResult
	var notifications []MoveNotification
	for i, out := range outcomes {
		if out.failureReason == "" {
			result.Succeeded++
			notifications = append(notifications, out.notification)
			continue
		}
		result.Failed++
		result.Failures = append(result.Failures, BulkFailure{
			AppointmentID: req.AppointmentIDs[i],
			Reason:        out.failureReason,
		})
	}

	if req.NotifyPatients {
		for _, n := range notifications {
			e.notifier.AppointmentMoved(ctx, n)
		}
	}

	e.log.Info().
		Int("requested", len(req.AppointmentIDs)).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Str("mode", string(req.Transform.Mode)).
		Msg("bulk reprogram finished")

	return result, nil
}

func (e *BulkEngine) processOne(ctx context.Context, req BulkReprogramRequest, idx int) bulkOutcome {
	id := req.AppointmentIDs[idx]

	appt, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return bulkOutcome{failureReason: failureNotFound}
		}
		return bulkOutcome{failureReason: err.Error()}
	}

	newStart := req.Transform.Apply(appt.Start)

	moved, err := e.scheduler.Move(ctx, MoveInput{
		AppointmentID: id,
		NewStart:      newStart,
		Actor:         req.Actor,
		Reason:        req.Reason,
	})
	if err != nil {
		return bulkOutcome{failureReason: bulkFailureReason(err)}
	}

	return bulkOutcome{
		notification: MoveNotification{
			AppointmentID: moved.ID,
			PatientID:     moved.PatientID,
			OldStart:      appt.Start,
			NewStart:      moved.Start,
			Reason:        req.Reason,
		},
	}
}

func validateBulkRequest(req BulkReprogramRequest) error {
	if strings.TrimSpace(req.Reason) == "" {
		return validationError("reason is required")
	}
	if len(req.AppointmentIDs) == 0 {
		return validationError("appointment_ids must not be empty")
	}
	switch req.Transform.Mode {
	case TransformShiftDays:
		if req.Transform.Days == 0 {
			return validationError("shift_days requires a non-zero day count")
		}
	case TransformMoveToFixedDate:
		if req.Transform.Date.IsZero() {
			return validationError("move_to_fixed_date requires a target date")
		}
	default:
		return validationError("unknown transform mode")
	}
	return nil
}

// bulkFailureReason converts the scheduler's error taxonomy into the short
// reasons callers see in the failure list. No error is silently discarded:
// anything unexpected is recorded verbatim.
func bulkFailureReason(err error) string {
	var vErr *ValidationError
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return failureNotFound
	case errors.Is(err, ErrSlotConflict):
		return failureConflict
	case errors.Is(err, ErrVersionConflict):
		return failureRace
	case errors.Is(err, ErrCalendarBusy):
		return failureBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failureCancelled
	case errors.As(err, &vErr):
		return vErr.Error()
	default:
		return err.Error()
	}
}
