package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/medagenda/clinic-scheduling/internal/schedule"
)

const (
	TypeAppointmentMoved = "appointment:moved"

	// QueueNotifications keeps patient notifications off the default queue
	// so a backlog never delays other background work.
	QueueNotifications = "notifications"
)

type movedPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	OldStart      time.Time `json:"old_start"`
	NewStart      time.Time `json:"new_start"`
	Reason        string    `json:"reason"`
}

// AsynqDispatcher enqueues notification intents onto Redis. Enqueue failures
// are logged and dropped: delivery is the downstream worker's concern and
// the scheduling path never blocks or retries on it.
type AsynqDispatcher struct {
	client *asynq.Client
	log    zerolog.Logger
}

func NewAsynqDispatcher(opt asynq.RedisClientOpt, log zerolog.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{
		client: asynq.NewClient(opt),
		log:    log,
	}
}

func (d *AsynqDispatcher) AppointmentMoved(ctx context.Context, n schedule.MoveNotification) {
	b, err := json.Marshal(movedPayload{
		AppointmentID: n.AppointmentID,
		PatientID:     n.PatientID,
		OldStart:      n.OldStart,
		NewStart:      n.NewStart,
		Reason:        n.Reason,
	})
	if err != nil {
		d.log.Error().Err(err).Msg("marshal move notification")
		return
	}

	task := asynq.NewTask(TypeAppointmentMoved, b)
	opts := []asynq.Option{
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
	}
	if _, err := d.client.EnqueueContext(ctx, task, opts...); err != nil {
		d.log.Error().
			Err(err).
			Str("appointment_id", n.AppointmentID.String()).
			Msg("enqueue move notification")
	}
}

func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}
