package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// NewServeMux registers the notification task handlers. The actual delivery
// channel (SMS/email/WhatsApp) sits behind whatever integration the handler
// calls; this engine only guarantees the intent reaches the queue.
func NewServeMux(log zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAppointmentMoved, handleAppointmentMoved(log))
	return mux
}

func handleAppointmentMoved(log zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p movedPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", TypeAppointmentMoved, err)
		}

		log.Info().
			Str("appointment_id", p.AppointmentID.String()).
			Str("patient_id", p.PatientID.String()).
			Time("old_start", p.OldStart).
			Time("new_start", p.NewStart).
			Str("reason", p.Reason).
			Msg("notify patient: appointment moved")

		return nil
	}
}
