package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	redisclient "github.com/medagenda/clinic-scheduling/internal/redis"
	"github.com/medagenda/clinic-scheduling/internal/schedule"
)

// SchedulerService is the single-appointment surface the handlers need.
type SchedulerService interface {
	Create(ctx context.Context, in schedule.CreateInput) (*schedule.Appointment, error)
	Move(ctx context.Context, in schedule.MoveInput) (*schedule.Appointment, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, to schedule.Status, actor string) (*schedule.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
}

type AvailabilityService interface {
	ComputeSlots(ctx context.Context, professionalID uuid.UUID, rangeStart, rangeEnd time.Time, durationMinutes int) ([]schedule.Slot, error)
}

type BulkService interface {
	Execute(ctx context.Context, req schedule.BulkReprogramRequest) (schedule.BulkReprogramResult, error)
}

const actorHeader = "X-Actor"

func createAppointmentHandler(svc SchedulerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		professionalID, err := uuid.Parse(req.ProfessionalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}
		var siteID uuid.UUID
		if req.SiteID != "" {
			siteID, err = uuid.Parse(req.SiteID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_site_id", "site_id must be a valid UUID")
				return
			}
		}
		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be RFC 3339")
			return
		}
		var treatmentID *uuid.UUID
		if req.TreatmentID != nil {
			tid, err := uuid.Parse(*req.TreatmentID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_treatment_id", "treatment_id must be a valid UUID")
				return
			}
			treatmentID = &tid
		}

		appt, err := svc.Create(r.Context(), schedule.CreateInput{
			PatientID:       patientID,
			ProfessionalID:  professionalID,
			SiteID:          siteID,
			Start:           start,
			DurationMinutes: req.DurationMinutes,
			TreatmentID:     treatmentID,
			Resource:        req.Resource,
			Notes:           req.Notes,
			Actor:           r.Header.Get(actorHeader),
		})
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appointmentResponse(appt, false))
	}
}

func moveAppointmentHandler(svc SchedulerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req MoveAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		newStart, err := time.Parse(time.RFC3339, req.NewStart)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_new_start", "new_start must be RFC 3339")
			return
		}
		var newProfessionalID *uuid.UUID
		if req.NewProfessionalID != nil {
			pid, err := uuid.Parse(*req.NewProfessionalID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_new_professional_id", "new_professional_id must be a valid UUID")
				return
			}
			newProfessionalID = &pid
		}

		appt, err := svc.Move(r.Context(), schedule.MoveInput{
			AppointmentID:     id,
			NewStart:          newStart,
			NewProfessionalID: newProfessionalID,
			NewResource:       req.NewResource,
			Actor:             r.Header.Get(actorHeader),
		})
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentResponse(appt, false))
	}
}

func getAppointmentHandler(svc SchedulerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentResponse(appt, true))
	}
}

func changeStatusHandler(svc SchedulerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req ChangeStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.ChangeStatus(r.Context(), id, schedule.Status(req.Status), r.Header.Get(actorHeader))
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentResponse(appt, false))
	}
}

func availabilityHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		professionalID, err := uuid.Parse(q.Get("professional_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
			return
		}
		rangeStart, err := time.Parse(time.RFC3339, q.Get("range_start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_range_start", "range_start must be RFC 3339")
			return
		}
		rangeEnd, err := time.Parse(time.RFC3339, q.Get("range_end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_range_end", "range_end must be RFC 3339")
			return
		}
		duration, err := strconv.Atoi(q.Get("duration"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be an integer number of minutes")
			return
		}

		slots, err := svc.ComputeSlots(r.Context(), professionalID, rangeStart, rangeEnd, duration)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := AvailabilityResponse{
			ProfessionalID:  professionalID,
			DurationMinutes: duration,
			Slots:           make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{Start: s.Start, End: s.End})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func bulkReprogramHandler(svc BulkService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkReprogramRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ids := make([]uuid.UUID, 0, len(req.AppointmentIDs))
		for _, raw := range req.AppointmentIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_ids must be valid UUIDs")
				return
			}
			ids = append(ids, id)
		}

		transform, err := parseTransform(req.Transform)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_transform", err.Error())
			return
		}

		result, err := svc.Execute(r.Context(), schedule.BulkReprogramRequest{
			AppointmentIDs: ids,
			Transform:      transform,
			NotifyPatients: req.NotifyPatients,
			Reason:         req.Reason,
			Actor:          r.Header.Get(actorHeader),
		})
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := BulkReprogramResponse{
			Succeeded: result.Succeeded,
			Failed:    result.Failed,
		}
		for _, f := range result.Failures {
			resp.Failures = append(resp.Failures, BulkFailureResponse{
				AppointmentID: f.AppointmentID,
				Reason:        f.Reason,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func parseTransform(req TransformRequest) (schedule.Transform, error) {
	switch schedule.TransformMode(req.Mode) {
	case schedule.TransformShiftDays:
		return schedule.Transform{Mode: schedule.TransformShiftDays, Days: req.Days}, nil
	case schedule.TransformMoveToFixedDate:
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return schedule.Transform{}, errors.New("date must be formatted as 2006-01-02")
		}
		return schedule.Transform{Mode: schedule.TransformMoveToFixedDate, Date: date}, nil
	default:
		return schedule.Transform{}, errors.New("mode must be shift_days or move_to_fixed_date")
	}
}

func handleScheduleError(w http.ResponseWriter, err error) {
	var vErr *schedule.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "invalid_input", vErr.Error())
	case errors.Is(err, schedule.ErrInvalidRange),
		errors.Is(err, schedule.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, schedule.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrCalendarBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "calendar_busy", "calendar is currently being modified, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
