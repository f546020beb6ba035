package api

import (
	"encoding/json"
	"net/http"

	"github.com/medagenda/clinic-scheduling/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func appointmentResponse(a *schedule.Appointment, withHistory bool) AppointmentResponse {
	resp := AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		ProfessionalID: a.ProfessionalID,
		SiteID:         a.SiteID,
		Start:          a.Start,
		End:            a.End,
		Status:         string(a.Status),
		TreatmentID:    a.TreatmentID,
		Resource:       a.Resource,
		Notes:          a.Notes,
		Version:        a.Version,
	}
	if withHistory {
		for _, h := range a.History {
			resp.History = append(resp.History, HistoryEntryResponse{
				At:          h.At,
				Actor:       h.Actor,
				Description: h.Description,
			})
		}
	}
	return resp
}
