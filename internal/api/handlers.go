package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caregrid/scheduling/internal/scheduling"
)

func generateSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}
		facilityID, err := uuid.Parse(req.FacilityID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "facility_id must be a valid UUID")
			return
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as 2006-01-02")
			return
		}

		opening, err := scheduling.ParseLocalTime(req.Opening)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_opening", "opening must be formatted as 15:04")
			return
		}
		closing, err := scheduling.ParseLocalTime(req.Closing)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_closing", "closing must be formatted as 15:04")
			return
		}

		result, err := svc.GenerateSlots(r.Context(), scheduling.GenerateSlotsInput{
			ProviderID: providerID,
			FacilityID: facilityID,
			Date:       date,
			Opening:    opening,
			Closing:    closing,
			Duration:   time.Duration(req.DurationMinutes) * time.Minute,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, GenerateSlotsResponse{
			Candidates: len(result.Candidates),
			Inserted:   result.Inserted,
			Slots:      toSlotViews(result.Candidates),
		})
	}
}

func listFreeSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(r.URL.Query().Get("provider_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}
		facilityID, err := uuid.Parse(r.URL.Query().Get("facility_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "facility_id must be a valid UUID")
			return
		}
		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as 2006-01-02")
			return
		}

		slots, err := svc.ListFreeSlots(r.Context(), providerID, facilityID, date)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotViews(slots))
	}
}

func createAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
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
		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}
		facilityID, err := uuid.Parse(req.FacilityID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "facility_id must be a valid UUID")
			return
		}

		appt, err := svc.RequestAppointment(r.Context(), scheduling.RequestAppointmentInput{
			PatientID:  patientID,
			ProviderID: providerID,
			FacilityID: facilityID,
			Start:      req.Start,
			End:        req.End,
			Reason:     req.Reason,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// transitionHandler covers the transitions without extra parameters:
// confirm, cancel and complete.
func transitionHandler(svc *scheduling.Service, target scheduling.AppointmentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.TransitionAppointment(r.Context(), id, scheduling.TransitionInput{Target: target})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.TransitionAppointment(r.Context(), id, scheduling.TransitionInput{
			Target:   scheduling.StatusRescheduled,
			NewStart: &req.NewStart,
			NewEnd:   &req.NewEnd,
		})
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func handleSchedulingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, "invalid_interval", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound),
		errors.Is(err, scheduling.ErrProviderNotFound),
		errors.Is(err, scheduling.ErrFacilityNotFound),
		errors.Is(err, scheduling.ErrSlotNotFound),
		errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, scheduling.ErrBookingConflict):
		writeError(w, http.StatusConflict, "booking_conflict", "interval is not fully covered by free slots, pick another time")
	case errors.Is(err, scheduling.ErrDuplicateAppointment):
		writeError(w, http.StatusConflict, "duplicate_appointment", err.Error())
	case errors.Is(err, scheduling.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, scheduling.ErrLockTimeout):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "lock_timeout", "calendar is busy, retry with backoff")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func toSlotViews(slots []scheduling.Slot) []SlotView {
	views := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		views = append(views, SlotView{
			ID:            s.ID,
			ProviderID:    s.ProviderID,
			FacilityID:    s.FacilityID,
			Start:         s.Start,
			End:           s.End,
			Status:        string(s.Status),
			AppointmentID: s.AppointmentID,
		})
	}
	return views
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		ProviderID: a.ProviderID,
		FacilityID: a.FacilityID,
		Start:      a.Start,
		End:        a.End,
		Reason:     a.Reason,
		Status:     string(a.Status),
	}
}
