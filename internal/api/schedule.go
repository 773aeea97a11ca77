package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pearldental/clinic-booking/internal/booking"
	"github.com/pearldental/clinic-booking/internal/slot"
)

const dateLayout = "2006-01-02"

func requireAccount(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := AccountID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_principal", "no authenticated account on request")
	}
	return id, ok
}

func slotResponses(slots []slot.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{ID: s.ID, StartTime: s.StartTime})
	}
	return out
}

func listSlotsHandler(engine *slot.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startRaw := r.URL.Query().Get("start_date")
		endRaw := r.URL.Query().Get("end_date")
		if endRaw == "" {
			endRaw = startRaw
		}

		start, err := time.ParseInLocation(dateLayout, startRaw, engine.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
			return
		}
		end, err := time.ParseInLocation(dateLayout, endRaw, engine.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
			return
		}

		slots, err := engine.ListSlots(r.Context(), start, end)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slotResponses(slots))
	}
}

func listEarliestSlotsHandler(engine *slot.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 3
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
				return
			}
			limit = parsed
		}

		slots, err := engine.ListEarliest(r.Context(), limit)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slotResponses(slots))
	}
}

func listFamilySlotsHandler(engine *slot.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := time.ParseInLocation(dateLayout, r.URL.Query().Get("date"), engine.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		size, err := strconv.Atoi(r.URL.Query().Get("size"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_size", "size must be an integer")
			return
		}

		blocks, err := engine.FindConsecutiveBlocks(r.Context(), date, size)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		out := make([]BlockResponse, 0, len(blocks))
		for _, b := range blocks {
			out = append(out, BlockResponse{
				StartSlotID: b.StartSlotID,
				StartTime:   b.StartTime,
				EndTime:     b.EndTime,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func bookHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := requireAccount(w, r)
		if !ok {
			return
		}

		var req BookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		apptType, err := booking.ParseAppointmentType(req.AppointmentType)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		appt, err := svc.BookSingle(r.Context(), accountID, booking.BookingInput{
			PatientID:       patientID,
			SlotID:          slotID,
			AppointmentType: apptType,
			AdditionalNotes: req.AdditionalNotes,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, AppointmentResponse{
			ID:              appt.ID,
			PatientID:       appt.PatientID,
			SlotID:          appt.SlotID,
			AppointmentType: string(appt.AppointmentType),
			AdditionalNotes: appt.AdditionalNotes,
		})
	}
}

func bookFamilyHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := requireAccount(w, r)
		if !ok {
			return
		}

		var req FamilyBookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		startSlotID, err := uuid.Parse(req.StartSlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_slot_id", "start_slot_id must be a valid UUID")
			return
		}
		apptType, err := booking.ParseAppointmentType(req.AppointmentType)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		members := make([]booking.FamilyMember, 0, len(req.PatientIDs))
		for _, raw := range req.PatientIDs {
			patientID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_ids must be valid UUIDs")
				return
			}
			members = append(members, booking.FamilyMember{
				PatientID:       patientID,
				AppointmentType: apptType,
				AdditionalNotes: req.AdditionalNotes,
			})
		}

		appts, err := svc.BookConsecutive(r.Context(), accountID, startSlotID, members)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			out = append(out, AppointmentResponse{
				ID:              a.ID,
				PatientID:       a.PatientID,
				SlotID:          a.SlotID,
				AppointmentType: string(a.AppointmentType),
				AdditionalNotes: a.AdditionalNotes,
			})
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func emergencyHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := requireAccount(w, r)
		if !ok {
			return
		}

		var req EmergencyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		if err := svc.SendEmergencyRequest(r.Context(), accountID, patientID, req.AdditionalNotes); err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "emergency request sent"})
	}
}
