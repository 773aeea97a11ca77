package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pearldental/clinic-booking/internal/patient"
)

func patientResponse(p patient.Patient) PatientResponse {
	return PatientResponse{
		ID:                p.ID,
		FullName:          p.FullName,
		DateOfBirth:       p.DateOfBirth.Format(dateLayout),
		Phone:             p.Phone,
		InsuranceProvider: p.InsuranceProvider,
		SelfPay:           p.SelfPay,
	}
}

func decodePatientInput(w http.ResponseWriter, r *http.Request) (patient.Input, bool) {
	var req PatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return patient.Input{}, false
	}

	dob, err := time.Parse(dateLayout, req.DateOfBirth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_dob", "dob must be YYYY-MM-DD")
		return patient.Input{}, false
	}

	return patient.Input{
		FullName:          req.FullName,
		DateOfBirth:       dob,
		Phone:             req.Phone,
		InsuranceProvider: req.InsuranceProvider,
		SelfPay:           req.SelfPay,
	}, true
}

func listPatientsHandler(svc *patient.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := requireAccount(w, r)
		if !ok {
			return
		}

		patients, err := svc.List(r.Context(), accountID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		out := make([]PatientResponse, 0, len(patients))
		for _, p := range patients {
			out = append(out, patientResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func addPatientHandler(svc *patient.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := requireAccount(w, r)
		if !ok {
			return
		}

		in, ok := decodePatientInput(w, r)
		if !ok {
			return
		}

		created, err := svc.Add(r.Context(), accountID, in)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, patientResponse(*created))
	}
}

func updatePatientHandler(svc *patient.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := requireAccount(w, r)
		if !ok {
			return
		}

		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		in, ok := decodePatientInput(w, r)
		if !ok {
			return
		}

		updated, err := svc.Update(r.Context(), accountID, patientID, in)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, patientResponse(*updated))
	}
}

func deletePatientHandler(svc *patient.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := requireAccount(w, r)
		if !ok {
			return
		}

		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		if err := svc.Delete(r.Context(), accountID, patientID); err != nil {
			handleDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
