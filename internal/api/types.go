package api

import (
	"time"

	"github.com/google/uuid"
)

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	StartTime time.Time `json:"start_time"`
}

type BlockResponse struct {
	StartSlotID uuid.UUID `json:"start_slot_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

type BookRequest struct {
	PatientID       string `json:"patient_id"`
	SlotID          string `json:"slot_id"`
	AppointmentType string `json:"appointment_type"`
	AdditionalNotes string `json:"additional_notes"`
}

type FamilyBookRequest struct {
	StartSlotID     string   `json:"start_slot_id"`
	PatientIDs      []string `json:"patient_ids"`
	AppointmentType string   `json:"appointment_type"`
	AdditionalNotes string   `json:"additional_notes"`
}

type EmergencyRequest struct {
	PatientID       string `json:"patient_id"`
	AdditionalNotes string `json:"additional_notes"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	PatientName     string    `json:"patient_name,omitempty"`
	SlotID          uuid.UUID `json:"slot_id"`
	SlotTime        time.Time `json:"slot_time,omitempty"`
	AppointmentType string    `json:"appointment_type"`
	AdditionalNotes string    `json:"additional_notes,omitempty"`
}

type PatientRequest struct {
	FullName          string  `json:"full_name"`
	DateOfBirth       string  `json:"dob"` // YYYY-MM-DD
	Phone             string  `json:"phone"`
	InsuranceProvider *string `json:"insurance_provider,omitempty"`
	SelfPay           bool    `json:"self_pay"`
}

type PatientResponse struct {
	ID                uuid.UUID `json:"id"`
	FullName          string    `json:"full_name"`
	DateOfBirth       string    `json:"dob"`
	Phone             string    `json:"phone"`
	InsuranceProvider *string   `json:"insurance_provider,omitempty"`
	SelfPay           bool      `json:"self_pay"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatMessageResponse struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type ChatResponse struct {
	Reply    string                `json:"reply"`
	Messages []ChatMessageResponse `json:"messages"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
