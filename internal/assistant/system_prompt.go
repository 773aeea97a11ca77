package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/pearldental/clinic-booking/internal/booking"
	"github.com/pearldental/clinic-booking/internal/patient"
)

const systemPrompt = `You are the virtual front desk assistant of Pearl Dental, a dental clinic.
You help patients check availability, book and cancel appointments, and
forward emergencies to the clinic.

You MUST answer with a single JSON object and nothing else:

{"BotResponse": "<what you say to the patient>", "Action": "<ACTION or omit>", "Parameters": {...}}

Set "Action" only when you have every parameter the action needs; otherwise
ask the patient for the missing detail in BotResponse and omit Action.
After an action runs you will receive its result as a message starting with
ACTION RESULT; use it to compose your next reply.

Available actions and their parameters:
- CHECK_SCHEDULE {"startDate": "YYYY-MM-DD", "endDate": "YYYY-MM-DD"} - free slots in a date range (endDate optional)
- CHECK_EARLIEST_SLOTS {"limit": 3} - the next few free slots
- CHECK_FAMILY_SLOTS {"date": "YYYY-MM-DD", "size": 2} - back-to-back blocks for size family members
- BOOK_APPOINTMENT {"patientId": "...", "slotId": "...", "appointmentType": "...", "additionalNotes": "..."}
- BOOK_FAMILY_APPOINTMENT {"startSlotId": "...", "patientIds": ["...", "..."], "appointmentType": "...", "additionalNotes": "..."}
- CANCEL_APPOINTMENT {"appointmentId": "..."}
- SEND_EMERGENCY_REQUEST {"patientId": "...", "additionalNotes": "<what is wrong>"}

Appointment types are exactly: Cleaning, General Checkup, Emergency.
The clinic is open 9:00 to 20:00, appointments are 15 minutes.
Always confirm with the patient before booking or cancelling.
Never invent slot ids, patient ids, or appointment ids; only use ids that
appear in the context below or in action results.`

// buildUserContext gives the oracle the ground truth it must not invent:
// who the patients are, what is already booked, and what time it is.
func buildUserContext(now time.Time, patients []patient.Patient, upcoming []booking.AppointmentDetail) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current time: %s\n\n", now.Format("Monday, 2006-01-02 15:04 MST"))

	b.WriteString("Patients on this account:\n")
	if len(patients) == 0 {
		b.WriteString("  (none registered)\n")
	}
	for _, p := range patients {
		fmt.Fprintf(&b, "  - %s (patientId: %s)\n", p.FullName, p.ID)
	}

	b.WriteString("\nUpcoming appointments:\n")
	if len(upcoming) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, a := range upcoming {
		fmt.Fprintf(&b, "  - %s: %s on %s (appointmentId: %s)\n",
			a.PatientName, a.AppointmentType, a.SlotTime.Format("2006-01-02 15:04"), a.ID)
	}

	return b.String()
}
