package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/pearldental/clinic-booking/internal/booking"
	"github.com/pearldental/clinic-booking/pkg/logging"
)

// Service composes and sends the clinic's booking email. It satisfies
// the booking package's Notifier interface.
type Service struct {
	email           EmailSender
	managementEmail string
	logger          *logging.Logger
}

func NewService(email EmailSender, managementEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:           email,
		managementEmail: managementEmail,
		logger:          logger,
	}
}

const timeFormat = "Monday, January 2 at 3:04 PM"

func (s *Service) BookingConfirmed(ctx context.Context, accountEmail string, details []booking.AppointmentDetail) error {
	if s.email == nil {
		return nil
	}

	subject := "Your appointment is confirmed"
	if len(details) > 1 {
		subject = fmt.Sprintf("Your %d appointments are confirmed", len(details))
	}

	var b strings.Builder
	b.WriteString("Hi,\n\nYour booking is confirmed:\n\n")
	for _, d := range details {
		fmt.Fprintf(&b, "  - %s: %s on %s\n", d.PatientName, d.AppointmentType, d.SlotTime.Format(timeFormat))
	}
	b.WriteString("\nSee you soon!\nPearl Dental\n")

	return s.email.Send(ctx, EmailMessage{
		To:      accountEmail,
		Subject: subject,
		Body:    b.String(),
	})
}

func (s *Service) AppointmentCancelled(ctx context.Context, accountEmail string, detail booking.AppointmentDetail) error {
	if s.email == nil {
		return nil
	}

	body := fmt.Sprintf(
		"Hi,\n\nThe %s appointment for %s on %s has been cancelled.\n\nPearl Dental\n",
		detail.AppointmentType, detail.PatientName, detail.SlotTime.Format(timeFormat),
	)

	return s.email.Send(ctx, EmailMessage{
		To:      accountEmail,
		Subject: "Appointment cancelled",
		Body:    body,
	})
}

// EmergencyRequested goes to the clinic's management inbox, not the
// patient. Missing configuration is an error here because the request
// would otherwise be silently dropped.
func (s *Service) EmergencyRequested(ctx context.Context, req booking.EmergencyRequest) error {
	if s.email == nil {
		return fmt.Errorf("notify: no email sender configured")
	}
	if s.managementEmail == "" {
		return fmt.Errorf("notify: no management email configured")
	}

	body := fmt.Sprintf(
		"Emergency appointment request\n\nPatient: %s\nPhone: %s\nAccount email: %s\n\nDescription:\n%s\n",
		req.PatientName, req.Phone, req.AccountEmail, req.Description,
	)

	return s.email.Send(ctx, EmailMessage{
		To:      s.managementEmail,
		ToName:  "Clinic Management",
		Subject: fmt.Sprintf("EMERGENCY request from %s", req.PatientName),
		Body:    body,
	})
}
