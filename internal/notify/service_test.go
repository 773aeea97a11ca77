package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pearldental/clinic-booking/internal/booking"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(ctx context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func detail(name string, at time.Time) booking.AppointmentDetail {
	d := booking.AppointmentDetail{PatientName: name, SlotTime: at}
	d.AppointmentType = booking.TypeCleaning
	return d
}

func TestBookingConfirmedListsEveryAppointment(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, "mgmt@clinic.example", nil)

	at := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	err := svc.BookingConfirmed(context.Background(), "family@example.com", []booking.AppointmentDetail{
		detail("Ana Torres", at),
		detail("Luis Torres", at.Add(15*time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	require.Equal(t, "family@example.com", msg.To)
	require.Contains(t, msg.Subject, "2 appointments")
	require.Contains(t, msg.Body, "Ana Torres")
	require.Contains(t, msg.Body, "Luis Torres")
}

func TestAppointmentCancelled(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, "", nil)

	err := svc.AppointmentCancelled(context.Background(), "user@example.com",
		detail("Ana Torres", time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0].Body, "cancelled")
}

func TestEmergencyRequestedGoesToManagement(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, "mgmt@clinic.example", nil)

	err := svc.EmergencyRequested(context.Background(), booking.EmergencyRequest{
		AccountEmail: "user@example.com",
		PatientName:  "Ana Torres",
		Phone:        "555-0101",
		Description:  "broken tooth",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	require.Equal(t, "mgmt@clinic.example", msg.To)
	require.Contains(t, msg.Body, "broken tooth")
	require.Contains(t, msg.Body, "555-0101")
}

func TestEmergencyRequestedFailsWithoutManagementEmail(t *testing.T) {
	svc := NewService(&captureSender{}, "", nil)

	err := svc.EmergencyRequested(context.Background(), booking.EmergencyRequest{PatientName: "Ana"})
	require.Error(t, err)
}

func TestSendErrorPropagates(t *testing.T) {
	sender := &captureSender{err: errors.New("smtp down")}
	svc := NewService(sender, "mgmt@clinic.example", nil)

	err := svc.EmergencyRequested(context.Background(), booking.EmergencyRequest{PatientName: "Ana"})
	require.Error(t, err)
}
