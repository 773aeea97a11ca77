package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pearldental/clinic-booking/internal/access"
	"github.com/pearldental/clinic-booking/internal/booking"
	"github.com/pearldental/clinic-booking/internal/observability/metrics"
	"github.com/pearldental/clinic-booking/internal/slot"
	"github.com/pearldental/clinic-booking/pkg/logging"
)

const dateLayout = "2006-01-02"

// Dispatcher turns oracle actions into calls on the scheduling and
// booking services. Every outcome, including a failure, becomes an
// Envelope; errors never escape to the chat loop.
type Dispatcher struct {
	engine   *slot.Engine
	bookings *booking.Service
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

func NewDispatcher(engine *slot.Engine, bookings *booking.Service, m *metrics.BookingMetrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{engine: engine, bookings: bookings, metrics: m, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, accountID uuid.UUID, action string, params json.RawMessage) Envelope {
	var env Envelope
	switch action {
	case ActionCheckSchedule:
		env = d.checkSchedule(ctx, params)
	case ActionCheckEarliestSlots:
		env = d.checkEarliest(ctx, params)
	case ActionCheckFamilySlots:
		env = d.checkFamilySlots(ctx, params)
	case ActionBookAppointment:
		env = d.bookAppointment(ctx, accountID, params)
	case ActionBookFamilyAppointment:
		env = d.bookFamilyAppointment(ctx, accountID, params)
	case ActionCancelAppointment:
		env = d.cancelAppointment(ctx, accountID, params)
	case ActionSendEmergencyRequest:
		env = d.sendEmergencyRequest(ctx, accountID, params)
	default:
		d.logger.Warn("oracle requested unknown action", "action", action)
		env = Envelope{Type: "unsupported_action", Status: 400, Message: "unknown action " + action}
	}

	d.metrics.ObserveAssistantAction(action, env.Status)
	return env
}

type slotView struct {
	SlotID    uuid.UUID `json:"slotId"`
	StartTime string    `json:"startTime"`
}

type blockView struct {
	StartSlotID uuid.UUID `json:"startSlotId"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
}

func (d *Dispatcher) slotViews(slots []slot.Slot) []slotView {
	views := make([]slotView, 0, len(slots))
	for _, s := range slots {
		views = append(views, slotView{
			SlotID:    s.ID,
			StartTime: s.StartTime.In(d.engine.Location()).Format(time.RFC3339),
		})
	}
	return views
}

func (d *Dispatcher) checkSchedule(ctx context.Context, params json.RawMessage) Envelope {
	var p struct {
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return d.failure(ActionCheckSchedule, errBadParams(err))
	}
	if p.EndDate == "" {
		p.EndDate = p.StartDate
	}

	start, err := time.ParseInLocation(dateLayout, p.StartDate, d.engine.Location())
	if err != nil {
		return d.failure(ActionCheckSchedule, errBadParams(err))
	}
	end, err := time.ParseInLocation(dateLayout, p.EndDate, d.engine.Location())
	if err != nil {
		return d.failure(ActionCheckSchedule, errBadParams(err))
	}

	slots, err := d.engine.ListSlots(ctx, start, end)
	if err != nil {
		return d.failure(ActionCheckSchedule, err)
	}
	return Envelope{Type: ActionCheckSchedule, Status: 200, Data: d.slotViews(slots)}
}

func (d *Dispatcher) checkEarliest(ctx context.Context, params json.RawMessage) Envelope {
	var p struct {
		Limit int `json:"limit"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return d.failure(ActionCheckEarliestSlots, errBadParams(err))
		}
	}
	if p.Limit == 0 {
		p.Limit = 3
	}

	slots, err := d.engine.ListEarliest(ctx, p.Limit)
	if err != nil {
		return d.failure(ActionCheckEarliestSlots, err)
	}
	return Envelope{Type: ActionCheckEarliestSlots, Status: 200, Data: d.slotViews(slots)}
}

func (d *Dispatcher) checkFamilySlots(ctx context.Context, params json.RawMessage) Envelope {
	var p struct {
		Date string `json:"date"`
		Size int    `json:"size"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return d.failure(ActionCheckFamilySlots, errBadParams(err))
	}

	date, err := time.ParseInLocation(dateLayout, p.Date, d.engine.Location())
	if err != nil {
		return d.failure(ActionCheckFamilySlots, errBadParams(err))
	}

	blocks, err := d.engine.FindConsecutiveBlocks(ctx, date, p.Size)
	if err != nil {
		return d.failure(ActionCheckFamilySlots, err)
	}

	views := make([]blockView, 0, len(blocks))
	for _, b := range blocks {
		views = append(views, blockView{
			StartSlotID: b.StartSlotID,
			StartTime:   b.StartTime.In(d.engine.Location()).Format(time.RFC3339),
			EndTime:     b.EndTime.In(d.engine.Location()).Format(time.RFC3339),
		})
	}
	return Envelope{Type: ActionCheckFamilySlots, Status: 200, Data: views}
}

func (d *Dispatcher) bookAppointment(ctx context.Context, accountID uuid.UUID, params json.RawMessage) Envelope {
	var p struct {
		PatientID       uuid.UUID `json:"patientId"`
		SlotID          uuid.UUID `json:"slotId"`
		AppointmentType string    `json:"appointmentType"`
		AdditionalNotes string    `json:"additionalNotes"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return d.failure(ActionBookAppointment, errBadParams(err))
	}

	apptType, err := booking.ParseAppointmentType(p.AppointmentType)
	if err != nil {
		return d.failure(ActionBookAppointment, err)
	}

	appt, err := d.bookings.BookSingle(ctx, accountID, booking.BookingInput{
		PatientID:       p.PatientID,
		SlotID:          p.SlotID,
		AppointmentType: apptType,
		AdditionalNotes: p.AdditionalNotes,
	})
	if err != nil {
		return d.failure(ActionBookAppointment, err)
	}
	return Envelope{Type: ActionBookAppointment, Status: 200, Data: map[string]any{
		"appointmentId": appt.ID,
		"slotId":        appt.SlotID,
	}}
}

func (d *Dispatcher) bookFamilyAppointment(ctx context.Context, accountID uuid.UUID, params json.RawMessage) Envelope {
	var p struct {
		StartSlotID     uuid.UUID   `json:"startSlotId"`
		PatientIDs      []uuid.UUID `json:"patientIds"`
		AppointmentType string      `json:"appointmentType"`
		AdditionalNotes string      `json:"additionalNotes"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return d.failure(ActionBookFamilyAppointment, errBadParams(err))
	}

	apptType, err := booking.ParseAppointmentType(p.AppointmentType)
	if err != nil {
		return d.failure(ActionBookFamilyAppointment, err)
	}

	members := make([]booking.FamilyMember, 0, len(p.PatientIDs))
	for _, id := range p.PatientIDs {
		members = append(members, booking.FamilyMember{
			PatientID:       id,
			AppointmentType: apptType,
			AdditionalNotes: p.AdditionalNotes,
		})
	}

	appts, err := d.bookings.BookConsecutive(ctx, accountID, p.StartSlotID, members)
	if err != nil {
		return d.failure(ActionBookFamilyAppointment, err)
	}

	ids := make([]uuid.UUID, 0, len(appts))
	for _, a := range appts {
		ids = append(ids, a.ID)
	}
	return Envelope{Type: ActionBookFamilyAppointment, Status: 200, Data: map[string]any{
		"appointmentIds": ids,
	}}
}

func (d *Dispatcher) cancelAppointment(ctx context.Context, accountID uuid.UUID, params json.RawMessage) Envelope {
	var p struct {
		AppointmentID uuid.UUID `json:"appointmentId"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return d.failure(ActionCancelAppointment, errBadParams(err))
	}

	if err := d.bookings.Cancel(ctx, accountID, p.AppointmentID); err != nil {
		return d.failure(ActionCancelAppointment, err)
	}
	return Envelope{Type: ActionCancelAppointment, Status: 200, Message: "appointment cancelled"}
}

func (d *Dispatcher) sendEmergencyRequest(ctx context.Context, accountID uuid.UUID, params json.RawMessage) Envelope {
	var p struct {
		PatientID       uuid.UUID `json:"patientId"`
		AdditionalNotes string    `json:"additionalNotes"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return d.failure(ActionSendEmergencyRequest, errBadParams(err))
	}

	if err := d.bookings.SendEmergencyRequest(ctx, accountID, p.PatientID, p.AdditionalNotes); err != nil {
		return d.failure(ActionSendEmergencyRequest, err)
	}
	return Envelope{Type: ActionSendEmergencyRequest, Status: 200, Message: "emergency request sent to the clinic"}
}

type badParamsError struct{ err error }

func (e badParamsError) Error() string { return "invalid action parameters: " + e.err.Error() }

func errBadParams(err error) error { return badParamsError{err: err} }

func (d *Dispatcher) failure(action string, err error) Envelope {
	status := statusFor(err)
	if status >= 500 {
		d.logger.Error("assistant action failed", "action", action, "err", err)
	}
	return Envelope{Type: action, Status: status, Message: err.Error()}
}

func statusFor(err error) int {
	var bad badParamsError
	switch {
	case errors.As(err, &bad),
		errors.Is(err, slot.ErrInvalidDateRange),
		errors.Is(err, slot.ErrInvalidLimit),
		errors.Is(err, slot.ErrInvalidBlockSize),
		errors.Is(err, booking.ErrInvalidAppointmentType),
		errors.Is(err, booking.ErrTooFewPatients):
		return 400
	case errors.Is(err, access.ErrAccessDenied):
		return 403
	case errors.Is(err, slot.ErrSlotNotFound),
		errors.Is(err, booking.ErrAppointmentNotFound):
		return 404
	case errors.Is(err, slot.ErrSlotConflict),
		errors.Is(err, booking.ErrChainUnavailable),
		errors.Is(err, booking.ErrBlockBeingBooked):
		return 409
	default:
		return 500
	}
}
