package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pearldental/clinic-booking/internal/observability/metrics"
	redisclient "github.com/pearldental/clinic-booking/internal/redis"
	"github.com/pearldental/clinic-booking/internal/slot"
	"github.com/pearldental/clinic-booking/pkg/logging"
)

// Service coordinates slot reservations and appointment rows. A booking
// is never a single transaction: the slot flip and the appointment
// insert are separate steps, and every failure path either compensates
// or reports exactly what was left behind.
type Service struct {
	slots        slot.Store
	repo         Repository
	guard        OwnershipGuard
	locker       redisclient.Locker
	notifier     Notifier
	metrics      *metrics.BookingMetrics
	logger       *logging.Logger
	slotDuration time.Duration
	now          func() time.Time
}

type Deps struct {
	Slots        slot.Store
	Repo         Repository
	Guard        OwnershipGuard
	Locker       redisclient.Locker
	Notifier     Notifier
	Metrics      *metrics.BookingMetrics
	Logger       *logging.Logger
	SlotDuration time.Duration
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		slots:        d.Slots,
		repo:         d.Repo,
		guard:        d.Guard,
		locker:       d.Locker,
		notifier:     d.Notifier,
		metrics:      d.Metrics,
		logger:       logger,
		slotDuration: d.SlotDuration,
		now:          time.Now,
	}
}

type BookingInput struct {
	PatientID       uuid.UUID
	SlotID          uuid.UUID
	AppointmentType AppointmentType
	AdditionalNotes string
}

// BookSingle reserves one slot and creates its appointment. The slot flip
// is the commit point: if the insert fails afterwards the reservation is
// released again.
func (s *Service) BookSingle(ctx context.Context, accountID uuid.UUID, in BookingInput) (*Appointment, error) {
	if err := s.guard.OwnsPatient(ctx, accountID, in.PatientID); err != nil {
		return nil, err
	}

	if err := s.slots.SetReserved(ctx, in.SlotID, true); err != nil {
		if errors.Is(err, slot.ErrSlotConflict) {
			s.metrics.ObserveConflict()
		}
		return nil, err
	}

	created, err := s.repo.CreateAppointment(ctx, Appointment{
		PatientID:       in.PatientID,
		SlotID:          in.SlotID,
		AppointmentType: in.AppointmentType,
		AdditionalNotes: in.AdditionalNotes,
	})
	if err != nil {
		s.metrics.ObserveCompensation()
		if relErr := s.slots.SetReserved(ctx, in.SlotID, false); relErr != nil {
			return nil, &PartialFailureError{
				ReservedSlotIDs: []uuid.UUID{in.SlotID},
				Cause:           err,
				CompensationErr: relErr,
			}
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.metrics.ObserveBooking("single")
	s.notifyBooked(ctx, accountID, []Appointment{*created})
	return created, nil
}

// FamilyMember is one seat in a consecutive booking.
type FamilyMember struct {
	PatientID       uuid.UUID
	AppointmentType AppointmentType
	AdditionalNotes string
}

// BookConsecutive books back-to-back slots for two or more patients,
// starting at startSlotID. The whole walk runs under a Redis lock on the
// start slot, and the chain is re-derived from the database inside the
// lock: availability shown to the user earlier is never trusted.
func (s *Service) BookConsecutive(ctx context.Context, accountID, startSlotID uuid.UUID, members []FamilyMember) ([]Appointment, error) {
	if len(members) < 2 {
		return nil, ErrTooFewPatients
	}
	for _, m := range members {
		if err := s.guard.OwnsPatient(ctx, accountID, m.PatientID); err != nil {
			return nil, err
		}
	}

	var created []Appointment
	err := s.locker.WithSlotLock(ctx, startSlotID, func(ctx context.Context) error {
		chain, err := s.deriveChain(ctx, startSlotID, len(members))
		if err != nil {
			return err
		}

		created, err = s.bookChain(ctx, chain, members)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBlockBeingBooked
		}
		return nil, err
	}

	s.metrics.ObserveBooking("family")
	s.notifyBooked(ctx, accountID, created)
	return created, nil
}

// deriveChain walks forward from the start slot, requiring a free slot at
// each exact next boundary. Any gap or reserved slot voids the block.
func (s *Service) deriveChain(ctx context.Context, startSlotID uuid.UUID, n int) ([]slot.Slot, error) {
	first, err := s.slots.GetSlot(ctx, startSlotID)
	if err != nil {
		return nil, err
	}
	if first.Reserved {
		return nil, ErrChainUnavailable
	}

	chain := []slot.Slot{*first}
	for len(chain) < n {
		next, err := s.slots.GetFreeSlotAt(ctx, chain[len(chain)-1].StartTime.Add(s.slotDuration))
		if err != nil {
			if errors.Is(err, slot.ErrSlotNotFound) {
				return nil, ErrChainUnavailable
			}
			return nil, err
		}
		chain = append(chain, *next)
	}
	return chain, nil
}

// bookChain reserves and inserts step by step, recording what committed
// so a failure anywhere can unwind everything in reverse.
func (s *Service) bookChain(ctx context.Context, chain []slot.Slot, members []FamilyMember) ([]Appointment, error) {
	var (
		reserved []uuid.UUID
		created  []Appointment
	)

	for i, m := range members {
		if err := s.slots.SetReserved(ctx, chain[i].ID, true); err != nil {
			if errors.Is(err, slot.ErrSlotConflict) {
				s.metrics.ObserveConflict()
			}
			return nil, s.compensate(ctx, reserved, created, err)
		}
		reserved = append(reserved, chain[i].ID)

		appt, err := s.repo.CreateAppointment(ctx, Appointment{
			PatientID:       m.PatientID,
			SlotID:          chain[i].ID,
			AppointmentType: m.AppointmentType,
			AdditionalNotes: m.AdditionalNotes,
		})
		if err != nil {
			return nil, s.compensate(ctx, reserved, created, err)
		}
		created = append(created, *appt)
	}

	return created, nil
}

// compensate unwinds committed steps in reverse order. When the unwind
// itself fails, the remaining ids are reported so the reconcile worker
// (or an operator) can repair them.
func (s *Service) compensate(ctx context.Context, reserved []uuid.UUID, created []Appointment, cause error) error {
	s.metrics.ObserveCompensation()
	s.logger.Warn("compensating failed consecutive booking",
		"reserved_slots", len(reserved),
		"appointments", len(created),
		"cause", cause,
	)

	for i := len(created) - 1; i >= 0; i-- {
		if err := s.repo.DeleteAppointment(ctx, created[i].ID); err != nil {
			return s.partialFailure(reserved, created[:i+1], cause, err)
		}
	}
	for i := len(reserved) - 1; i >= 0; i-- {
		if err := s.slots.SetReserved(ctx, reserved[i], false); err != nil {
			return s.partialFailure(reserved[:i+1], nil, cause, err)
		}
	}

	return fmt.Errorf("consecutive booking rolled back: %w", cause)
}

func (s *Service) partialFailure(reserved []uuid.UUID, created []Appointment, cause, compErr error) error {
	apptIDs := make([]uuid.UUID, 0, len(created))
	for _, a := range created {
		apptIDs = append(apptIDs, a.ID)
	}
	err := &PartialFailureError{
		ReservedSlotIDs: reserved,
		AppointmentIDs:  apptIDs,
		Cause:           cause,
		CompensationErr: compErr,
	}
	s.logger.Error("compensation failed, slots need reconciliation", "err", err)
	return err
}

// Cancel deletes the appointment first and releases its slot second.
// When the release fails the appointment is already gone, so the caller
// gets a ReconciliationError instead of a clean rollback; the reconcile
// worker frees such slots on its next sweep.
func (s *Service) Cancel(ctx context.Context, accountID, appointmentID uuid.UUID) error {
	appt, err := s.guard.OwnsAppointment(ctx, accountID, appointmentID)
	if err != nil {
		return err
	}

	detail := s.detailFor(ctx, *appt)

	if err := s.repo.DeleteAppointment(ctx, appointmentID); err != nil {
		return err
	}

	if err := s.slots.SetReserved(ctx, appt.SlotID, false); err != nil {
		recErr := &ReconciliationError{
			AppointmentID: appointmentID,
			SlotID:        appt.SlotID,
			Cause:         err,
		}
		s.logger.Error("cancel left slot reserved", "err", recErr)
		return recErr
	}

	s.metrics.ObserveCancellation()
	s.notifyCancelled(ctx, accountID, detail)
	return nil
}

// ListUpcoming returns the account's upcoming appointments, optionally
// narrowed to a single patient.
func (s *Service) ListUpcoming(ctx context.Context, accountID uuid.UUID, patientID *uuid.UUID) ([]AppointmentDetail, error) {
	details, err := s.repo.ListUpcomingByAccount(ctx, accountID, s.now())
	if err != nil {
		return nil, err
	}
	if patientID == nil {
		return details, nil
	}
	var filtered []AppointmentDetail
	for _, d := range details {
		if d.PatientID == *patientID {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// SendEmergencyRequest forwards an urgent-care request to the clinic's
// management inbox. Unlike confirmations this delivery is the whole
// point, so its error propagates to the caller.
func (s *Service) SendEmergencyRequest(ctx context.Context, accountID, patientID uuid.UUID, description string) error {
	if err := s.guard.OwnsPatient(ctx, accountID, patientID); err != nil {
		return err
	}

	name, phone, err := s.repo.GetPatientContact(ctx, patientID)
	if err != nil {
		return err
	}
	email, err := s.repo.GetAccountEmail(ctx, accountID)
	if err != nil {
		return err
	}

	if s.notifier == nil {
		return errors.New("no notifier configured for emergency requests")
	}
	if err := s.notifier.EmergencyRequested(ctx, EmergencyRequest{
		AccountEmail: email,
		PatientName:  name,
		Phone:        phone,
		Description:  description,
	}); err != nil {
		return fmt.Errorf("send emergency request: %w", err)
	}
	return nil
}

func (s *Service) detailFor(ctx context.Context, a Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if name, _, err := s.repo.GetPatientContact(ctx, a.PatientID); err == nil {
		d.PatientName = name
	}
	if sl, err := s.slots.GetSlot(ctx, a.SlotID); err == nil {
		d.SlotTime = sl.StartTime
	}
	return d
}

func (s *Service) notifyBooked(ctx context.Context, accountID uuid.UUID, appts []Appointment) {
	if s.notifier == nil {
		return
	}
	email, err := s.repo.GetAccountEmail(ctx, accountID)
	if err != nil {
		s.logger.Warn("skipping confirmation email", "err", err)
		return
	}
	details := make([]AppointmentDetail, 0, len(appts))
	for _, a := range appts {
		details = append(details, s.detailFor(ctx, a))
	}
	if err := s.notifier.BookingConfirmed(ctx, email, details); err != nil {
		s.logger.Warn("confirmation email failed", "err", err)
	}
}

func (s *Service) notifyCancelled(ctx context.Context, accountID uuid.UUID, detail AppointmentDetail) {
	if s.notifier == nil {
		return
	}
	email, err := s.repo.GetAccountEmail(ctx, accountID)
	if err != nil {
		s.logger.Warn("skipping cancellation email", "err", err)
		return
	}
	if err := s.notifier.AppointmentCancelled(ctx, email, detail); err != nil {
		s.logger.Warn("cancellation email failed", "err", err)
	}
}
