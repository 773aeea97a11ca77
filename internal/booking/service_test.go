package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	redisclient "github.com/pearldental/clinic-booking/internal/redis"
	"github.com/pearldental/clinic-booking/internal/slot"
)

const slotDuration = 15 * time.Minute

type fakeSlotStore struct {
	slots       map[uuid.UUID]*slot.Slot
	failReserve map[uuid.UUID]error
	failRelease map[uuid.UUID]error
}

func newFakeSlotStore() *fakeSlotStore {
	return &fakeSlotStore{
		slots:       make(map[uuid.UUID]*slot.Slot),
		failReserve: make(map[uuid.UUID]error),
		failRelease: make(map[uuid.UUID]error),
	}
}

func (f *fakeSlotStore) addSlot(start time.Time, reserved bool) uuid.UUID {
	id := uuid.New()
	f.slots[id] = &slot.Slot{ID: id, StartTime: start, Duration: slotDuration, Reserved: reserved}
	return id
}

func (f *fakeSlotStore) GetSlot(ctx context.Context, id uuid.UUID) (*slot.Slot, error) {
	s, ok := f.slots[id]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSlotStore) SetReserved(ctx context.Context, id uuid.UUID, reserved bool) error {
	if reserved {
		if err, ok := f.failReserve[id]; ok {
			return err
		}
	} else {
		if err, ok := f.failRelease[id]; ok {
			return err
		}
	}
	s, ok := f.slots[id]
	if !ok {
		return slot.ErrSlotNotFound
	}
	if s.Reserved == reserved {
		return slot.ErrSlotConflict
	}
	s.Reserved = reserved
	return nil
}

func (f *fakeSlotStore) GetFreeSlotAt(ctx context.Context, start time.Time) (*slot.Slot, error) {
	for _, s := range f.slots {
		if s.StartTime.Equal(start) && !s.Reserved {
			cp := *s
			return &cp, nil
		}
	}
	return nil, slot.ErrSlotNotFound
}

func (f *fakeSlotStore) ListFreeBetween(ctx context.Context, from, to time.Time) ([]slot.Slot, error) {
	return nil, nil
}

func (f *fakeSlotStore) ListFreeEarliest(ctx context.Context, from, to time.Time, limit int) ([]slot.Slot, error) {
	return nil, nil
}

func (f *fakeSlotStore) ReleaseOrphaned(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeBookingRepo struct {
	appts      map[uuid.UUID]*Appointment
	failCreate map[uuid.UUID]error // keyed by patient id
	failDelete map[uuid.UUID]error
	emails     map[uuid.UUID]string
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		appts:      make(map[uuid.UUID]*Appointment),
		failCreate: make(map[uuid.UUID]error),
		failDelete: make(map[uuid.UUID]error),
		emails:     make(map[uuid.UUID]string),
	}
}

func (f *fakeBookingRepo) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if err, ok := f.failCreate[a.PatientID]; ok {
		return nil, err
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	f.appts[a.ID] = &a
	return &a, nil
}

func (f *fakeBookingRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeBookingRepo) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if err, ok := f.failDelete[id]; ok {
		return err
	}
	if _, ok := f.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(f.appts, id)
	return nil
}

func (f *fakeBookingRepo) ListUpcomingByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]AppointmentDetail, error) {
	return nil, nil
}

func (f *fakeBookingRepo) GetAccountEmail(ctx context.Context, accountID uuid.UUID) (string, error) {
	if email, ok := f.emails[accountID]; ok {
		return email, nil
	}
	return "patient@example.com", nil
}

func (f *fakeBookingRepo) GetPatientContact(ctx context.Context, patientID uuid.UUID) (string, string, error) {
	return "Test Patient", "555-0100", nil
}

type allowGuard struct {
	appts *fakeBookingRepo
}

func (g allowGuard) OwnsPatient(ctx context.Context, accountID, patientID uuid.UUID) error {
	return nil
}

func (g allowGuard) OwnsAppointment(ctx context.Context, accountID, appointmentID uuid.UUID) (*Appointment, error) {
	return g.appts.GetAppointmentByID(ctx, appointmentID)
}

var errDenied = errors.New("access denied")

type denyGuard struct{}

func (denyGuard) OwnsPatient(ctx context.Context, accountID, patientID uuid.UUID) error {
	return errDenied
}

func (denyGuard) OwnsAppointment(ctx context.Context, accountID, appointmentID uuid.UUID) (*Appointment, error) {
	return nil, errDenied
}

type fakeLocker struct {
	contended bool
	calls     int
}

func (l *fakeLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	l.calls++
	if l.contended {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

type recordNotifier struct {
	confirmed   [][]AppointmentDetail
	cancelled   []AppointmentDetail
	emergencies []EmergencyRequest
}

func (n *recordNotifier) BookingConfirmed(ctx context.Context, accountEmail string, details []AppointmentDetail) error {
	n.confirmed = append(n.confirmed, details)
	return nil
}

func (n *recordNotifier) AppointmentCancelled(ctx context.Context, accountEmail string, detail AppointmentDetail) error {
	n.cancelled = append(n.cancelled, detail)
	return nil
}

func (n *recordNotifier) EmergencyRequested(ctx context.Context, req EmergencyRequest) error {
	n.emergencies = append(n.emergencies, req)
	return nil
}

type fixture struct {
	store    *fakeSlotStore
	repo     *fakeBookingRepo
	locker   *fakeLocker
	notifier *recordNotifier
	svc      *Service
}

func newFixture() *fixture {
	store := newFakeSlotStore()
	repo := newFakeBookingRepo()
	locker := &fakeLocker{}
	notifier := &recordNotifier{}
	svc := NewService(Deps{
		Slots:        store,
		Repo:         repo,
		Guard:        allowGuard{appts: repo},
		Locker:       locker,
		Notifier:     notifier,
		SlotDuration: slotDuration,
	})
	return &fixture{store: store, repo: repo, locker: locker, notifier: notifier, svc: svc}
}

func slotBase() time.Time {
	return time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
}

func TestBookSingle(t *testing.T) {
	f := newFixture()
	slotID := f.store.addSlot(slotBase(), false)

	appt, err := f.svc.BookSingle(context.Background(), uuid.New(), BookingInput{
		PatientID:       uuid.New(),
		SlotID:          slotID,
		AppointmentType: TypeCleaning,
	})
	require.NoError(t, err)
	require.Equal(t, slotID, appt.SlotID)
	require.True(t, f.store.slots[slotID].Reserved)
	require.Len(t, f.notifier.confirmed, 1)
}

func TestBookSingleConflict(t *testing.T) {
	f := newFixture()
	slotID := f.store.addSlot(slotBase(), true)

	_, err := f.svc.BookSingle(context.Background(), uuid.New(), BookingInput{
		PatientID:       uuid.New(),
		SlotID:          slotID,
		AppointmentType: TypeCleaning,
	})
	require.ErrorIs(t, err, slot.ErrSlotConflict)
	require.Empty(t, f.repo.appts)
}

func TestBookSingleReleasesSlotWhenInsertFails(t *testing.T) {
	f := newFixture()
	slotID := f.store.addSlot(slotBase(), false)
	patientID := uuid.New()
	f.repo.failCreate[patientID] = errors.New("insert boom")

	_, err := f.svc.BookSingle(context.Background(), uuid.New(), BookingInput{
		PatientID:       patientID,
		SlotID:          slotID,
		AppointmentType: TypeCleaning,
	})
	require.Error(t, err)
	require.False(t, f.store.slots[slotID].Reserved, "slot should be released after compensation")
	require.Empty(t, f.notifier.confirmed)
}

func TestBookSingleReportsFailedCompensation(t *testing.T) {
	f := newFixture()
	slotID := f.store.addSlot(slotBase(), false)
	patientID := uuid.New()
	f.repo.failCreate[patientID] = errors.New("insert boom")
	f.store.failRelease[slotID] = errors.New("release boom")

	_, err := f.svc.BookSingle(context.Background(), uuid.New(), BookingInput{
		PatientID:       patientID,
		SlotID:          slotID,
		AppointmentType: TypeCleaning,
	})

	var pf *PartialFailureError
	require.ErrorAs(t, err, &pf)
	require.Equal(t, []uuid.UUID{slotID}, pf.ReservedSlotIDs)
	require.Error(t, pf.CompensationErr)
}

func TestBookSingleDeniedByGuard(t *testing.T) {
	f := newFixture()
	slotID := f.store.addSlot(slotBase(), false)
	f.svc.guard = denyGuard{}

	_, err := f.svc.BookSingle(context.Background(), uuid.New(), BookingInput{
		PatientID:       uuid.New(),
		SlotID:          slotID,
		AppointmentType: TypeCleaning,
	})
	require.ErrorIs(t, err, errDenied)
	require.False(t, f.store.slots[slotID].Reserved)
}

func familyMembers(n int) []FamilyMember {
	members := make([]FamilyMember, n)
	for i := range members {
		members[i] = FamilyMember{PatientID: uuid.New(), AppointmentType: TypeGeneralCheckup}
	}
	return members
}

func TestBookConsecutiveRequiresTwoPatients(t *testing.T) {
	f := newFixture()

	_, err := f.svc.BookConsecutive(context.Background(), uuid.New(), uuid.New(), familyMembers(1))
	require.ErrorIs(t, err, ErrTooFewPatients)
	require.Zero(t, f.locker.calls)
}

func TestBookConsecutive(t *testing.T) {
	f := newFixture()
	start := f.store.addSlot(slotBase(), false)
	second := f.store.addSlot(slotBase().Add(slotDuration), false)
	third := f.store.addSlot(slotBase().Add(2*slotDuration), false)

	members := familyMembers(3)
	appts, err := f.svc.BookConsecutive(context.Background(), uuid.New(), start, members)
	require.NoError(t, err)
	require.Len(t, appts, 3)

	// slots map to members in chain order
	require.Equal(t, start, appts[0].SlotID)
	require.Equal(t, second, appts[1].SlotID)
	require.Equal(t, third, appts[2].SlotID)
	require.Equal(t, members[0].PatientID, appts[0].PatientID)

	for _, s := range f.store.slots {
		require.True(t, s.Reserved)
	}
	require.Len(t, f.notifier.confirmed, 1)
	require.Len(t, f.notifier.confirmed[0], 3)
}

func TestBookConsecutiveBrokenChain(t *testing.T) {
	f := newFixture()
	start := f.store.addSlot(slotBase(), false)
	f.store.addSlot(slotBase().Add(slotDuration), false)
	// third slot is already reserved, so no run of three exists
	f.store.addSlot(slotBase().Add(2*slotDuration), true)

	_, err := f.svc.BookConsecutive(context.Background(), uuid.New(), start, familyMembers(3))
	require.ErrorIs(t, err, ErrChainUnavailable)
	require.False(t, f.store.slots[start].Reserved)
	require.Empty(t, f.repo.appts)
}

func TestBookConsecutiveRollsBackOnMidChainConflict(t *testing.T) {
	f := newFixture()
	start := f.store.addSlot(slotBase(), false)
	second := f.store.addSlot(slotBase().Add(slotDuration), false)
	third := f.store.addSlot(slotBase().Add(2*slotDuration), false)
	// a concurrent booker grabs the third slot between derivation and reserve
	f.store.failReserve[third] = slot.ErrSlotConflict

	_, err := f.svc.BookConsecutive(context.Background(), uuid.New(), start, familyMembers(3))
	require.ErrorIs(t, err, slot.ErrSlotConflict)

	require.False(t, f.store.slots[start].Reserved, "first slot should be rolled back")
	require.False(t, f.store.slots[second].Reserved, "second slot should be rolled back")
	require.Empty(t, f.repo.appts, "committed appointments should be deleted")
	require.Empty(t, f.notifier.confirmed)
}

func TestBookConsecutiveReportsFailedRollback(t *testing.T) {
	f := newFixture()
	start := f.store.addSlot(slotBase(), false)
	second := f.store.addSlot(slotBase().Add(slotDuration), false)
	f.store.failReserve[second] = slot.ErrSlotConflict
	f.store.failRelease[start] = errors.New("release boom")

	_, err := f.svc.BookConsecutive(context.Background(), uuid.New(), start, familyMembers(2))

	var pf *PartialFailureError
	require.ErrorAs(t, err, &pf)
	require.Equal(t, []uuid.UUID{start}, pf.ReservedSlotIDs)
	require.ErrorIs(t, pf.Cause, slot.ErrSlotConflict)
}

func TestBookConsecutiveLockContention(t *testing.T) {
	f := newFixture()
	start := f.store.addSlot(slotBase(), false)
	f.store.addSlot(slotBase().Add(slotDuration), false)
	f.locker.contended = true

	_, err := f.svc.BookConsecutive(context.Background(), uuid.New(), start, familyMembers(2))
	require.ErrorIs(t, err, ErrBlockBeingBooked)
	require.False(t, f.store.slots[start].Reserved)
}

func TestCancelFreesSlotForRebooking(t *testing.T) {
	f := newFixture()
	slotID := f.store.addSlot(slotBase(), false)
	accountID := uuid.New()

	appt, err := f.svc.BookSingle(context.Background(), accountID, BookingInput{
		PatientID:       uuid.New(),
		SlotID:          slotID,
		AppointmentType: TypeCleaning,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(context.Background(), accountID, appt.ID))
	require.False(t, f.store.slots[slotID].Reserved)
	require.Empty(t, f.repo.appts)
	require.Len(t, f.notifier.cancelled, 1)

	// the freed slot is immediately bookable again
	_, err = f.svc.BookSingle(context.Background(), accountID, BookingInput{
		PatientID:       uuid.New(),
		SlotID:          slotID,
		AppointmentType: TypeEmergency,
	})
	require.NoError(t, err)
}

func TestCancelReportsStuckSlot(t *testing.T) {
	f := newFixture()
	slotID := f.store.addSlot(slotBase(), false)
	accountID := uuid.New()

	appt, err := f.svc.BookSingle(context.Background(), accountID, BookingInput{
		PatientID:       uuid.New(),
		SlotID:          slotID,
		AppointmentType: TypeCleaning,
	})
	require.NoError(t, err)

	f.store.failRelease[slotID] = errors.New("release boom")

	err = f.svc.Cancel(context.Background(), accountID, appt.ID)
	var rec *ReconciliationError
	require.ErrorAs(t, err, &rec)
	require.Equal(t, appt.ID, rec.AppointmentID)
	require.Equal(t, slotID, rec.SlotID)

	// the appointment row is gone even though the slot stayed reserved
	require.Empty(t, f.repo.appts)
	require.True(t, f.store.slots[slotID].Reserved)
}

func TestCancelDeniedLeavesStateUnchanged(t *testing.T) {
	f := newFixture()
	slotID := f.store.addSlot(slotBase(), false)
	accountID := uuid.New()

	appt, err := f.svc.BookSingle(context.Background(), accountID, BookingInput{
		PatientID:       uuid.New(),
		SlotID:          slotID,
		AppointmentType: TypeCleaning,
	})
	require.NoError(t, err)

	f.svc.guard = denyGuard{}
	err = f.svc.Cancel(context.Background(), uuid.New(), appt.ID)
	require.ErrorIs(t, err, errDenied)

	require.Len(t, f.repo.appts, 1)
	require.True(t, f.store.slots[slotID].Reserved)
}

func TestSendEmergencyRequest(t *testing.T) {
	f := newFixture()
	accountID := uuid.New()
	f.repo.emails[accountID] = "family@example.com"

	err := f.svc.SendEmergencyRequest(context.Background(), accountID, uuid.New(), "severe toothache since last night")
	require.NoError(t, err)
	require.Len(t, f.notifier.emergencies, 1)

	req := f.notifier.emergencies[0]
	require.Equal(t, "family@example.com", req.AccountEmail)
	require.Equal(t, "Test Patient", req.PatientName)
	require.Equal(t, "severe toothache since last night", req.Description)
}

func TestParseAppointmentType(t *testing.T) {
	for _, valid := range []string{"Cleaning", "General Checkup", "Emergency"} {
		got, err := ParseAppointmentType(valid)
		require.NoError(t, err)
		require.Equal(t, AppointmentType(valid), got)
	}

	_, err := ParseAppointmentType("Whitening")
	require.ErrorIs(t, err, ErrInvalidAppointmentType)
}
