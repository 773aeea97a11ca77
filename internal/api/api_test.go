package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pearldental/clinic-booking/internal/booking"
	"github.com/pearldental/clinic-booking/internal/config"
	"github.com/pearldental/clinic-booking/internal/slot"
)

// ---- fakes shared across handler tests ----

type memSlotStore struct {
	slots map[uuid.UUID]*slot.Slot
}

func newMemSlotStore() *memSlotStore {
	return &memSlotStore{slots: make(map[uuid.UUID]*slot.Slot)}
}

func (m *memSlotStore) add(start time.Time, reserved bool) uuid.UUID {
	id := uuid.New()
	m.slots[id] = &slot.Slot{ID: id, StartTime: start, Duration: 15 * time.Minute, Reserved: reserved}
	return id
}

func (m *memSlotStore) GetSlot(ctx context.Context, id uuid.UUID) (*slot.Slot, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSlotStore) SetReserved(ctx context.Context, id uuid.UUID, reserved bool) error {
	s, ok := m.slots[id]
	if !ok {
		return slot.ErrSlotNotFound
	}
	if s.Reserved == reserved {
		return slot.ErrSlotConflict
	}
	s.Reserved = reserved
	return nil
}

func (m *memSlotStore) GetFreeSlotAt(ctx context.Context, start time.Time) (*slot.Slot, error) {
	for _, s := range m.slots {
		if s.StartTime.Equal(start) && !s.Reserved {
			cp := *s
			return &cp, nil
		}
	}
	return nil, slot.ErrSlotNotFound
}

func (m *memSlotStore) ListFreeBetween(ctx context.Context, from, to time.Time) ([]slot.Slot, error) {
	var out []slot.Slot
	for _, s := range m.slots {
		if !s.Reserved && !s.StartTime.Before(from) && s.StartTime.Before(to) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSlotStore) ListFreeEarliest(ctx context.Context, from, to time.Time, limit int) ([]slot.Slot, error) {
	out, _ := m.ListFreeBetween(ctx, from, to)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSlotStore) ReleaseOrphaned(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

type memBookingRepo struct {
	appts map[uuid.UUID]*booking.Appointment
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{appts: make(map[uuid.UUID]*booking.Appointment)}
}

func (m *memBookingRepo) CreateAppointment(ctx context.Context, a booking.Appointment) (*booking.Appointment, error) {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.appts[a.ID] = &a
	return &a, nil
}

func (m *memBookingRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memBookingRepo) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.appts[id]; !ok {
		return booking.ErrAppointmentNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *memBookingRepo) ListUpcomingByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]booking.AppointmentDetail, error) {
	var out []booking.AppointmentDetail
	for _, a := range m.appts {
		out = append(out, booking.AppointmentDetail{Appointment: *a})
	}
	return out, nil
}

func (m *memBookingRepo) GetAccountEmail(ctx context.Context, accountID uuid.UUID) (string, error) {
	return "user@example.com", nil
}

func (m *memBookingRepo) GetPatientContact(ctx context.Context, patientID uuid.UUID) (string, string, error) {
	return "Test Patient", "555-0100", nil
}

type permitAllGuard struct {
	repo *memBookingRepo
}

func (g permitAllGuard) OwnsPatient(ctx context.Context, accountID, patientID uuid.UUID) error {
	return nil
}

func (g permitAllGuard) OwnsAppointment(ctx context.Context, accountID, appointmentID uuid.UUID) (*booking.Appointment, error) {
	return g.repo.GetAppointmentByID(ctx, appointmentID)
}

type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testBookingService(store *memSlotStore, repo *memBookingRepo) *booking.Service {
	return booking.NewService(booking.Deps{
		Slots:        store,
		Repo:         repo,
		Guard:        permitAllGuard{repo: repo},
		Locker:       passLocker{},
		SlotDuration: 15 * time.Minute,
	})
}

func apiTestEngine(t *testing.T, store slot.Store) *slot.Engine {
	t.Helper()
	engine, err := slot.NewEngine(store, config.Config{
		ClinicTimezone:  "UTC",
		OpenHour:        9,
		CloseHour:       20,
		SlotDuration:    15 * time.Minute,
		EarliestHorizon: 90 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return engine
}

// authedRequest builds a request whose context already carries the
// account id, as AuthMiddleware would have left it.
func authedRequest(method, target string, body string, accountID uuid.UUID) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := context.WithValue(r.Context(), accountIDKey, accountID)
	return r.WithContext(ctx)
}

// ---- schedule handlers ----

func TestListSlotsHandler(t *testing.T) {
	store := newMemSlotStore()
	day := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	store.add(day.Add(9*time.Hour), false)
	store.add(day.Add(9*time.Hour+15*time.Minute), true)

	handler := listSlotsHandler(apiTestEngine(t, store))

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/schedule/slots?start_date=2026-09-07", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), day.Add(9*time.Hour).Format(time.RFC3339))
	require.Equal(t, 1, strings.Count(w.Body.String(), `"id"`), "reserved slot is not listed")
}

func TestListSlotsHandlerRejectsBadDate(t *testing.T) {
	handler := listSlotsHandler(apiTestEngine(t, newMemSlotStore()))

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/schedule/slots?start_date=tomorrow", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSlotsHandlerRejectsInvertedRange(t *testing.T) {
	handler := listSlotsHandler(apiTestEngine(t, newMemSlotStore()))

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet,
		"/schedule/slots?start_date=2026-09-08&end_date=2026-09-07", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "validation_failed")
}

func TestListEarliestSlotsHandlerRejectsZeroLimit(t *testing.T) {
	handler := listEarliestSlotsHandler(apiTestEngine(t, newMemSlotStore()))

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/schedule/slots/earliest?limit=0", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

// ---- booking handlers ----

func TestBookHandler(t *testing.T) {
	store := newMemSlotStore()
	slotID := store.add(time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC), false)
	svc := testBookingService(store, newMemBookingRepo())

	body := `{"patient_id": "` + uuid.NewString() + `", "slot_id": "` + slotID.String() + `", "appointment_type": "Cleaning"}`
	w := httptest.NewRecorder()
	bookHandler(svc)(w, authedRequest(http.MethodPost, "/schedule/book", body, uuid.New()))

	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, store.slots[slotID].Reserved)
}

func TestBookHandlerConflict(t *testing.T) {
	store := newMemSlotStore()
	slotID := store.add(time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC), true)
	svc := testBookingService(store, newMemBookingRepo())

	body := `{"patient_id": "` + uuid.NewString() + `", "slot_id": "` + slotID.String() + `", "appointment_type": "Cleaning"}`
	w := httptest.NewRecorder()
	bookHandler(svc)(w, authedRequest(http.MethodPost, "/schedule/book", body, uuid.New()))

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "slot_already_booked")
}

func TestBookHandlerRejectsUnknownType(t *testing.T) {
	svc := testBookingService(newMemSlotStore(), newMemBookingRepo())

	body := `{"patient_id": "` + uuid.NewString() + `", "slot_id": "` + uuid.NewString() + `", "appointment_type": "Whitening"}`
	w := httptest.NewRecorder()
	bookHandler(svc)(w, authedRequest(http.MethodPost, "/schedule/book", body, uuid.New()))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookHandlerRequiresPrincipal(t *testing.T) {
	svc := testBookingService(newMemSlotStore(), newMemBookingRepo())

	w := httptest.NewRecorder()
	bookHandler(svc)(w, httptest.NewRequest(http.MethodPost, "/schedule/book", strings.NewReader("{}")))

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookFamilyHandler(t *testing.T) {
	store := newMemSlotStore()
	day := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	startID := store.add(day, false)
	store.add(day.Add(15*time.Minute), false)
	repo := newMemBookingRepo()
	svc := testBookingService(store, repo)

	body := `{"start_slot_id": "` + startID.String() + `", "patient_ids": ["` + uuid.NewString() + `", "` + uuid.NewString() + `"], "appointment_type": "General Checkup"}`
	w := httptest.NewRecorder()
	bookFamilyHandler(svc)(w, authedRequest(http.MethodPost, "/schedule/book/family", body, uuid.New()))

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.appts, 2)
}

func TestBookFamilyHandlerRejectsSinglePatient(t *testing.T) {
	store := newMemSlotStore()
	startID := store.add(time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC), false)
	svc := testBookingService(store, newMemBookingRepo())

	body := `{"start_slot_id": "` + startID.String() + `", "patient_ids": ["` + uuid.NewString() + `"], "appointment_type": "Cleaning"}`
	w := httptest.NewRecorder()
	bookFamilyHandler(svc)(w, authedRequest(http.MethodPost, "/schedule/book/family", body, uuid.New()))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

// ---- appointment handlers ----

func TestCancelAppointmentHandler(t *testing.T) {
	store := newMemSlotStore()
	slotID := store.add(time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC), false)
	repo := newMemBookingRepo()
	svc := testBookingService(store, repo)

	appt, err := svc.BookSingle(context.Background(), uuid.New(), booking.BookingInput{
		PatientID:       uuid.New(),
		SlotID:          slotID,
		AppointmentType: booking.TypeCleaning,
	})
	require.NoError(t, err)

	r := authedRequest(http.MethodDelete, "/appointments/"+appt.ID.String(), "", uuid.New())
	w := httptest.NewRecorder()

	router := newTestRouterFor(svc)
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.False(t, store.slots[slotID].Reserved)
}

func TestCancelAppointmentHandlerNotFound(t *testing.T) {
	svc := testBookingService(newMemSlotStore(), newMemBookingRepo())

	r := authedRequest(http.MethodDelete, "/appointments/"+uuid.NewString(), "", uuid.New())
	w := httptest.NewRecorder()
	newTestRouterFor(svc).ServeHTTP(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "appointment_not_found")
}

// newTestRouterFor mounts just the appointment routes so chi URL params
// resolve without the full middleware stack.
func newTestRouterFor(svc *booking.Service) http.Handler {
	r := chi.NewRouter()
	r.Delete("/appointments/{id}", cancelAppointmentHandler(svc))
	return r
}
