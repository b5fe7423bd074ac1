package appointments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, repo *fakeRepo) http.Handler {
	t.Helper()
	h := NewHandler(newTestService(t, repo, nil), nil)
	r := chi.NewRouter()
	r.Post("/appointments", h.CreateAppointment)
	r.Post("/appointments/recurring", h.CreateRecurring)
	r.Get("/providers/{providerID}/appointments", h.ListProviderAppointments)
	r.Get("/providers/{providerID}/calendar/month", h.MonthView)
	r.Get("/providers/{providerID}/calendar/week", h.WeekViewHandler)
	r.Patch("/appointments/{id}/status", h.UpdateStatus)
	r.Patch("/appointments/{id}/notes", h.UpdateNotes)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/appointments", CreateAppointmentRequest{
		ProviderID:      uuid.NewString(),
		ClientID:        uuid.NewString(),
		Date:            "2024-03-05",
		Time:            "10:00",
		DurationMinutes: 60,
		ClientNotes:     "first visit",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res SeriesResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Appointments, 1)
	assert.Equal(t, StatusPending, res.Appointments[0].Status)
	assert.False(t, res.Truncated)
}

func TestCreateAppointmentConflictReturns409(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(t, repo)
	provider := uuid.New()
	seed(t, repo, provider, "2024-03-05T10:00:00", "2024-03-05T11:00:00", StatusConfirmed)

	rec := doJSON(t, router, http.MethodPost, "/appointments", CreateAppointmentRequest{
		ProviderID:      provider.String(),
		ClientID:        uuid.NewString(),
		Date:            "2024-03-05",
		Time:            "10:30",
		DurationMinutes: 60,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var body conflictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-03-05T10:30", body.Slot)
	require.Len(t, body.Conflicts, 1)
}

func TestCreateAppointmentBadRequests(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/appointments", CreateAppointmentRequest{
		ProviderID: "not-a-uuid",
		ClientID:   uuid.NewString(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed civil inputs surface as a bad request, not a 500.
	rec = doJSON(t, router, http.MethodPost, "/appointments", CreateAppointmentRequest{
		ProviderID:      uuid.NewString(),
		ClientID:        uuid.NewString(),
		Date:            "03/05/2024",
		Time:            "10:00",
		DurationMinutes: 60,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRecurringEndpoint(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(t, repo)
	provider := uuid.New()
	seed(t, repo, provider, "2024-01-22T09:00:00", "2024-01-22T10:00:00", StatusPending)

	rec := doJSON(t, router, http.MethodPost, "/appointments/recurring", CreateAppointmentRequest{
		ProviderID:      provider.String(),
		ClientID:        uuid.NewString(),
		Date:            "2024-01-08",
		Time:            "09:00",
		DurationMinutes: 60,
		Cadence:         "weekly",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res SeriesResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Truncated)
	assert.Equal(t, "2024-01-22T09:00", res.ConflictAt)
	assert.Len(t, res.Appointments, 2)
}

func TestCreateRecurringRejectsSingleCadence(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(t, repo)

	for _, cadence := range []string{"single", "", "monthly"} {
		rec := doJSON(t, router, http.MethodPost, "/appointments/recurring", CreateAppointmentRequest{
			ProviderID:      uuid.NewString(),
			ClientID:        uuid.NewString(),
			Date:            "2024-01-08",
			Time:            "09:00",
			DurationMinutes: 60,
			Cadence:         cadence,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "cadence %q", cadence)
	}
}

func TestListProviderAppointmentsEndpoint(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(t, repo)
	provider := uuid.New()
	seed(t, repo, provider, "2024-03-05T10:00:00", "2024-03-05T11:00:00", StatusPending)
	seed(t, repo, uuid.New(), "2024-03-05T10:00:00", "2024-03-05T11:00:00", StatusPending)

	rec := doJSON(t, router, http.MethodGet, "/providers/"+provider.String()+"/appointments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res ListProviderAppointmentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)

	rec = doJSON(t, router, http.MethodGet, "/providers/nope/appointments", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonthViewEndpoint(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(t, repo)
	provider := uuid.New()
	seed(t, repo, provider, "2024-03-05T10:00:00", "2024-03-05T11:00:00", StatusPending)

	path := fmt.Sprintf("/providers/%s/calendar/month?year=2024&month=3", provider)
	rec := doJSON(t, router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res MonthViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "2024-03", res.Month)
	assert.Equal(t, map[string]int{"2024-03-05": 1}, res.Counts)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/providers/%s/calendar/month?year=2024&month=13", provider), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/providers/%s/calendar/month?month=3", provider), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeekViewEndpoint(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(t, repo)
	provider := uuid.New()
	seed(t, repo, provider, "2024-03-05T10:00:00", "2024-03-05T11:30:00", StatusConfirmed)

	rec := doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/providers/%s/calendar/week?date=2024-03-07", provider), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view WeekView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Days, 7)
	assert.Equal(t, "2024-03-03", view.Days[0].DayKey)
	require.Len(t, view.Days[2].Blocks, 1)
	assert.Equal(t, 180.0, view.Days[2].Blocks[0].Geometry.Top)

	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/providers/%s/calendar/week?date=bogus", provider), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(t, repo)
	provider := uuid.New()
	appt := seed(t, repo, provider, "2024-03-05T10:00:00", "2024-03-05T11:00:00", StatusPending)

	rec := doJSON(t, router, http.MethodPatch,
		"/appointments/"+appt.ID.String()+"/status", UpdateStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, StatusConfirmed, got.Status)

	// Cancel, then try to confirm again: terminal states stay put.
	rec = doJSON(t, router, http.MethodPatch,
		"/appointments/"+appt.ID.String()+"/status", UpdateStatusRequest{Status: "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPatch,
		"/appointments/"+appt.ID.String()+"/status", UpdateStatusRequest{Status: "confirmed"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, router, http.MethodPatch,
		"/appointments/"+uuid.NewString()+"/status", UpdateStatusRequest{Status: "confirmed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateNotesEndpoint(t *testing.T) {
	repo := &fakeRepo{}
	router := newTestRouter(t, repo)
	provider := uuid.New()
	appt := seed(t, repo, provider, "2024-03-05T10:00:00", "2024-03-05T11:00:00", StatusPending)

	notes := "arrived 10 minutes late"
	rec := doJSON(t, router, http.MethodPatch,
		"/appointments/"+appt.ID.String()+"/notes", UpdateNotesRequest{ProviderNotes: &notes})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, notes, repo.appts[0].ProviderNotes)

	rec = doJSON(t, router, http.MethodPatch,
		"/appointments/"+appt.ID.String()+"/notes", UpdateNotesRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
