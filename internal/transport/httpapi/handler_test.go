package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"consultorio/backend/internal/calendar"
	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/service/appointments"
	"consultorio/backend/internal/service/availability"
	"consultorio/backend/internal/service/settings"
	"consultorio/backend/internal/service/unavailability"
	"consultorio/backend/internal/store/memory"
)

type fakeCalendar struct {
	enabled bool
	pingFn  func(ctx context.Context) error
	syncFn  func(ctx context.Context, date string) (calendar.SyncResult, error)
}

func (f *fakeCalendar) Enabled() bool { return f.enabled }

func (f *fakeCalendar) Ping(ctx context.Context) error {
	if f.pingFn == nil {
		panic("Ping not configured")
	}
	return f.pingFn(ctx)
}

func (f *fakeCalendar) SyncDate(ctx context.Context, date string) (calendar.SyncResult, error) {
	if f.syncFn == nil {
		panic("SyncDate not configured")
	}
	return f.syncFn(ctx, date)
}

var testLoc = time.FixedZone("ART", -3*60*60)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(cal *fakeCalendar) *Handler {
	st := memory.New().Store()
	zone := domain.NewZone(testLoc, func() time.Time {
		return time.Date(2025, 5, 20, 9, 0, 0, 0, testLoc)
	})
	if cal == nil {
		cal = &fakeCalendar{}
	}
	return NewHandler(Deps{
		Booking:        appointments.NewService(st, nil, nil, discardLogger()),
		Availability:   availability.NewResolver(st, nil, zone, domain.ListingHours),
		Unavailability: unavailability.NewService(st.Unavailability),
		Settings:       settings.NewService(st.Settings),
		Calendar:       cal,
	}, discardLogger())
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	newTestHandler(nil).RegisterRoutes(e.Group("/api"))

	want := []string{
		"GET:/api/appointments",
		"GET:/api/appointments/:id",
		"GET:/api/appointments/available/:date",
		"GET:/api/appointments/reserved/:date",
		"GET:/api/appointments/available-times",
		"POST:/api/appointments",
		"PUT:/api/appointments/:id",
		"PATCH:/api/appointments/:id/payment",
		"PATCH:/api/appointments/:id/description",
		"DELETE:/api/appointments/:id",
		"GET:/api/sobreturnos/validate",
		"GET:/api/sobreturnos/available/:date",
		"GET:/api/sobreturnos",
		"POST:/api/sobreturnos",
		"PUT:/api/sobreturnos/:id",
		"GET:/api/sobreturnos/:id",
		"PATCH:/api/sobreturnos/:id/status",
		"DELETE:/api/sobreturnos/:id",
		"GET:/api/unavailability",
		"POST:/api/unavailability",
		"DELETE:/api/unavailability/:id",
		"GET:/api/settings/bot",
		"PUT:/api/settings/bot",
		"GET:/api/calendar/status",
		"POST:/api/calendar/sync/:date",
	}
	routes := make(map[string]bool)
	for _, r := range e.Routes() {
		routes[r.Method+":"+r.Path] = true
	}
	for _, w := range want {
		if !routes[w] {
			t.Errorf("missing route %s", w)
		}
	}
}

func TestCreateAppointment(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)
	body := `{"clientName":"Ana Pérez","phone":"3624000000","date":"2025-05-22","time":"10:15","socialWork":"osde"}`

	rec := httptest.NewRecorder()
	if err := h.CreateAppointment(e.NewContext(jsonRequest(http.MethodPost, "/api/appointments", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	env := decode(t, rec)
	var appt domain.Appointment
	if err := json.Unmarshal(env.Data, &appt); err != nil {
		t.Fatalf("decode appointment: %v", err)
	}
	if !env.Success || appt.Time != "10:15" || appt.SocialWork != domain.SocialWorkOSDE || appt.Status != domain.StatusConfirmed {
		t.Fatalf("created = %+v", appt)
	}

	rec = httptest.NewRecorder()
	if err := h.CreateAppointment(e.NewContext(jsonRequest(http.MethodPost, "/api/appointments", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second booking status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if env := decode(t, rec); env.Success || env.Message != "El horario seleccionado no está disponible" {
		t.Fatalf("second booking body = %+v", env)
	}
}

func TestCreateAppointment_SobreturnoFlag(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)
	body := `{"clientName":"Ana Pérez","phone":"3624000000","date":"2025-05-22","time":"11:30","isSobreturno":true}`

	rec := httptest.NewRecorder()
	if err := h.CreateAppointment(e.NewContext(jsonRequest(http.MethodPost, "/api/appointments", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var o domain.Overturn
	if err := json.Unmarshal(decode(t, rec).Data, &o); err != nil {
		t.Fatalf("decode overturn: %v", err)
	}
	if o.Number != 3 || o.Time != "11:30" {
		t.Fatalf("created = %+v, want sobreturno 3 at 11:30", o)
	}

	get := func(handler echo.HandlerFunc) int {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.SetParamNames("id")
		c.SetParamValues(o.ID.String())
		if err := handler(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return rec.Code
	}
	if code := get(h.GetOverturn); code != http.StatusOK {
		t.Fatalf("GET /sobreturnos/:id status = %d, want %d", code, http.StatusOK)
	}
	if code := get(h.GetAppointment); code != http.StatusNotFound {
		t.Fatalf("GET /appointments/:id status = %d, want %d", code, http.StatusNotFound)
	}

	rec = httptest.NewRecorder()
	if err := h.CreateAppointment(e.NewContext(jsonRequest(http.MethodPost, "/api/appointments", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second booking status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateAppointment_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed", body: `{"clientName":`, want: "invalid request body"},
		{name: "missing phone", body: `{"clientName":"Ana","date":"2025-05-22","time":"10:00"}`, want: "phone is required"},
		{name: "bad date", body: `{"clientName":"Ana","phone":"1","date":"22/05/2025","time":"10:00"}`},
		{name: "out of hours", body: `{"clientName":"Ana","phone":"1","date":"2025-05-22","time":"23:00"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			err := newTestHandler(nil).CreateAppointment(e.NewContext(jsonRequest(http.MethodPost, "/api/appointments", tt.body), rec))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			env := decode(t, rec)
			if env.Success || env.Message == "" {
				t.Fatalf("body = %+v", env)
			}
			if tt.want != "" && env.Message != tt.want {
				t.Fatalf("message = %q, want %q", env.Message, tt.want)
			}
		})
	}
}

func TestGetAppointment(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if err := h.GetAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("0195f3a2-0000-7000-8000-000000000000")
	if err := h.GetAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAvailableSlots(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("date")
	c.SetParamValues("2025-05-22")
	if err := h.AvailableSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got struct {
		DisplayDate string `json:"displayDate"`
		Available   struct {
			Morning   []domain.TimeSlot `json:"morning"`
			Afternoon []domain.TimeSlot `json:"afternoon"`
		} `json:"available"`
	}
	if err := json.Unmarshal(decode(t, rec).Data, &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if got.DisplayDate != "2025-05-22" || len(got.Available.Morning) != 8 || len(got.Available.Afternoon) != 12 {
		t.Fatalf("available = %s %d+%d", got.DisplayDate, len(got.Available.Morning), len(got.Available.Afternoon))
	}
}

func TestUnavailability_BlocksSlots(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)
	body := `{"date":"2025-05-22","period":"morning"}`

	rec := httptest.NewRecorder()
	if err := h.CreateUnavailability(e.NewContext(jsonRequest(http.MethodPost, "/api/unavailability", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.CreateUnavailability(e.NewContext(jsonRequest(http.MethodPost, "/api/unavailability", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want %d", rec.Code, http.StatusConflict)
	}

	for _, date := range []string{"2025-05-22", "2025-05-22 "} {
		rec = httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.SetParamNames("date")
		c.SetParamValues(date)
		if err := h.AvailableSlots(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got availableResponse
		if err := json.Unmarshal(decode(t, rec).Data, &got); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if got.DisplayDate != "2025-05-22" || len(got.Available.Morning) != 0 || len(got.Available.Afternoon) != 12 {
			t.Fatalf("%q: %s slots = %d+%d, want 0+12", date, got.DisplayDate, len(got.Available.Morning), len(got.Available.Afternoon))
		}
	}
}

func TestOverturns(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	validate := func() (int, bool) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/sobreturnos/validate?date=2025-05-22&sobreturnoNumber=3", nil)
		if err := h.ValidateOverturn(e.NewContext(req, rec)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got validateOverturnResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return rec.Code, got.Available
	}

	if code, available := validate(); code != http.StatusOK || !available {
		t.Fatalf("validate before booking = %d %v, want 200 true", code, available)
	}

	body := `{"sobreturnoNumber":3,"date":"2025-05-22","clientName":"Juan","phone":"3624111111"}`
	rec := httptest.NewRecorder()
	if err := h.CreateOverturn(e.NewContext(jsonRequest(http.MethodPost, "/api/sobreturnos", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var o domain.Overturn
	if err := json.Unmarshal(decode(t, rec).Data, &o); err != nil {
		t.Fatalf("decode overturn: %v", err)
	}
	if o.Number != 3 || o.Time != "11:30" {
		t.Fatalf("overturn = %+v", o)
	}

	if code, available := validate(); code != http.StatusOK || available {
		t.Fatalf("validate after booking = %d %v, want 200 false", code, available)
	}

	rec = httptest.NewRecorder()
	if err := h.CreateOverturn(e.NewContext(jsonRequest(http.MethodPost, "/api/sobreturnos", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sobreturnos/validate?date=2025-05-22&sobreturnoNumber=11", nil)
	if err := h.ValidateOverturn(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("number 11 status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestBotSetting(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	rec := httptest.NewRecorder()
	if err := h.PutBotSetting(e.NewContext(jsonRequest(http.MethodPut, "/api/settings/bot", `{"enabled":false}`), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	if err := h.GetBotSetting(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got botSetting
	if err := json.Unmarshal(decode(t, rec).Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Enabled {
		t.Fatalf("enabled = true, want false")
	}

	rec = httptest.NewRecorder()
	if err := h.PutBotSetting(e.NewContext(jsonRequest(http.MethodPut, "/api/settings/bot", `{}`), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCalendarEndpoints(t *testing.T) {
	e := echo.New()

	t.Run("disabled", func(t *testing.T) {
		h := newTestHandler(&fakeCalendar{
			syncFn: func(context.Context, string) (calendar.SyncResult, error) {
				return calendar.SyncResult{}, calendar.ErrDisabled
			},
		})
		rec := httptest.NewRecorder()
		if err := h.CalendarStatus(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got calendarStatus
		if err := json.Unmarshal(decode(t, rec).Data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Enabled || got.Connected {
			t.Fatalf("status = %+v, want disabled", got)
		}

		rec = httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
		c.SetParamNames("date")
		c.SetParamValues("2025-05-22")
		if err := h.SyncCalendar(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("sync status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		var synced string
		h := newTestHandler(&fakeCalendar{
			enabled: true,
			pingFn:  func(context.Context) error { return errors.New("invalid_grant") },
			syncFn: func(_ context.Context, date string) (calendar.SyncResult, error) {
				synced = date
				return calendar.SyncResult{Date: date, Fetched: 2, Imported: 1, Skipped: 1}, nil
			},
		})
		rec := httptest.NewRecorder()
		if err := h.CalendarStatus(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var status calendarStatus
		if err := json.Unmarshal(decode(t, rec).Data, &status); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !status.Enabled || status.Connected {
			t.Fatalf("status = %+v, want enabled and not connected", status)
		}

		rec = httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
		c.SetParamNames("date")
		c.SetParamValues("2025-05-22 ")
		if err := h.SyncCalendar(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var res calendar.SyncResult
		if err := json.Unmarshal(decode(t, rec).Data, &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if synced != "2025-05-22" || res.Imported != 1 {
			t.Fatalf("sync = %q %+v", synced, res)
		}
	})
}

func TestServer_ErrorsUseEnvelope(t *testing.T) {
	h := newTestHandler(nil)
	srv := NewServer(h, discardLogger(), ServerConfig{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if env := decode(t, rec); env.Success || env.Message == "" {
		t.Fatalf("body = %+v", env)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("missing request id header")
	}
}

func TestOverturnStaffUpdates(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	rec := httptest.NewRecorder()
	body := `{"sobreturnoNumber":7,"date":"2025-05-22","clientName":"Juan","phone":"3624111111"}`
	if err := h.CreateOverturn(e.NewContext(jsonRequest(http.MethodPost, "/api/sobreturnos", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var created domain.Overturn
	if err := json.Unmarshal(decode(t, rec).Data, &created); err != nil {
		t.Fatalf("decode overturn: %v", err)
	}

	rec = httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPatch, "/", `{}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	if err := h.UpdateOverturnStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty status patch = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPut, "/", `{"isPaid":true,"description":"control"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	if err := h.UpdateOverturn(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var updated domain.Overturn
	if err := json.Unmarshal(decode(t, rec).Data, &updated); err != nil {
		t.Fatalf("decode overturn: %v", err)
	}
	if !updated.IsPaid || updated.Description != "control" || updated.Number != 7 {
		t.Fatalf("updated = %+v", updated)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPatch, "/", `{"status":"cancelled"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	if err := h.UpdateOverturnStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var cancelled domain.Overturn
	if err := json.Unmarshal(decode(t, rec).Data, &cancelled); err != nil {
		t.Fatalf("decode overturn: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("status = %q, want %q", cancelled.Status, domain.StatusCancelled)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sobreturnos/validate?date=2025-05-22&sobreturnoNumber=7", nil)
	if err := h.ValidateOverturn(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got validateOverturnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Available {
		t.Fatalf("cancelled sobreturno still holds its number")
	}
}
