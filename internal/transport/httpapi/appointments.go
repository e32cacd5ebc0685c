package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/service/availability"
	"consultorio/backend/internal/store"
)

type availableResponse struct {
	DisplayDate string                `json:"displayDate"`
	Available   availability.DaySlots `json:"available"`
}

func listFilter(c echo.Context) store.ListFilter {
	return store.ListFilter{
		Date:   strings.TrimSpace(c.QueryParam("date")),
		Status: domain.Status(strings.ToLower(strings.TrimSpace(c.QueryParam("status")))),
	}
}

func (h *Handler) ListAppointments(c echo.Context) error {
	log := h.log.With(slog.String("route", "ListAppointments"))
	list, err := h.booking.ListAppointments(c.Request().Context(), listFilter(c))
	if err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	return success(c, http.StatusOK, list)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	log := h.log.With(slog.String("route", "GetAppointment"))
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid appointment id")
	}
	appt, err := h.booking.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	return success(c, http.StatusOK, appt)
}

func (h *Handler) AvailableSlots(c echo.Context) error {
	log := h.log.With(slog.String("route", "AvailableSlots"))
	date := strings.TrimSpace(c.Param("date"))
	slots, err := h.availability.AvailableSlots(c.Request().Context(), date)
	if err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	return success(c, http.StatusOK, availableResponse{DisplayDate: date, Available: slots})
}

func (h *Handler) ReservedTimes(c echo.Context) error {
	log := h.log.With(slog.String("route", "ReservedTimes"))
	times, err := h.availability.ReservedTimes(c.Request().Context(), c.Param("date"))
	if err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	return success(c, http.StatusOK, times)
}

func (h *Handler) AvailableTimes(c echo.Context) error {
	log := h.log.With(slog.String("route", "AvailableTimes"))
	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "" {
		return badRequest(c, "date is required")
	}
	slots, err := h.availability.CreationTimes(c.Request().Context(), date)
	if err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	return success(c, http.StatusOK, slots)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	log := h.log.With(slog.String("route", "CreateAppointment"))
	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	if req.IsSobreturno {
		return h.createOverturnAt(c, log, req)
	}

	appt, err := h.booking.CreateAppointment(c.Request().Context(), req.input())
	if err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	log.Info("appointment booked",
		slog.String("id", appt.ID.String()),
		slog.String("date", appt.Date),
		slog.String("time", appt.Time),
	)
	return success(c, http.StatusCreated, appt)
}

// createOverturnAt answers a booking flagged as sobreturno with the overturn
// itself; its id is only valid under /sobreturnos.
func (h *Handler) createOverturnAt(c echo.Context, log *slog.Logger, req createAppointmentRequest) error {
	o, err := h.booking.CreateOverturnAt(c.Request().Context(), req.input())
	if err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	log.Info("sobreturno booked",
		slog.String("id", o.ID.String()),
		slog.String("date", o.Date),
		slog.Int("number", o.Number),
	)
	return success(c, http.StatusCreated, o)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	log := h.log.With(slog.String("route", "UpdateAppointment"))
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid appointment id")
	}
	var req updateAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	appt, err := h.booking.UpdateAppointment(c.Request().Context(), id, req.input())
	if err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	return success(c, http.StatusOK, appt)
}

func (h *Handler) SetPayment(c echo.Context) error {
	log := h.log.With(slog.String("route", "SetPayment"))
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid appointment id")
	}
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.IsPaid == nil {
		return badRequest(c, "isPaid is required")
	}

	appt, err := h.booking.SetPayment(c.Request().Context(), id, *req.IsPaid)
	if err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	return success(c, http.StatusOK, appt)
}

func (h *Handler) SetDescription(c echo.Context) error {
	log := h.log.With(slog.String("route", "SetDescription"))
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid appointment id")
	}
	var req descriptionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Description == nil {
		return badRequest(c, "description is required")
	}

	appt, err := h.booking.SetDescription(c.Request().Context(), id, *req.Description)
	if err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	return success(c, http.StatusOK, appt)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	log := h.log.With(slog.String("route", "DeleteAppointment"))
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid appointment id")
	}
	if err := h.booking.DeleteAppointment(c.Request().Context(), id); err != nil {
		return fail(c, log, err, http.StatusBadRequest)
	}
	return success(c, http.StatusOK, nil)
}
