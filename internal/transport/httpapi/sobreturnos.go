package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type validateOverturnResponse struct {
	Available bool `json:"available"`
}

func (h *Handler) ValidateOverturn(c echo.Context) error {
	log := h.log.With(slog.String("route", "ValidateOverturn"))
	date := strings.TrimSpace(c.QueryParam("date"))
	raw := strings.TrimSpace(c.QueryParam("sobreturnoNumber"))
	if date == "" || raw == "" {
		return badRequest(c, "date and sobreturnoNumber are required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return badRequest(c, "sobreturnoNumber must be a number")
	}

	available, err := h.availability.OverturnAvailable(c.Request().Context(), date, n)
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	return c.JSON(http.StatusOK, validateOverturnResponse{Available: available})
}

func (h *Handler) AvailableOverturns(c echo.Context) error {
	log := h.log.With(slog.String("route", "AvailableOverturns"))
	slots, err := h.availability.AvailableOverturns(c.Request().Context(), c.Param("date"))
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	return success(c, http.StatusOK, slots)
}

func (h *Handler) ListOverturns(c echo.Context) error {
	log := h.log.With(slog.String("route", "ListOverturns"))
	list, err := h.booking.ListOverturns(c.Request().Context(), listFilter(c))
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	return success(c, http.StatusOK, list)
}

func (h *Handler) GetOverturn(c echo.Context) error {
	log := h.log.With(slog.String("route", "GetOverturn"))
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid sobreturno id")
	}
	o, err := h.booking.GetOverturn(c.Request().Context(), id)
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	return success(c, http.StatusOK, o)
}

func (h *Handler) CreateOverturn(c echo.Context) error {
	log := h.log.With(slog.String("route", "CreateOverturn"))
	var req createOverturnRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	o, err := h.booking.CreateOverturn(c.Request().Context(), req.input())
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	log.Info("sobreturno booked",
		slog.String("id", o.ID.String()),
		slog.String("date", o.Date),
		slog.Int("number", o.Number),
	)
	return success(c, http.StatusCreated, o)
}

func (h *Handler) UpdateOverturn(c echo.Context) error {
	log := h.log.With(slog.String("route", "UpdateOverturn"))
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid sobreturno id")
	}
	var req updateOverturnRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	o, err := h.booking.UpdateOverturn(c.Request().Context(), id, req.input())
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	return success(c, http.StatusOK, o)
}

func (h *Handler) UpdateOverturnStatus(c echo.Context) error {
	log := h.log.With(slog.String("route", "UpdateOverturnStatus"))
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid sobreturno id")
	}
	var req overturnStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Status == nil && req.Attended == nil {
		return badRequest(c, "status or attended is required")
	}

	o, err := h.booking.UpdateOverturnStatus(c.Request().Context(), id, statusPtr(req.Status), req.Attended)
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	return success(c, http.StatusOK, o)
}

func (h *Handler) DeleteOverturn(c echo.Context) error {
	log := h.log.With(slog.String("route", "DeleteOverturn"))
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid sobreturno id")
	}
	if err := h.booking.DeleteOverturn(c.Request().Context(), id); err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	return success(c, http.StatusOK, nil)
}
