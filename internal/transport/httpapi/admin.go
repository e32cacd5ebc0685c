package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"consultorio/backend/internal/calendar"
	"consultorio/backend/internal/domain"
)

func (h *Handler) ListUnavailability(c echo.Context) error {
	log := h.log.With(slog.String("route", "ListUnavailability"))
	blocks, err := h.unavailability.List(c.Request().Context(), strings.TrimSpace(c.QueryParam("date")))
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	return success(c, http.StatusOK, blocks)
}

func (h *Handler) CreateUnavailability(c echo.Context) error {
	log := h.log.With(slog.String("route", "CreateUnavailability"))
	var req unavailabilityRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}

	period := domain.Period(strings.ToLower(strings.TrimSpace(req.Period)))
	b, err := h.unavailability.Create(c.Request().Context(), req.Date, period)
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	log.Info("unavailability created", slog.String("date", b.Date), slog.String("period", string(b.Period)))
	return success(c, http.StatusCreated, b)
}

func (h *Handler) DeleteUnavailability(c echo.Context) error {
	log := h.log.With(slog.String("route", "DeleteUnavailability"))
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid unavailability id")
	}
	b, err := h.unavailability.Delete(c.Request().Context(), id)
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	return success(c, http.StatusOK, b)
}

type botSetting struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) GetBotSetting(c echo.Context) error {
	log := h.log.With(slog.String("route", "GetBotSetting"))
	enabled, err := h.settings.BotEnabled(c.Request().Context())
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	return success(c, http.StatusOK, botSetting{Enabled: enabled})
}

func (h *Handler) PutBotSetting(c echo.Context) error {
	log := h.log.With(slog.String("route", "PutBotSetting"))
	var req botSettingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Enabled == nil {
		return badRequest(c, "enabled is required")
	}
	enabled, err := h.settings.SetBotEnabled(c.Request().Context(), *req.Enabled)
	if err != nil {
		return fail(c, log, err, http.StatusConflict)
	}
	log.Info("bot setting changed", slog.Bool("enabled", enabled))
	return success(c, http.StatusOK, botSetting{Enabled: enabled})
}

type calendarStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

func (h *Handler) CalendarStatus(c echo.Context) error {
	log := h.log.With(slog.String("route", "CalendarStatus"))
	if !h.calendar.Enabled() {
		return success(c, http.StatusOK, calendarStatus{})
	}
	if err := h.calendar.Ping(c.Request().Context()); err != nil {
		log.Warn("calendar ping failed", slog.Any("err", err))
		return success(c, http.StatusOK, calendarStatus{Enabled: true})
	}
	return success(c, http.StatusOK, calendarStatus{Enabled: true, Connected: true})
}

func (h *Handler) SyncCalendar(c echo.Context) error {
	log := h.log.With(slog.String("route", "SyncCalendar"))
	date, err := domain.CanonicalDate(c.Param("date"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	res, err := h.calendar.SyncDate(c.Request().Context(), date)
	if errors.Is(err, calendar.ErrDisabled) {
		return c.JSON(http.StatusServiceUnavailable, errorBody("calendar integration is disabled"))
	}
	if err != nil {
		log.Error("calendar sync failed", slog.Any("err", err), slog.String("date", date))
		return c.JSON(http.StatusBadGateway, errorBody("calendar sync failed"))
	}
	return success(c, http.StatusOK, res)
}
