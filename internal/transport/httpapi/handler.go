package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"consultorio/backend/internal/calendar"
	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/service"
	"consultorio/backend/internal/service/appointments"
	"consultorio/backend/internal/service/availability"
	"consultorio/backend/internal/store"
)

type bookingService interface {
	CreateAppointment(ctx context.Context, in appointments.CreateAppointmentInput) (domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, filter store.ListFilter) ([]domain.Appointment, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, in appointments.UpdateAppointmentInput) (domain.Appointment, error)
	SetPayment(ctx context.Context, id uuid.UUID, paid bool) (domain.Appointment, error)
	SetDescription(ctx context.Context, id uuid.UUID, description string) (domain.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	CreateOverturn(ctx context.Context, in appointments.CreateOverturnInput) (domain.Overturn, error)
	CreateOverturnAt(ctx context.Context, in appointments.CreateAppointmentInput) (domain.Overturn, error)
	GetOverturn(ctx context.Context, id uuid.UUID) (domain.Overturn, error)
	ListOverturns(ctx context.Context, filter store.ListFilter) ([]domain.Overturn, error)
	UpdateOverturn(ctx context.Context, id uuid.UUID, in appointments.UpdateOverturnInput) (domain.Overturn, error)
	UpdateOverturnStatus(ctx context.Context, id uuid.UUID, status *domain.Status, attended *bool) (domain.Overturn, error)
	DeleteOverturn(ctx context.Context, id uuid.UUID) error
}

type availabilityService interface {
	AvailableSlots(ctx context.Context, date string) (availability.DaySlots, error)
	ReservedTimes(ctx context.Context, date string) ([]availability.ReservedTime, error)
	CreationTimes(ctx context.Context, date string) ([]domain.TimeSlot, error)
	AvailableOverturns(ctx context.Context, date string) ([]availability.OverturnSlot, error)
	OverturnAvailable(ctx context.Context, date string, number int) (bool, error)
}

type unavailabilityService interface {
	Create(ctx context.Context, date string, period domain.Period) (domain.UnavailabilityBlock, error)
	List(ctx context.Context, date string) ([]domain.UnavailabilityBlock, error)
	Delete(ctx context.Context, id uuid.UUID) (domain.UnavailabilityBlock, error)
}

type settingsService interface {
	BotEnabled(ctx context.Context) (bool, error)
	SetBotEnabled(ctx context.Context, enabled bool) (bool, error)
}

type calendarService interface {
	Enabled() bool
	Ping(ctx context.Context) error
	SyncDate(ctx context.Context, date string) (calendar.SyncResult, error)
}

type Deps struct {
	Booking        bookingService
	Availability   availabilityService
	Unavailability unavailabilityService
	Settings       settingsService
	Calendar       calendarService
	// Ping checks the store for /healthz.
	Ping func(ctx context.Context) error
}

type Handler struct {
	booking        bookingService
	availability   availabilityService
	unavailability unavailabilityService
	settings       settingsService
	calendar       calendarService
	ping           func(ctx context.Context) error
	log            *slog.Logger
}

func NewHandler(d Deps, log *slog.Logger) *Handler {
	ping := d.Ping
	if ping == nil {
		ping = func(context.Context) error { return nil }
	}
	return &Handler{
		booking:        d.Booking,
		availability:   d.Availability,
		unavailability: d.Unavailability,
		settings:       d.Settings,
		calendar:       d.Calendar,
		ping:           ping,
		log:            log.With(slog.String("component", "http.handler")),
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/available/:date", h.AvailableSlots)
	api.GET("/appointments/reserved/:date", h.ReservedTimes)
	api.GET("/appointments/available-times", h.AvailableTimes)
	api.GET("/appointments/:id", h.GetAppointment)
	api.POST("/appointments", h.CreateAppointment)
	api.PUT("/appointments/:id", h.UpdateAppointment)
	api.PATCH("/appointments/:id/payment", h.SetPayment)
	api.PATCH("/appointments/:id/description", h.SetDescription)
	api.DELETE("/appointments/:id", h.DeleteAppointment)

	api.GET("/sobreturnos/validate", h.ValidateOverturn)
	api.GET("/sobreturnos/available/:date", h.AvailableOverturns)
	api.GET("/sobreturnos", h.ListOverturns)
	api.GET("/sobreturnos/:id", h.GetOverturn)
	api.POST("/sobreturnos", h.CreateOverturn)
	api.PUT("/sobreturnos/:id", h.UpdateOverturn)
	api.PATCH("/sobreturnos/:id/status", h.UpdateOverturnStatus)
	api.DELETE("/sobreturnos/:id", h.DeleteOverturn)

	api.GET("/unavailability", h.ListUnavailability)
	api.POST("/unavailability", h.CreateUnavailability)
	api.DELETE("/unavailability/:id", h.DeleteUnavailability)

	api.GET("/settings/bot", h.GetBotSetting)
	api.PUT("/settings/bot", h.PutBotSetting)

	api.GET("/calendar/status", h.CalendarStatus)
	api.POST("/calendar/sync/:date", h.SyncCalendar)
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func success(c echo.Context, code int, data any) error {
	return c.JSON(code, envelope{Success: true, Data: data})
}

func errorBody(msg string) envelope {
	return envelope{Success: false, Message: msg}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody(msg))
}

// fail maps a service error onto the response. Conflicts on regular
// appointments are reported as 400, elsewhere as 409.
func fail(c echo.Context, log *slog.Logger, err error, conflictStatus int) error {
	switch {
	case service.IsValidation(err):
		log.Warn("invalid request", slog.Any("err", err))
		return badRequest(c, err.Error())
	case service.IsConflict(err):
		log.Info("conflict", slog.Any("err", err))
		return c.JSON(conflictStatus, errorBody(err.Error()))
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody("not found"))
	}
	log.Error("request failed", slog.Any("err", err))
	return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
}

func parseID(c echo.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	return id, err == nil
}

func (h *Handler) Health(c echo.Context) error {
	if err := h.ping(c.Request().Context()); err != nil {
		h.log.Warn("health check failed", slog.Any("err", err))
		return c.JSON(http.StatusServiceUnavailable, errorBody("store unavailable"))
	}
	return success(c, http.StatusOK, map[string]string{"status": "ok"})
}
