package httpapi

import (
	"strings"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/service/appointments"
)

// Request bodies are bound into these types and checked for shape before
// any service call. Business rules stay in the services.

type createAppointmentRequest struct {
	ClientName   string `json:"clientName"`
	SocialWork   string `json:"socialWork"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Description  string `json:"description"`
	IsSobreturno bool   `json:"isSobreturno"`
}

func (r createAppointmentRequest) validate() string {
	return missing(map[string]string{
		"clientName": r.ClientName,
		"phone":      r.Phone,
		"date":       r.Date,
		"time":       r.Time,
	}, "clientName", "phone", "date", "time")
}

func (r createAppointmentRequest) input() appointments.CreateAppointmentInput {
	return appointments.CreateAppointmentInput{
		ClientName:  r.ClientName,
		SocialWork:  r.SocialWork,
		Phone:       r.Phone,
		Email:       r.Email,
		Date:        r.Date,
		Time:        r.Time,
		Description: r.Description,
	}
}

type updateAppointmentRequest struct {
	ClientName  *string `json:"clientName"`
	SocialWork  *string `json:"socialWork"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Attended    *bool   `json:"attended"`
	IsPaid      *bool   `json:"isPaid"`
}

func (r updateAppointmentRequest) validate() string {
	if r.ClientName == nil && r.SocialWork == nil && r.Phone == nil && r.Email == nil &&
		r.Date == nil && r.Time == nil && r.Description == nil && r.Status == nil &&
		r.Attended == nil && r.IsPaid == nil {
		return "at least one field is required"
	}
	return ""
}

func (r updateAppointmentRequest) input() appointments.UpdateAppointmentInput {
	return appointments.UpdateAppointmentInput{
		ClientName:  r.ClientName,
		SocialWork:  r.SocialWork,
		Phone:       r.Phone,
		Email:       r.Email,
		Date:        r.Date,
		Time:        r.Time,
		Description: r.Description,
		Status:      statusPtr(r.Status),
		Attended:    r.Attended,
		IsPaid:      r.IsPaid,
	}
}

type paymentRequest struct {
	IsPaid *bool `json:"isPaid"`
}

type descriptionRequest struct {
	Description *string `json:"description"`
}

type createOverturnRequest struct {
	Number      *int   `json:"sobreturnoNumber"`
	Date        string `json:"date"`
	ClientName  string `json:"clientName"`
	SocialWork  string `json:"socialWork"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Description string `json:"description"`
}

func (r createOverturnRequest) validate() string {
	if r.Number == nil {
		return "sobreturnoNumber is required"
	}
	return missing(map[string]string{
		"date":       r.Date,
		"clientName": r.ClientName,
		"phone":      r.Phone,
	}, "date", "clientName", "phone")
}

func (r createOverturnRequest) input() appointments.CreateOverturnInput {
	return appointments.CreateOverturnInput{
		Number:      *r.Number,
		Date:        r.Date,
		ClientName:  r.ClientName,
		SocialWork:  r.SocialWork,
		Phone:       r.Phone,
		Email:       r.Email,
		Description: r.Description,
	}
}

type updateOverturnRequest struct {
	ClientName  *string `json:"clientName"`
	SocialWork  *string `json:"socialWork"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Attended    *bool   `json:"attended"`
	IsPaid      *bool   `json:"isPaid"`
}

func (r updateOverturnRequest) validate() string {
	if r.ClientName == nil && r.SocialWork == nil && r.Phone == nil && r.Email == nil &&
		r.Description == nil && r.Status == nil && r.Attended == nil && r.IsPaid == nil {
		return "at least one field is required"
	}
	return ""
}

func (r updateOverturnRequest) input() appointments.UpdateOverturnInput {
	return appointments.UpdateOverturnInput{
		ClientName:  r.ClientName,
		SocialWork:  r.SocialWork,
		Phone:       r.Phone,
		Email:       r.Email,
		Description: r.Description,
		Status:      statusPtr(r.Status),
		Attended:    r.Attended,
		IsPaid:      r.IsPaid,
	}
}

type overturnStatusRequest struct {
	Status   *string `json:"status"`
	Attended *bool   `json:"attended"`
}

type unavailabilityRequest struct {
	Date   string `json:"date"`
	Period string `json:"period"`
}

func (r unavailabilityRequest) validate() string {
	return missing(map[string]string{"date": r.Date, "period": r.Period}, "date", "period")
}

type botSettingRequest struct {
	Enabled *bool `json:"enabled"`
}

func missing(fields map[string]string, order ...string) string {
	for _, name := range order {
		if strings.TrimSpace(fields[name]) == "" {
			return name + " is required"
		}
	}
	return ""
}

func statusPtr(s *string) *domain.Status {
	if s == nil {
		return nil
	}
	st := domain.Status(strings.ToLower(strings.TrimSpace(*s)))
	return &st
}
