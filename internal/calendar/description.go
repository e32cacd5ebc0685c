package calendar

import (
	"strconv"
	"strings"

	"consultorio/backend/internal/domain"
)

const (
	summaryPrefix = "Consulta médica - "
	unnamedClient = "Sin nombre"
)

// Metadata keys written to the event's private extended properties.
const (
	metaKind       = "kind"
	metaClientName = "clientName"
	metaSocialWork = "socialWork"
	metaPhone      = "phone"
	metaEmail      = "email"
	metaNumber     = "sobreturnoNumber"
)

func Summary(clientName string) string {
	return summaryPrefix + clientName
}

func FormatDescription(r domain.Reservation) string {
	var b strings.Builder
	b.WriteString("Paciente: " + r.ClientName + "\n")
	b.WriteString("Obra Social: " + string(r.SocialWork) + "\n")
	b.WriteString("Teléfono: " + r.Phone + "\n")
	b.WriteString("Email: " + r.Email)
	if d := strings.TrimSpace(r.Description); d != "" {
		b.WriteString("\n\n" + d)
	}
	return b.String()
}

// Details are the patient fields recovered from an external event.
type Details struct {
	ClientName string
	SocialWork domain.SocialWork
	Phone      string
	Email      string
}

var descriptionFields = []struct {
	prefixes []string
	set      func(*Details, string)
}{
	{[]string{"Paciente:"}, func(d *Details, v string) { d.ClientName = v }},
	{[]string{"Obra Social:"}, func(d *Details, v string) { d.SocialWork = domain.SocialWork(v) }},
	{[]string{"Teléfono:", "Telefono:"}, func(d *Details, v string) { d.Phone = v }},
	{[]string{"Email:"}, func(d *Details, v string) { d.Email = v }},
}

// ParseDescription extracts line-prefixed fields from a free-text
// description. Unknown lines are ignored and the first occurrence of a field
// wins.
func ParseDescription(text string) Details {
	var d Details
	seen := make([]bool, len(descriptionFields))
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		for i, f := range descriptionFields {
			if seen[i] {
				continue
			}
			for _, p := range f.prefixes {
				if len(line) >= len(p) && strings.EqualFold(line[:len(p)], p) {
					f.set(&d, strings.TrimSpace(line[len(p):]))
					seen[i] = true
					break
				}
			}
		}
	}
	return d
}

// EventDetails resolves patient fields for an inbound event. Structured
// metadata wins; the description text and then the summary are fallbacks.
func EventDetails(ev Event) Details {
	d := ParseDescription(ev.Description)
	if v := ev.Metadata[metaClientName]; v != "" {
		d.ClientName = v
	}
	if v := ev.Metadata[metaSocialWork]; v != "" {
		d.SocialWork = domain.SocialWork(v)
	}
	if v := ev.Metadata[metaPhone]; v != "" {
		d.Phone = v
	}
	if v := ev.Metadata[metaEmail]; v != "" {
		d.Email = v
	}

	if d.ClientName == "" {
		d.ClientName = strings.TrimSpace(strings.TrimPrefix(ev.Summary, summaryPrefix))
	}
	if d.ClientName == "" {
		d.ClientName = unnamedClient
	}
	if sw, ok := domain.ParseSocialWork(string(d.SocialWork)); ok {
		d.SocialWork = sw
	} else {
		d.SocialWork = domain.SocialWorkParticular
	}
	return d
}

func reservationMetadata(r domain.Reservation) map[string]string {
	m := map[string]string{
		metaKind:       string(r.Kind),
		metaClientName: r.ClientName,
		metaSocialWork: string(r.SocialWork),
		metaPhone:      r.Phone,
	}
	if r.Email != "" {
		m[metaEmail] = r.Email
	}
	if r.Kind == domain.KindOverturn {
		m[metaNumber] = strconv.Itoa(r.Number)
	}
	return m
}
