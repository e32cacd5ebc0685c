package domain

import "testing"

func TestApplyAttendance(t *testing.T) {
	confirmed := StatusConfirmed
	cancelled := StatusCancelled
	pending := StatusPending
	yes := true
	no := false

	tests := []struct {
		name     string
		cur      Attendance
		status   *Status
		attended *bool
		want     Attendance
	}{
		{
			name:     "attended forces confirmed",
			cur:      Attendance{Status: StatusPending},
			attended: &yes,
			want:     Attendance{Status: StatusConfirmed, Attended: true},
		},
		{
			name:   "confirmed forces attended",
			cur:    Attendance{Status: StatusPending},
			status: &confirmed,
			want:   Attendance{Status: StatusConfirmed, Attended: true},
		},
		{
			name:     "confirmed wins over attended=false in the same change",
			cur:      Attendance{Status: StatusPending},
			status:   &confirmed,
			attended: &no,
			want:     Attendance{Status: StatusConfirmed, Attended: true},
		},
		{
			name:   "cancel keeps attended flag",
			cur:    Attendance{Status: StatusConfirmed, Attended: true},
			status: &cancelled,
			want:   Attendance{Status: StatusCancelled, Attended: true},
		},
		{
			name:     "clearing attended leaves status alone",
			cur:      Attendance{Status: StatusConfirmed, Attended: true},
			attended: &no,
			want:     Attendance{Status: StatusConfirmed, Attended: false},
		},
		{
			name:   "back to pending clears attended",
			cur:    Attendance{Status: StatusConfirmed, Attended: true},
			status: &pending,
			want:   Attendance{Status: StatusPending},
		},
		{
			name:     "attended=true overrides pending in the same change",
			cur:      Attendance{Status: StatusConfirmed, Attended: true},
			status:   &pending,
			attended: &yes,
			want:     Attendance{Status: StatusConfirmed, Attended: true},
		},
		{
			name: "no change",
			cur:  Attendance{Status: StatusConfirmed, Attended: true},
			want: Attendance{Status: StatusConfirmed, Attended: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyAttendance(tt.cur, tt.status, tt.attended)
			if got != tt.want {
				t.Fatalf("ApplyAttendance = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseSocialWork(t *testing.T) {
	tests := []struct {
		in     string
		want   SocialWork
		wantOK bool
	}{
		{in: "", want: SocialWorkParticular, wantOK: true},
		{in: "osde", want: SocialWorkOSDE, wantOK: true},
		{in: " Swiss Medical ", want: SocialWorkSwissMedical, wantOK: true},
		{in: "consulta particular", want: SocialWorkParticular, wantOK: true},
		{in: "PAMI", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := ParseSocialWork(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("ParseSocialWork(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPeriodCovers(t *testing.T) {
	if !PeriodFull.Covers(PeriodMorning) || !PeriodFull.Covers(PeriodAfternoon) {
		t.Fatalf("full block must cover both halves")
	}
	if PeriodMorning.Covers(PeriodAfternoon) {
		t.Fatalf("morning block must not cover afternoon")
	}
	if !PeriodAfternoon.Covers(PeriodAfternoon) {
		t.Fatalf("afternoon block must cover afternoon")
	}
}
