package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/store"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("CONSULTORIO_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("CONSULTORIO_TEST_DATABASE_URL not set")
	}

	// One connection keeps the session search_path for the whole test.
	db, err := Open(context.Background(), databaseURL, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	schema := "consultorio_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
		_ = Close(db)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if _, err := db.NewRaw("SET search_path TO " + schema).Exec(ctx); err != nil {
		t.Fatalf("set search_path: %v", err)
	}
	applied, err := Migrate(ctx, db)
	if err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	if len(applied) == 0 {
		t.Fatalf("expected migrations to be applied")
	}
	again, err := Migrate(ctx, db)
	if err != nil {
		t.Fatalf("second Migrate error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second Migrate applied %v, want nothing", again)
	}
	return db
}

func TestPostgresIntegration_AppointmentSlotIsExclusive(t *testing.T) {
	db := openTestDB(t)
	repo := NewAppointmentRepo(db)
	ctx := context.Background()

	first, err := repo.Create(ctx, domain.Appointment{
		ClientName: "Ana",
		SocialWork: domain.SocialWorkOSDE,
		Phone:      "111",
		Date:       "2025-05-22",
		Time:       "10:00",
		Status:     domain.StatusConfirmed,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err = repo.Create(ctx, domain.Appointment{
		ClientName: "Beto",
		SocialWork: domain.SocialWorkParticular,
		Phone:      "222",
		Date:       "2025-05-22",
		Time:       "10:00",
		Status:     domain.StatusConfirmed,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second Create err = %v, want %v", err, store.ErrConflict)
	}

	first.Status = domain.StatusCancelled
	if _, err := repo.Update(ctx, first); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if _, err := repo.Create(ctx, domain.Appointment{
		ClientName: "Beto",
		SocialWork: domain.SocialWorkParticular,
		Phone:      "222",
		Date:       "2025-05-22",
		Time:       "10:00",
		Status:     domain.StatusConfirmed,
	}); err != nil {
		t.Fatalf("Create after cancel error: %v", err)
	}

	active, err := repo.ListActiveByDate(ctx, "2025-05-22")
	if err != nil {
		t.Fatalf("ListActiveByDate error: %v", err)
	}
	if len(active) != 1 || active[0].ClientName != "Beto" {
		t.Fatalf("active = %+v, want only Beto", active)
	}

	if err := repo.SetExternalEventID(ctx, active[0].ID, "evt-1"); err != nil {
		t.Fatalf("SetExternalEventID error: %v", err)
	}
	ok, err := repo.ExistsExternalEvent(ctx, "evt-1")
	if err != nil || !ok {
		t.Fatalf("ExistsExternalEvent = %v, %v; want true", ok, err)
	}
}

func TestPostgresIntegration_ConcurrentOverturnBookingsHaveOneWinner(t *testing.T) {
	db := openTestDB(t)
	repo := NewOverturnRepo(db)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(ctx, domain.Overturn{
				Number:     3,
				ClientName: "Paciente",
				SocialWork: domain.SocialWorkParticular,
				Phone:      "333",
				Date:       "2025-05-22",
				Time:       "11:30",
				Status:     domain.StatusConfirmed,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("successful inserts = %d, want 1", wins)
	}
}

func TestPostgresIntegration_UnavailabilityAndSettings(t *testing.T) {
	db := openTestDB(t)
	blocks := NewUnavailabilityRepo(db)
	settings := NewSettingsRepo(db)
	ctx := context.Background()

	b, err := blocks.Create(ctx, domain.UnavailabilityBlock{Date: "2025-05-22", Period: domain.PeriodMorning})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := blocks.Create(ctx, domain.UnavailabilityBlock{Date: "2025-05-22", Period: domain.PeriodMorning}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate block err = %v, want %v", err, store.ErrConflict)
	}
	deleted, err := blocks.Delete(ctx, b.ID)
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if deleted.Period != domain.PeriodMorning {
		t.Fatalf("deleted period = %q, want morning", deleted.Period)
	}
	if _, err := blocks.Delete(ctx, b.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second Delete err = %v, want %v", err, store.ErrNotFound)
	}

	if _, err := settings.Get(ctx, domain.SettingBotEnabled); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get err = %v, want %v", err, store.ErrNotFound)
	}
	if _, err := settings.Put(ctx, domain.SettingBotEnabled, "false"); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if _, err := settings.Put(ctx, domain.SettingBotEnabled, "true"); err != nil {
		t.Fatalf("second Put error: %v", err)
	}
	got, err := settings.Get(ctx, domain.SettingBotEnabled)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Value != "true" {
		t.Fatalf("value = %q, want %q", got.Value, "true")
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}
