package settings

import (
	"context"
	"errors"
	"testing"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/store"
	"consultorio/backend/internal/store/memory"
)

type fakeRepo struct {
	getFn func(ctx context.Context, key string) (domain.Setting, error)
	putFn func(ctx context.Context, key, value string) (domain.Setting, error)
}

func (f *fakeRepo) Get(ctx context.Context, key string) (domain.Setting, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, key)
}

func (f *fakeRepo) Put(ctx context.Context, key, value string) (domain.Setting, error) {
	if f.putFn == nil {
		panic("Put not configured")
	}
	return f.putFn(ctx, key, value)
}

func TestBotEnabled_DefaultsToTrueAndPersists(t *testing.T) {
	svc := NewService(memory.New().Store().Settings)
	ctx := context.Background()

	enabled, err := svc.BotEnabled(ctx)
	if err != nil || !enabled {
		t.Fatalf("BotEnabled() = %v, %v; want true", enabled, err)
	}
	if _, err := svc.SetBotEnabled(ctx, false); err != nil {
		t.Fatalf("SetBotEnabled error: %v", err)
	}
	enabled, err = svc.BotEnabled(ctx)
	if err != nil || enabled {
		t.Fatalf("BotEnabled() = %v, %v; want false", enabled, err)
	}
}

func TestBotEnabled_Errors(t *testing.T) {
	boom := errors.New("connection refused")
	svc := NewService(&fakeRepo{
		getFn: func(ctx context.Context, key string) (domain.Setting, error) {
			if key != domain.SettingBotEnabled {
				t.Fatalf("key = %q", key)
			}
			return domain.Setting{}, boom
		},
	})
	if _, err := svc.BotEnabled(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	svc = NewService(&fakeRepo{
		getFn: func(ctx context.Context, key string) (domain.Setting, error) {
			return domain.Setting{Key: key, Value: "garbage"}, nil
		},
	})
	if enabled, err := svc.BotEnabled(context.Background()); err != nil || !enabled {
		t.Fatalf("unparseable value = %v, %v; want true", enabled, err)
	}

	svc = NewService(&fakeRepo{
		putFn: func(ctx context.Context, key, value string) (domain.Setting, error) {
			return domain.Setting{}, store.ErrConflict
		},
	})
	if _, err := svc.SetBotEnabled(context.Background(), true); err == nil {
		t.Fatalf("SetBotEnabled error = nil, want error")
	}
}
