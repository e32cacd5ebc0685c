// Package settings keeps process-wide switches in the store so every server
// instance sees the same value.
package settings

import (
	"context"
	"errors"
	"strconv"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/store"
)

type Service struct {
	repo store.SettingsRepository
}

func NewService(repo store.SettingsRepository) *Service {
	return &Service{repo: repo}
}

// BotEnabled reports whether the chatbot should answer patients. It defaults
// to true until staff turn it off.
func (s *Service) BotEnabled(ctx context.Context) (bool, error) {
	setting, err := s.repo.Get(ctx, domain.SettingBotEnabled)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	enabled, err := strconv.ParseBool(setting.Value)
	if err != nil {
		return true, nil
	}
	return enabled, nil
}

func (s *Service) SetBotEnabled(ctx context.Context, enabled bool) (bool, error) {
	if _, err := s.repo.Put(ctx, domain.SettingBotEnabled, strconv.FormatBool(enabled)); err != nil {
		return false, err
	}
	return enabled, nil
}
