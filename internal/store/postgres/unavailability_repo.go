package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"consultorio/backend/internal/domain"
)

type UnavailabilityRepo struct {
	db bun.IDB
}

func NewUnavailabilityRepo(db bun.IDB) *UnavailabilityRepo {
	return &UnavailabilityRepo{db: db}
}

func (r *UnavailabilityRepo) Create(ctx context.Context, b domain.UnavailabilityBlock) (domain.UnavailabilityBlock, error) {
	m := b
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.UnavailabilityBlock{}, translateWriteErr(err)
	}
	return m, nil
}

func (r *UnavailabilityRepo) List(ctx context.Context, date string) ([]domain.UnavailabilityBlock, error) {
	rows := make([]domain.UnavailabilityBlock, 0)
	q := r.db.NewSelect().Model(&rows)
	if date != "" {
		q = q.Where("date = ?", date)
	}
	if err := q.OrderExpr("date ASC, period ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *UnavailabilityRepo) Delete(ctx context.Context, id uuid.UUID) (domain.UnavailabilityBlock, error) {
	var out domain.UnavailabilityBlock
	err := r.db.NewDelete().
		Model(&out).
		Where("id = ?", id).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return domain.UnavailabilityBlock{}, translateReadErr(err)
	}
	return out, nil
}

type SettingsRepo struct {
	db bun.IDB
}

func NewSettingsRepo(db bun.IDB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Get(ctx context.Context, key string) (domain.Setting, error) {
	var out domain.Setting
	err := r.db.NewSelect().
		Model(&out).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Setting{}, translateReadErr(err)
	}
	return out, nil
}

func (r *SettingsRepo) Put(ctx context.Context, key, value string) (domain.Setting, error) {
	m := domain.Setting{Key: key, Value: value}
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return domain.Setting{}, err
	}
	return m, nil
}
