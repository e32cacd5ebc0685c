package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"consultorio/backend/internal/domain"
	"consultorio/backend/internal/store"
)

type OverturnRepo struct {
	db bun.IDB
}

func NewOverturnRepo(db bun.IDB) *OverturnRepo {
	return &OverturnRepo{db: db}
}

// Create relies on overturns_active_number_key: one active overturn per
// (date, number).
func (r *OverturnRepo) Create(ctx context.Context, o domain.Overturn) (domain.Overturn, error) {
	m := o
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Overturn{}, translateWriteErr(err)
	}
	return m, nil
}

func (r *OverturnRepo) Get(ctx context.Context, id uuid.UUID) (domain.Overturn, error) {
	var out domain.Overturn
	err := r.db.NewSelect().
		Model(&out).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Overturn{}, translateReadErr(err)
	}
	return out, nil
}

func (r *OverturnRepo) List(ctx context.Context, filter store.ListFilter) ([]domain.Overturn, error) {
	rows := make([]domain.Overturn, 0)
	q := r.db.NewSelect().Model(&rows)
	if filter.Date != "" {
		q = q.Where("date = ?", filter.Date)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if err := q.OrderExpr("date ASC, overturn_number ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OverturnRepo) ListActiveByDate(ctx context.Context, date string) ([]domain.Overturn, error) {
	rows := make([]domain.Overturn, 0)
	err := r.db.NewSelect().
		Model(&rows).
		Where("date = ?", date).
		Where("status <> ?", domain.StatusCancelled).
		OrderExpr("overturn_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OverturnRepo) ExistsAt(ctx context.Context, date, clock string) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Overturn)(nil)).
		Where("date = ?", date).
		Where("time = ?", clock).
		Where("status <> ?", domain.StatusCancelled).
		Exists(ctx)
}

func (r *OverturnRepo) ExistsExternalEvent(ctx context.Context, eventID string) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Overturn)(nil)).
		Where("external_event_id = ?", eventID).
		Exists(ctx)
}

func (r *OverturnRepo) Update(ctx context.Context, o domain.Overturn) (domain.Overturn, error) {
	m := o
	res, err := r.db.NewUpdate().
		Model(&m).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Overturn{}, translateWriteErr(err)
	}
	if err := requireAffected(res); err != nil {
		return domain.Overturn{}, err
	}
	return m, nil
}

func (r *OverturnRepo) SetExternalEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Overturn)(nil)).
		Set("external_event_id = ?", eventID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *OverturnRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Overturn)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
