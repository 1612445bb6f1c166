package repository

import (
	"context"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

type technicianRepository struct {
	db DBTX
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(db DBTX) TechnicianRepository {
	return &technicianRepository{db: db}
}

func (r *technicianRepository) Create(ctx context.Context, technician *domain.Technician) error {
	const query = `
        INSERT INTO technicians (name, active)
        VALUES ($1,$2)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query, technician.Name, technician.Active).
		Scan(&technician.ID, &technician.CreatedAt)
	return translateError(err)
}

func (r *technicianRepository) GetByID(ctx context.Context, id int64) (*domain.Technician, error) {
	const query = `SELECT id, name, active, created_at FROM technicians WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *technicianRepository) GetForShare(ctx context.Context, id int64) (*domain.Technician, error) {
	const query = `SELECT id, name, active, created_at FROM technicians WHERE id=$1 FOR SHARE`
	return r.fetchSingle(ctx, query, id)
}

func (r *technicianRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Technician, error) {
	var technician domain.Technician
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&technician.ID,
		&technician.Name,
		&technician.Active,
		&technician.CreatedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return &technician, nil
}

func (r *technicianRepository) List(ctx context.Context) ([]domain.Technician, error) {
	const query = `SELECT id, name, active, created_at FROM technicians ORDER BY id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	result := []domain.Technician{}
	for rows.Next() {
		var technician domain.Technician
		if err := rows.Scan(
			&technician.ID,
			&technician.Name,
			&technician.Active,
			&technician.CreatedAt,
		); err != nil {
			return nil, translateError(err)
		}
		result = append(result, technician)
	}
	return result, translateError(rows.Err())
}

func (r *technicianRepository) SetActive(ctx context.Context, id int64, active bool) (*domain.Technician, error) {
	const query = `
        UPDATE technicians SET active=$1
        WHERE id=$2
        RETURNING id, name, active, created_at`
	return r.fetchSingle(ctx, query, active, id)
}

func (r *technicianRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM technicians WHERE id=$1`, id)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
