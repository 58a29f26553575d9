package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MuscleGroup is master data referenced by exercises.
type MuscleGroup struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type MuscleGroupRepository interface {
	List(ctx context.Context, page, perPage int) ([]MuscleGroup, int, error)
	Get(ctx context.Context, id int64) (*MuscleGroup, error)
	FindByName(ctx context.Context, name string) (*MuscleGroup, error)
	Create(ctx context.Context, name, description string) (*MuscleGroup, error)
	Update(ctx context.Context, id int64, name, description string) (*MuscleGroup, error)
	Delete(ctx context.Context, id int64) error
}

type PgMuscleGroupRepository struct {
	db *pgxpool.Pool
}

func NewPgMuscleGroupRepository(db *pgxpool.Pool) *PgMuscleGroupRepository {
	return &PgMuscleGroupRepository{db: db}
}

func (r *PgMuscleGroupRepository) List(ctx context.Context, page, perPage int) ([]MuscleGroup, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	const countQ = `SELECT COUNT(*) FROM muscle_groups`
	var total int
	if err := r.db.QueryRow(ctx, countQ).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `
SELECT id, name, COALESCE(description, '')
FROM muscle_groups
ORDER BY name, id
LIMIT $1 OFFSET $2
`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]MuscleGroup, 0, perPage)
	for rows.Next() {
		var g MuscleGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Description); err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

func (r *PgMuscleGroupRepository) Get(ctx context.Context, id int64) (*MuscleGroup, error) {
	const q = `SELECT id, name, COALESCE(description, '') FROM muscle_groups WHERE id=$1`
	var g MuscleGroup
	if err := r.db.QueryRow(ctx, q, id).Scan(&g.ID, &g.Name, &g.Description); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *PgMuscleGroupRepository) FindByName(ctx context.Context, name string) (*MuscleGroup, error) {
	const q = `SELECT id, name, COALESCE(description, '') FROM muscle_groups WHERE name=$1`
	var g MuscleGroup
	if err := r.db.QueryRow(ctx, q, name).Scan(&g.ID, &g.Name, &g.Description); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *PgMuscleGroupRepository) Create(ctx context.Context, name, description string) (*MuscleGroup, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	const q = `INSERT INTO muscle_groups (name, description) VALUES ($1,$2) RETURNING id`
	var g MuscleGroup
	if err := r.db.QueryRow(ctx, q, name, description).Scan(&g.ID); err != nil {
		return nil, err
	}
	g.Name = name
	g.Description = description
	return &g, nil
}

func (r *PgMuscleGroupRepository) Update(ctx context.Context, id int64, name, description string) (*MuscleGroup, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	const q = `UPDATE muscle_groups SET name=$1, description=$2 WHERE id=$3 RETURNING id`
	var g MuscleGroup
	if err := r.db.QueryRow(ctx, q, name, description, id).Scan(&g.ID); err != nil {
		return nil, err
	}
	g.Name = name
	g.Description = description
	return &g, nil
}

func (r *PgMuscleGroupRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM muscle_groups WHERE id=$1`
	_, err := r.db.Exec(ctx, q, id)
	return err
}
