package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Exercise is a catalog entry (e.g. "Incline Dumbbell Press") tied to one
// muscle group.
type Exercise struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	MuscleGroupID int64  `json:"muscle_group_id"`
	MuscleGroup   string `json:"muscle_group"`
}

// ExerciseInput carries create/update fields.
type ExerciseInput struct {
	Name          string
	MuscleGroupID int64
}

type ExerciseRepository interface {
	List(ctx context.Context, page, perPage int) ([]Exercise, int, error)
	ListByMuscleGroup(ctx context.Context, muscleGroupID int64) ([]Exercise, error)
	Get(ctx context.Context, id int64) (*Exercise, error)
	FindByName(ctx context.Context, name string) (*Exercise, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, input ExerciseInput) (int64, error)
	Update(ctx context.Context, id int64, input ExerciseInput) error
	Delete(ctx context.Context, id int64) error
}

type PgExerciseRepository struct {
	db *pgxpool.Pool
}

func NewPgExerciseRepository(db *pgxpool.Pool) *PgExerciseRepository {
	return &PgExerciseRepository{db: db}
}

const exerciseSelect = `
SELECT e.id, e.name, e.muscle_group_id, g.name
FROM exercises e
JOIN muscle_groups g ON g.id = e.muscle_group_id
`

func (r *PgExerciseRepository) List(ctx context.Context, page, perPage int) ([]Exercise, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	const countQ = `SELECT COUNT(*) FROM exercises`
	var total int
	if err := r.db.QueryRow(ctx, countQ).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, exerciseSelect+`ORDER BY g.name, e.name, e.id LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]Exercise, 0, perPage)
	for rows.Next() {
		var e Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.MuscleGroupID, &e.MuscleGroup); err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *PgExerciseRepository) ListByMuscleGroup(ctx context.Context, muscleGroupID int64) ([]Exercise, error) {
	rows, err := r.db.Query(ctx, exerciseSelect+`WHERE e.muscle_group_id=$1 ORDER BY e.name, e.id`, muscleGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Exercise
	for rows.Next() {
		var e Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.MuscleGroupID, &e.MuscleGroup); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *PgExerciseRepository) Get(ctx context.Context, id int64) (*Exercise, error) {
	var e Exercise
	if err := r.db.QueryRow(ctx, exerciseSelect+`WHERE e.id=$1`, id).Scan(&e.ID, &e.Name, &e.MuscleGroupID, &e.MuscleGroup); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PgExerciseRepository) FindByName(ctx context.Context, name string) (*Exercise, error) {
	var e Exercise
	if err := r.db.QueryRow(ctx, exerciseSelect+`WHERE e.name=$1`, name).Scan(&e.ID, &e.Name, &e.MuscleGroupID, &e.MuscleGroup); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PgExerciseRepository) Exists(ctx context.Context, id int64) (bool, error) {
	const q = `SELECT 1 FROM exercises WHERE id=$1`
	var one int
	if err := r.db.QueryRow(ctx, q, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PgExerciseRepository) Create(ctx context.Context, input ExerciseInput) (int64, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.MuscleGroupID <= 0 {
		return 0, errors.New("name and muscle_group_id are required")
	}
	const q = `INSERT INTO exercises (name, muscle_group_id) VALUES ($1,$2) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, name, input.MuscleGroupID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgExerciseRepository) Update(ctx context.Context, id int64, input ExerciseInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.MuscleGroupID <= 0 {
		return errors.New("name and muscle_group_id are required")
	}
	const q = `UPDATE exercises SET name=$1, muscle_group_id=$2 WHERE id=$3`
	tag, err := r.db.Exec(ctx, q, name, input.MuscleGroupID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgExerciseRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM exercises WHERE id=$1`
	_, err := r.db.Exec(ctx, q, id)
	return err
}
