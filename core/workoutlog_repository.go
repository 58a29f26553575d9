package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WorkoutSet is one set within a logged exercise (weight in kg).
type WorkoutSet struct {
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
}

// WorkoutLog is one logged exercise session with its sets.
type WorkoutLog struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	ExerciseID  int64        `json:"exercise_id"`
	Exercise    string       `json:"exercise"`
	MuscleGroup string       `json:"muscle_group"`
	Failed      bool         `json:"failed"`
	PerformedAt time.Time    `json:"performed_at"`
	Sets        []WorkoutSet `json:"sets"`
}

// WorkoutLogInput carries fields for creating one log entry.
type WorkoutLogInput struct {
	ExerciseID  int64
	Failed      bool
	PerformedAt time.Time
	Sets        []WorkoutSet
}

type WorkoutLogRepository interface {
	ListByUser(ctx context.Context, userID int64, page, perPage int) ([]WorkoutLog, int, error)
	Get(ctx context.Context, id int64) (*WorkoutLog, error)
	CreateBatch(ctx context.Context, userID int64, inputs []WorkoutLogInput) ([]int64, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

// PgWorkoutLogRepository is a pgx implementation.
// NOTE: Expects tables `workout_logs` and `workout_sets` to exist.
type PgWorkoutLogRepository struct {
	db *pgxpool.Pool
}

func NewPgWorkoutLogRepository(db *pgxpool.Pool) *PgWorkoutLogRepository {
	return &PgWorkoutLogRepository{db: db}
}

func (r *PgWorkoutLogRepository) ListByUser(ctx context.Context, userID int64, page, perPage int) ([]WorkoutLog, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	const countQ = `SELECT COUNT(*) FROM workout_logs WHERE user_id=$1`
	var total int
	if err := r.db.QueryRow(ctx, countQ, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
SELECT l.id, l.user_id, l.exercise_id, e.name, g.name, l.failed, l.performed_at
FROM workout_logs l
JOIN exercises e ON e.id = l.exercise_id
JOIN muscle_groups g ON g.id = e.muscle_group_id
WHERE l.user_id=$1
ORDER BY l.performed_at DESC, l.id DESC
LIMIT $2 OFFSET $3
`, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := make([]WorkoutLog, 0, perPage)
	ids := make([]int64, 0, perPage)
	for rows.Next() {
		var l WorkoutLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.ExerciseID, &l.Exercise, &l.MuscleGroup, &l.Failed, &l.PerformedAt); err != nil {
			return nil, 0, err
		}
		logs = append(logs, l)
		ids = append(ids, l.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachSets(ctx, logs, ids); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *PgWorkoutLogRepository) Get(ctx context.Context, id int64) (*WorkoutLog, error) {
	const q = `
SELECT l.id, l.user_id, l.exercise_id, e.name, g.name, l.failed, l.performed_at
FROM workout_logs l
JOIN exercises e ON e.id = l.exercise_id
JOIN muscle_groups g ON g.id = e.muscle_group_id
WHERE l.id=$1`
	var l WorkoutLog
	if err := r.db.QueryRow(ctx, q, id).Scan(&l.ID, &l.UserID, &l.ExerciseID, &l.Exercise, &l.MuscleGroup, &l.Failed, &l.PerformedAt); err != nil {
		return nil, err
	}
	logs := []WorkoutLog{l}
	if err := r.attachSets(ctx, logs, []int64{l.ID}); err != nil {
		return nil, err
	}
	return &logs[0], nil
}

// CreateBatch inserts the given log entries and their sets in one
// transaction; either all entries land or none do.
func (r *PgWorkoutLogRepository) CreateBatch(ctx context.Context, userID int64, inputs []WorkoutLogInput) ([]int64, error) {
	if len(inputs) == 0 {
		return nil, errors.New("at least one log entry is required")
	}
	for _, in := range inputs {
		if in.ExerciseID <= 0 {
			return nil, errors.New("exercise_id is required")
		}
		if len(in.Sets) == 0 {
			return nil, errors.New("at least one set is required")
		}
		for _, s := range in.Sets {
			if s.Reps <= 0 || s.Weight < 0 {
				return nil, errors.New("sets need reps > 0 and weight >= 0")
			}
		}
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		performedAt := in.PerformedAt
		if performedAt.IsZero() {
			performedAt = time.Now()
		}
		var logID int64
		if err := tx.QueryRow(ctx, `
INSERT INTO workout_logs (user_id, exercise_id, failed, performed_at)
VALUES ($1,$2,$3,$4) RETURNING id`,
			userID, in.ExerciseID, in.Failed, performedAt).Scan(&logID); err != nil {
			return nil, err
		}
		for i, s := range in.Sets {
			if _, err := tx.Exec(ctx, `
INSERT INTO workout_sets (workout_log_id, set_no, weight, reps)
VALUES ($1,$2,$3,$4)`,
				logID, i+1, s.Weight, s.Reps); err != nil {
				return nil, err
			}
		}
		ids = append(ids, logID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PgWorkoutLogRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM workout_logs WHERE user_id=$1`
	var n int
	if err := r.db.QueryRow(ctx, q, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgWorkoutLogRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM workout_sets WHERE workout_log_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM workout_logs WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// attachSets loads sets for the given log IDs and fills them into logs
// (ordered by set_no).
func (r *PgWorkoutLogRepository) attachSets(ctx context.Context, logs []WorkoutLog, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.db.Query(ctx, `
SELECT workout_log_id, weight, reps
FROM workout_sets
WHERE workout_log_id = ANY($1)
ORDER BY workout_log_id, set_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byLog := map[int64][]WorkoutSet{}
	for rows.Next() {
		var logID int64
		var s WorkoutSet
		if err := rows.Scan(&logID, &s.Weight, &s.Reps); err != nil {
			return err
		}
		byLog[logID] = append(byLog[logID], s)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range logs {
		logs[i].Sets = byLog[logs[i].ID]
	}
	return nil
}
