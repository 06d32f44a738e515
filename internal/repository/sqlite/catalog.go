package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/msomdec/gymtrack/internal/domain"
)

// CatalogRepository implements domain.CatalogRepository using SQLite.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new SQLite-backed CatalogRepository.
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db.SqlDB}
}

// Load returns the full reference data set.
func (r *CatalogRepository) Load(ctx context.Context) (*domain.Catalog, error) {
	var c domain.Catalog

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, muscle_group, type, equipment_level, created_at FROM exercises ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	for rows.Next() {
		var e domain.Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.MuscleGroup, &e.Type, &e.EquipmentLevel, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		c.Exercises = append(c.Exercises, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}

	rows, err = r.db.QueryContext(ctx,
		"SELECT id, name, muscle_group1, muscle_group2, created_at FROM exercise_groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list exercise groups: %w", err)
	}
	for rows.Next() {
		var g domain.ExerciseGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.MuscleGroup1, &g.MuscleGroup2, &g.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan exercise group: %w", err)
		}
		c.ExerciseGroups = append(c.ExerciseGroups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exercise groups: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, "SELECT day_number, workout_id FROM schedule ORDER BY day_number")
	if err != nil {
		return nil, fmt.Errorf("list schedule: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d domain.ScheduleDay
		if err := rows.Scan(&d.DayNumber, &d.WorkoutID); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		c.Schedule = append(c.Schedule, d)
	}
	return &c, rows.Err()
}

// Seed upserts the catalog by id. Running it twice leaves one copy.
func (r *CatalogRepository) Seed(ctx context.Context, c domain.Catalog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, g := range c.ExerciseGroups {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO exercise_groups (id, name, muscle_group1, muscle_group2) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			 muscle_group1 = excluded.muscle_group1, muscle_group2 = excluded.muscle_group2`,
			g.ID, g.Name, g.MuscleGroup1, g.MuscleGroup2)
		if err != nil {
			return fmt.Errorf("seed exercise group %d: %w", g.ID, err)
		}
	}

	for _, e := range c.Exercises {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO exercises (id, name, muscle_group, type, equipment_level) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, muscle_group = excluded.muscle_group,
			 type = excluded.type, equipment_level = excluded.equipment_level`,
			e.ID, e.Name, e.MuscleGroup, string(e.Type), e.EquipmentLevel)
		if err != nil {
			return fmt.Errorf("seed exercise %d: %w", e.ID, err)
		}
	}

	for _, d := range c.Schedule {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schedule (day_number, workout_id) VALUES (?, ?)
			 ON CONFLICT(day_number) DO UPDATE SET workout_id = excluded.workout_id`,
			d.DayNumber, d.WorkoutID)
		if err != nil {
			return fmt.Errorf("seed schedule day %d: %w", d.DayNumber, err)
		}
	}

	return tx.Commit()
}

func (r *CatalogRepository) GetExercise(ctx context.Context, id int64) (*domain.Exercise, error) {
	var e domain.Exercise
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, muscle_group, type, equipment_level, created_at FROM exercises WHERE id = ?", id,
	).Scan(&e.ID, &e.Name, &e.MuscleGroup, &e.Type, &e.EquipmentLevel, &e.CreatedAt)
	if err != nil {
		return nil, notFound(err, "get exercise")
	}
	return &e, nil
}

func (r *CatalogRepository) GetExerciseGroup(ctx context.Context, id int64) (*domain.ExerciseGroup, error) {
	var g domain.ExerciseGroup
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, muscle_group1, muscle_group2, created_at FROM exercise_groups WHERE id = ?", id,
	).Scan(&g.ID, &g.Name, &g.MuscleGroup1, &g.MuscleGroup2, &g.CreatedAt)
	if err != nil {
		return nil, notFound(err, "get exercise group")
	}
	return &g, nil
}

// ScheduledGroup returns the exercise group assigned to a rotation day.
func (r *CatalogRepository) ScheduledGroup(ctx context.Context, dayNumber int) (*domain.ExerciseGroup, error) {
	var g domain.ExerciseGroup
	err := r.db.QueryRowContext(ctx,
		`SELECT g.id, g.name, g.muscle_group1, g.muscle_group2, g.created_at
		 FROM schedule s JOIN exercise_groups g ON g.id = s.workout_id
		 WHERE s.day_number = ?`, dayNumber,
	).Scan(&g.ID, &g.Name, &g.MuscleGroup1, &g.MuscleGroup2, &g.CreatedAt)
	if err != nil {
		return nil, notFound(err, "get scheduled group")
	}
	return &g, nil
}

// ConfigRepository implements domain.ConfigRepository using SQLite.
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository creates a new SQLite-backed ConfigRepository.
func NewConfigRepository(db *DB) *ConfigRepository {
	return &ConfigRepository{db: db.SqlDB}
}

func (r *ConfigRepository) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM app_config WHERE key = ?", key).Scan(&v)
	if err != nil {
		return "", notFound(err, "get config")
	}
	return v, nil
}

func (r *ConfigRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, `+nowSQL+`)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	return nil
}

func (r *ConfigRepository) SetDefault(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO app_config (key, value, updated_at) VALUES (?, ?, "+nowSQL+")",
		key, value)
	if err != nil {
		return fmt.Errorf("set default config: %w", err)
	}
	return nil
}
