package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/msomdec/gymtrack/internal/domain"
)

// Keys in sync_meta.
const (
	MetaDeviceID  = "device_id"
	MetaWatermark = "last_sync_timestamp"
	MetaLastSync  = "last_sync_at"
)

// Meta reads a sync_meta value.
func (s *Store) Meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.read(ctx, func(q queryer) error {
		return q.QueryRowContext(ctx, "SELECT value FROM sync_meta WHERE key = ?", key).Scan(&v)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta %s: %w", key, err)
	}
	return v, true, nil
}

// SetMeta writes a sync_meta value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return s.Batch(ctx, func(tx *Tx) error { return tx.SetMeta(key, value) })
}

// SetMeta writes a sync_meta value inside the batch.
func (t *Tx) SetMeta(key, value string) error {
	_, err := t.Exec(
		`INSERT INTO sync_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}

// DeviceID returns the id this mirror identifies itself with.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	id, ok, err := s.Meta(ctx, MetaDeviceID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("device id not assigned")
	}
	return id, nil
}

// Watermark returns the server timestamp of the last merged pull, or
// domain.Epoch before the first one.
func (s *Store) Watermark(ctx context.Context) (domain.Timestamp, error) {
	v, ok, err := s.Meta(ctx, MetaWatermark)
	if err != nil || !ok {
		return domain.Epoch, err
	}
	return domain.Timestamp(v), nil
}

// Config reads an app_config value.
func (s *Store) Config(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.read(ctx, func(q queryer) error {
		return q.QueryRowContext(ctx, "SELECT value FROM app_config WHERE key = ?", key).Scan(&v)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read config %s: %w", key, err)
	}
	return v, true, nil
}

// SetConfig writes an app_config value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	return s.Batch(ctx, func(tx *Tx) error {
		_, err := tx.Exec(
			`INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, tx.Now())
		return err
	})
}

// CatalogCounts is the number of reference rows held locally.
type CatalogCounts struct {
	Exercises      int
	ExerciseGroups int
	Schedule       int
}

// Seeded reports whether every reference table has rows.
func (c CatalogCounts) Seeded() bool {
	return c.Exercises > 0 && c.ExerciseGroups > 0 && c.Schedule > 0
}

// CatalogCounts counts the reference tables.
func (s *Store) CatalogCounts(ctx context.Context) (CatalogCounts, error) {
	var c CatalogCounts
	err := s.read(ctx, func(q queryer) error {
		return q.QueryRowContext(ctx,
			`SELECT (SELECT COUNT(*) FROM exercises),
			        (SELECT COUNT(*) FROM exercise_groups),
			        (SELECT COUNT(*) FROM schedule)`).
			Scan(&c.Exercises, &c.ExerciseGroups, &c.Schedule)
	})
	if err != nil {
		return c, fmt.Errorf("count reference data: %w", err)
	}
	return c, nil
}

// SeedCatalog replaces reference rows with the server's and defaults the
// cycle start to today when it is not set yet.
func (t *Tx) SeedCatalog(c domain.Catalog) error {
	stamp := func(ts domain.Timestamp) domain.Timestamp {
		if ts == "" {
			return t.now
		}
		return ts
	}

	for _, e := range c.Exercises {
		if _, err := t.Exec(
			`INSERT OR REPLACE INTO exercises (id, name, muscle_group, type, equipment_level, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.Name, e.MuscleGroup, string(e.Type), e.EquipmentLevel, stamp(e.CreatedAt)); err != nil {
			return fmt.Errorf("seed exercise %d: %w", e.ID, err)
		}
	}
	for _, g := range c.ExerciseGroups {
		if _, err := t.Exec(
			`INSERT OR REPLACE INTO exercise_groups (id, name, muscle_group1, muscle_group2, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			g.ID, g.Name, g.MuscleGroup1, g.MuscleGroup2, stamp(g.CreatedAt)); err != nil {
			return fmt.Errorf("seed exercise group %d: %w", g.ID, err)
		}
	}
	for _, d := range c.Schedule {
		if _, err := t.Exec(
			"INSERT OR REPLACE INTO schedule (day_number, workout_id) VALUES (?, ?)",
			d.DayNumber, d.WorkoutID); err != nil {
			return fmt.Errorf("seed schedule day %d: %w", d.DayNumber, err)
		}
	}

	today := t.now.Time().Format(domain.DateLayout)
	if _, err := t.Exec(
		"INSERT OR IGNORE INTO app_config (key, value, updated_at) VALUES (?, ?, ?)",
		domain.ConfigCycleStartDate, today, t.now); err != nil {
		return fmt.Errorf("default cycle start: %w", err)
	}
	return nil
}

// ScheduledGroup returns the exercise group scheduled for a rotation day.
func (s *Store) ScheduledGroup(ctx context.Context, dayNumber int) (*domain.ExerciseGroup, error) {
	var g *domain.ExerciseGroup
	err := s.read(ctx, func(q queryer) error {
		var err error
		g, err = scheduledGroup(ctx, q, dayNumber)
		return err
	})
	return g, err
}

func scheduledGroup(ctx context.Context, q queryer, dayNumber int) (*domain.ExerciseGroup, error) {
	var g domain.ExerciseGroup
	err := q.QueryRowContext(ctx,
		`SELECT g.id, g.name, g.muscle_group1, g.muscle_group2, g.created_at
		 FROM schedule s JOIN exercise_groups g ON g.id = s.workout_id
		 WHERE s.day_number = ?`, dayNumber).
		Scan(&g.ID, &g.Name, &g.MuscleGroup1, &g.MuscleGroup2, &g.CreatedAt)
	if err != nil {
		return nil, notFound(err, "scheduled group")
	}
	return &g, nil
}

// ExercisesFor lists the exercises training any of the given muscle
// groups, ordered by equipment level then name.
func (s *Store) ExercisesFor(ctx context.Context, muscleGroups ...string) ([]domain.Exercise, error) {
	var out []domain.Exercise
	err := s.read(ctx, func(q queryer) error {
		var err error
		out, err = exercisesFor(ctx, q, muscleGroups)
		return err
	})
	return out, err
}

func exercisesFor(ctx context.Context, q queryer, muscleGroups []string) ([]domain.Exercise, error) {
	out := []domain.Exercise{}
	for _, mg := range muscleGroups {
		rows, err := q.QueryContext(ctx,
			`SELECT id, name, muscle_group, type, equipment_level, created_at
			 FROM exercises WHERE muscle_group = ? ORDER BY equipment_level, name`, mg)
		if err != nil {
			return nil, fmt.Errorf("list exercises: %w", err)
		}
		for rows.Next() {
			var e domain.Exercise
			if err := rows.Scan(&e.ID, &e.Name, &e.MuscleGroup, &e.Type, &e.EquipmentLevel, &e.CreatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan exercise: %w", err)
			}
			out = append(out, e)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("list exercises: %w", err)
		}
	}
	return out, nil
}

// notFound maps sql.ErrNoRows to domain.ErrNotFound and wraps anything else.
func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
