package domain

import "context"

// ExerciseType classifies an exercise by movement pattern.
type ExerciseType string

const (
	ExercisePull ExerciseType = "Pull"
	ExercisePush ExerciseType = "Push"
	ExerciseLegs ExerciseType = "Legs"
	ExerciseCore ExerciseType = "Core"
)

// Exercise is read-only reference data.
type Exercise struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	MuscleGroup    string       `json:"muscle_group"`
	Type           ExerciseType `json:"type"`
	EquipmentLevel int          `json:"equipment_level"`
	CreatedAt      Timestamp    `json:"created_at"`
}

// ExerciseGroup pairs the two muscle groups trained on a rotation day.
type ExerciseGroup struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	MuscleGroup1 string    `json:"muscle_group1"`
	MuscleGroup2 string    `json:"muscle_group2"`
	CreatedAt    Timestamp `json:"created_at"`
}

// Covers reports whether muscle is one of the group's muscle groups.
func (g ExerciseGroup) Covers(muscle string) bool {
	return muscle == g.MuscleGroup1 || muscle == g.MuscleGroup2
}

// ScheduleDay maps a rotation day to its exercise group.
type ScheduleDay struct {
	DayNumber int   `json:"day_number"`
	WorkoutID int64 `json:"workout_id"`
}

// Catalog is the complete reference data set.
type Catalog struct {
	Exercises      []Exercise      `json:"exercises"`
	ExerciseGroups []ExerciseGroup `json:"exerciseGroups"`
	Schedule       []ScheduleDay   `json:"schedule"`
}

// Empty reports whether the catalog carries no rows at all.
func (c Catalog) Empty() bool {
	return len(c.Exercises) == 0 && len(c.ExerciseGroups) == 0 && len(c.Schedule) == 0
}

// CatalogRepository reads and seeds reference data.
type CatalogRepository interface {
	Load(ctx context.Context) (*Catalog, error)
	Seed(ctx context.Context, c Catalog) error
	GetExercise(ctx context.Context, id int64) (*Exercise, error)
	GetExerciseGroup(ctx context.Context, id int64) (*ExerciseGroup, error)
	ScheduledGroup(ctx context.Context, dayNumber int) (*ExerciseGroup, error)
}

// Config keys stored in app_config.
const (
	ConfigCycleStartDate     = "cycle_start_date"
	ConfigDefaultRestSeconds = "default_rest_seconds"
)

// ConfigRepository stores application key/value settings.
type ConfigRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetDefault stores value only when key is absent.
	SetDefault(ctx context.Context, key, value string) error
}
