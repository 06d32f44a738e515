package domain

import "context"

// SessionDay marks one rotation day as active within a session.
type SessionDay struct {
	ID              int64      `json:"id"`
	SessionID       int64      `json:"session_id"`
	DayNumber       int        `json:"day_number"`
	ExerciseGroupID int64      `json:"exercise_group_id"`
	CreatedAt       Timestamp  `json:"created_at"`
	SyncVersion     int64      `json:"sync_version"`
	LastSyncedAt    *Timestamp `json:"last_synced_at"`
}

// SessionExercise is one of the two exercises chosen for an active day.
type SessionExercise struct {
	ID             int64      `json:"id"`
	SessionID      int64      `json:"session_id"`
	DayNumber      int        `json:"day_number"`
	MuscleGroup    string     `json:"muscle_group"`
	ExerciseID     int64      `json:"exercise_id"`
	SelectionOrder int        `json:"selection_order"`
	CreatedAt      Timestamp  `json:"created_at"`
	SyncVersion    int64      `json:"sync_version"`
	LastSyncedAt   *Timestamp `json:"last_synced_at"`
}

// SessionDayRepository persists active days on the server.
type SessionDayRepository interface {
	ListBySession(ctx context.Context, sessionID int64) ([]SessionDay, error)
	// Toggle activates the day when absent and removes it, with its
	// exercise selections, when present. It reports the resulting state.
	Toggle(ctx context.Context, sessionID int64, dayNumber int, groupID int64) (bool, error)
}

// SessionExerciseRepository persists exercise selections on the server.
type SessionExerciseRepository interface {
	ListBySession(ctx context.Context, sessionID int64) ([]SessionExercise, error)
	// ReplaceDay swaps the selections of one day for the given ones.
	ReplaceDay(ctx context.Context, sessionID int64, dayNumber int, selections []SessionExercise) ([]SessionExercise, error)
}
