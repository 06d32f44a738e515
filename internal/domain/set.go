package domain

import (
	"context"
	"fmt"
)

// Set is one logged set of an exercise within a session.
type Set struct {
	ID              int64      `json:"id"`
	SessionID       int64      `json:"session_id"`
	ExerciseID      int64      `json:"exercise_id"`
	SetNumber       int        `json:"set_number"`
	Reps            *int       `json:"reps"`
	Weight          *float64   `json:"weight"`
	DurationSeconds *int       `json:"duration_seconds"`
	Notes           *string    `json:"notes"`
	Completed       bool       `json:"completed"`
	CreatedAt       Timestamp  `json:"created_at"`
	UpdatedAt       Timestamp  `json:"updated_at"`
	SyncVersion     int64      `json:"sync_version"`
	LastSyncedAt    *Timestamp `json:"last_synced_at"`
}

// Validate checks the identity fields of a set.
func (s Set) Validate() error {
	if s.SessionID <= 0 || s.ExerciseID <= 0 {
		return fmt.Errorf("%w: session and exercise are required", ErrInvalidInput)
	}
	if s.SetNumber < 1 {
		return fmt.Errorf("%w: set number must be positive", ErrInvalidInput)
	}
	return nil
}

// NewSet carries the fields supplied when logging a set.
type NewSet struct {
	SessionID       int64    `json:"sessionId"`
	ExerciseID      int64    `json:"exerciseId"`
	SetNumber       int      `json:"setNumber"`
	Reps            *int     `json:"reps,omitempty"`
	Weight          *float64 `json:"weight,omitempty"`
	DurationSeconds *int     `json:"durationSeconds,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
	Completed       *bool    `json:"completed,omitempty"`
}

// Set converts the request into an unsaved Set. Sets are logged completed
// unless the request says otherwise.
func (n NewSet) Set() Set {
	return Set{
		SessionID:       n.SessionID,
		ExerciseID:      n.ExerciseID,
		SetNumber:       n.SetNumber,
		Reps:            n.Reps,
		Weight:          n.Weight,
		DurationSeconds: n.DurationSeconds,
		Notes:           n.Notes,
		Completed:       n.Completed == nil || *n.Completed,
	}
}

// SetUpdate lists every field of a set that may change after creation.
type SetUpdate struct {
	Reps            *int     `json:"reps,omitempty"`
	Weight          *float64 `json:"weight,omitempty"`
	DurationSeconds *int     `json:"durationSeconds,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
	Completed       *bool    `json:"completed,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u SetUpdate) Empty() bool {
	return u.Reps == nil && u.Weight == nil && u.DurationSeconds == nil && u.Notes == nil && u.Completed == nil
}

// Validate rejects empty and negative updates.
func (u SetUpdate) Validate() error {
	if u.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	if u.Reps != nil && *u.Reps < 0 {
		return fmt.Errorf("%w: reps cannot be negative", ErrInvalidInput)
	}
	if u.Weight != nil && *u.Weight < 0 {
		return fmt.Errorf("%w: weight cannot be negative", ErrInvalidInput)
	}
	if u.DurationSeconds != nil && *u.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration cannot be negative", ErrInvalidInput)
	}
	return nil
}

// Assignments returns the column assignments of the update in a fixed order.
func (u SetUpdate) Assignments() []Assignment {
	var as []Assignment
	if u.Reps != nil {
		as = append(as, Assignment{Column: "reps", Value: *u.Reps})
	}
	if u.Weight != nil {
		as = append(as, Assignment{Column: "weight", Value: *u.Weight})
	}
	if u.DurationSeconds != nil {
		as = append(as, Assignment{Column: "duration_seconds", Value: *u.DurationSeconds})
	}
	if u.Notes != nil {
		as = append(as, Assignment{Column: "notes", Value: *u.Notes})
	}
	if u.Completed != nil {
		as = append(as, Assignment{Column: "completed", Value: *u.Completed})
	}
	return as
}

// SetRepository persists sets on the server.
type SetRepository interface {
	Create(ctx context.Context, s *Set) error
	GetByID(ctx context.Context, id int64) (*Set, error)
	ListBySession(ctx context.Context, sessionID int64) ([]Set, error)
	Update(ctx context.Context, id int64, u SetUpdate) (*Set, error)
	// Delete removes the set and records a tombstone for it.
	Delete(ctx context.Context, id int64) error
}
