package domain

import (
	"context"
	"fmt"
)

// SessionStatus is the lifecycle state of a workout session.
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionNotStarted, SessionInProgress, SessionCompleted:
		return true
	}
	return false
}

// Session is the workout for one calendar date. Field names on the wire
// match the column names of workout_sessions.
type Session struct {
	ID           int64         `json:"id"`
	SessionDate  string        `json:"session_date"`
	Status       SessionStatus `json:"status"`
	Notes        *string       `json:"notes"`
	StartedAt    *Timestamp    `json:"started_at"`
	CompletedAt  *Timestamp    `json:"completed_at"`
	CreatedAt    Timestamp     `json:"created_at"`
	UpdatedAt    Timestamp     `json:"updated_at"`
	SyncVersion  int64         `json:"sync_version"`
	LastSyncedAt *Timestamp    `json:"last_synced_at"`
}

// Validate checks the fields a pushed or created session must carry.
func (s Session) Validate() error {
	if _, err := ParseDate(s.SessionDate); err != nil {
		return err
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s.Status)
	}
	return nil
}

// SessionUpdate lists every field of a session that may change after
// creation. Nil fields are left alone.
type SessionUpdate struct {
	Status      *SessionStatus `json:"status,omitempty"`
	Notes       *string        `json:"notes,omitempty"`
	CompletedAt *Timestamp     `json:"completedAt,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u SessionUpdate) Empty() bool {
	return u.Status == nil && u.Notes == nil && u.CompletedAt == nil
}

// Validate rejects unknown statuses.
func (u SessionUpdate) Validate() error {
	if u.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *u.Status)
	}
	return nil
}

// Assignments returns the column assignments of the update in a fixed order.
func (u SessionUpdate) Assignments() []Assignment {
	var as []Assignment
	if u.Status != nil {
		as = append(as, Assignment{Column: "status", Value: string(*u.Status)})
	}
	if u.Notes != nil {
		as = append(as, Assignment{Column: "notes", Value: *u.Notes})
	}
	if u.CompletedAt != nil {
		as = append(as, Assignment{Column: "completed_at", Value: string(*u.CompletedAt)})
	}
	return as
}

// LifecycleColumns names the timestamp columns a status change stamps when
// they are still empty: started_at on entering in_progress, completed_at on
// completion unless the update carries its own.
func (u SessionUpdate) LifecycleColumns() []string {
	if u.Status == nil {
		return nil
	}
	switch *u.Status {
	case SessionInProgress:
		return []string{"started_at"}
	case SessionCompleted:
		if u.CompletedAt == nil {
			return []string{"completed_at"}
		}
	}
	return nil
}

// SessionRepository persists sessions on the server.
type SessionRepository interface {
	Create(ctx context.Context, date string) (*Session, error)
	GetByID(ctx context.Context, id int64) (*Session, error)
	GetByDate(ctx context.Context, date string) (*Session, error)
	ListCompleted(ctx context.Context, limit, offset int) ([]Session, error)
	CountCompleted(ctx context.Context) (int, error)
	Update(ctx context.Context, id int64, u SessionUpdate) (*Session, error)
}
