package domain

import "context"

// Table names of the synchronized entities.
const (
	TableSessions         = "workout_sessions"
	TableSessionDays      = "session_days"
	TableSessionExercises = "session_exercises"
	TableSets             = "workout_sets"
)

// RecordType names an entity kind in push conflicts.
type RecordType string

const (
	RecordSession         RecordType = "session"
	RecordSessionDay      RecordType = "session_day"
	RecordSessionExercise RecordType = "session_exercise"
	RecordSet             RecordType = "set"
)

// Tombstone records a hard delete so that mirrors can drop the row.
type Tombstone struct {
	TableName string    `json:"table_name"`
	RecordID  int64     `json:"record_id"`
	DeletedAt Timestamp `json:"deleted_at"`
}

// Changes is the pull response: every record modified after the requested
// watermark, in ascending timestamp order per kind.
type Changes struct {
	Sessions         []Session         `json:"sessions"`
	SessionDays      []SessionDay      `json:"sessionDays"`
	SessionExercises []SessionExercise `json:"sessionExercises"`
	Sets             []Set             `json:"sets"`
	Deletions        []Tombstone       `json:"deletions"`
	Timestamp        Timestamp         `json:"timestamp"`
}

// Len counts the records and deletions carried.
func (c Changes) Len() int {
	return len(c.Sessions) + len(c.SessionDays) + len(c.SessionExercises) + len(c.Sets) + len(c.Deletions)
}

// PushBatch is the push request body: locally modified records.
type PushBatch struct {
	Sessions         []Session         `json:"sessions"`
	Sets             []Set             `json:"sets"`
	SessionDays      []SessionDay      `json:"sessionDays"`
	SessionExercises []SessionExercise `json:"sessionExercises"`
}

// Len counts the records in the batch.
func (b PushBatch) Len() int {
	return len(b.Sessions) + len(b.Sets) + len(b.SessionDays) + len(b.SessionExercises)
}

// Conflict describes one record the server rejected.
type Conflict struct {
	Type  RecordType `json:"type"`
	ID    int64      `json:"id"`
	Error string     `json:"error"`
}

// PushResult summarizes a push.
type PushResult struct {
	Synced    int        `json:"synced"`
	Failed    int        `json:"failed"`
	Conflicts []Conflict `json:"conflicts"`
	Timestamp Timestamp  `json:"timestamp"`
}

// Rejected reports whether the record appears among the conflicts.
func (r PushResult) Rejected(t RecordType, id int64) bool {
	for _, c := range r.Conflicts {
		if c.Type == t && c.ID == id {
			return true
		}
	}
	return false
}

// SyncRepository exposes the server-side change feed and record merges.
type SyncRepository interface {
	// Changes returns everything modified after since, with the server
	// clock read after the queries.
	Changes(ctx context.Context, since Timestamp) (*Changes, Timestamp, error)
	UpsertSession(ctx context.Context, s Session) error
	UpsertSet(ctx context.Context, s Set) error
	UpsertSessionDay(ctx context.Context, d SessionDay) error
	UpsertSessionExercise(ctx context.Context, e SessionExercise) error
}
