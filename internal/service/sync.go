package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/msomdec/gymtrack/internal/domain"
)

// pullOverlap is subtracted from the clock read so that a row stamped in
// the same millisecond as the read is served again on the next pull.
const pullOverlap = time.Millisecond

// SyncService serves the change feed and merges pushed records.
type SyncService struct {
	repo   domain.SyncRepository
	logger *slog.Logger
}

// NewSyncService creates a new SyncService.
func NewSyncService(repo domain.SyncRepository, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{repo: repo, logger: logger}
}

// Pull returns the records changed after since. An empty since means
// everything. The response timestamp is never earlier than since.
func (s *SyncService) Pull(ctx context.Context, since string) (*domain.Changes, error) {
	watermark, err := domain.ParseTimestamp(since)
	if err != nil {
		return nil, err
	}

	changes, clock, err := s.repo.Changes(ctx, watermark)
	if err != nil {
		return nil, fmt.Errorf("read changes: %w", err)
	}
	changes.Timestamp = domain.MaxTimestamp(watermark, clock.Add(-pullOverlap))
	return changes, nil
}

// Push merges each record on its own. A record that fails is reported in
// the conflicts list and does not affect the others.
func (s *SyncService) Push(ctx context.Context, batch domain.PushBatch, clientID string) *domain.PushResult {
	res := &domain.PushResult{Conflicts: []domain.Conflict{}}

	record := func(t domain.RecordType, id int64, err error) {
		if err == nil {
			res.Synced++
			return
		}
		res.Failed++
		res.Conflicts = append(res.Conflicts, domain.Conflict{Type: t, ID: id, Error: err.Error()})
		s.logger.Warn("push record rejected", "type", t, "id", id, "client", clientID, "error", err)
	}

	for _, rec := range batch.Sessions {
		record(domain.RecordSession, rec.ID, s.pushSession(ctx, rec))
	}
	for _, rec := range batch.SessionDays {
		record(domain.RecordSessionDay, rec.ID, s.pushSessionDay(ctx, rec))
	}
	for _, rec := range batch.SessionExercises {
		record(domain.RecordSessionExercise, rec.ID, s.pushSessionExercise(ctx, rec))
	}
	for _, rec := range batch.Sets {
		record(domain.RecordSet, rec.ID, s.pushSet(ctx, rec))
	}

	res.Timestamp = domain.Now()
	s.logger.Info("push merged", "client", clientID, "synced", res.Synced, "failed", res.Failed)
	return res
}

func (s *SyncService) pushSession(ctx context.Context, rec domain.Session) error {
	if rec.ID <= 0 {
		return fmt.Errorf("%w: missing id", domain.ErrInvalidInput)
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.repo.UpsertSession(ctx, rec)
}

func (s *SyncService) pushSet(ctx context.Context, rec domain.Set) error {
	if rec.ID <= 0 {
		return fmt.Errorf("%w: missing id", domain.ErrInvalidInput)
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.repo.UpsertSet(ctx, rec)
}

func (s *SyncService) pushSessionDay(ctx context.Context, rec domain.SessionDay) error {
	if rec.ID <= 0 || rec.SessionID <= 0 || !domain.ValidDayNumber(rec.DayNumber) {
		return fmt.Errorf("%w: session day needs id, session and a day between 1 and %d", domain.ErrInvalidInput, domain.CycleLength)
	}
	return s.repo.UpsertSessionDay(ctx, rec)
}

func (s *SyncService) pushSessionExercise(ctx context.Context, rec domain.SessionExercise) error {
	if rec.ID <= 0 || rec.SessionID <= 0 || !domain.ValidDayNumber(rec.DayNumber) {
		return fmt.Errorf("%w: session exercise needs id, session and a valid day", domain.ErrInvalidInput)
	}
	if rec.SelectionOrder != 1 && rec.SelectionOrder != 2 {
		return fmt.Errorf("%w: selection order must be 1 or 2", domain.ErrInvalidInput)
	}
	return s.repo.UpsertSessionExercise(ctx, rec)
}
