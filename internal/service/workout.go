package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/msomdec/gymtrack/internal/domain"
)

// WorkoutService implements the server-side workout operations.
type WorkoutService struct {
	sessions  domain.SessionRepository
	sets      domain.SetRepository
	days      domain.SessionDayRepository
	exercises domain.SessionExerciseRepository
	catalog   domain.CatalogRepository
	config    domain.ConfigRepository
}

// NewWorkoutService creates a new WorkoutService.
func NewWorkoutService(
	sessions domain.SessionRepository,
	sets domain.SetRepository,
	days domain.SessionDayRepository,
	exercises domain.SessionExerciseRepository,
	catalog domain.CatalogRepository,
	config domain.ConfigRepository,
) *WorkoutService {
	return &WorkoutService{
		sessions:  sessions,
		sets:      sets,
		days:      days,
		exercises: exercises,
		catalog:   catalog,
		config:    config,
	}
}

// Today builds the workout view for date: the scheduled group with its
// candidate exercises, plus the session and everything logged under it.
func (s *WorkoutService) Today(ctx context.Context, date string) (*domain.Today, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}

	start, err := s.config.Get(ctx, domain.ConfigCycleStartDate)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		start = date
	}
	dayNumber, err := domain.DayNumberFor(date, start)
	if err != nil {
		return nil, err
	}

	group, err := s.catalog.ScheduledGroup(ctx, dayNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no workout scheduled for day %d", domain.ErrNotFound, dayNumber)
		}
		return nil, err
	}
	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	exercises := append([]domain.Exercise(nil), cat.Exercises...)
	sort.SliceStable(exercises, func(i, j int) bool {
		if exercises[i].EquipmentLevel != exercises[j].EquipmentLevel {
			return exercises[i].EquipmentLevel > exercises[j].EquipmentLevel
		}
		return exercises[i].Name < exercises[j].Name
	})

	today := &domain.Today{
		Date:              date,
		DayNumber:         dayNumber,
		ExerciseGroup:     domain.NewGroupView(*group, exercises),
		ActiveDays:        []domain.SessionDay{},
		SelectedExercises: []domain.SessionExercise{},
		Sets:              []domain.Set{},
	}

	session, err := s.sessions.GetByDate(ctx, date)
	if errors.Is(err, domain.ErrNotFound) {
		return today, nil
	}
	if err != nil {
		return nil, err
	}

	detail, err := s.detail(ctx, *session)
	if err != nil {
		return nil, err
	}
	today.Session = &detail.Session
	today.ActiveDays = detail.Days
	today.SelectedExercises = detail.Exercises
	today.Sets = detail.Sets
	return today, nil
}

// History returns a page of completed sessions.
func (s *WorkoutService) History(ctx context.Context, limit, offset int) (*domain.History, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	sessions, err := s.sessions.ListCompleted(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.sessions.CountCompleted(ctx)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return &domain.History{
		Sessions: sessions,
		Total:    total,
		HasMore:  offset+len(sessions) < total,
	}, nil
}

// GetSession returns a session with its days, selections and sets.
func (s *WorkoutService) GetSession(ctx context.Context, id int64) (*domain.SessionDetail, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, *session)
}

func (s *WorkoutService) detail(ctx context.Context, session domain.Session) (*domain.SessionDetail, error) {
	d := &domain.SessionDetail{
		Session:   session,
		Days:      []domain.SessionDay{},
		Exercises: []domain.SessionExercise{},
		Sets:      []domain.Set{},
	}

	days, err := s.days.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	exercises, err := s.exercises.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	sets, err := s.sets.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	d.Days = append(d.Days, days...)
	d.Exercises = append(d.Exercises, exercises...)
	d.Sets = append(d.Sets, sets...)
	return d, nil
}

// CreateSession starts the session for date.
func (s *WorkoutService) CreateSession(ctx context.Context, date string) (*domain.Session, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	return s.sessions.Create(ctx, date)
}

// UpdateSession applies a partial update to a session.
func (s *WorkoutService) UpdateSession(ctx context.Context, id int64, u domain.SessionUpdate) (*domain.Session, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return s.sessions.Update(ctx, id, u)
}

// ToggleDay activates or deactivates a rotation day within a session.
func (s *WorkoutService) ToggleDay(ctx context.Context, sessionID int64, dayNumber int, groupID int64) (bool, error) {
	if !domain.ValidDayNumber(dayNumber) {
		return false, fmt.Errorf("%w: day number must be between 1 and %d", domain.ErrInvalidInput, domain.CycleLength)
	}
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return false, err
	}
	if _, err := s.catalog.GetExerciseGroup(ctx, groupID); err != nil {
		return false, err
	}
	return s.days.Toggle(ctx, sessionID, dayNumber, groupID)
}

// SelectExercises replaces the two exercise choices of an active day. The
// first must train the group's first muscle group and the second its
// second.
func (s *WorkoutService) SelectExercises(ctx context.Context, sessionID int64, dayNumber int, exercise1ID, exercise2ID int64) ([]domain.SessionExercise, error) {
	if exercise1ID <= 0 || exercise2ID <= 0 {
		return nil, fmt.Errorf("%w: both exercise IDs required", domain.ErrInvalidInput)
	}

	days, err := s.days.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var groupID int64
	for _, d := range days {
		if d.DayNumber == dayNumber {
			groupID = d.ExerciseGroupID
		}
	}
	if groupID == 0 {
		if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: day %d is not active in this session", domain.ErrInvalidInput, dayNumber)
	}

	group, err := s.catalog.GetExerciseGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ex1, err := s.catalog.GetExercise(ctx, exercise1ID)
	if err != nil {
		return nil, err
	}
	ex2, err := s.catalog.GetExercise(ctx, exercise2ID)
	if err != nil {
		return nil, err
	}
	if ex1.MuscleGroup != group.MuscleGroup1 {
		return nil, fmt.Errorf("%w: exercise 1 must be from muscle group %s", domain.ErrInvalidInput, group.MuscleGroup1)
	}
	if ex2.MuscleGroup != group.MuscleGroup2 {
		return nil, fmt.Errorf("%w: exercise 2 must be from muscle group %s", domain.ErrInvalidInput, group.MuscleGroup2)
	}

	return s.exercises.ReplaceDay(ctx, sessionID, dayNumber, []domain.SessionExercise{
		{MuscleGroup: ex1.MuscleGroup, ExerciseID: ex1.ID, SelectionOrder: 1},
		{MuscleGroup: ex2.MuscleGroup, ExerciseID: ex2.ID, SelectionOrder: 2},
	})
}

// CreateSet logs a set against a session.
func (s *WorkoutService) CreateSet(ctx context.Context, n domain.NewSet) (*domain.Set, error) {
	set := n.Set()
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if err := s.sets.Create(ctx, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// UpdateSet applies a partial update to a set.
func (s *WorkoutService) UpdateSet(ctx context.Context, id int64, u domain.SetUpdate) (*domain.Set, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return s.sets.Update(ctx, id, u)
}

// DeleteSet removes a set.
func (s *WorkoutService) DeleteSet(ctx context.Context, id int64) error {
	return s.sets.Delete(ctx, id)
}
