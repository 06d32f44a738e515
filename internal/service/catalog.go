package service

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/gymtrack/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	ExerciseGroups []struct {
		ID           int64  `yaml:"id"`
		Name         string `yaml:"name"`
		MuscleGroup1 string `yaml:"muscle_group1"`
		MuscleGroup2 string `yaml:"muscle_group2"`
	} `yaml:"exercise_groups"`
	Exercises []struct {
		ID             int64  `yaml:"id"`
		Name           string `yaml:"name"`
		MuscleGroup    string `yaml:"muscle_group"`
		Type           string `yaml:"type"`
		EquipmentLevel int    `yaml:"equipment_level"`
	} `yaml:"exercises"`
	Schedule []struct {
		Day       int   `yaml:"day"`
		WorkoutID int64 `yaml:"workout_id"`
	} `yaml:"schedule"`
	Defaults map[string]string `yaml:"defaults"`
}

// ParseCatalog decodes a YAML catalog and checks its references.
func ParseCatalog(data []byte) (domain.Catalog, map[string]string, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.Catalog{}, nil, fmt.Errorf("parse catalog: %w", err)
	}

	var c domain.Catalog
	groups := make(map[int64]bool)
	for _, g := range f.ExerciseGroups {
		c.ExerciseGroups = append(c.ExerciseGroups, domain.ExerciseGroup{
			ID: g.ID, Name: g.Name, MuscleGroup1: g.MuscleGroup1, MuscleGroup2: g.MuscleGroup2,
		})
		groups[g.ID] = true
	}
	for _, e := range f.Exercises {
		t := domain.ExerciseType(e.Type)
		switch t {
		case domain.ExercisePull, domain.ExercisePush, domain.ExerciseLegs, domain.ExerciseCore:
		default:
			return domain.Catalog{}, nil, fmt.Errorf("%w: exercise %d has unknown type %q", domain.ErrInvalidInput, e.ID, e.Type)
		}
		c.Exercises = append(c.Exercises, domain.Exercise{
			ID: e.ID, Name: e.Name, MuscleGroup: e.MuscleGroup, Type: t, EquipmentLevel: e.EquipmentLevel,
		})
	}
	for _, d := range f.Schedule {
		if !domain.ValidDayNumber(d.Day) {
			return domain.Catalog{}, nil, fmt.Errorf("%w: schedule day %d out of range", domain.ErrInvalidInput, d.Day)
		}
		if !groups[d.WorkoutID] {
			return domain.Catalog{}, nil, fmt.Errorf("%w: schedule day %d references unknown group %d", domain.ErrInvalidInput, d.Day, d.WorkoutID)
		}
		c.Schedule = append(c.Schedule, domain.ScheduleDay{DayNumber: d.Day, WorkoutID: d.WorkoutID})
	}
	return c, f.Defaults, nil
}

// CatalogService serves reference data and the training cycle settings.
type CatalogService struct {
	catalog domain.CatalogRepository
	config  domain.ConfigRepository
	now     func() time.Time
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(catalog domain.CatalogRepository, config domain.ConfigRepository) *CatalogService {
	return &CatalogService{catalog: catalog, config: config, now: time.Now}
}

// SeedDefaults loads the embedded catalog and default settings. Safe to run
// on every start.
func (s *CatalogService) SeedDefaults(ctx context.Context) error {
	c, defaults, err := ParseCatalog(catalogYAML)
	if err != nil {
		return err
	}
	if err := s.catalog.Seed(ctx, c); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	for k, v := range defaults {
		if err := s.config.SetDefault(ctx, k, v); err != nil {
			return err
		}
	}
	today := s.now().UTC().Format(domain.DateLayout)
	return s.config.SetDefault(ctx, domain.ConfigCycleStartDate, today)
}

// StaticData returns the reference data mirrors seed from.
func (s *CatalogService) StaticData(ctx context.Context) (*domain.Catalog, error) {
	return s.catalog.Load(ctx)
}

// CycleStart returns the cycle start date and the rotation day for today.
func (s *CatalogService) CycleStart(ctx context.Context) (string, int, error) {
	start, err := s.config.Get(ctx, domain.ConfigCycleStartDate)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", 0, fmt.Errorf("%w: cycle start date not configured", domain.ErrNotFound)
		}
		return "", 0, err
	}
	startDate, err := domain.ParseDate(start)
	if err != nil {
		return "", 0, err
	}
	return start, domain.DayNumber(s.now(), startDate), nil
}

// SetCycleStart changes the cycle start date.
func (s *CatalogService) SetCycleStart(ctx context.Context, date string) error {
	if _, err := domain.ParseDate(date); err != nil {
		return err
	}
	return s.config.Set(ctx, domain.ConfigCycleStartDate, date)
}
