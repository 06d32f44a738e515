package domain_test

import (
	"errors"
	"testing"

	"github.com/msomdec/gymtrack/internal/domain"
)

func TestDayNumberFor(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		start string
		want  int
	}{
		{"start day", "2024-01-01", "2024-01-01", 1},
		{"next day", "2024-01-02", "2024-01-01", 2},
		{"last day of cycle", "2024-01-10", "2024-01-01", 10},
		{"wraps to first", "2024-01-11", "2024-01-01", 1},
		{"across month", "2024-02-05", "2024-01-01", 6},
		{"day before start", "2023-12-31", "2024-01-01", 10},
		{"far before start", "2023-12-22", "2024-01-01", 1},
		{"across leap day", "2024-03-01", "2024-02-28", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.DayNumberFor(tt.date, tt.start)
			if err != nil {
				t.Fatalf("DayNumberFor: %v", err)
			}
			if got != tt.want {
				t.Fatalf("DayNumberFor(%s, %s) = %d, want %d", tt.date, tt.start, got, tt.want)
			}
		})
	}
}

func TestDayNumberFor_InvalidDate(t *testing.T) {
	_, err := domain.DayNumberFor("01/02/2024", "2024-01-01")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestValidDayNumber(t *testing.T) {
	for _, n := range []int{1, 5, 10} {
		if !domain.ValidDayNumber(n) {
			t.Fatalf("expected %d to be valid", n)
		}
	}
	for _, n := range []int{0, 11, -1} {
		if domain.ValidDayNumber(n) {
			t.Fatalf("expected %d to be invalid", n)
		}
	}
}
