package domain

import "time"

// CycleLength is the number of days in one training rotation.
const CycleLength = 10

// DayNumber returns the 1-based position of date within the rotation that
// began on cycleStart. Dates before the start wrap backwards.
func DayNumber(date, cycleStart time.Time) int {
	d := civil(date)
	s := civil(cycleStart)
	diff := int(d.Sub(s).Hours() / 24)
	return ((diff%CycleLength)+CycleLength)%CycleLength + 1
}

// DayNumberFor is DayNumber on YYYY-MM-DD strings.
func DayNumberFor(date, cycleStart string) (int, error) {
	d, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	s, err := ParseDate(cycleStart)
	if err != nil {
		return 0, err
	}
	return DayNumber(d, s), nil
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidDayNumber reports whether n falls inside the rotation.
func ValidDayNumber(n int) bool {
	return n >= 1 && n <= CycleLength
}
