package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/syncengine"
)

var (
	colorSubtext = lipgloss.Color("#a6adc8")
	colorAccent  = lipgloss.Color("#74c7ec")
	colorGreen   = lipgloss.Color("#a6e3a1")
	colorPeach   = lipgloss.Color("#fab387")
	colorRed     = lipgloss.Color("#f38ba8")
	colorBorder  = lipgloss.Color("#45475a")

	title = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	muted = lipgloss.NewStyle().Foreground(colorSubtext)
	good  = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	warn  = lipgloss.NewStyle().Foreground(colorPeach).Bold(true)
	bad   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	label = lipgloss.NewStyle().Foreground(colorSubtext).Width(16)
	panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)
)

func field(name, value string) string {
	return label.Render(name) + value
}

func renderStatus(st syncengine.Status) string {
	online := bad.Render("offline")
	if st.Online {
		online = good.Render("online")
	}
	lastSync := muted.Render("never")
	if st.LastSync != "" {
		lastSync = string(st.LastSync)
	}
	pending := good.Render("0")
	if n := st.Dirty.Total(); n > 0 {
		pending = warn.Render(fmt.Sprintf("%d (sessions %d, days %d, exercises %d, sets %d)",
			n, st.Dirty.Sessions, st.Dirty.SessionDays, st.Dirty.SessionExercises, st.Dirty.Sets))
	}

	lines := []string{
		title.Render("Sync status"),
		field("engine", st.State),
		field("server", online),
		field("last sync", lastSync),
		field("pending", pending),
	}
	if st.Watermark != "" {
		lines = append(lines, field("watermark", muted.Render(string(st.Watermark))))
	}
	if st.LastError != "" {
		lines = append(lines, field("last error", bad.Render(st.LastError)))
	}
	return panel.Render(strings.Join(lines, "\n"))
}

func renderToday(t *domain.Today, names map[int64]string) string {
	var b strings.Builder
	b.WriteString(title.Render(fmt.Sprintf("%s · day %d", t.Date, t.DayNumber)))
	if t.ExerciseGroup != nil {
		b.WriteString("  " + muted.Render(t.ExerciseGroup.Name))
	}
	b.WriteString("\n")

	if t.Session == nil {
		b.WriteString(muted.Render("no session; start one with `gymtrack session start`"))
		return b.String()
	}
	b.WriteString(field("session", fmt.Sprintf("#%d %s", t.Session.ID, t.Session.Status)) + "\n")
	if t.Session.Notes != nil && *t.Session.Notes != "" {
		b.WriteString(field("notes", *t.Session.Notes) + "\n")
	}

	days := make([]string, 0, len(t.ActiveDays))
	for _, d := range t.ActiveDays {
		days = append(days, fmt.Sprintf("%d", d.DayNumber))
	}
	if len(days) == 0 {
		days = append(days, muted.Render("none"))
	}
	b.WriteString(field("active days", strings.Join(days, ", ")) + "\n")

	for _, e := range t.SelectedExercises {
		b.WriteString(field(fmt.Sprintf("day %d #%d", e.DayNumber, e.SelectionOrder),
			fmt.Sprintf("%s (%s)", nameOf(names, e.ExerciseID), e.MuscleGroup)) + "\n")
	}

	if len(t.Sets) == 0 {
		b.WriteString(muted.Render("no sets logged"))
		return b.String()
	}
	for _, s := range t.Sets {
		b.WriteString(renderSetLine(s, nameOf(names, s.ExerciseID)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSetLine(s domain.Set, exercise string) string {
	parts := []string{fmt.Sprintf("#%d %s set %d", s.ID, exercise, s.SetNumber)}
	if s.Reps != nil {
		parts = append(parts, fmt.Sprintf("%d reps", *s.Reps))
	}
	if s.Weight != nil {
		parts = append(parts, fmt.Sprintf("%g kg", *s.Weight))
	}
	if s.DurationSeconds != nil {
		parts = append(parts, fmt.Sprintf("%ds", *s.DurationSeconds))
	}
	line := strings.Join(parts, " · ")
	if s.LastSyncedAt == nil {
		line += " " + warn.Render("(unsynced)")
	}
	return line
}

func renderSession(s *domain.Session) string {
	line := fmt.Sprintf("session #%d %s %s", s.ID, s.SessionDate, s.Status)
	if s.LastSyncedAt == nil {
		line += " " + warn.Render("(unsynced)")
	}
	return line
}

func nameOf(names map[int64]string, id int64) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("exercise %d", id)
}
