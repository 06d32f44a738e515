package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msomdec/gymtrack/internal/domain"
)

func newTodayCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "today [date]",
		Short: "Show the workout for a date (default today)",
		Example: "  gymtrack today\n  gymtrack today yesterday\n  gymtrack today 2024-03-01",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := dateArg(args)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				if err := a.requireReady(); err != nil {
					return err
				}
				today, err := a.workout.Today(ctx, date)
				if err != nil {
					return err
				}
				names, err := a.exerciseNames(ctx)
				if err != nil {
					return err
				}
				return a.print(today, func() string { return renderToday(today, names) })
			})
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				h, err := a.workout.History(ctx, limit, offset)
				if err != nil {
					return err
				}
				return a.print(h, func() string {
					if len(h.Sessions) == 0 {
						return muted.Render("no completed sessions")
					}
					lines := []string{title.Render(fmt.Sprintf("%d completed", h.Total))}
					for i := range h.Sessions {
						lines = append(lines, renderSession(&h.Sessions[i]))
					}
					if h.HasMore {
						lines = append(lines, muted.Render("more with --offset"))
					}
					return strings.Join(lines, "\n")
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "sessions per page")
	cmd.Flags().IntVar(&offset, "offset", 0, "sessions to skip")
	return cmd
}

func newSessionCmd(opts *options) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Start, complete or annotate sessions"}

	session.AddCommand(&cobra.Command{
		Use:   "start [date]",
		Short: "Start the session for a date (default today); needs the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := dateArg(args)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				if err := a.requireReady(); err != nil {
					return err
				}
				s, err := a.workout.StartSession(ctx, date)
				if err != nil {
					return err
				}
				return a.print(s, func() string { return renderSession(s) })
			})
		},
	})

	session.AddCommand(&cobra.Command{
		Use:   "complete <session-id>",
		Short: "Mark a session completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				s, err := a.workout.CompleteSession(ctx, id)
				if err != nil {
					return err
				}
				a.flush(ctx)
				return a.print(s, func() string { return renderSession(s) })
			})
		},
	})

	session.AddCommand(&cobra.Command{
		Use:   "notes <session-id> <text>",
		Short: "Replace a session's notes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			notes := strings.Join(args[1:], " ")
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				s, err := a.workout.UpdateSession(ctx, id, domain.SessionUpdate{Notes: &notes})
				if err != nil {
					return err
				}
				a.flush(ctx)
				return a.print(s, func() string { return renderSession(s) })
			})
		},
	})
	return session
}

// setFlags are the optional measurements shared by set log and set update.
type setFlags struct {
	reps      int
	weight    float64
	duration  int
	notes     string
	completed bool
}

func (f *setFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.reps, "reps", 0, "repetitions")
	cmd.Flags().Float64Var(&f.weight, "weight", 0, "weight")
	cmd.Flags().IntVar(&f.duration, "duration", 0, "duration in seconds")
	cmd.Flags().StringVar(&f.notes, "notes", "", "notes")
	cmd.Flags().BoolVar(&f.completed, "completed", true, "whether the set was completed")
}

// update converts the flags the user actually set.
func (f *setFlags) update(cmd *cobra.Command) domain.SetUpdate {
	var u domain.SetUpdate
	changed := cmd.Flags().Changed
	if changed("reps") {
		u.Reps = &f.reps
	}
	if changed("weight") {
		u.Weight = &f.weight
	}
	if changed("duration") {
		u.DurationSeconds = &f.duration
	}
	if changed("notes") {
		u.Notes = &f.notes
	}
	if changed("completed") {
		u.Completed = &f.completed
	}
	return u
}

func newSetCmd(opts *options) *cobra.Command {
	set := &cobra.Command{Use: "set", Short: "Log, edit or delete sets"}

	var (
		logFlags   setFlags
		sessionID  int64
		exerciseID int64
		setNumber  int
	)
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Log a set; works offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				n := setNumber
				if n == 0 {
					var err error
					if n, err = a.workout.NextSetNumber(ctx, sessionID, exerciseID); err != nil {
						return err
					}
				}
				u := logFlags.update(cmd)
				s, err := a.workout.LogSet(ctx, domain.NewSet{
					SessionID:       sessionID,
					ExerciseID:      exerciseID,
					SetNumber:       n,
					Reps:            u.Reps,
					Weight:          u.Weight,
					DurationSeconds: u.DurationSeconds,
					Notes:           u.Notes,
					Completed:       u.Completed,
				})
				if err != nil {
					return err
				}
				a.flush(ctx)
				if synced, err := a.store.Set(ctx, s.ID); err == nil {
					s = synced
				}
				names, err := a.exerciseNames(ctx)
				if err != nil {
					return err
				}
				return a.print(s, func() string { return renderSetLine(*s, nameOf(names, s.ExerciseID)) })
			})
		},
	}
	logCmd.Flags().Int64Var(&sessionID, "session", 0, "session id")
	logCmd.Flags().Int64Var(&exerciseID, "exercise", 0, "exercise id")
	logCmd.Flags().IntVar(&setNumber, "set-number", 0, "set number (default next for the exercise)")
	_ = logCmd.MarkFlagRequired("session")
	_ = logCmd.MarkFlagRequired("exercise")
	logFlags.register(logCmd)

	var updateFlags setFlags
	updateCmd := &cobra.Command{
		Use:   "update <set-id>",
		Short: "Edit a logged set; works offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				s, err := a.workout.UpdateSet(ctx, id, updateFlags.update(cmd))
				if err != nil {
					return err
				}
				a.flush(ctx)
				names, err := a.exerciseNames(ctx)
				if err != nil {
					return err
				}
				return a.print(s, func() string { return renderSetLine(*s, nameOf(names, s.ExerciseID)) })
			})
		},
	}
	updateFlags.register(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <set-id>",
		Short: "Delete a set; needs the server unless the set was never synced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				if err := a.workout.DeleteSet(ctx, id); err != nil {
					return err
				}
				return a.print(map[string]any{"deleted": id}, func() string {
					return muted.Render(fmt.Sprintf("set #%d deleted", id))
				})
			})
		},
	}

	set.AddCommand(logCmd, updateCmd, deleteCmd)
	return set
}

func newDayCmd(opts *options) *cobra.Command {
	day := &cobra.Command{Use: "day", Short: "Manage the rotation days trained in a session"}
	day.AddCommand(&cobra.Command{
		Use:   "toggle <session-id> <day>",
		Short: "Activate or deactivate a rotation day; needs the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dayNumber, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: day %q", domain.ErrInvalidInput, args[1])
			}
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				active, err := a.workout.ToggleDay(ctx, id, dayNumber)
				if err != nil {
					return err
				}
				return a.print(map[string]any{"sessionId": id, "dayNumber": dayNumber, "active": active}, func() string {
					if active {
						return good.Render(fmt.Sprintf("day %d active", dayNumber))
					}
					return muted.Render(fmt.Sprintf("day %d inactive", dayNumber))
				})
			})
		},
	})
	return day
}

func newSelectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "select <session-id> <day> <exercise-1> <exercise-2>",
		Short: "Choose one exercise per muscle group for an active day; needs the server",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dayNumber, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: day %q", domain.ErrInvalidInput, args[1])
			}
			ex1, err := parseID(args[2])
			if err != nil {
				return err
			}
			ex2, err := parseID(args[3])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				selected, err := a.workout.SelectExercises(ctx, id, dayNumber, ex1, ex2)
				if err != nil {
					return err
				}
				names, err := a.exerciseNames(ctx)
				if err != nil {
					return err
				}
				return a.print(selected, func() string {
					lines := make([]string, 0, len(selected))
					for _, e := range selected {
						lines = append(lines, fmt.Sprintf("%s %s", label.Render(e.MuscleGroup), nameOf(names, e.ExerciseID)))
					}
					return strings.Join(lines, "\n")
				})
			})
		},
	}
}

func (a *app) exerciseNames(ctx context.Context) (map[int64]string, error) {
	rows, err := a.store.Query(ctx, "SELECT id, name FROM exercises")
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(rows))
	for _, r := range rows {
		id, _ := r["id"].(int64)
		name, _ := r["name"].(string)
		names[id] = name
	}
	return names, nil
}
