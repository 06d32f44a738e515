package domain

// MuscleGroupExercises lists the exercises available for one muscle group.
type MuscleGroupExercises struct {
	Name      string     `json:"name"`
	Exercises []Exercise `json:"exercises"`
}

// GroupView is an exercise group expanded with its candidate exercises.
type GroupView struct {
	ID           int64                  `json:"id"`
	Name         string                 `json:"name"`
	MuscleGroups []MuscleGroupExercises `json:"muscleGroups"`
}

// Today is the workout view for one date.
type Today struct {
	Date              string            `json:"date"`
	DayNumber         int               `json:"dayNumber"`
	ExerciseGroup     *GroupView        `json:"exerciseGroup"`
	Session           *Session          `json:"session"`
	ActiveDays        []SessionDay      `json:"activeDays"`
	SelectedExercises []SessionExercise `json:"selectedExercises"`
	Sets              []Set             `json:"sets"`
}

// SessionDetail is a session with everything recorded under it.
type SessionDetail struct {
	Session   Session           `json:"session"`
	Days      []SessionDay      `json:"days"`
	Exercises []SessionExercise `json:"exercises"`
	Sets      []Set             `json:"sets"`
}

// History is one page of completed sessions.
type History struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}

// NewGroupView expands g with the exercises of its two muscle groups.
func NewGroupView(g ExerciseGroup, exercises []Exercise) *GroupView {
	v := &GroupView{
		ID:   g.ID,
		Name: g.Name,
		MuscleGroups: []MuscleGroupExercises{
			{Name: g.MuscleGroup1, Exercises: []Exercise{}},
			{Name: g.MuscleGroup2, Exercises: []Exercise{}},
		},
	}
	for _, e := range exercises {
		for i := range v.MuscleGroups {
			if e.MuscleGroup == v.MuscleGroups[i].Name {
				v.MuscleGroups[i].Exercises = append(v.MuscleGroups[i].Exercises, e)
			}
		}
	}
	return v
}
