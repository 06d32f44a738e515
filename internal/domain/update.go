package domain

import "strings"

// Assignment is one "column = value" pair of an update command. Column
// names always come from the command type, never from request input.
type Assignment struct {
	Column string
	Value  any
}

// SetClause renders assignments as "a = ?, b = ?" and returns the matching
// arguments.
func SetClause(as []Assignment) (string, []any) {
	cols := make([]string, len(as))
	args := make([]any, len(as))
	for i, a := range as {
		cols[i] = a.Column + " = ?"
		args[i] = a.Value
	}
	return strings.Join(cols, ", "), args
}
