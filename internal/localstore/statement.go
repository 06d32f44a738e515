package localstore

import (
	"database/sql/driver"
	"fmt"
)

// ArgKind tags the value held by an Arg.
type ArgKind uint8

const (
	ArgNull ArgKind = iota
	ArgInt
	ArgFloat
	ArgText
	ArgBlob
	ArgBool
)

// Arg is a bound statement argument in a form gob can encode without
// registering concrete types.
type Arg struct {
	Kind ArgKind
	I    int64
	F    float64
	S    string
	B    []byte
}

func (a Arg) value() any {
	switch a.Kind {
	case ArgInt:
		return a.I
	case ArgFloat:
		return a.F
	case ArgText:
		return a.S
	case ArgBlob:
		return a.B
	case ArgBool:
		return a.I != 0
	default:
		return nil
	}
}

// Statement is one executed mutation. Journals record statements so that
// replaying them over the same base image reproduces the same database,
// which is why mutations bind timestamps as arguments instead of reading
// SQLite's clock.
type Statement struct {
	SQL  string
	Args []Arg
}

func (s Statement) values() []any {
	vals := make([]any, len(s.Args))
	for i, a := range s.Args {
		vals[i] = a.value()
	}
	return vals
}

// newStatement normalizes args through the driver's default converter so
// pointers, named string types and ints bind the same way live and on
// replay.
func newStatement(query string, args []any) (Statement, error) {
	st := Statement{SQL: query, Args: make([]Arg, len(args))}
	for i, a := range args {
		v, err := driver.DefaultParameterConverter.ConvertValue(a)
		if err != nil {
			return Statement{}, fmt.Errorf("argument %d: %w", i+1, err)
		}
		switch v := v.(type) {
		case nil:
			st.Args[i] = Arg{Kind: ArgNull}
		case int64:
			st.Args[i] = Arg{Kind: ArgInt, I: v}
		case float64:
			st.Args[i] = Arg{Kind: ArgFloat, F: v}
		case string:
			st.Args[i] = Arg{Kind: ArgText, S: v}
		case []byte:
			st.Args[i] = Arg{Kind: ArgBlob, B: append([]byte(nil), v...)}
		case bool:
			b := Arg{Kind: ArgBool}
			if v {
				b.I = 1
			}
			st.Args[i] = b
		default:
			return Statement{}, fmt.Errorf("argument %d: unsupported type %T", i+1, v)
		}
	}
	return st, nil
}
