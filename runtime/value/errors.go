package value

import (
	"fmt"

	"github.com/mna/divm/lang/token"
)

// ErrorKind tags the category of a runtime error.
type ErrorKind uint8

const (
	ArgumentError ErrorKind = iota
	TypeError
	ArithmeticError
	IndexError
	KeyError
	FieldError
	ReadOnlyError
	ContextError
	StackOverflowError
	ScriptError
)

var errorKindNames = [...]string{
	ArgumentError:       "ArgumentError",
	TypeError:           "TypeError",
	ArithmeticError:     "ArithmeticError",
	IndexError:          "IndexError",
	KeyError:            "KeyError",
	FieldError:          "FieldError",
	ReadOnlyError:       "ReadOnlyError",
	ContextError:        "ContextError",
	StackOverflowError:  "StackOverflowError",
	ScriptError:         "ScriptError",
}

func (k ErrorKind) String() string { return errorKindNames[k] }

// RuntimeError is the Go representation of a raised script-level error:
// every opcode and native-call failure produces one of these,
// and THROW wraps an arbitrary script Value as a ScriptError-kind
// RuntimeError so both paths unwind through the same handler-stack
// machinery.
type RuntimeError struct {
	Kind  ErrorKind
	Msg   string
	Pos   token.Pos
	Value Value // set when Kind == ScriptError and thrown from a `throw` statement
}

func (e *RuntimeError) Error() string {
	if e.Pos != 0 {
		line, col := e.Pos.LineCol()
		return fmt.Sprintf("%d:%d: %s: %s", line, col, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NewError constructs a RuntimeError of the given kind.
func NewError(kind ErrorKind, pos token.Pos, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Msg: fmt.Sprintf(format, args...), Pos: pos}
}

// ErrorValue wraps a RuntimeError as a first-class Value of Kind KError, so
// a catch clause can bind it to a local like any other value.
func ErrorValue(err *RuntimeError) Value { return Value{Kind: KError, Ref: err} }
