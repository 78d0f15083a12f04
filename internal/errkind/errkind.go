// Package errkind classifies the failures a generation run can hit.
//
// Every failure that aborts a generation unit carries one of four kinds.
// Callers match on kind with errors.Is against the exported sentinels:
//
//	if errors.Is(err, errkind.ErrNotFound) { ... }
package errkind

import "fmt"

// Kind is the machine-readable failure class.
type Kind string

const (
	Config   Kind = "config"    // malformed items/weights or rule definitions
	NotFound Kind = "not_found" // asset missing for a resolved category/item
	Render   Kind = "render"    // compositor failed
	IO       Kind = "io"        // metadata or template read/write failure
)

// Sentinels for errors.Is matching.
var (
	ErrConfig   = &Error{Kind: Config}
	ErrNotFound = &Error{Kind: NotFound}
	ErrRender   = &Error{Kind: Render}
	ErrIO       = &Error{Kind: IO}
)

// Error is a kinded failure wrapping an optional cause.
type Error struct {
	Kind Kind
	Op   string // what was being attempted, e.g. "resolve Eyes/Cat Eyes"
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Op != "":
		return e.Op
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind) + " error"
	}
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New returns a kinded error with a message and no cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Errorf is New with fmt formatting.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and op to cause. A nil cause yields nil.
func Wrap(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}
