package engine

import (
	"errors"
	"fmt"
	"strings"
)

// LoadError reports a malformed area specification: unknown operators,
// bad rule descriptors, forbidden constructs. Loading aborts on the first
// one encountered.
type LoadError struct {
	Path []string
	Msg  string
}

func (e *LoadError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("specification error: %s", e.Msg)
	}
	return fmt.Sprintf("specification error at %s: %s", strings.Join(e.Path, " > "), e.Msg)
}

func loadErrorf(path []string, format string, args ...any) *LoadError {
	return &LoadError{Path: append([]string(nil), path...), Msg: fmt.Sprintf(format, args...)}
}

// ContextError reports audit input that references data the transcript
// does not contain, such as an exception forcing an unknown clbid.
type ContextError struct {
	Msg string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("context error: %s", e.Msg)
}

// ErrAuditHalted signals that the solver hit its deadline or iteration
// budget. Partial state is discarded by the caller.
var ErrAuditHalted = errors.New("audit halted before completion")
