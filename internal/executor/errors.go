package executor

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnexpected wraps a panic recovered while running a step.
var ErrUnexpected = errors.New("unexpected failure")

// LocateError means a required element or window did not appear in time. It
// aborts the run.
type LocateError struct {
	Step   int
	Name   string
	Target string
	Wait   time.Duration
	Err    error
}

func (e *LocateError) Error() string {
	return fmt.Sprintf("step %d (%s): %s not found within %s: %v", e.Step, e.Name, e.Target, e.Wait, e.Err)
}

func (e *LocateError) Unwrap() error { return e.Err }

// QuestionError means the site asked a security question the credential
// bundle has no answer for.
type QuestionError struct {
	Step     int
	Question string
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("step %d: no answer configured for security question %q", e.Step, e.Question)
}

// ActionError is a failure of an element primitive after the element was found.
type ActionError struct {
	Step   int
	Name   string
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("step %d (%s): %s failed: %v", e.Step, e.Name, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
