package runner

import "fmt"

// InfraError represents an environment-level error (testbed load, SSH
// connect, log directory). These abort the run before or between tests.
type InfraError struct {
	Op     string // "testbed", "connect", "logdir"
	Device string // device name, or "" for run-level
	Err    error
}

func (e *InfraError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("lantest: %s %s: %v", e.Op, e.Device, e.Err)
	}
	return fmt.Sprintf("lantest: %s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error {
	return e.Err
}

// StepError represents a step execution error.
type StepError struct {
	Step   string
	Action StepAction
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("lantest: step %s (%s): %v", e.Step, e.Action, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
