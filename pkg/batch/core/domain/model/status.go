package model

// BatchStatus is the lifecycle state of a job or step execution.
type BatchStatus string

const (
	BatchStatusStarting  BatchStatus = "STARTING"
	BatchStatusStarted   BatchStatus = "STARTED"
	BatchStatusStopping  BatchStatus = "STOPPING"
	BatchStatusStopped   BatchStatus = "STOPPED"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusFailed    BatchStatus = "FAILED"
	BatchStatusAbandoned BatchStatus = "ABANDONED"
	BatchStatusUnknown   BatchStatus = "UNKNOWN"
)

// String returns the string representation of the BatchStatus.
func (s BatchStatus) String() string {
	return string(s)
}

// IsFinished reports whether s is terminal: COMPLETED, FAILED, STOPPED or ABANDONED.
func (s BatchStatus) IsFinished() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusStopped, BatchStatusAbandoned:
		return true
	default:
		return false
	}
}

// IsRunning reports whether an execution in state s is still owned by a live launch.
func (s BatchStatus) IsRunning() bool {
	switch s {
	case BatchStatusStarting, BatchStatusStarted, BatchStatusStopping:
		return true
	default:
		return false
	}
}

// ToExitStatus converts the BatchStatus to its corresponding ExitStatus.
func (s BatchStatus) ToExitStatus() ExitStatus {
	switch s {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusFailed:
		return ExitStatusFailed
	case BatchStatusStopped:
		return ExitStatusStopped
	case BatchStatusAbandoned:
		return ExitStatusAbandoned
	default:
		return ExitStatusUnknown
	}
}

// ExitStatus is the outcome recorded when a job or step ends.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
	ExitStatusAbandoned ExitStatus = "ABANDONED"
	ExitStatusNoOp      ExitStatus = "NOOP"
)

// String returns the ExitStatus as a string.
func (s ExitStatus) String() string {
	return string(s)
}

// ExitCode is the process exit code for the status: 0 for COMPLETED and NOOP, 1 otherwise.
func (s ExitStatus) ExitCode() int {
	switch s {
	case ExitStatusCompleted, ExitStatusNoOp:
		return 0
	default:
		return 1
	}
}

// RepeatStatus is returned by a tasklet to tell the step whether to invoke it again.
type RepeatStatus string

const (
	RepeatStatusContinuable RepeatStatus = "CONTINUABLE"
	RepeatStatusFinished    RepeatStatus = "FINISHED"
)

// String returns the RepeatStatus as a string.
func (s RepeatStatus) String() string {
	return string(s)
}

// isValidJobTransition checks a JobExecution status change.
func isValidJobTransition(current, next BatchStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusStarted:
		return next == BatchStatusStopping || next == BatchStatusStopped || next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusAbandoned
	case BatchStatusStopping:
		return next == BatchStatusStopped || next == BatchStatusFailed || next == BatchStatusAbandoned
	case BatchStatusStopped, BatchStatusFailed:
		// A restarted lineage abandons its previous execution.
		return next == BatchStatusAbandoned
	default:
		return false
	}
}

// isValidStepTransition checks a StepExecution status change.
func isValidStepTransition(current, next BatchStatus) bool {
	switch current {
	case BatchStatusStarting:
		return next == BatchStatusStarted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	case BatchStatusStarted:
		return next == BatchStatusCompleted || next == BatchStatusFailed || next == BatchStatusStopped || next == BatchStatusAbandoned
	default:
		return false
	}
}
