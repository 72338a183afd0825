package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// JobInstance is the logical run of a job: one per (job name, parameters).
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

// NewJobInstance creates a JobInstance for jobName and params.
func NewJobInstance(jobName string, params JobParameters) (*JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Parameters:     params.Copy(),
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}, nil
}

// JobExecution is one attempt at running a JobInstance.
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	Status           BatchStatus
	ExitStatus       ExitStatus
	ExitCode         int
	StepExecutions   []*StepExecution
	StartTime        time.Time
	EndTime          *time.Time
	CreateTime       time.Time
	LastUpdated      time.Time
	Failures         FailureList
	ExecutionContext ExecutionContext
	CurrentStepName  string
	RestartCount     int
	Version          int
}

// NewJobExecution creates a JobExecution in state STARTING.
func NewJobExecution(jobInstanceID string, jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               NewID(),
		JobInstanceID:    jobInstanceID,
		JobName:          jobName,
		Parameters:       params.Copy(),
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		ExitCode:         ExitStatusUnknown.ExitCode(),
		StepExecutions:   make([]*StepExecution, 0),
		StartTime:        now,
		CreateTime:       now,
		LastUpdated:      now,
		Failures:         make(FailureList, 0),
		ExecutionContext: NewExecutionContext(),
	}
}

// NewRestartExecution creates the next execution of prev's instance. Steps that completed in
// prev are carried over as COMPLETED so they are not re-run; the others restart from the
// execution context they last committed.
func NewRestartExecution(prev *JobExecution) *JobExecution {
	je := NewJobExecution(prev.JobInstanceID, prev.JobName, prev.Parameters)
	je.RestartCount = prev.RestartCount + 1
	je.ExecutionContext = prev.ExecutionContext.Copy()
	for _, se := range prev.StepExecutions {
		je.AddStepExecution(se.CopyForRestart(je))
	}
	return je
}

// TransitionTo changes the status after validating the transition.
func (je *JobExecution) TransitionTo(newStatus BatchStatus) error {
	if !isValidJobTransition(je.Status, newStatus) {
		return fmt.Errorf("JobExecution (ID: %s): invalid state transition: %s -> %s", je.ID, je.Status, newStatus)
	}
	je.Status = newStatus
	je.LastUpdated = time.Now()
	return nil
}

// MarkAsStarted moves the execution to STARTED.
func (je *JobExecution) MarkAsStarted() error {
	if err := je.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("%v", err)
		return err
	}
	je.StartTime = je.LastUpdated
	return nil
}

// MarkAsCompleted moves the execution to COMPLETED.
func (je *JobExecution) MarkAsCompleted() error {
	if err := je.TransitionTo(BatchStatusCompleted); err != nil {
		logger.Warnf("%v", err)
		return err
	}
	je.finish(ExitStatusCompleted)
	return nil
}

// MarkAsStopped moves the execution to STOPPED.
func (je *JobExecution) MarkAsStopped() error {
	if err := je.TransitionTo(BatchStatusStopped); err != nil {
		logger.Warnf("%v", err)
		return err
	}
	je.finish(ExitStatusStopped)
	return nil
}

// MarkAsFailed moves the execution to FAILED and records err.
// The transition is forced when the table rejects it, so a failure is never lost.
func (je *JobExecution) MarkAsFailed(err error) {
	if terr := je.TransitionTo(BatchStatusFailed); terr != nil {
		logger.Warnf("%v; forcing FAILED", terr)
		je.Status = BatchStatusFailed
	}
	je.finish(ExitStatusFailed)
	je.AddFailureException(err)
}

// MarkAsAbandoned moves a finished, non-complete execution to ABANDONED.
// The transition is forced when the table rejects it.
func (je *JobExecution) MarkAsAbandoned() {
	if err := je.TransitionTo(BatchStatusAbandoned); err != nil {
		logger.Warnf("%v; forcing ABANDONED", err)
		je.Status = BatchStatusAbandoned
	}
	if je.EndTime == nil {
		je.finish(ExitStatusAbandoned)
		return
	}
	je.ExitStatus = ExitStatusAbandoned
	je.ExitCode = ExitStatusAbandoned.ExitCode()
}

func (je *JobExecution) finish(exit ExitStatus) {
	now := time.Now()
	je.ExitStatus = exit
	je.ExitCode = exit.ExitCode()
	je.EndTime = &now
	je.LastUpdated = now
}

// AddFailureException records err as "<Kind>: <message>", ignoring duplicates.
func (je *JobExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	msg := exception.ExtractErrorMessage(err)
	if je.Failures.contains(msg) {
		return
	}
	je.Failures = append(je.Failures, msg)
	je.LastUpdated = time.Now()
}

// AddStepExecution appends se to the ordered step executions.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	je.StepExecutions = append(je.StepExecutions, se)
}

// StepExecution returns the latest step execution named stepName, or nil.
func (je *JobExecution) StepExecution(stepName string) *StepExecution {
	for i := len(je.StepExecutions) - 1; i >= 0; i-- {
		if je.StepExecutions[i].StepName == stepName {
			return je.StepExecutions[i]
		}
	}
	return nil
}
