package model

import (
	"fmt"
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/exception"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// StepExecution is one attempt at running a step within a JobExecution.
type StepExecution struct {
	ID       string
	StepName string
	// JobExecution is a non-owning back-reference; it is not persisted.
	JobExecution     *JobExecution
	JobExecutionID   string
	Status           BatchStatus
	ExitStatus       ExitStatus
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	SkipReadCount    int
	SkipProcessCount int
	SkipWriteCount   int
	ExecutionContext ExecutionContext
	Failures         FailureList
	StartTime        time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	Version          int
}

// NewStepExecution creates a StepExecution of jobExecution in state STARTING.
// Callers attach it with JobExecution.AddStepExecution.
func NewStepExecution(jobExecution *JobExecution, stepName string) *StepExecution {
	now := time.Now()
	se := &StepExecution{
		ID:               NewID(),
		StepName:         stepName,
		JobExecution:     jobExecution,
		JobExecutionID:   jobExecution.ID,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		ExecutionContext: NewExecutionContext(),
		Failures:         make(FailureList, 0),
		StartTime:        now,
		LastUpdated:      now,
	}
	return se
}

// SkipCount is the total of read, process and write skips.
func (se *StepExecution) SkipCount() int {
	return se.SkipReadCount + se.SkipProcessCount + se.SkipWriteCount
}

// CopyForRestart creates the step execution of a restarted job execution. A COMPLETED step
// keeps its status and counters; any other step starts over from its execution context.
func (se *StepExecution) CopyForRestart(jobExecution *JobExecution) *StepExecution {
	copied := NewStepExecution(jobExecution, se.StepName)
	copied.ExecutionContext = se.ExecutionContext.Copy()
	if se.Status != BatchStatusCompleted {
		return copied
	}
	copied.Status = BatchStatusCompleted
	copied.ExitStatus = se.ExitStatus
	copied.StartTime = se.StartTime
	copied.EndTime = se.EndTime
	copied.ReadCount = se.ReadCount
	copied.WriteCount = se.WriteCount
	copied.CommitCount = se.CommitCount
	copied.RollbackCount = se.RollbackCount
	copied.FilterCount = se.FilterCount
	copied.SkipReadCount = se.SkipReadCount
	copied.SkipProcessCount = se.SkipProcessCount
	copied.SkipWriteCount = se.SkipWriteCount
	return copied
}

// TransitionTo changes the status after validating the transition.
func (se *StepExecution) TransitionTo(newStatus BatchStatus) error {
	if !isValidStepTransition(se.Status, newStatus) {
		return fmt.Errorf("StepExecution (ID: %s, step: %s): invalid state transition: %s -> %s", se.ID, se.StepName, se.Status, newStatus)
	}
	se.Status = newStatus
	se.LastUpdated = time.Now()
	return nil
}

// MarkAsStarted moves the step to STARTED.
func (se *StepExecution) MarkAsStarted() error {
	if err := se.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("%v", err)
		return err
	}
	se.StartTime = se.LastUpdated
	return nil
}

// MarkAsCompleted moves the step to COMPLETED.
func (se *StepExecution) MarkAsCompleted() error {
	if err := se.TransitionTo(BatchStatusCompleted); err != nil {
		logger.Warnf("%v", err)
		return err
	}
	se.finish(ExitStatusCompleted)
	return nil
}

// MarkAsStopped moves the step to STOPPED.
func (se *StepExecution) MarkAsStopped() error {
	if err := se.TransitionTo(BatchStatusStopped); err != nil {
		logger.Warnf("%v", err)
		return err
	}
	se.finish(ExitStatusStopped)
	return nil
}

// MarkAsFailed moves the step to FAILED and records err. The transition is forced when rejected.
func (se *StepExecution) MarkAsFailed(err error) {
	if terr := se.TransitionTo(BatchStatusFailed); terr != nil {
		logger.Warnf("%v; forcing FAILED", terr)
		se.Status = BatchStatusFailed
	}
	se.finish(ExitStatusFailed)
	se.AddFailureException(err)
}

func (se *StepExecution) finish(exit ExitStatus) {
	now := time.Now()
	se.ExitStatus = exit
	se.EndTime = &now
	se.LastUpdated = now
}

// AddFailureException records err as "<Kind>: <message>", ignoring duplicates.
func (se *StepExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	msg := exception.ExtractErrorMessage(err)
	if se.Failures.contains(msg) {
		return
	}
	se.Failures = append(se.Failures, msg)
	se.LastUpdated = time.Now()
}

// DebugString summarizes the execution without its ExecutionContext.
func (se *StepExecution) DebugString() string {
	return fmt.Sprintf("StepExecution{ID:%s Step:%s Status:%s Exit:%s Read:%d Write:%d Commit:%d Rollback:%d Filter:%d Skip:%d EC:%d keys Version:%d}",
		se.ID, se.StepName, se.Status, se.ExitStatus, se.ReadCount, se.WriteCount, se.CommitCount,
		se.RollbackCount, se.FilterCount, se.SkipCount(), len(se.ExecutionContext), se.Version)
}

// CheckpointData is the committed restart state of a step execution.
type CheckpointData struct {
	StepExecutionID  string
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
}

// NewCheckpointData snapshots the execution context of se.
func NewCheckpointData(se *StepExecution) *CheckpointData {
	return &CheckpointData{
		StepExecutionID:  se.ID,
		ExecutionContext: se.ExecutionContext.Copy(),
		LastUpdated:      time.Now(),
	}
}
