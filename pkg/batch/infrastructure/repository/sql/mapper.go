package sql

import (
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
)

func fromDomainJobInstance(ji *model.JobInstance) *JobInstanceEntity {
	return &JobInstanceEntity{
		ID:             ji.ID,
		JobName:        ji.JobName,
		Parameters:     ji.Parameters,
		ParametersHash: ji.ParametersHash,
		CreateTime:     ji.CreateTime,
		Version:        ji.Version,
	}
}

func toDomainJobInstance(entity *JobInstanceEntity) *model.JobInstance {
	return &model.JobInstance{
		ID:             entity.ID,
		JobName:        entity.JobName,
		Parameters:     entity.Parameters,
		ParametersHash: entity.ParametersHash,
		CreateTime:     entity.CreateTime,
		Version:        entity.Version,
	}
}

func fromDomainJobExecution(je *model.JobExecution) *JobExecutionEntity {
	return &JobExecutionEntity{
		ID:               je.ID,
		JobInstanceID:    je.JobInstanceID,
		JobName:          je.JobName,
		Parameters:       je.Parameters,
		StartTime:        je.StartTime,
		EndTime:          je.EndTime,
		Status:           je.Status,
		ExitStatus:       je.ExitStatus,
		ExitCode:         je.ExitCode,
		Failures:         je.Failures,
		Version:          je.Version,
		CreateTime:       je.CreateTime,
		LastUpdated:      je.LastUpdated,
		ExecutionContext: je.ExecutionContext,
		CurrentStepName:  je.CurrentStepName,
		RestartCount:     je.RestartCount,
	}
}

// toDomainJobExecution maps entity without step executions; the repository attaches them.
func toDomainJobExecution(entity *JobExecutionEntity) *model.JobExecution {
	return &model.JobExecution{
		ID:               entity.ID,
		JobInstanceID:    entity.JobInstanceID,
		JobName:          entity.JobName,
		Parameters:       entity.Parameters,
		StartTime:        entity.StartTime,
		EndTime:          entity.EndTime,
		Status:           entity.Status,
		ExitStatus:       entity.ExitStatus,
		ExitCode:         entity.ExitCode,
		Failures:         nonNilFailures(entity.Failures),
		Version:          entity.Version,
		CreateTime:       entity.CreateTime,
		LastUpdated:      entity.LastUpdated,
		ExecutionContext: nonNilContext(entity.ExecutionContext),
		CurrentStepName:  entity.CurrentStepName,
		RestartCount:     entity.RestartCount,
		StepExecutions:   make([]*model.StepExecution, 0),
	}
}

func fromDomainStepExecution(se *model.StepExecution, createTime time.Time) *StepExecutionEntity {
	return &StepExecutionEntity{
		ID:               se.ID,
		StepName:         se.StepName,
		JobExecutionID:   se.JobExecutionID,
		StartTime:        se.StartTime,
		EndTime:          se.EndTime,
		Status:           se.Status,
		ExitStatus:       se.ExitStatus,
		Failures:         se.Failures,
		ReadCount:        se.ReadCount,
		WriteCount:       se.WriteCount,
		CommitCount:      se.CommitCount,
		RollbackCount:    se.RollbackCount,
		FilterCount:      se.FilterCount,
		SkipReadCount:    se.SkipReadCount,
		SkipProcessCount: se.SkipProcessCount,
		SkipWriteCount:   se.SkipWriteCount,
		ExecutionContext: se.ExecutionContext,
		CreateTime:       createTime,
		LastUpdated:      se.LastUpdated,
		Version:          se.Version,
	}
}

// toDomainStepExecution maps entity without the JobExecution back-reference.
func toDomainStepExecution(entity *StepExecutionEntity) *model.StepExecution {
	return &model.StepExecution{
		ID:               entity.ID,
		StepName:         entity.StepName,
		JobExecutionID:   entity.JobExecutionID,
		StartTime:        entity.StartTime,
		EndTime:          entity.EndTime,
		Status:           entity.Status,
		ExitStatus:       entity.ExitStatus,
		Failures:         nonNilFailures(entity.Failures),
		ReadCount:        entity.ReadCount,
		WriteCount:       entity.WriteCount,
		CommitCount:      entity.CommitCount,
		RollbackCount:    entity.RollbackCount,
		FilterCount:      entity.FilterCount,
		SkipReadCount:    entity.SkipReadCount,
		SkipProcessCount: entity.SkipProcessCount,
		SkipWriteCount:   entity.SkipWriteCount,
		ExecutionContext: nonNilContext(entity.ExecutionContext),
		LastUpdated:      entity.LastUpdated,
		Version:          entity.Version,
	}
}

func fromDomainCheckpointData(cd *model.CheckpointData) *CheckpointDataEntity {
	return &CheckpointDataEntity{
		StepExecutionID:  cd.StepExecutionID,
		ExecutionContext: cd.ExecutionContext,
		LastUpdated:      cd.LastUpdated,
	}
}

func toDomainCheckpointData(entity *CheckpointDataEntity) *model.CheckpointData {
	return &model.CheckpointData{
		StepExecutionID:  entity.StepExecutionID,
		ExecutionContext: nonNilContext(entity.ExecutionContext),
		LastUpdated:      entity.LastUpdated,
	}
}

func nonNilContext(ec model.ExecutionContext) model.ExecutionContext {
	if ec == nil {
		return model.NewExecutionContext()
	}
	return ec
}

func nonNilFailures(fl model.FailureList) model.FailureList {
	if fl == nil {
		return make(model.FailureList, 0)
	}
	return fl
}
