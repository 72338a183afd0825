package sql

import (
	"time"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
)

// Table names of the job repository. The tables are created by the framework migrations.
const (
	jobInstanceTable    = "batch_job_instance"
	jobExecutionTable   = "batch_job_execution"
	stepExecutionTable  = "batch_step_execution"
	checkpointDataTable = "batch_checkpoint_data"
)

// JobInstanceEntity is the persisted form of model.JobInstance.
type JobInstanceEntity struct {
	ID             string              `gorm:"primaryKey;size:36"`
	JobName        string              `gorm:"size:255;not null;uniqueIndex:uq_job_instance_key"`
	Parameters     model.JobParameters `gorm:"type:text"`
	ParametersHash string              `gorm:"size:64;not null;uniqueIndex:uq_job_instance_key"`
	CreateTime     time.Time           `gorm:"<-:create"`
	Version        int
}

func (JobInstanceEntity) TableName() string {
	return jobInstanceTable
}

// JobExecutionEntity is the persisted form of model.JobExecution without its step executions.
type JobExecutionEntity struct {
	ID               string              `gorm:"primaryKey;size:36"`
	JobInstanceID    string              `gorm:"size:36;not null;index"`
	JobName          string              `gorm:"size:255;not null"`
	Parameters       model.JobParameters `gorm:"type:text"`
	StartTime        time.Time
	EndTime          *time.Time
	Status           model.BatchStatus `gorm:"size:20"`
	ExitStatus       model.ExitStatus  `gorm:"size:20"`
	ExitCode         int
	Failures         model.FailureList `gorm:"type:text"`
	Version          int
	CreateTime       time.Time `gorm:"<-:create"`
	LastUpdated      time.Time
	ExecutionContext model.ExecutionContext `gorm:"type:text"`
	CurrentStepName  string                 `gorm:"size:255"`
	RestartCount     int
}

func (JobExecutionEntity) TableName() string {
	return jobExecutionTable
}

// StepExecutionEntity is the persisted form of model.StepExecution. CreateTime orders the
// step executions of a job execution and is written once.
type StepExecutionEntity struct {
	ID               string `gorm:"primaryKey;size:36"`
	StepName         string `gorm:"size:255;not null"`
	JobExecutionID   string `gorm:"size:36;not null;index"`
	StartTime        time.Time
	EndTime          *time.Time
	Status           model.BatchStatus `gorm:"size:20"`
	ExitStatus       model.ExitStatus  `gorm:"size:20"`
	Failures         model.FailureList `gorm:"type:text"`
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	SkipReadCount    int
	SkipProcessCount int
	SkipWriteCount   int
	ExecutionContext model.ExecutionContext `gorm:"type:text"`
	CreateTime       time.Time              `gorm:"<-:create"`
	LastUpdated      time.Time
	Version          int
}

func (StepExecutionEntity) TableName() string {
	return stepExecutionTable
}

// CheckpointDataEntity is the persisted form of model.CheckpointData.
type CheckpointDataEntity struct {
	StepExecutionID  string                 `gorm:"primaryKey;size:36"`
	ExecutionContext model.ExecutionContext `gorm:"type:text"`
	LastUpdated      time.Time
}

func (CheckpointDataEntity) TableName() string {
	return checkpointDataTable
}

// Entities lists the repository entities in creation order.
func Entities() []interface{} {
	return []interface{}{
		&JobInstanceEntity{},
		&JobExecutionEntity{},
		&StepExecutionEntity{},
		&CheckpointDataEntity{},
	}
}
