package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/repository"
)

// MockJobRepository is a testify mock of repository.JobRepository.
type MockJobRepository struct {
	mock.Mock
}

var _ repository.JobRepository = (*MockJobRepository)(nil)

func (m *MockJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	return m.Called(ctx, instance).Error(0)
}

func (m *MockJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	args := m.Called(ctx, id)
	ji, _ := args.Get(0).(*model.JobInstance)
	return ji, args.Error(1)
}

func (m *MockJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	args := m.Called(ctx, jobName, params)
	ji, _ := args.Get(0).(*model.JobInstance)
	return ji, args.Error(1)
}

func (m *MockJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	args := m.Called(ctx, jobName)
	return args.Int(0), args.Error(1)
}

func (m *MockJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockJobRepository) SaveJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	return m.Called(ctx, jobExecution).Error(0)
}

func (m *MockJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	return m.Called(ctx, jobExecution).Error(0)
}

func (m *MockJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	args := m.Called(ctx, executionID)
	je, _ := args.Get(0).(*model.JobExecution)
	return je, args.Error(1)
}

func (m *MockJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*model.JobExecution, error) {
	args := m.Called(ctx, jobInstanceID)
	je, _ := args.Get(0).(*model.JobExecution)
	return je, args.Error(1)
}

func (m *MockJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	args := m.Called(ctx, jobInstance)
	executions, _ := args.Get(0).([]*model.JobExecution)
	return executions, args.Error(1)
}

func (m *MockJobRepository) SaveStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	return m.Called(ctx, stepExecution).Error(0)
}

func (m *MockJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	return m.Called(ctx, stepExecution).Error(0)
}

func (m *MockJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error) {
	args := m.Called(ctx, executionID)
	se, _ := args.Get(0).(*model.StepExecution)
	return se, args.Error(1)
}

func (m *MockJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	args := m.Called(ctx, jobExecutionID)
	executions, _ := args.Get(0).([]*model.StepExecution)
	return executions, args.Error(1)
}

func (m *MockJobRepository) SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error {
	return m.Called(ctx, data).Error(0)
}

func (m *MockJobRepository) FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error) {
	args := m.Called(ctx, stepExecutionID)
	data, _ := args.Get(0).(*model.CheckpointData)
	return data, args.Error(1)
}

func (m *MockJobRepository) Close() error {
	return m.Called().Error(0)
}
