// Package listener provides the job listeners of the application jobs.
package listener

import (
	"context"

	"github.com/ssyoni/hello-spring-batch/internal/domain"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/application/port"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/domain/model"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// JobCompletionNotificationListener logs every customer once the job has completed, so the
// result of the update can be checked from the log.
type JobCompletionNotificationListener struct {
	resolver database.DBConnectionResolver
	connName string
}

var _ port.JobExecutionListener = (*JobCompletionNotificationListener)(nil)

// NewJobCompletionNotificationListener creates a listener reading the customers table of
// connection connName.
func NewJobCompletionNotificationListener(resolver database.DBConnectionResolver, connName string) *JobCompletionNotificationListener {
	return &JobCompletionNotificationListener{resolver: resolver, connName: connName}
}

// BeforeJob implements port.JobExecutionListener.
func (l *JobCompletionNotificationListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

// AfterJob implements port.JobExecutionListener.
func (l *JobCompletionNotificationListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	if jobExecution.Status != model.BatchStatusCompleted {
		return
	}
	logger.Infof("!!! JOB FINISHED! Time to verify the results")

	customers, err := l.findCustomers(ctx)
	if err != nil {
		logger.Errorf("JobCompletionNotificationListener: failed to read customers: %v", err)
		return
	}
	for _, c := range customers {
		logger.Infof("Found <%d, %s, %d> in the database.", c.ID, c.Name, c.Age)
	}
}

func (l *JobCompletionNotificationListener) findCustomers(ctx context.Context) ([]domain.Customer, error) {
	conn, err := l.resolver.ResolveDBConnection(ctx, l.connName)
	if err != nil {
		return nil, err
	}
	var customers []domain.Customer
	if err := conn.ExecuteQueryAdvanced(ctx, &customers, nil, "id", 0); err != nil {
		return nil, err
	}
	return customers, nil
}
