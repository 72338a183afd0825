package gorm

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/core/config"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

// GormDBConnectionResolver is the GORM implementation of database.DBConnectionResolver.
type GormDBConnectionResolver struct {
	dbProviders map[string]database.DBProvider
	cfg         *config.Config
}

var (
	_ database.DBConnectionResolver    = (*GormDBConnectionResolver)(nil)
	_ database.DBConnectionReconnector = (*GormDBConnectionResolver)(nil)
)

// GormDBConnectionResolverParams defines the dependencies of NewGormDBConnectionResolver.
type GormDBConnectionResolverParams struct {
	fx.In
	DBProviders []database.DBProvider `group:"db_providers"`
	Cfg         *config.Config
}

// NewGormDBConnectionResolver indexes the registered providers by database type.
func NewGormDBConnectionResolver(p GormDBConnectionResolverParams) *GormDBConnectionResolver {
	return NewResolver(p.Cfg, p.DBProviders...)
}

// NewResolver creates a resolver over providers without fx.
func NewResolver(cfg *config.Config, providers ...database.DBProvider) *GormDBConnectionResolver {
	providerMap := make(map[string]database.DBProvider, len(providers))
	for _, provider := range providers {
		providerMap[provider.Type()] = provider
	}
	return &GormDBConnectionResolver{dbProviders: providerMap, cfg: cfg}
}

// ResolveDBConnection returns the connection called name. A connection that fails to ping
// is reopened.
func (r *GormDBConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	dbConfig, ok := r.cfg.Batch.Databases[name]
	if !ok {
		return nil, fmt.Errorf("DBConnectionResolver: database configuration '%s' not found under batch.databases", name)
	}
	provider, ok := r.dbProviders[dbConfig.Type]
	if !ok {
		return nil, fmt.Errorf("DBConnectionResolver: DBProvider for type '%s' not found for connection '%s'", dbConfig.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("DBConnectionResolver: failed to get connection '%s': %w", name, err)
	}

	// The transaction of ctx may hold the only pooled connection.
	if _, inTx := gormTxFromContext(ctx, name); inTx {
		return conn, nil
	}
	if pingErr := conn.RefreshConnection(ctx); pingErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warnf("DBConnectionResolver: connection '%s' is invalid (%v). Attempting to reconnect.", name, pingErr)
		reconnected, reconnectErr := provider.ForceReconnect(name)
		if reconnectErr != nil {
			return nil, fmt.Errorf("DBConnectionResolver: failed to reconnect connection '%s': %w", name, reconnectErr)
		}
		logger.Infof("DBConnectionResolver: successfully reconnected connection '%s'.", name)
		return reconnected, nil
	}
	return conn, nil
}

// Reconnect implements database.DBConnectionReconnector.
func (r *GormDBConnectionResolver) Reconnect(ctx context.Context, name string) (database.DBConnection, error) {
	dbConfig, ok := r.cfg.Batch.Databases[name]
	if !ok {
		return nil, fmt.Errorf("DBConnectionResolver: database configuration '%s' not found under batch.databases", name)
	}
	provider, ok := r.dbProviders[dbConfig.Type]
	if !ok {
		return nil, fmt.Errorf("DBConnectionResolver: DBProvider for type '%s' not found for connection '%s'", dbConfig.Type, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return provider.ForceReconnect(name)
}

// CloseAll closes the connections of every provider.
func (r *GormDBConnectionResolver) CloseAll() error {
	var firstErr error
	for dbType, provider := range r.dbProviders {
		if err := provider.CloseAll(); err != nil {
			logger.Errorf("Failed to close %s connections: %v", dbType, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
