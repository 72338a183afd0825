// Package config defines the connection settings of a named database.
package config

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Type selects the dialector: "sqlite", "postgres" or "mysql".
	Type string `yaml:"type"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Database is the database name, or the file path (":memory:" allowed) for sqlite.
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Schema is the PostgreSQL search_path.
	Schema  string `yaml:"schema,omitempty"`
	Sslmode string `yaml:"sslmode"`
	// LogLevel is the gorm log level ("silent", "error", "warn", "info").
	LogLevel string     `yaml:"log_level"`
	Pool     PoolConfig `yaml:"pool"`
}
