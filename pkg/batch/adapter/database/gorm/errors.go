package gorm

import (
	"errors"
	"strings"
	"sync"

	"gorm.io/gorm"
)

// ErrorClassifier recognizes driver errors of one database type.
type ErrorClassifier struct {
	IsDuplicateKey  func(err error) bool
	IsTableNotExist func(err error) bool
}

var (
	classifierRegistry = make(map[string]ErrorClassifier)
	classifierMutex    sync.RWMutex
)

// RegisterErrorClassifier registers the driver error classification of dbType.
// Dialect packages call it from init next to RegisterDialector.
func RegisterErrorClassifier(dbType string, c ErrorClassifier) {
	classifierMutex.Lock()
	defer classifierMutex.Unlock()
	classifierRegistry[dbType] = c
}

func classifierFor(dbType string) (ErrorClassifier, bool) {
	classifierMutex.RLock()
	defer classifierMutex.RUnlock()
	c, ok := classifierRegistry[dbType]
	return c, ok
}

// IsDuplicateKeyError reports whether err is a unique constraint violation raised by a
// database of type dbType.
func IsDuplicateKeyError(dbType string, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if c, ok := classifierFor(dbType); ok && c.IsDuplicateKey != nil && c.IsDuplicateKey(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") || strings.Contains(msg, "duplicate entry")
}

// IsTableNotExistError reports whether err means a table does not exist.
func IsTableNotExistError(dbType string, err error) bool {
	if err == nil {
		return false
	}
	if c, ok := classifierFor(dbType); ok && c.IsTableNotExist != nil && c.IsTableNotExist(err) {
		return true
	}
	errMsg := err.Error()
	return (strings.Contains(errMsg, "relation \"") && strings.Contains(errMsg, "\" does not exist")) || // PostgreSQL
		(strings.Contains(errMsg, "Error 1146") && strings.Contains(errMsg, "doesn't exist")) || // MySQL
		strings.Contains(errMsg, "no such table") // SQLite
}
