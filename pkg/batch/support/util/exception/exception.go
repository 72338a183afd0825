// Package exception provides the error taxonomy of the batch engine.
// Every error raised by the engine or by item components is a *BatchError carrying a Kind,
// the module that raised it and the skip/retry classification used by the step policies.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// ErrorKind classifies where an error came from.
type ErrorKind string

const (
	// KindUnknown is used for errors that were not raised through one of the kind constructors.
	KindUnknown ErrorKind = "UnknownError"
	// KindSourceRead is raised by an ItemReader.
	KindSourceRead ErrorKind = "SourceReadError"
	// KindTransform is raised by an ItemProcessor.
	KindTransform ErrorKind = "TransformError"
	// KindSinkWrite is raised by an ItemWriter during a chunk flush. It always fails the whole chunk.
	KindSinkWrite ErrorKind = "SinkWriteError"
	// KindRepository is a failure to persist execution state. It is always fatal.
	KindRepository ErrorKind = "RepositoryError"
	// KindConfiguration is an invalid setup detected before any step runs.
	KindConfiguration ErrorKind = "ConfigurationError"
)

// String returns the kind name as referenced in configuration.
func (k ErrorKind) String() string {
	return string(k)
}

// errorRegistry maps names referenced in configuration (skippable/retryable lists) to prototype errors.
var errorRegistry = make(map[string]error)

var registryMutex sync.RWMutex

// RegisterErrorType registers a named prototype error.
// Registered names can be used in skippable_exceptions / retryable_exceptions and are matched with errors.Is.
// It panics when name is empty or prototype is nil.
func RegisterErrorType(name string, prototype error) {
	if name == "" {
		panic("error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("cannot register nil prototype for name: %s", name))
	}
	registryMutex.Lock()
	defer registryMutex.Unlock()
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether name is a registered error name or an error kind.
func IsErrorTypeRegistered(name string) bool {
	if isKindName(name) {
		return true
	}
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

func isKindName(name string) bool {
	switch ErrorKind(name) {
	case KindSourceRead, KindTransform, KindSinkWrite, KindRepository, KindConfiguration:
		return true
	}
	return false
}

// BatchError is the error type raised during batch processing.
type BatchError struct {
	// Kind is the taxonomy entry of the error.
	Kind ErrorKind
	// Module is the component that raised the error (step name, "reader", "repository", ...).
	Module string
	// Message is a short description.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error
	isRetryable bool
	isSkippable bool
	// StackTrace is captured at construction for debugging.
	StackTrace string
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

func newKindError(kind ErrorKind, module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Kind:        kind,
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewBatchError creates a BatchError whose kind is inherited from originalErr when it is itself a
// BatchError, and KindUnknown otherwise.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return newKindError(KindOf(originalErr), module, message, originalErr, isSkippable, isRetryable)
}

// NewBatchErrorf creates a non-skippable, non-retryable BatchError with a formatted message.
// When the last argument is an error it is used as the wrapped cause rather than a format operand.
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	if len(a) > 0 {
		if err, ok := a[len(a)-1].(error); ok && strings.Count(format, "%") < len(a) {
			originalErr = err
			a = a[:len(a)-1]
		}
	}
	return NewBatchError(module, fmt.Sprintf(format, a...), originalErr, false, false)
}

// NewSourceReadError creates an error raised while reading an item.
func NewSourceReadError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return newKindError(KindSourceRead, module, message, originalErr, isSkippable, isRetryable)
}

// NewTransformError creates an error raised while transforming an item.
func NewTransformError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return newKindError(KindTransform, module, message, originalErr, isSkippable, isRetryable)
}

// NewSinkWriteError creates an error raised while flushing a chunk.
// A chunk flush is transactional so a write error is never skippable.
func NewSinkWriteError(module, message string, originalErr error, isRetryable bool) *BatchError {
	return newKindError(KindSinkWrite, module, message, originalErr, false, isRetryable)
}

// NewRepositoryError creates a fatal error raised while persisting execution state.
func NewRepositoryError(module, message string, originalErr error) *BatchError {
	return newKindError(KindRepository, module, message, originalErr, false, false)
}

// NewConfigurationError creates a fatal error for invalid setup or parameters.
func NewConfigurationError(module, message string, originalErr error) *BatchError {
	return newKindError(KindConfiguration, module, message, originalErr, false, false)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// KindOf returns the kind of the outermost BatchError in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var be *BatchError
	if errors.As(err, &be) && be.Kind != "" {
		return be.Kind
	}
	return KindUnknown
}

// IsKind reports whether any BatchError in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for current := err; current != nil; current = errors.Unwrap(current) {
		if be, ok := current.(*BatchError); ok && be.Kind == kind {
			return true
		}
	}
	return false
}

// IsBatchError determines if the given error is a *BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsErrorOfType checks if err matches a configured error name. In order it checks:
// the error kind names, registered prototypes (errors.Is), Go type names in the chain
// (e.g. "*net.OpError") and finally a substring of each message in the chain.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil || errorTypeName == "" {
		return false
	}

	if isKindName(errorTypeName) && IsKind(err, ErrorKind(errorTypeName)) {
		return true
	}

	registryMutex.RLock()
	target, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, target) {
		return true
	}

	for current := err; current != nil; current = errors.Unwrap(current) {
		if t := reflect.TypeOf(current); t != nil {
			if t.String() == errorTypeName || (t.Kind() == reflect.Ptr && t.Elem().String() == errorTypeName) {
				return true
			}
		}
		if strings.Contains(current.Error(), errorTypeName) {
			return true
		}
	}
	return false
}

// OptimisticLockingFailureException is the configuration name of ErrOptimisticLockingFailure.
const OptimisticLockingFailureException = "OptimisticLockingFailureException"

// ErrOptimisticLockingFailure is returned when a versioned record was changed concurrently.
var ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailureException)

// NewOptimisticLockingFailureException creates a RepositoryError wrapping ErrOptimisticLockingFailure.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *BatchError {
	cause := ErrOptimisticLockingFailure
	if originalErr != nil {
		cause = errors.Join(ErrOptimisticLockingFailure, originalErr)
	}
	return NewRepositoryError(module, message, cause)
}

// IsOptimisticLockingFailure reports whether err indicates an optimistic locking failure.
func IsOptimisticLockingFailure(err error) bool {
	return errors.Is(err, ErrOptimisticLockingFailure)
}

// ExtractErrorMessage returns the message recorded in an execution's failure list:
// "<Kind>: <error text>" for batch errors and the plain error text otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return fmt.Sprintf("%s: %s", be.Kind, err.Error())
	}
	return err.Error()
}

func init() {
	RegisterErrorType(OptimisticLockingFailureException, ErrOptimisticLockingFailure)
	RegisterErrorType("io.EOF", io.EOF)
	RegisterErrorType("io.ErrUnexpectedEOF", io.ErrUnexpectedEOF)
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
	RegisterErrorType("sql.ErrConnDone", sql.ErrConnDone)
}
