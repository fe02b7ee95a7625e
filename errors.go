package bulkmailer

import (
	"errors"
	"fmt"
)

// Predefined sentinel errors for common cases.
var (
	// ErrNoRecipients indicates the CSV contained no usable rows.
	ErrNoRecipients = errors.New("no recipients")

	// ErrMissingEmailColumn indicates the CSV header has no email column.
	ErrMissingEmailColumn = errors.New("missing email column")
)

// ConfigError represents a fatal configuration problem. It always aborts the
// process before any send is attempted.
type ConfigError struct {
	// Key is the configuration key that caused the error.
	Key string

	// Message is the error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error in %s: %s", e.Key, e.Message)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// DataError represents a problem with the recipient data file. A DataError
// for the file as a whole (missing, empty, no email column) is fatal; row
// level problems are converted to Failed outcomes by the runner instead.
type DataError struct {
	// Path is the data file that caused the error.
	Path string

	// Message is the error message.
	Message string

	// Row is the 1-based data row number, or zero for file-level errors.
	Row int

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *DataError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("data error in %s row %d: %s", e.Path, e.Row, e.Message)
	}
	return fmt.Sprintf("data error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *DataError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *DataError) Is(target error) bool {
	_, ok := target.(*DataError)
	return ok
}

// TemplateError represents an error in template processing.
type TemplateError struct {
	// Template is the name of the template that caused the error.
	Template string

	// Operation is the operation that failed (e.g., "load", "parse").
	Operation string

	// Message is the error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error in %s during %s: %s", e.Template, e.Operation, e.Message)
}

// Unwrap returns the underlying error.
func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new config error.
func NewConfigError(key, message string, cause error) *ConfigError {
	return &ConfigError{
		Key:     key,
		Message: message,
		Cause:   cause,
	}
}

// NewDataError creates a new file-level data error.
func NewDataError(path, message string, cause error) *DataError {
	return &DataError{
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// NewTemplateError creates a new template error.
func NewTemplateError(template, operation, message string, cause error) *TemplateError {
	return &TemplateError{
		Template:  template,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
