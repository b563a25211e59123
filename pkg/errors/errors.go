package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vladislav-moscow/Social/pkg/api"
)

// ErrorType categorizes different error types
type ErrorType string

const (
	// Network errors
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeTimeout ErrorType = "timeout"

	// Session errors
	ErrorTypeNotLoggedIn ErrorType = "not_logged_in"
	ErrorTypeForbidden   ErrorType = "forbidden"

	// Validation errors
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeNoChat       ErrorType = "no_chat"

	// Server errors
	ErrorTypeServer    ErrorType = "server"
	ErrorTypeNotFound  ErrorType = "not_found"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeTooLarge  ErrorType = "too_large"

	ErrorTypeUnknown ErrorType = "unknown"
)

// CLIError represents a structured error with context
type CLIError struct {
	Type       ErrorType
	Message    string
	Cause      error
	Suggestion string
	StatusCode int
}

// Error implements the error interface
func (e *CLIError) Error() string {
	return e.Message
}

// WithSuggestion adds a helpful suggestion to the error
func (e *CLIError) WithSuggestion(suggestion string) *CLIError {
	e.Suggestion = suggestion
	return e
}

// HasSuggestion returns true if the error has a suggestion
func (e *CLIError) HasSuggestion() bool {
	return e.Suggestion != ""
}

// Unwrap returns the underlying error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// NewCLIError creates a new CLI error
func NewCLIError(errorType ErrorType, message string, cause error) *CLIError {
	return &CLIError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NetworkError creates a network error
func NetworkError(message string) *CLIError {
	err := NewCLIError(ErrorTypeNetwork, message, nil)
	err.Suggestion = "Check that the server and relay are running and reachable."
	return err
}

// TimeoutError creates a timeout error
func TimeoutError() *CLIError {
	err := NewCLIError(ErrorTypeTimeout, "Request timed out", nil)
	err.Suggestion = "The server is taking too long to respond. Raise api.timeout or try again."
	return err
}

// NotLoggedInError is returned by commands that need a user id.
func NotLoggedInError() *CLIError {
	err := NewCLIError(ErrorTypeNotLoggedIn, "You are not logged in", nil)
	err.Suggestion = "Run 'chat login <userId>' first."
	return err
}

// NoCurrentChatError is returned when no conversation is open.
func NoCurrentChatError() *CLIError {
	err := NewCLIError(ErrorTypeNoChat, "No conversation is open", nil)
	err.Suggestion = "Run 'chat open <friendId>' to pick one."
	return err
}

// ForbiddenError creates a forbidden error
func ForbiddenError(message string) *CLIError {
	if message == "" {
		message = "Access denied"
	}
	return NewCLIError(ErrorTypeForbidden, message, nil)
}

// ValidationError creates a validation error
func ValidationError(field, reason string) *CLIError {
	message := fmt.Sprintf("Validation error: %s - %s", field, reason)
	return NewCLIError(ErrorTypeValidation, message, nil)
}

// FileNotFoundError creates a file not found error
func FileNotFoundError(path string) *CLIError {
	err := NewCLIError(ErrorTypeFileNotFound, fmt.Sprintf("File not found: %s", path), nil)
	err.Suggestion = "Check the file path and try again."
	return err
}

// ServerError creates a server error
func ServerError() *CLIError {
	err := NewCLIError(ErrorTypeServer, "Server error", nil)
	err.Suggestion = "The server encountered an error. Try again in a few moments."
	return err
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, identifier string) *CLIError {
	return NewCLIError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", resourceType, identifier), nil)
}

// CategorizeError converts a standard error into a CLIError
func CategorizeError(err error) *CLIError {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return fromAPIError(apiErr)
	}

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused"):
		return NetworkError("Could not connect to server. Make sure it's running.")
	case strings.Contains(errMsg, "context deadline exceeded"), strings.Contains(errMsg, "timeout"):
		return TimeoutError()
	default:
		return NewCLIError(ErrorTypeUnknown, errMsg, err)
	}
}

func fromAPIError(apiErr *api.APIError) *CLIError {
	var out *CLIError
	switch apiErr.StatusCode {
	case http.StatusNotFound:
		out = NewCLIError(ErrorTypeNotFound, apiErr.Message, apiErr)
	case http.StatusForbidden:
		out = ForbiddenError(apiErr.Message)
		out.Cause = apiErr
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		field := apiErr.Field
		if field == "" {
			field = "request"
		}
		out = ValidationError(field, apiErr.Message)
		out.Cause = apiErr
	case http.StatusRequestEntityTooLarge:
		out = NewCLIError(ErrorTypeTooLarge, apiErr.Message, apiErr)
		out.Suggestion = "Pick a smaller image."
	case http.StatusTooManyRequests:
		out = NewCLIError(ErrorTypeRateLimit, apiErr.Message, apiErr)
		out.Suggestion = "Wait a moment before trying again."
	default:
		if apiErr.StatusCode >= http.StatusInternalServerError {
			out = ServerError()
			out.Cause = apiErr
		} else {
			out = NewCLIError(ErrorTypeUnknown, apiErr.Error(), apiErr)
		}
	}
	out.StatusCode = apiErr.StatusCode
	return out
}

// FormatError returns a user-friendly error message
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	cliErr := CategorizeError(err)
	var sb strings.Builder

	sb.WriteString("Error")
	if cliErr.Type != ErrorTypeUnknown {
		sb.WriteString(" (")
		sb.WriteString(string(cliErr.Type))
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(cliErr.Message)
	sb.WriteString("\n")

	if cliErr.HasSuggestion() {
		sb.WriteString("Suggestion: ")
		sb.WriteString(cliErr.Suggestion)
		sb.WriteString("\n")
	}

	return sb.String()
}
