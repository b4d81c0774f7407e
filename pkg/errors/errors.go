// Package errors defines the sentinel errors shared by the indexer, the
// query evaluator and the services, and maps them to HTTP status codes.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Query errors are reported per query; everything else is an
// infrastructure failure.
var (
	ErrSyntax              = errors.New("query syntax error")
	ErrUnsupportedOperator = errors.New("operator not supported by retrieval model")

	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrCorruptSegment   = errors.New("corrupt segment")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

// AppError attaches a message and an HTTP status to a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// Syntaxf reports a malformed query.
func Syntaxf(format string, args ...any) *AppError {
	return Newf(ErrSyntax, http.StatusBadRequest, format, args...)
}

// Unsupportedf reports an operator the active retrieval model cannot score.
func Unsupportedf(format string, args ...any) *AppError {
	return Newf(ErrUnsupportedOperator, http.StatusBadRequest, format, args...)
}

// IsQueryError reports whether err is the fault of one query's text rather
// than of the index or the process.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrSyntax) || errors.Is(err, ErrUnsupportedOperator)
}

// HTTPStatusCode picks the response status for err. An AppError's own status
// wins; deadlines map to 504.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDocumentExists):
		return http.StatusConflict
	case IsQueryError(err), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
