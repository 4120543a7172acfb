package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrValidation   = errors.New("validation failed")
)

// Extraction pipeline errors. Every stage failure is converted to one of these.
var (
	// ErrTransientCapability: model or OCR unreachable, rate limited, timed out or not configured.
	ErrTransientCapability = errors.New("capability unavailable")
	// ErrMalformedResponse: model output could not be repaired into a JSON object.
	ErrMalformedResponse = errors.New("no valid JSON found in model response")
	// ErrInsufficientInput: no usable text could be extracted from the document.
	ErrInsufficientInput = errors.New("insufficient text extracted from document")
	// ErrPersistence: the store rejected the write; the transaction was rolled back.
	ErrPersistence = errors.New("database error")
)

// Error codes carried by AppError.
const (
	CodeConfig       = "CONFIG_ERROR"
	CodeCapability   = "CAPABILITY_UNAVAILABLE"
	CodeInsufficient = "INSUFFICIENT_INPUT"
	CodePersistence  = "PERSISTENCE_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidInput = "INVALID_INPUT"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Transient wraps err so that errors.Is(result, ErrTransientCapability) holds.
func Transient(capability string, err error) error {
	if err == nil {
		return NewAppError(CodeCapability, capability, ErrTransientCapability)
	}
	return NewAppError(CodeCapability, capability, fmt.Errorf("%w: %w", ErrTransientCapability, err))
}

// Persistence wraps a store failure so that errors.Is(result, ErrPersistence) holds.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return NewAppError(CodePersistence, op, fmt.Errorf("%w: %w", ErrPersistence, err))
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps pipeline and store errors onto gRPC status errors.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrTransientCapability):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
