package entities

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned by providers when the API answered without any text.
var ErrEmptyResponse = errors.New("completion returned no text")

// ErrorClass is the closed set of completion failure classes.
type ErrorClass int

const (
	ErrorUnknown ErrorClass = iota
	ErrorQuotaExceeded
	ErrorRateLimited
	ErrorInvalidCredentials
	ErrorModelUnavailable
	ErrorContextTooLarge
	ErrorServiceUnreachable
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorQuotaExceeded:
		return "quota_exceeded"
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorInvalidCredentials:
		return "invalid_credentials"
	case ErrorModelUnavailable:
		return "model_unavailable"
	case ErrorContextTooLarge:
		return "context_too_large"
	case ErrorServiceUnreachable:
		return "service_unreachable"
	default:
		return "unknown_api_error"
	}
}

// FallbackStrategy is the retry a failure class allows.
type FallbackStrategy int

const (
	FallbackNone FallbackStrategy = iota
	FallbackModel
	FallbackSize
)

// Fallback returns the single retry strategy for the class.
func (c ErrorClass) Fallback() FallbackStrategy {
	switch c {
	case ErrorModelUnavailable:
		return FallbackModel
	case ErrorContextTooLarge:
		return FallbackSize
	default:
		return FallbackNone
	}
}

// UserMessage returns the fixed text shown to the user for this class.
func (c ErrorClass) UserMessage() string {
	switch c {
	case ErrorQuotaExceeded:
		return "I've reached my usage limit for now. Please try again later or contact an administrator."
	case ErrorRateLimited:
		return "I'm receiving too many requests right now. Please wait a moment and try again."
	case ErrorInvalidCredentials:
		return "I'm not able to reach my language service because of a configuration problem. Please contact an administrator."
	case ErrorModelUnavailable:
		return "The language model I use is currently unavailable. Please try again later."
	case ErrorContextTooLarge:
		return "Your request was too large for me to process. Please try a shorter message."
	case ErrorServiceUnreachable:
		return "I'm having trouble connecting to my language service. Please try again in a few minutes."
	default:
		return "Sorry, I encountered an error while processing your request. Please try again."
	}
}

// CompletionError is a classified provider failure.
type CompletionError struct {
	Class    ErrorClass
	Provider string
	Model    string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s completion (%s) failed [%s]: %v", e.Provider, e.Model, e.Class, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// ClassOf extracts the ErrorClass of err. Context deadlines count as unreachable.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ErrorUnknown
	}
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorServiceUnreachable
	}
	return ErrorUnknown
}

// DocumentLoadError records a single document that failed to load.
type DocumentLoadError struct {
	Path string
	Err  error
}

func (e *DocumentLoadError) Error() string {
	return fmt.Sprintf("load document %s: %v", e.Path, e.Err)
}

func (e *DocumentLoadError) Unwrap() error { return e.Err }
