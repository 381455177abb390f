package providers

import (
	"errors"
	"fmt"
)

type Category string

const (
	CategoryTimeout       Category = "timeout"
	CategoryBadData       Category = "bad_data"
	CategoryOutage        Category = "outage"
	CategoryRateLimited   Category = "rate_limited"
	CategoryNotConfigured Category = "not_configured"
	CategoryNotFound      Category = "not_found"
)

// ProviderError describes a failed call to an external data source.
type ProviderError struct {
	Category  Category
	Provider  string
	Message   string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func NewProviderError(cat Category, provider, message string, err error) *ProviderError {
	return &ProviderError{
		Category:  cat,
		Provider:  provider,
		Message:   message,
		Err:       err,
		Retryable: cat == CategoryTimeout || cat == CategoryRateLimited || cat == CategoryOutage,
	}
}

// ErrNotConfigured is returned by disabled providers.
var ErrNotConfigured = errors.New("provider not configured")

// IsRetryable reports whether err is a retryable ProviderError.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CategoryOf returns the category of a ProviderError, or "" for other errors.
func CategoryOf(err error) Category {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// StatusCategory maps an HTTP status code to an error category.
func StatusCategory(status int) Category {
	switch {
	case status == 429:
		return CategoryRateLimited
	case status == 404:
		return CategoryNotFound
	case status == 408 || status == 504:
		return CategoryTimeout
	case status >= 500:
		return CategoryOutage
	default:
		return CategoryBadData
	}
}
