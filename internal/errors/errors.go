package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/chain-ledger/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryUpstream represents explorer, RPC and price oracle failures
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryMalformed represents a single unusable upstream record
	CategoryMalformed ErrorCategory = "malformed_record"
	// CategoryUnsupported represents a query capability rejected by the backend
	CategoryUnsupported ErrorCategory = "unsupported_filter"
	// CategoryPagination represents a pagination loop that hit its safety cap
	CategoryPagination ErrorCategory = "runaway_pagination"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
)

// ErrRunawayPagination is matched by errors.Is on every pagination cap error
var ErrRunawayPagination = stderrors.New("pagination exceeded iteration cap")

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// User Input Errors (4xx)

// NewInvalidAccountError creates an error for an account identifier no normalizer accepts
func NewInvalidAccountError(account string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ACCOUNT",
		Message:    fmt.Sprintf("invalid account %q: %s", account, reason),
		Details: map[string]interface{}{
			"account": account,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewUnknownCategoryError is returned when no adapter serves a category
func NewUnknownCategoryError(category types.Category) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "UNKNOWN_CATEGORY",
		Message:    fmt.Sprintf("no history or balance source for category %s", category),
		Details: map[string]interface{}{
			"category": string(category),
		},
	}
}

// Upstream Errors

// NewUpstreamError creates an error for a non-success HTTP response
func NewUpstreamError(provider, endpoint string, status int, body string) *CategorizedError {
	code := "UPSTREAM_ERROR"
	if status == http.StatusTooManyRequests {
		code = "UPSTREAM_RATE_LIMIT"
	}
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       code,
		Message:    fmt.Sprintf("%s request failed: %s returned %d %s", provider, endpoint, status, truncate(body, 256)),
		Details: map[string]interface{}{
			"provider":       provider,
			"endpoint":       endpoint,
			"upstreamStatus": status,
		},
	}
}

// NewUpstreamEnvelopeError creates an error for an explorer or RPC error envelope
// delivered with a successful transport status.
func NewUpstreamEnvelopeError(provider, endpoint, message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s error from %s: %s", provider, endpoint, message),
		Details: map[string]interface{}{
			"provider": provider,
			"endpoint": endpoint,
		},
	}
}

// NewUpstreamTransportError wraps a network failure talking to a provider
func NewUpstreamTransportError(provider, endpoint string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_UNREACHABLE",
		Message:    fmt.Sprintf("%s request to %s failed", provider, endpoint),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
			"endpoint": endpoint,
		},
	}
}

// NewMalformedRecordError marks a single record that cannot be normalized
func NewMalformedRecordError(chain types.Category, id string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryMalformed,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "MALFORMED_RECORD",
		Message:    fmt.Sprintf("%s record %s skipped: %s", chain, id, reason),
		Details: map[string]interface{}{
			"chain": string(chain),
			"id":    id,
		},
	}
}

// NewUnsupportedFilterError marks a query filter the backend refuses
func NewUnsupportedFilterError(provider, filter string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUnsupported,
		StatusCode: http.StatusBadGateway,
		Code:       "UNSUPPORTED_FILTER",
		Message:    fmt.Sprintf("%s does not support filter %s", provider, filter),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
			"filter":   filter,
		},
	}
}

// NewRunawayPaginationError is returned when a pagination loop exceeds its cap
func NewRunawayPaginationError(endpoint string, maxPages int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPagination,
		StatusCode: http.StatusInternalServerError,
		Code:       "RUNAWAY_PAGINATION",
		Message:    fmt.Sprintf("pagination of %s exceeded %d pages", endpoint, maxPages),
		Cause:      ErrRunawayPagination,
		Details: map[string]interface{}{
			"endpoint": endpoint,
			"maxPages": maxPages,
		},
	}
}

// System Errors (5xx)

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether a caller-side retry could succeed.
// Only upstream 429 and 5xx responses and transport failures qualify.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil || catErr.Category != CategoryUpstream {
		return false
	}
	if catErr.Code == "UPSTREAM_UNREACHABLE" {
		return true
	}
	status, ok := catErr.Details["upstreamStatus"].(int)
	if !ok {
		return false
	}
	return status == http.StatusTooManyRequests || status >= 500
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsCategory reports whether err carries the given category
func IsCategory(err error, category ErrorCategory) bool {
	var catErr *CategorizedError
	return stderrors.As(err, &catErr) && catErr.Category == category
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
