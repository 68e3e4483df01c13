// Package errors contains helper functions and types to work with errors
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError means the operation finished without error.
	CategoryNoError Category = iota
	// CategoryDataError The client sent invalid data in the request,
	// for example missing or malformed payload fields or parameters.
	CategoryDataError
	// CategoryUnauthorized The client is not authorized to access the requested resource
	CategoryUnauthorized
	// CategoryResourceNotFound The client is attempting to access a resource that does not exist
	CategoryResourceNotFound
	// CategoryDataConflict The client sent data that conflicts with existing state
	CategoryDataConflict
	// CategoryProviderFailure An upstream portfolio provider failed in a retryable way
	CategoryProviderFailure
	// CategoryProviderTerminal An upstream portfolio provider rejected the request permanently
	// (auth failure, invalid address, unknown resource, breaker open with no budget left)
	CategoryProviderTerminal
	// CategoryParseError An upstream payload failed schema validation at the boundary
	CategoryParseError
	// CategoryPersistenceFailure A transactional write against the relational store failed
	CategoryPersistenceFailure
	// CategoryResourceExhausted Admission control rejected the work (memory ceiling,
	// concurrency ceiling or low health score); the caller should retry later
	CategoryResourceExhausted
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryDataError:
		return "CategoryDataError"
	case CategoryUnauthorized:
		return "CategoryUnauthorized"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryDataConflict:
		return "CategoryDataConflict"
	case CategoryProviderFailure:
		return "CategoryProviderFailure"
	case CategoryProviderTerminal:
		return "CategoryProviderTerminal"
	case CategoryParseError:
		return "CategoryParseError"
	case CategoryPersistenceFailure:
		return "CategoryPersistenceFailure"
	case CategoryResourceExhausted:
		return "CategoryResourceExhausted"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError represents service specific type that
// is used all over the services.
type ServiceError struct {
	Category Category
	// Code is the stable machine-readable code surfaced to API consumers.
	// It never changes for a given failure mode even when messages do.
	Code    string
	Message string
	Err     error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is implements the custom condition to check an error is equal to a service error
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// CodeOf returns the stable code of a ServiceError, or INTERNAL_ERROR
// for anything else.
func CodeOf(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Code != "" {
		return svcErr.Code
	}
	return "INTERNAL_ERROR"
}

// IsInternalError checks that provided error is an internal system error
func IsInternalError(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category < CategoryPersistenceFailure {
		return false
	}
	return true
}

// GeneralError returns a general service error
// this error message sent to the user is "Internal Server Error"
// the error passed is logged in the logger
func GeneralError(err error) error {
	if err == nil {
		err = errors.New("internal server error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Code:     "INTERNAL_ERROR",
		Message:  "Internal Server Error",
		Err:      err,
	}
}

// ResourceNotFoundError returns an error with category ResourceNotFound.
// The code distinguishes which resource is absent (WALLET_NOT_FOUND, JOB_NOT_FOUND).
func ResourceNotFoundError(err error, code, message string) error {
	if err == nil {
		err = errors.New("resource not found: " + message)
	}
	return &ServiceError{
		Category: CategoryResourceNotFound,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}

// BadRequestError returns an error with category DataError
// the error message provided is returned to the user
// the error object provided is logged in the logger
func BadRequestError(err error, message string) error {
	if err == nil {
		err = errors.New("bad request: " + message)
	}
	return &ServiceError{
		Category: CategoryDataError,
		Code:     "VALIDATION_ERROR",
		Message:  message,
		Err:      err,
	}
}

// UnAuthorizedError returns an error with category CategoryUnauthorized
func UnAuthorizedError(err error, message string) error {
	if err == nil {
		err = errors.New("unauthorized")
	}
	return &ServiceError{
		Category: CategoryUnauthorized,
		Code:     "UNAUTHORIZED",
		Message:  message,
		Err:      err,
	}
}

// ConflictError returns an error with category CategoryDataConflict
func ConflictError(err error, code, message string) error {
	if err == nil {
		err = errors.New("conflict")
	}
	return &ServiceError{
		Category: CategoryDataConflict,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}

// ProviderError returns a retryable upstream provider error
func ProviderError(err error, message string) error {
	if err == nil {
		err = errors.New("provider failure: " + message)
	}
	return &ServiceError{
		Category: CategoryProviderFailure,
		Code:     "PROVIDER_ERROR",
		Message:  message,
		Err:      err,
	}
}

// ProviderTerminalError returns a non-retryable upstream provider error
func ProviderTerminalError(err error, message string) error {
	if err == nil {
		err = errors.New("provider rejected request: " + message)
	}
	return &ServiceError{
		Category: CategoryProviderTerminal,
		Code:     "PROVIDER_UNAVAILABLE",
		Message:  message,
		Err:      err,
	}
}

// ParseError returns an error for upstream payloads failing schema validation
func ParseError(err error, message string) error {
	if err == nil {
		err = errors.New("parse error: " + message)
	}
	return &ServiceError{
		Category: CategoryParseError,
		Code:     "PARSE_ERROR",
		Message:  message,
		Err:      err,
	}
}

// PersistenceError returns an error for failed transactional writes
func PersistenceError(err error, message string) error {
	if err == nil {
		err = errors.New("persistence failure: " + message)
	}
	return &ServiceError{
		Category: CategoryPersistenceFailure,
		Code:     "PERSISTENCE_ERROR",
		Message:  message,
		Err:      err,
	}
}

// ResourceExhaustedError returns a backpressure error for admission-control
// rejections. Terminal for this attempt; the caller should retry later.
func ResourceExhaustedError(err error, message string) error {
	if err == nil {
		err = errors.New("service overloaded: " + message)
	}
	return &ServiceError{
		Category: CategoryResourceExhausted,
		Code:     "SERVICE_OVERLOADED",
		Message:  message,
		Err:      err,
	}
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError, CategoryParseError:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryDataConflict:
		return http.StatusConflict
	case CategoryProviderFailure, CategoryProviderTerminal:
		return http.StatusBadGateway
	case CategoryResourceExhausted:
		return http.StatusServiceUnavailable
	case CategoryPersistenceFailure, CategoryGeneralError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
