package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"

	// Domain rejections. None of these are fatal: a failed plan commits
	// nothing, a failed submission mutates nothing.
	ErrorInsufficientPool         ErrorCode = "insufficient_pool"
	ErrorAlreadyQuantified        ErrorCode = "already_quantified"
	ErrorDuplicateChain           ErrorCode = "duplicate_chain"
	ErrorPeriodClosed             ErrorCode = "period_closed"
	ErrorQuantificationIncomplete ErrorCode = "quantification_incomplete"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewInsufficientPoolError(msg string) error {
	return &ServiceError{Code: ErrorInsufficientPool, Message: msg}
}

func NewAlreadyQuantifiedError(msg string) error {
	return &ServiceError{Code: ErrorAlreadyQuantified, Message: msg}
}

func NewDuplicateChainError(msg string) error {
	return &ServiceError{Code: ErrorDuplicateChain, Message: msg}
}

func NewPeriodClosedError(msg string) error {
	return &ServiceError{Code: ErrorPeriodClosed, Message: msg}
}

func NewQuantificationIncompleteError(msg string) error {
	return &ServiceError{Code: ErrorQuantificationIncomplete, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCode reports whether err is a ServiceError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}
