package types

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDuplicateWebhook means the event was already applied. Callers acknowledge it as a success.
	ErrDuplicateWebhook = errors.New("webhook already processed")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type AuthorizationError struct {
	Role   string
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q is not allowed to %s", e.Role, e.Action)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// GatewayError keeps the provider's message exactly as received.
type GatewayError struct {
	Gateway string
	Code    string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s gateway error %s", e.Gateway, e.Code)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type AllocationError struct {
	Reference string
	Reason    string
}

func (e *AllocationError) Error() string {
	return e.Reason
}

// HTTPStatus maps an error from the taxonomy above to a response code.
func HTTPStatus(err error) int {
	var validationErr *ValidationError
	var authErr *AuthorizationError
	var notFoundErr *NotFoundError
	var gatewayErr *GatewayError
	var allocationErr *AllocationError
	switch {
	case err == nil, errors.Is(err, ErrDuplicateWebhook):
		return http.StatusOK
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &authErr):
		return http.StatusForbidden
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway
	case errors.As(err, &allocationErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
