package payments

import "errors"

// Typed errors for the billing core. These enable HTTP mapping at the
// transport layer without leaking SDK-specific error types.
var (
	// ErrUnauthorized indicates the request carries no actor identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the actor lacks the admin capability.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest indicates malformed input or an unsatisfiable precondition.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound indicates a referenced local entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates the entity exists but its state forbids the action.
	ErrInvalidState = errors.New("invalid state")
	// ErrUpstream indicates a gateway failure not attributable to caller input.
	ErrUpstream = errors.New("upstream gateway error")
)
