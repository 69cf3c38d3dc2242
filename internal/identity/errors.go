package identity

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	// ErrInactiveAccount is reported distinctly: a deactivated account is
	// not a secret to its owner.
	ErrInactiveAccount = errors.New("account is inactive")

	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrMissingFields      = errors.New("email, first name and last name are required")
)
