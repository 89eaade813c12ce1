package identity

import "errors"

var (
	// ErrNotFound marks a lookup that matched no row.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers unknown emails and wrong passwords; the
	// two are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLocked means the email hit the failed-login threshold.
	ErrLocked = errors.New("account locked")
	// ErrUnapproved rejects logins from doctors awaiting approval.
	ErrUnapproved = errors.New("doctor not approved")
	// ErrInactive rejects logins from deactivated patient accounts.
	ErrInactive = errors.New("account inactive")
	// ErrEmailTaken rejects registration with an email already in use.
	ErrEmailTaken = errors.New("email already registered")
)
