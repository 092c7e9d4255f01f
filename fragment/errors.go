package fragment

import "errors"

var (
	// ErrNotFound indicates the fragment ID is not registered.
	ErrNotFound = errors.New("fragment not found")
	// ErrUnauthorized indicates the supplied secret does not match the fragment's hash.
	ErrUnauthorized = errors.New("access unauthorised")
	// ErrNotApproved indicates the fragment request has not been approved yet.
	ErrNotApproved = errors.New("fragment request not approved")
	// ErrPendingRequest indicates the caller's IP already has an unapproved request outstanding.
	ErrPendingRequest = errors.New("pending fragment request")
)

// ValidationError reports a request that failed a validation rule. The message
// is safe to return to clients.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}
