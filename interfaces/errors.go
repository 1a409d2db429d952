package interfaces

import "errors"

// InitializationError reports a fatal failure while preparing signers or
// transport options. Message is stable across causes; Err carries the detail.
// Kind, when set, is a sentinel that errors.Is can match.
type InitializationError struct {
	Kind    error
	Message string
	Err     error
}

// NewInitializationError wraps err under a stable message.
func NewInitializationError(message string, err error) *InitializationError {
	return &InitializationError{Message: message, Err: err}
}

func (e *InitializationError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *InitializationError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsInitializationError reports whether err is, or wraps, an InitializationError.
func IsInitializationError(err error) bool {
	var initErr *InitializationError
	return errors.As(err, &initErr)
}

var (
	// ErrSignerNotFound is returned when no signer is configured for the requested account.
	ErrSignerNotFound = errors.New("no signer configured for account")

	// ErrSigningFailed is returned when a backend could not produce a valid signature.
	ErrSigningFailed = errors.New("signing failed")
)
