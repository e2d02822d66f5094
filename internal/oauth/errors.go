package oauth

import "errors"

// ErrorKind classifies a terminal flow failure. Callers branch on the kind,
// never on error strings.
type ErrorKind string

const (
	// KindNetwork marks transient transport failures. Safe to retry for
	// polling, not for one-shot exchanges.
	KindNetwork ErrorKind = "network"
	// KindInvalidCredential marks a malformed or rejected token response.
	KindInvalidCredential ErrorKind = "invalid_credential"
	// KindUserDenied is the explicit rejection of a device or browser grant.
	KindUserDenied ErrorKind = "user_denied"
	// KindExpired is a device code that ran out before the user acted.
	KindExpired ErrorKind = "expired"
	// KindTimeout is a bounded wait that elapsed or was cancelled.
	KindTimeout ErrorKind = "timeout"
	// KindUnrefreshable is a refresh token the provider no longer accepts;
	// the cache has to be discarded and a full flow re-run.
	KindUnrefreshable ErrorKind = "expired_and_unrefreshable"
)

// FlowError is a terminal, typed flow failure.
type FlowError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a FlowError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var fe *FlowError
	return errors.As(err, &fe) && fe.Kind == kind
}

func flowErr(kind ErrorKind, message string, err error) *FlowError {
	return &FlowError{Kind: kind, Message: message, Err: err}
}

// Poll outcomes that keep the device loop running.
var (
	errAuthorizationPending = errors.New("authorization pending")
	errSlowDown             = errors.New("slow down")
)
