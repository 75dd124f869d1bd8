package remote

import (
	"errors"
	"fmt"
)

// Kind classifies why a fetch against a remote service failed.
type Kind int

const (
	// KindUnauthenticated means no session token was available. It is
	// detected before any request is issued.
	KindUnauthenticated Kind = iota + 1
	// KindService covers transport failures, HTTP errors, malformed bodies
	// and well-formed responses that report status=false.
	KindService
	// KindMissingPayload means the service answered successfully but left
	// out the field carrying the result.
	KindMissingPayload
	// KindDecode means the payload was present but could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "not authenticated"
	case KindService:
		return "service error"
	case KindMissingPayload:
		return "missing payload"
	case KindDecode:
		return "decode error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FetchError is returned by every remote call. Err holds the underlying
// cause when there is one.
type FetchError struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Sentinels for errors.Is; matching compares Kind only.
var (
	ErrUnauthenticated = &FetchError{Kind: KindUnauthenticated}
	ErrService         = &FetchError{Kind: KindService}
	ErrMissingPayload  = &FetchError{Kind: KindMissingPayload}
	ErrDecode          = &FetchError{Kind: KindDecode}
)

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first FetchError in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Unauthenticated builds the pre-network failure for op.
func Unauthenticated(op string) error {
	return &FetchError{Kind: KindUnauthenticated, Op: op}
}
