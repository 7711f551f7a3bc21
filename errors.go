package lpvc

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the failures reported to the host.
type Kind int

const (
	// KindInvalidConfiguration reports a setting outside the accepted range.
	KindInvalidConfiguration Kind = iota + 1
	// KindConstruction reports a codec that refused to initialize.
	KindConstruction
	// KindCodecOperation reports a failed decode or encode call.
	KindCodecOperation
	// KindClosed reports a call on an instance that was already closed.
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfiguration:
		return "invalid configuration"
	case KindConstruction:
		return "construction failure"
	case KindCodecOperation:
		return "codec operation failure"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error is the error type returned across the adapter boundary.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("lpvc %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("lpvc %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, and of the same operation when target
// names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Sentinels for errors.Is.
var (
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration}
	ErrConstruction         = &Error{Kind: KindConstruction}
	ErrCodecOperation       = &Error{Kind: KindCodecOperation}
	ErrDecode               = &Error{Kind: KindCodecOperation, Op: "decode"}
	ErrEncode               = &Error{Kind: KindCodecOperation, Op: "encode"}
	ErrClosed               = &Error{Kind: KindClosed}
)

// unknownError stands in for failures that carry no message.
const unknownError = "unknown error"

// message returns err's text, or unknownError when there is none.
func message(err error) string {
	if err == nil || err.Error() == "" {
		return unknownError
	}
	return err.Error()
}

// recovered converts a recovered panic value to an error.
func recovered(v any) error {
	switch x := v.(type) {
	case error:
		return x
	case string:
		return errors.New(x)
	default:
		return errors.Errorf("%v", x)
	}
}
