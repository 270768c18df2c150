package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is reported for a stream line that is not a JSON array of envelopes.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownMessage means an envelope matched none of request, response or event.
	ErrUnknownMessage = errors.New("unknown message")

	// ErrAmbiguousMessage means an envelope matched more than one message kind.
	ErrAmbiguousMessage = errors.New("ambiguous message")

	// ErrMalformedResponse means a response carried both a result and an error.
	ErrMalformedResponse = errors.New("response has both result and error")

	// ErrNotObject means params, result or error held something other than an object.
	ErrNotObject = errors.New("field is not an object")

	// ErrMissingObject is returned when decoding params or a result that is absent.
	ErrMissingObject = errors.New("missing object")
)

// MalformedFrameError describes one line, or one envelope within a line, that
// could not be decoded. Decoding of the rest of the stream carries on.
type MalformedFrameError struct {
	Line  int    // 1-based line number within the decoded chunk
	Index int    // envelope index within the line, -1 when the line itself is bad
	Frame string // offending text
	Err   error
}

func (e *MalformedFrameError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("malformed frame at line %d, envelope %d: %v", e.Line, e.Index, e.Err)
	}
	return fmt.Sprintf("malformed frame at line %d: %v", e.Line, e.Err)
}

func (e *MalformedFrameError) Unwrap() error {
	return e.Err
}

func (e *MalformedFrameError) Is(target error) bool {
	return target == ErrMalformedFrame
}
