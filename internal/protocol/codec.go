package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Decode splits a chunk of daemon output into lines and flattens every
// envelope of every line into one slice, keeping stream order.
//
// Blank lines are skipped. A line that is not a JSON array, or an envelope
// that cannot be classified, is passed to onError as a *MalformedFrameError and
// skipped; the remaining lines and envelopes still decode. onError may be nil.
// Decode keeps no state between calls.
func Decode(data []byte, onError func(error)) []Message {
	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	var messages []Message
	for i, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		if line[0] != '[' {
			report(&MalformedFrameError{Line: i + 1, Index: -1, Frame: string(line), Err: fmt.Errorf("frame is not a JSON array")})
			continue
		}

		var envelopes []json.RawMessage
		if err := json.Unmarshal(line, &envelopes); err != nil {
			report(&MalformedFrameError{Line: i + 1, Index: -1, Frame: string(line), Err: err})
			continue
		}

		for j, envelope := range envelopes {
			msg, err := Classify(envelope)
			if err != nil {
				report(&MalformedFrameError{Line: i + 1, Index: j, Frame: string(envelope), Err: err})
				continue
			}
			messages = append(messages, msg)
		}
	}

	return messages
}

// Encode renders a message as a single-envelope JSON array line, newline included.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal([]Message{msg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msg.Kind(), err)
	}
	return append(data, '\n'), nil
}

// Reader cuts a byte stream into newline-terminated frames so a line split
// across pipe reads is only decoded once it is complete.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r, typically the daemon's stdout.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// ReadFrame returns the next line including its newline. A final line without
// a newline is returned as-is before io.EOF.
func (fr *Reader) ReadFrame() ([]byte, error) {
	line, err := fr.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return line, nil
		}
		return nil, err
	}
	return line, nil
}
