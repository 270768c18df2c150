package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies which of the three envelope shapes a message has.
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindEvent:
		return "event"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is any envelope decoded from or written to the daemon stream.
// The concrete type is always *Request, *Response or *Event.
type Message interface {
	Kind() Kind
}

// Request asks the daemon to perform an action
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers the request with the same ID
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// Event is an unsolicited notification from the daemon
type Event struct {
	Event  string          `json:"event"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (*Request) Kind() Kind  { return KindRequest }
func (*Response) Kind() Kind { return KindResponse }
func (*Event) Kind() Kind    { return KindEvent }

// NewRequest creates a request, encoding params as the request's params object.
// A nil params leaves the field out of the envelope.
func NewRequest(id, method string, params interface{}) (*Request, error) {
	req := &Request{ID: id, Method: method}
	if params == nil {
		return req, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params for %s: %w", method, err)
	}
	req.Params = raw
	return req, nil
}

// Domain returns the part of the method before the first dot.
func (r *Request) Domain() string {
	return domainOf(r.Method)
}

// DecodeParams unmarshals the request params into v.
func (r *Request) DecodeParams(v interface{}) error {
	return decodeObject(r.Params, v)
}

// IsError returns true if the response carries an error instead of a result
func (r *Response) IsError() bool {
	return present(r.Error)
}

// DecodeResult unmarshals the response result into v.
func (r *Response) DecodeResult(v interface{}) error {
	return decodeObject(r.Result, v)
}

// GetError returns the error payload's "message" field if it has one,
// otherwise the raw payload text.
func (r *Response) GetError() string {
	if !r.IsError() {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Error, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(r.Error)
}

// Domain returns the part of the event name before the first dot.
func (e *Event) Domain() string {
	return domainOf(e.Event)
}

// DecodeParams unmarshals the event params into v.
func (e *Event) DecodeParams(v interface{}) error {
	return decodeObject(e.Params, v)
}

func decodeObject(raw json.RawMessage, v interface{}) error {
	if !present(raw) {
		return ErrMissingObject
	}
	return json.Unmarshal(raw, v)
}

func domainOf(name string) string {
	domain, _, _ := strings.Cut(name, ".")
	return domain
}
