package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Classify turns one decoded envelope into a *Request, *Response or *Event.
//
// An object with a string "method" is a request, one with a string "id" and a
// result or error is a response, one with a string "event" is an event. An
// envelope matching none or several of these is rejected, and so is one whose
// params, result or error is anything but an object or null.
func Classify(raw json.RawMessage) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: envelope is not an object", ErrUnknownMessage)
	}

	method, isRequest := stringField(fields, "method")
	id, hasID := stringField(fields, "id")
	name, isEvent := stringField(fields, "event")
	result, errPayload := fields["result"], fields["error"]
	isResponse := hasID && (present(result) || present(errPayload))

	matches := 0
	for _, ok := range []bool{isRequest, isResponse, isEvent} {
		if ok {
			matches++
		}
	}
	switch {
	case matches == 0:
		return nil, ErrUnknownMessage
	case matches > 1:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousMessage, summarize(fields))
	}

	for _, key := range []string{"params", "result", "error"} {
		if raw := fields[key]; present(raw) && !isObject(raw) {
			return nil, fmt.Errorf("%w: %s", ErrNotObject, key)
		}
	}

	switch {
	case isRequest:
		return &Request{ID: id, Method: method, Params: object(fields["params"])}, nil
	case isResponse:
		if present(result) && present(errPayload) {
			return nil, fmt.Errorf("%w: id %s", ErrMalformedResponse, id)
		}
		return &Response{ID: id, Result: object(result), Error: object(errPayload)}, nil
	default:
		return &Event{Event: name, Params: object(fields["params"])}, nil
	}
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// present reports whether a field exists and is not JSON null.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func object(raw json.RawMessage) json.RawMessage {
	if !present(raw) {
		return nil
	}
	return raw
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func summarize(fields map[string]json.RawMessage) string {
	keys := make([]string, 0, len(fields))
	for _, k := range []string{"id", "method", "event", "result", "error"} {
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
		}
	}
	return fmt.Sprintf("fields %v", keys)
}
