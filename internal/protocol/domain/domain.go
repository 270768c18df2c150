// Package domain holds the concrete requests, results and events of the
// daemon's "daemon" and "dev_server" domains, layered on package protocol.
package domain

import (
	"encoding/json"
	"strconv"

	"github.com/jneschisi/dart-frog/internal/protocol"
)

func newRequest(id, method string, params interface{}) *protocol.Request {
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		// params are flat structs of strings and ints
		panic(err)
	}
	return req
}

// decodeEvent narrows ev to the params of the named event. valid checks the
// fields the caller cannot do without.
func decodeEvent[T any](ev *protocol.Event, name string, valid func(*T) bool) (T, bool) {
	var params T
	if ev == nil || ev.Event != name {
		return params, false
	}
	if err := ev.DecodeParams(&params); err != nil {
		return params, false
	}
	if valid != nil && !valid(&params) {
		return params, false
	}
	return params, true
}

func decodeRequest[T any](req *protocol.Request, method string, valid func(*T) bool) (T, bool) {
	var params T
	if req == nil || req.Method != method {
		return params, false
	}
	if err := req.DecodeParams(&params); err != nil {
		return params, false
	}
	if valid != nil && !valid(&params) {
		return params, false
	}
	return params, true
}

// ExitCode accepts both a JSON number and a numeric string.
type ExitCode int

func (c *ExitCode) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = ExitCode(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*c = ExitCode(n)
	return nil
}
