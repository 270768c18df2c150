package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrLaunchFailure wraps every error from spawning the daemon process.
	ErrLaunchFailure = errors.New("failed to launch daemon")

	// ErrNotInvoked is returned by Send before Invoke has spawned the daemon.
	ErrNotInvoked = errors.New("daemon not invoked")

	// ErrNotReady is returned by Send while the daemon has not announced daemon.ready.
	ErrNotReady = errors.New("daemon not ready")

	// ErrDaemonRequestFailed wraps a response that carried an error payload.
	ErrDaemonRequestFailed = errors.New("daemon request failed")

	// ErrDaemonExited is returned once the daemon's output stream has ended.
	ErrDaemonExited = errors.New("daemon exited")

	// ErrClosed is returned by Invoke and Send after Close.
	ErrClosed = errors.New("session closed")

	// ErrDuplicateRequestID is returned when a request id is already awaiting a response.
	ErrDuplicateRequestID = errors.New("request id already pending")

	// ErrCloseTimeout is returned by Close when the daemon's output is still
	// open a full grace period after the kill.
	ErrCloseTimeout = errors.New("daemon did not exit after kill")
)

// LaunchError reports a daemon process that could not be started.
type LaunchError struct {
	WorkingDirectory string
	Err              error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%v in %s: %v", ErrLaunchFailure, e.WorkingDirectory, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func (e *LaunchError) Is(target error) bool {
	return target == ErrLaunchFailure
}

// RequestError carries the daemon's error payload verbatim.
type RequestError struct {
	ID      string
	Method  string
	Payload json.RawMessage
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%v: %s (id %s): %s", ErrDaemonRequestFailed, e.Method, e.ID, string(e.Payload))
}

func (e *RequestError) Is(target error) bool {
	return target == ErrDaemonRequestFailed
}
