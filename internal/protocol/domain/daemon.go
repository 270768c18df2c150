package domain

import "github.com/jneschisi/dart-frog/internal/protocol"

const DaemonDomain = "daemon"

const (
	MethodRequestVersion = DaemonDomain + ".requestVersion"
	MethodKill           = DaemonDomain + ".kill"
	EventReady           = DaemonDomain + ".ready"
)

// ReadyParams is sent once the daemon accepts requests.
type ReadyParams struct {
	Version   string `json:"version"`
	ProcessID int    `json:"processId"`
}

// VersionResult answers daemon.requestVersion.
type VersionResult struct {
	Version string `json:"version"`
}

func NewRequestVersion(id string) *protocol.Request {
	return newRequest(id, MethodRequestVersion, nil)
}

func NewKill(id string) *protocol.Request {
	return newRequest(id, MethodKill, nil)
}

// IsReady reports whether ev is the daemon.ready event, with or without params.
func IsReady(ev *protocol.Event) bool {
	return ev != nil && ev.Event == EventReady
}

func AsReady(ev *protocol.Event) (ReadyParams, bool) {
	return decodeEvent[ReadyParams](ev, EventReady, nil)
}
