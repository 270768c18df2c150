package domain

import "github.com/jneschisi/dart-frog/internal/protocol"

const DevServerDomain = "dev_server"

const (
	MethodStart  = DevServerDomain + ".start"
	MethodReload = DevServerDomain + ".reload"
	MethodStop   = DevServerDomain + ".stop"

	EventApplicationStarting = DevServerDomain + ".applicationStarting"
	EventApplicationExit     = DevServerDomain + ".applicationExit"
	EventLoggerInfo          = DevServerDomain + ".loggerInfo"
	EventLoggerDetail        = DevServerDomain + ".loggerDetail"
	EventProgressStart       = DevServerDomain + ".progressStart"
	EventProgressComplete    = DevServerDomain + ".progressComplete"
)

// StartParams asks the daemon to run a dev server for a project.
type StartParams struct {
	WorkingDirectory  string `json:"workingDirectory"`
	Port              int    `json:"port"`
	DartVMServicePort int    `json:"dartVmServicePort"`
}

// StartResult answers dev_server.start.
type StartResult struct {
	ApplicationID string `json:"applicationId"`
}

// ApplicationParams addresses one running application (reload and stop).
type ApplicationParams struct {
	ApplicationID string `json:"applicationId"`
}

// StopResult answers dev_server.stop.
type StopResult struct {
	ApplicationID string   `json:"applicationId"`
	ExitCode      ExitCode `json:"exitCode"`
}

type ApplicationStartingParams struct {
	ApplicationID string `json:"applicationId"`
	RequestID     string `json:"requestId"`
}

type ApplicationExitParams struct {
	ApplicationID string   `json:"applicationId"`
	RequestID     string   `json:"requestId"`
	ExitCode      ExitCode `json:"exitCode"`
}

// LoggerParams is shared by loggerInfo and loggerDetail.
type LoggerParams struct {
	ApplicationID    string `json:"applicationId"`
	RequestID        string `json:"requestId"`
	WorkingDirectory string `json:"workingDirectory"`
	Message          string `json:"message"`
}

// ProgressParams is shared by progressStart and progressComplete.
type ProgressParams struct {
	ApplicationID    string `json:"applicationId"`
	RequestID        string `json:"requestId"`
	WorkingDirectory string `json:"workingDirectory"`
	ProgressMessage  string `json:"progressMessage"`
	ProgressID       string `json:"progressId"`
}

func NewStart(id string, params StartParams) *protocol.Request {
	return newRequest(id, MethodStart, params)
}

func NewReload(id, applicationID string) *protocol.Request {
	return newRequest(id, MethodReload, ApplicationParams{ApplicationID: applicationID})
}

func NewStop(id, applicationID string) *protocol.Request {
	return newRequest(id, MethodStop, ApplicationParams{ApplicationID: applicationID})
}

func AsStart(req *protocol.Request) (StartParams, bool) {
	return decodeRequest(req, MethodStart, func(p *StartParams) bool {
		return p.WorkingDirectory != ""
	})
}

func AsStop(req *protocol.Request) (ApplicationParams, bool) {
	return decodeRequest(req, MethodStop, hasApplicationID)
}

func AsReload(req *protocol.Request) (ApplicationParams, bool) {
	return decodeRequest(req, MethodReload, hasApplicationID)
}

func AsApplicationStarting(ev *protocol.Event) (ApplicationStartingParams, bool) {
	return decodeEvent(ev, EventApplicationStarting, func(p *ApplicationStartingParams) bool {
		return p.ApplicationID != "" && p.RequestID != ""
	})
}

func AsApplicationExit(ev *protocol.Event) (ApplicationExitParams, bool) {
	return decodeEvent(ev, EventApplicationExit, func(p *ApplicationExitParams) bool {
		return p.ApplicationID != ""
	})
}

func AsLoggerInfo(ev *protocol.Event) (LoggerParams, bool) {
	return decodeEvent[LoggerParams](ev, EventLoggerInfo, nil)
}

func AsLoggerDetail(ev *protocol.Event) (LoggerParams, bool) {
	return decodeEvent[LoggerParams](ev, EventLoggerDetail, nil)
}

func AsProgressStart(ev *protocol.Event) (ProgressParams, bool) {
	return decodeEvent[ProgressParams](ev, EventProgressStart, nil)
}

func AsProgressComplete(ev *protocol.Event) (ProgressParams, bool) {
	return decodeEvent[ProgressParams](ev, EventProgressComplete, nil)
}

func hasApplicationID(p *ApplicationParams) bool {
	return p.ApplicationID != ""
}
