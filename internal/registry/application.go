package registry

import "fmt"

// Application is one dev server run by the daemon.
type Application struct {
	ID               string `json:"id"` // assigned by the daemon
	WorkingDirectory string `json:"workingDirectory"`
	Port             int    `json:"port"`
	DebugPort        int    `json:"debugPort"`
	VMServiceURI     string `json:"vmServiceUri,omitempty"`
	RequestID        string `json:"requestId"` // the dev_server.start that created it
}

// Address is the URL the dev server answers on.
func (a Application) Address() string {
	return fmt.Sprintf("http://localhost:%d", a.Port)
}
