package config

// Config is the root configuration structure
type Config struct {
	Daemon     DaemonConfig  `yaml:"daemon" json:"daemon"`
	Server     ServerConfig  `yaml:"server" json:"server"`
	RequestIDs string        `yaml:"requestIds" json:"requestIds"` // "incremental" or "uuid"
	Logging    LoggingConfig `yaml:"logging" json:"logging"`
}

// DaemonConfig controls how the daemon process is spawned
type DaemonConfig struct {
	Executable     string   `yaml:"executable" json:"executable"`
	Args           []string `yaml:"args" json:"args"`
	TerminateGrace string   `yaml:"terminateGrace,omitempty" json:"terminateGrace,omitempty"` // e.g. "5s"
}

// ServerConfig holds the defaults for dev_server.start
type ServerConfig struct {
	Port          int `yaml:"port" json:"port"`
	VMServicePort int `yaml:"vmServicePort" json:"vmServicePort"`
}

// LoggingConfig mirrors the --debug and log directory flags
type LoggingConfig struct {
	Debug bool   `yaml:"debug" json:"debug"`
	Dir   string `yaml:"dir,omitempty" json:"dir,omitempty"`
}

const (
	RequestIDsIncremental = "incremental"
	RequestIDsUUID        = "uuid"

	DefaultPort          = 8080
	DefaultVMServicePort = 8181
)
