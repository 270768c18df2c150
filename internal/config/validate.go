package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Validate checks the configuration for errors. Every problem is reported,
// not just the first.
func (c *Config) Validate() error {
	var err error

	if c.Daemon.Executable == "" {
		err = multierr.Append(err, fmt.Errorf("daemon: missing executable"))
	}
	if c.Daemon.TerminateGrace != "" {
		d, perr := time.ParseDuration(c.Daemon.TerminateGrace)
		switch {
		case perr != nil:
			err = multierr.Append(err, fmt.Errorf("daemon: invalid terminateGrace %q: %w", c.Daemon.TerminateGrace, perr))
		case d <= 0:
			err = multierr.Append(err, fmt.Errorf("daemon: terminateGrace must be positive, got %s", d))
		}
	}

	if e := validatePort("server.port", c.Server.Port); e != nil {
		err = multierr.Append(err, e)
	}
	if e := validatePort("server.vmServicePort", c.Server.VMServicePort); e != nil {
		err = multierr.Append(err, e)
	}
	if c.Server.Port != 0 && c.Server.Port == c.Server.VMServicePort {
		err = multierr.Append(err, fmt.Errorf("server: port and vmServicePort must differ, both are %d", c.Server.Port))
	}

	switch c.RequestIDs {
	case RequestIDsIncremental, RequestIDsUUID:
	default:
		err = multierr.Append(err, fmt.Errorf("invalid requestIds: %q (must be %s or %s)", c.RequestIDs, RequestIDsIncremental, RequestIDsUUID))
	}

	return err
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
