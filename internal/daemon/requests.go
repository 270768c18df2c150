package daemon

import (
	"context"
	"fmt"

	"github.com/jneschisi/dart-frog/internal/protocol/domain"
)

// RequestVersion asks the daemon for its version
func (s *Session) RequestVersion(ctx context.Context) (string, error) {
	resp, err := s.Send(ctx, domain.NewRequestVersion(s.Generate()))
	if err != nil {
		return "", err
	}

	var result domain.VersionResult
	if err := resp.DecodeResult(&result); err != nil {
		return "", fmt.Errorf("failed to decode version: %w", err)
	}
	return result.Version, nil
}

// Kill asks the daemon to shut itself and all its applications down
func (s *Session) Kill(ctx context.Context) error {
	_, err := s.Send(ctx, domain.NewKill(s.Generate()))
	return err
}

// StartServer starts a dev server and returns the daemon-assigned application id
func (s *Session) StartServer(ctx context.Context, params domain.StartParams) (string, error) {
	resp, err := s.Send(ctx, domain.NewStart(s.Generate(), params))
	if err != nil {
		return "", err
	}

	var result domain.StartResult
	if err := resp.DecodeResult(&result); err != nil {
		return "", fmt.Errorf("failed to decode start result: %w", err)
	}
	if result.ApplicationID == "" {
		return "", fmt.Errorf("start result for %s has no applicationId", params.WorkingDirectory)
	}
	return result.ApplicationID, nil
}

// Reload hot-reloads a running application
func (s *Session) Reload(ctx context.Context, applicationID string) error {
	_, err := s.Send(ctx, domain.NewReload(s.Generate(), applicationID))
	return err
}

// Stop stops a running application and returns its exit code
func (s *Session) Stop(ctx context.Context, applicationID string) (int, error) {
	resp, err := s.Send(ctx, domain.NewStop(s.Generate(), applicationID))
	if err != nil {
		return 0, err
	}

	var result domain.StopResult
	if err := resp.DecodeResult(&result); err != nil {
		return 0, fmt.Errorf("failed to decode stop result: %w", err)
	}
	return int(result.ExitCode), nil
}
