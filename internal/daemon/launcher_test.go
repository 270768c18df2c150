//go:build unix

package daemon

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jneschisi/dart-frog/internal/protocol"
)

// echoDaemon announces itself and answers every request with a version result.
const echoDaemon = `
printf '%s\n' 'Building package executable...'
printf '%s\n' '[{"event":"daemon.ready","params":{"version":"1.2.3","processId":99}}]'
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed 's/.*"id":"\([^"]*\)".*/\1/')
  printf '[{"id":"%s","result":{"version":"1.2.3"}}]\n' "$id"
done
`

func TestExecLauncherRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	s := New(
		WithLauncher(&ExecLauncher{Executable: "sh", Args: []string{"-c", echoDaemon}}),
		WithLogger(zerolog.Nop()),
		WithTerminateGrace(time.Second),
	)
	defer s.Close()

	malformed := make(chan error, 1)
	s.OnError(func(err error) {
		select {
		case malformed <- err:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, s.Invoke(ctx, t.TempDir()))
	info, ok := s.Info()
	require.True(t, ok)
	assert.Equal(t, 99, info.ProcessID)

	version, err := s.RequestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", version)

	select {
	case err := <-malformed:
		assert.ErrorIs(t, err, protocol.ErrMalformedFrame)
	default:
		t.Error("build output line was not reported as malformed")
	}

	require.NoError(t, s.Close())
	<-s.Done()
}

func TestExecLauncherMissingExecutable(t *testing.T) {
	l := &ExecLauncher{Executable: "dart_frog_does_not_exist"}
	_, err := l.Launch(t.TempDir())
	require.Error(t, err)

	s := New(WithLauncher(l), WithLogger(zerolog.Nop()))
	err = s.Invoke(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrLaunchFailure)
	assert.Equal(t, StateNotInvoked, s.State())
}
