package daemon

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

const (
	DefaultExecutable = "dart_frog"
	DaemonSubcommand  = "daemon"
)

// Process is a running daemon as seen by the session: its pipes plus a way
// to stop it.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	// Terminate asks the process (and its children) to exit.
	Terminate() error
	// Kill forces the process (and its children) to exit.
	Kill() error
	// Wait blocks until the process has exited. Call it only after Stdout
	// has been read to EOF.
	Wait() error
}

// Launcher starts a daemon rooted at a project directory.
type Launcher interface {
	Launch(workingDirectory string) (Process, error)
}

// ExecLauncher runs the daemon as a child process.
type ExecLauncher struct {
	Executable string
	Args       []string
	Env        []string  // defaults to os.Environ()
	Stderr     io.Writer // daemon stderr; discarded when nil
}

// DefaultLauncher runs "dart_frog daemon".
func DefaultLauncher() *ExecLauncher {
	return &ExecLauncher{
		Executable: DefaultExecutable,
		Args:       []string{DaemonSubcommand},
	}
}

func (l *ExecLauncher) Launch(workingDirectory string) (Process, error) {
	executable := l.Executable
	if executable == "" {
		executable = DefaultExecutable
	}
	args := l.Args
	if len(args) == 0 {
		args = []string{DaemonSubcommand}
	}

	cmd := exec.Command(executable, args...)
	cmd.Dir = workingDirectory
	if len(l.Env) > 0 {
		cmd.Env = l.Env
	} else {
		cmd.Env = os.Environ()
	}
	cmd.Stderr = l.Stderr
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", executable, err)
	}

	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }

func (p *execProcess) Terminate() error {
	return terminateGroup(p.cmd.Process.Pid)
}

func (p *execProcess) Kill() error {
	return killGroup(p.cmd.Process.Pid)
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}
