package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jneschisi/dart-frog/internal/protocol"
)

// fakeProcess stands in for the daemon: tests read what the session wrote to
// stdin and feed lines back through stdout.
type fakeProcess struct {
	stdin  *lineWriter
	stdout *io.PipeReader
	out    *io.PipeWriter

	mu         sync.Mutex
	terminated bool
	killed     bool
	// ignoreTerminate keeps stdout open after Terminate, like a daemon that
	// does not handle SIGTERM.
	ignoreTerminate bool
	// ignoreKill leaves stdout open even after Kill.
	ignoreKill bool
}

func newFakeProcess() *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{
		stdin:  &lineWriter{lines: make(chan []byte, 64)},
		stdout: r,
		out:    w,
	}
}

func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *fakeProcess) Stdout() io.Reader     { return p.stdout }
func (p *fakeProcess) Wait() error           { return nil }

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	p.terminated = true
	ignore := p.ignoreTerminate
	p.mu.Unlock()
	if !ignore {
		p.out.Close()
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	ignore := p.ignoreKill
	p.mu.Unlock()
	if ignore {
		return nil
	}
	return p.out.Close()
}

// emit writes one raw line to the session's stdout.
func (p *fakeProcess) emit(t *testing.T, line string) {
	t.Helper()
	_, err := p.out.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (p *fakeProcess) ready(t *testing.T) {
	t.Helper()
	p.emit(t, `[{"event":"daemon.ready","params":{"version":"0.0.1","processId":4242}}]`)
}

func (p *fakeProcess) respond(t *testing.T, id string, result string) {
	t.Helper()
	p.emit(t, `[{"id":"`+id+`","result":`+result+`}]`)
}

// exit closes stdout as if the daemon died.
func (p *fakeProcess) exit() {
	p.out.Close()
}

// nextRequest returns the next request the session wrote.
func (p *fakeProcess) nextRequest(t *testing.T) *protocol.Request {
	t.Helper()
	select {
	case line := <-p.stdin.lines:
		req, err := parseRequest(line)
		require.NoError(t, err)
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a request")
		return nil
	}
}

func parseRequest(line []byte) (*protocol.Request, error) {
	var envelopes []json.RawMessage
	if err := json.Unmarshal(line, &envelopes); err != nil {
		return nil, err
	}
	if len(envelopes) != 1 {
		return nil, fmt.Errorf("got %d envelopes, want 1", len(envelopes))
	}
	msg, err := protocol.Classify(envelopes[0])
	if err != nil {
		return nil, err
	}
	req, ok := msg.(*protocol.Request)
	if !ok {
		return nil, fmt.Errorf("expected request, got %T", msg)
	}
	return req, nil
}

type lineWriter struct {
	mu     sync.Mutex
	closed bool
	lines  chan []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	w.lines <- append([]byte(nil), p...)
	return len(p), nil
}

func (w *lineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	proc     *fakeProcess
	err      error
	launches int
	dirs     []string
}

func (l *fakeLauncher) Launch(workingDirectory string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	l.dirs = append(l.dirs, workingDirectory)
	if l.err != nil {
		return nil, l.err
	}
	return l.proc, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

var errNoExecutable = errors.New("exec: \"dart_frog\": executable file not found in $PATH")
