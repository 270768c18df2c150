package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/jneschisi/dart-frog/internal/emitter"
	"github.com/jneschisi/dart-frog/internal/logging"
	"github.com/jneschisi/dart-frog/internal/protocol"
	"github.com/jneschisi/dart-frog/internal/protocol/domain"
)

// DefaultTerminateGrace is how long Close waits after asking the daemon to
// exit before killing it.
const DefaultTerminateGrace = 5 * time.Second

// State is the session's readiness. It only moves forward.
type State int

const (
	StateNotInvoked State = iota
	StateInvoking
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNotInvoked:
		return "not-invoked"
	case StateInvoking:
		return "invoking"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session owns one daemon process and everything that flows over its pipes.
//
// All listener callbacks run one at a time, in stream order, on the session's
// dispatch path. Callbacks must return quickly. They may call SendAsync; the
// request notification is then delivered once the current callback pass is
// over. Blocking calls (Send, Invoke, Close) belong on another goroutine.
type Session struct {
	launcher Launcher
	ids      protocol.IdentifierGenerator
	log      zerolog.Logger
	grace    time.Duration

	mu      sync.Mutex
	state   State
	proc    Process
	ready   chan struct{}
	done    chan struct{}
	info    domain.ReadyParams
	pending map[string]*Call
	closed  bool

	writeMu  sync.Mutex
	dispatch dispatchQueue

	closeOnce sync.Once
	closeErr  error

	requests  emitter.Emitter[*protocol.Request]
	responses emitter.Emitter[*protocol.Response]
	events    emitter.Emitter[*protocol.Event]
	malformed emitter.Emitter[error]
}

// Option configures a Session.
type Option func(*Session)

// WithLauncher replaces the default "dart_frog daemon" launcher.
func WithLauncher(l Launcher) Option {
	return func(s *Session) {
		s.launcher = l
	}
}

// WithIdentifierGenerator replaces the default incremental request ids.
func WithIdentifierGenerator(g protocol.IdentifierGenerator) Option {
	return func(s *Session) {
		s.ids = g
	}
}

// WithLogger sets the logger; the package logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithTerminateGrace sets how long Close waits before killing the daemon.
func WithTerminateGrace(d time.Duration) Option {
	return func(s *Session) {
		s.grace = d
	}
}

// New creates a session. Nothing is spawned until Invoke.
func New(opts ...Option) *Session {
	s := &Session{
		launcher: DefaultLauncher(),
		ids:      protocol.NewIncrementalGenerator(),
		log:      logging.Component("daemon"),
		grace:    DefaultTerminateGrace,
		pending:  make(map[string]*Call),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate returns a fresh request id from the session's generator.
func (s *Session) Generate() string {
	return s.ids.Generate()
}

// State returns the current readiness state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsReady returns true once daemon.ready has been observed.
func (s *Session) IsReady() bool {
	return s.State() == StateReady
}

// Info returns the version and process id announced by daemon.ready.
func (s *Session) Info() (domain.ReadyParams, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, s.state == StateReady
}

// Pending returns the number of requests still awaiting a response.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Done is closed when the daemon's output stream ends. It is nil before Invoke.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Invoke spawns the daemon in workingDirectory and waits for daemon.ready.
//
// It returns immediately once the session is ready. A call made while another
// Invoke is waiting joins that wait instead of spawning a second daemon.
func (s *Session) Invoke(ctx context.Context, workingDirectory string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	switch s.state {
	case StateReady:
		s.mu.Unlock()
		return nil
	case StateInvoking:
		ready, done := s.ready, s.done
		s.mu.Unlock()
		return awaitReady(ctx, ready, done)
	}

	proc, err := s.launcher.Launch(workingDirectory)
	if err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Str("dir", workingDirectory).Msg("failed to launch daemon")
		return &LaunchError{WorkingDirectory: workingDirectory, Err: err}
	}

	s.proc = proc
	s.state = StateInvoking
	s.ready = make(chan struct{})
	s.done = make(chan struct{})
	ready, done := s.ready, s.done
	s.mu.Unlock()

	s.log.Info().Str("dir", workingDirectory).Msg("daemon launched")
	go s.readLoop(proc.Stdout(), done)

	return awaitReady(ctx, ready, done)
}

func awaitReady(ctx context.Context, ready, done <-chan struct{}) error {
	select {
	case <-ready:
		return nil
	case <-done:
		select {
		case <-ready:
			return nil
		default:
			return ErrDaemonExited
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnRequest subscribes to every request sent through the session.
func (s *Session) OnRequest(fn func(*protocol.Request)) emitter.Subscription {
	return s.requests.Subscribe(fn)
}

// OnResponse subscribes to every response decoded from the daemon, matched or not.
func (s *Session) OnResponse(fn func(*protocol.Response)) emitter.Subscription {
	return s.responses.Subscribe(fn)
}

// OnEvent subscribes to every event decoded from the daemon.
func (s *Session) OnEvent(fn func(*protocol.Event)) emitter.Subscription {
	return s.events.Subscribe(fn)
}

// OnError subscribes to malformed frames. Decoding carries on after each one.
func (s *Session) OnError(fn func(error)) emitter.Subscription {
	return s.malformed.Subscribe(fn)
}

// Send writes req and waits for its response. A response carrying an error
// payload is returned as a *RequestError. If ctx ends first the request is
// forgotten and any later response to it is ignored.
func (s *Session) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	call, err := s.SendAsync(req)
	if err != nil {
		return nil, err
	}

	resp, err := call.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		s.forget(req.ID)
	}
	return resp, err
}

// SendAsync writes req and returns the pending call. There is no timeout: a
// request the daemon never answers stays pending until the daemon exits.
func (s *Session) SendAsync(req *protocol.Request) (*Call, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrClosed
	case s.state == StateNotInvoked:
		s.mu.Unlock()
		return nil, ErrNotInvoked
	case s.state == StateInvoking:
		s.mu.Unlock()
		return nil, ErrNotReady
	case isClosed(s.done):
		s.mu.Unlock()
		return nil, ErrDaemonExited
	}
	if _, ok := s.pending[req.ID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequestID, req.ID)
	}
	call := newCall(req)
	s.pending[req.ID] = call
	stdin := s.proc.Stdin()
	s.mu.Unlock()

	data, err := protocol.Encode(req)
	if err != nil {
		s.forget(req.ID)
		return nil, err
	}

	// The notification takes its place in the dispatch queue before the
	// write, so listeners see the request before anything the daemon says
	// about it, but it is only delivered if the write went through.
	written := make(chan bool, 1)
	s.dispatch.enqueue(func() {
		if <-written {
			s.requests.Emit(req)
		}
	})

	s.writeMu.Lock()
	_, err = stdin.Write(data)
	s.writeMu.Unlock()
	written <- err == nil
	s.dispatch.drain()

	if err != nil {
		s.forget(req.ID)
		s.log.Error().Err(err).Str("method", req.Method).Str("id", req.ID).Msg("failed to write request")
		return nil, fmt.Errorf("failed to write request %s: %w", req.ID, err)
	}

	s.log.Debug().Str("method", req.Method).Str("id", req.ID).Msg("request sent")
	return call, nil
}

func (s *Session) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Close shuts the daemon down: stdin is closed, the process group is asked to
// terminate and killed after the grace period, and calls still pending fail
// with ErrDaemonExited. The session cannot be invoked again afterwards.
// Close is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		proc, done := s.proc, s.done
		s.mu.Unlock()
		if proc == nil {
			return
		}

		var err error
		if cerr := proc.Stdin().Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("failed to close stdin: %w", cerr))
		}
		if terr := proc.Terminate(); terr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to terminate daemon: %w", terr))
		}

		select {
		case <-done:
		case <-time.After(s.grace):
			s.log.Warn().Dur("grace", s.grace).Msg("daemon did not exit, killing")
			if kerr := proc.Kill(); kerr != nil {
				err = multierr.Append(err, fmt.Errorf("failed to kill daemon: %w", kerr))
			}
			select {
			case <-done:
			case <-time.After(s.grace):
				s.log.Error().Msg("daemon output still open after kill")
				s.closeErr = multierr.Append(err, ErrCloseTimeout)
				return
			}
		}

		// The exit status of a terminated daemon carries no information.
		if werr := proc.Wait(); werr != nil {
			s.log.Debug().Err(werr).Msg("daemon exited")
		}
		s.closeErr = err
	})
	return s.closeErr
}

func (s *Session) readLoop(stdout io.Reader, done chan struct{}) {
	// Frames are drained on their own goroutine so a slow listener, or a
	// request notification waiting on its write, never stops the reads.
	kick := make(chan struct{}, 1)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range kick {
			s.dispatch.drain()
		}
	}()
	defer func() {
		close(kick)
		<-drained
		// finish queues behind every frame already read.
		s.dispatch.do(func() { s.finish(done) })
	}()

	frames := protocol.NewReader(stdout)
	for {
		frame, err := frames.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.log.Error().Err(err).Msg("failed to read daemon output")
			}
			return
		}
		s.dispatch.enqueue(s.frameDispatcher(frame))
		select {
		case kick <- struct{}{}:
		default:
		}
	}
}

func (s *Session) frameDispatcher(frame []byte) func() {
	return func() {
		for _, msg := range protocol.Decode(frame, s.reportMalformed) {
			s.deliver(msg)
		}
	}
}

func (s *Session) reportMalformed(err error) {
	s.log.Warn().Err(err).Msg("skipping malformed frame")
	s.malformed.Emit(err)
}

func (s *Session) deliver(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Request:
		s.requests.Emit(m)
	case *protocol.Response:
		s.responses.Emit(m)
		s.resolve(m)
	case *protocol.Event:
		if domain.IsReady(m) {
			s.markReady(m)
		}
		s.events.Emit(m)
	}
}

func (s *Session) markReady(ev *protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady {
		return
	}

	if info, ok := domain.AsReady(ev); ok {
		s.info = info
	}
	s.state = StateReady
	close(s.ready)
	s.log.Info().Str("version", s.info.Version).Int("pid", s.info.ProcessID).Msg("daemon ready")
}

// resolve completes the pending call for resp. Responses without a pending
// call (late, duplicate or never requested) are dropped.
func (s *Session) resolve(resp *protocol.Response) {
	s.mu.Lock()
	call, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.mu.Unlock()

	if !ok {
		s.log.Debug().Str("id", resp.ID).Msg("ignoring unmatched response")
		return
	}

	if resp.IsError() {
		call.complete(resp, &RequestError{ID: resp.ID, Method: call.Request.Method, Payload: resp.Error})
		return
	}
	call.complete(resp, nil)
}

// finish runs once the output stream has ended.
func (s *Session) finish(done chan struct{}) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]*Call)
	close(done)
	s.mu.Unlock()

	for _, call := range pending {
		call.complete(nil, ErrDaemonExited)
	}
	s.log.Info().Int("abandoned", len(pending)).Msg("daemon output closed")
}

func isClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
