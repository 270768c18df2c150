package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jneschisi/dart-frog/internal/daemon"
	"github.com/jneschisi/dart-frog/internal/logging"
	"github.com/jneschisi/dart-frog/internal/output"
	"github.com/jneschisi/dart-frog/internal/protocol"
	"github.com/jneschisi/dart-frog/internal/protocol/domain"
	"github.com/jneschisi/dart-frog/internal/registry"
)

var (
	startPort          int
	startVMServicePort int
)

// command is one line typed at the start prompt
type command int

const (
	cmdUnknown command = iota
	cmdNone
	cmdReload
	cmdList
	cmdInfo
	cmdStop
	cmdHelp
)

func parseCommand(line string) command {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return cmdNone
	case "r", "reload":
		return cmdReload
	case "l", "ls", "list":
		return cmdList
	case "i", "info":
		return cmdInfo
	case "q", "quit", "stop":
		return cmdStop
	case "h", "?", "help":
		return cmdHelp
	default:
		return cmdUnknown
	}
}

const startHelp = `Commands:
  r, reload   hot reload the application
  l, list     list running applications
  i, info     show application details
  q, stop     stop the application and exit`

// startCmd runs a dev server until it exits or is stopped
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a dev server and control it interactively",
	Long: `Launches the daemon, starts a dev server for the project and reads commands
from stdin until the application exits. Ctrl-C stops the application.

` + startHelp,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		reg := registry.New(s)
		defer reg.Close()

		s.OnEvent(printDaemonEvent)
		s.OnError(func(err error) {
			logging.Warn().Err(err).Msg("malformed daemon output")
		})

		params := startParams()
		app, err := startApplication(ctx, s, reg, params)
		if err != nil {
			return err
		}

		exited := make(chan registry.Application, 1)
		reg.On(registry.EventRemove, func(a registry.Application) {
			if a.ID != app.ID {
				return
			}
			select {
			case exited <- a:
			default:
			}
		})
		if _, ok := reg.Get(app.ID); !ok {
			output.Info(os.Stdout, "Application %s exited", app.ID)
			return nil
		}

		lines := readLines(os.Stdin)
		for {
			select {
			case <-ctx.Done():
				fmt.Println()
				return stopApplication(s, app.ID)
			case <-exited:
				output.Info(os.Stdout, "Application %s exited", app.ID)
				return nil
			case <-s.Done():
				return daemon.ErrDaemonExited
			case line, ok := <-lines:
				if !ok {
					return stopApplication(s, app.ID)
				}
				done, err := runCommand(ctx, s, reg, app.ID, parseCommand(line))
				if err != nil {
					printError(err.Error())
				}
				if done {
					return nil
				}
			}
		}
	},
}

func startParams() domain.StartParams {
	params := domain.StartParams{
		WorkingDirectory:  projectDir,
		Port:              cfg.Server.Port,
		DartVMServicePort: cfg.Server.VMServicePort,
	}
	if startPort != 0 {
		params.Port = startPort
	}
	if startVMServicePort != 0 {
		params.DartVMServicePort = startVMServicePort
	}
	return params
}

// startApplication sends dev_server.start and waits for the registry to pick
// the application up.
func startApplication(ctx context.Context, s *daemon.Session, reg *registry.Registry, params domain.StartParams) (registry.Application, error) {
	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	// The URI either rides along with "add" or arrives later as a change.
	var announce sync.Once
	announceVMService := func(a registry.Application) {
		if a.VMServiceURI == "" || jsonOutput {
			return
		}
		announce.Do(func() {
			output.Info(os.Stdout, "The Dart VM service is listening on %s", a.VMServiceURI)
		})
	}
	reg.On(registry.ChangeEvent(registry.FieldVMServiceURI), announceVMService)

	id, err := s.StartServer(reqCtx, params)
	if err != nil {
		return registry.Application{}, fmt.Errorf("failed to start dev server: %w", err)
	}

	app, err := reg.WaitFor(reqCtx, id)
	if err != nil {
		return registry.Application{}, fmt.Errorf("application %s never started: %w", id, err)
	}

	if jsonOutput {
		return app, printJSON(app)
	}
	output.Success(os.Stdout, "Running on %s", app.Address())
	announceVMService(app)
	fmt.Println(`Type "h" for commands.`)
	return app, nil
}

func runCommand(ctx context.Context, s *daemon.Session, reg *registry.Registry, appID string, c command) (bool, error) {
	switch c {
	case cmdNone:
	case cmdReload:
		reqCtx, cancel := requestContext(ctx)
		defer cancel()
		start := time.Now()
		if err := s.Reload(reqCtx, appID); err != nil {
			return false, fmt.Errorf("reload failed: %w", err)
		}
		output.Success(os.Stdout, "Reloaded in %v", time.Since(start).Round(time.Millisecond))
	case cmdList:
		if jsonOutput {
			return false, printJSON(reg.All())
		}
		output.PrintApplicationsTable(os.Stdout, reg.All())
	case cmdInfo:
		app, ok := reg.Get(appID)
		if !ok {
			return false, fmt.Errorf("application %s is not running", appID)
		}
		if jsonOutput {
			return false, printJSON(app)
		}
		output.PrintApplicationDetail(os.Stdout, app)
	case cmdStop:
		return true, stopApplication(s, appID)
	case cmdHelp:
		fmt.Println(startHelp)
	default:
		output.Info(os.Stdout, `Unknown command, type "h" for help`)
	}
	return false, nil
}

// stopApplication stops appID. It runs on its own deadline because the
// command context is usually already cancelled by then.
func stopApplication(s *daemon.Session, appID string) error {
	ctx, cancel := requestContext(context.Background())
	defer cancel()

	code, err := s.Stop(ctx, appID)
	if err != nil {
		return fmt.Errorf("failed to stop application %s: %w", appID, err)
	}
	output.Success(os.Stdout, "Application %s stopped (exit code %d)", appID, code)
	return nil
}

// printDaemonEvent echoes dev server output. It runs on the session's
// dispatch path.
func printDaemonEvent(ev *protocol.Event) {
	if jsonOutput {
		printJSON(ev)
		return
	}

	switch ev.Event {
	case domain.EventLoggerInfo:
		if p, ok := domain.AsLoggerInfo(ev); ok && !strings.HasPrefix(p.Message, registry.VMServiceURIPrefix) {
			fmt.Println(p.Message)
		}
	case domain.EventLoggerDetail:
		if p, ok := domain.AsLoggerDetail(ev); ok {
			logging.Debug().Str("app", p.ApplicationID).Msg(p.Message)
		}
	case domain.EventProgressStart:
		if p, ok := domain.AsProgressStart(ev); ok {
			output.Info(os.Stdout, "%s", p.ProgressMessage)
		}
	case domain.EventProgressComplete:
		if p, ok := domain.AsProgressComplete(ev); ok {
			output.Success(os.Stdout, "%s", p.ProgressMessage)
		}
	default:
		logging.Debug().Str("event", ev.Event).Str("params", string(ev.Params)).Msg("daemon event")
	}
}

// readLines delivers r line by line and closes the channel at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
