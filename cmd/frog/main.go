package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jneschisi/dart-frog/internal/config"
	"github.com/jneschisi/dart-frog/internal/daemon"
	"github.com/jneschisi/dart-frog/internal/logging"
	"github.com/jneschisi/dart-frog/internal/output"
)

var (
	configPath string
	projectDir string
	logDir     string
	timeout    time.Duration
	jsonOutput bool
	noColor    bool
	debugMode  bool

	cfg *config.Config
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "frog",
	Short: "Drive a Dart Frog daemon from the terminal",
	Long: `Frog spawns "dart_frog daemon" in a project directory and talks to it over
its JSON line protocol.

It can start a dev server and reload or stop it interactively, report the
daemon version, and send raw daemon requests.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		dir := logDir
		if dir == "" {
			dir = cfg.Logging.Dir
		}
		if err := logging.Init(dir); err != nil {
			return fmt.Errorf("failed to open log: %w", err)
		}
		logging.SetDebug(debugMode || cfg.Logging.Debug)

		if projectDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("cannot determine working directory: %w", err)
			}
			projectDir = wd
		}
		abs, err := filepath.Abs(projectDir)
		if err != nil {
			return fmt.Errorf("invalid project directory %s: %w", projectDir, err)
		}
		projectDir = abs
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/dartfrog/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", "", "Dart Frog project directory (default current directory)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Log directory (default ~/.local/state/dartfrog)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 60*time.Second, "How long to wait for the daemon and for each request")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(daemonCmd)

	startCmd.Flags().IntVarP(&startPort, "port", "p", 0, "Dev server port (default from config, 8080)")
	startCmd.Flags().IntVar(&startVMServicePort, "dart-vm-service-port", 0, "Dart VM service port (default from config, 8181)")

	// Disable color if requested
	cobra.OnInitialize(func() {
		if noColor {
			output.SetNoColor(true)
		}
	})
}

func main() {
	defer logging.Close()

	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

// Helper functions

// openSession launches the daemon in the project directory and waits for it
// to become ready.
func openSession(ctx context.Context) (*daemon.Session, error) {
	s := daemon.New(cfg.SessionOptions()...)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.Invoke(ctx, projectDir); err != nil {
		s.Close()
		return nil, fmt.Errorf("daemon did not become ready: %w", err)
	}

	info, _ := s.Info()
	logging.Info().Str("version", info.Version).Int("pid", info.ProcessID).Str("dir", projectDir).Msg("session ready")
	return s, nil
}

// requestContext bounds a single daemon request by --timeout.
func requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

func printJSON(data interface{}) error {
	return output.JSON(os.Stdout, data)
}

func printError(msg string) {
	output.Error(os.Stderr, msg)
}
