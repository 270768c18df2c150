package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jneschisi/dart-frog/internal/daemon"
	"github.com/jneschisi/dart-frog/internal/output"
	"github.com/jneschisi/dart-frog/internal/protocol"
)

// versionCmd asks the daemon for its version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the daemon version",
	Long:  `Launches the daemon, waits for daemon.ready and sends daemon.requestVersion.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		reqCtx, cancel := requestContext(ctx)
		defer cancel()
		version, err := s.RequestVersion(reqCtx)
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}

		info, _ := s.Info()
		if jsonOutput {
			return printJSON(map[string]interface{}{
				"version":   version,
				"processId": info.ProcessID,
			})
		}

		output.KeyColor.Print("Daemon: ")
		fmt.Println(version)
		output.KeyColor.Print("PID: ")
		fmt.Println(info.ProcessID)
		return nil
	},
}

// daemonCmd sends one raw request
var daemonCmd = &cobra.Command{
	Use:   "daemon <method> [params-json]",
	Short: "Send a raw request to the daemon",
	Long: `Sends a single request to the daemon and prints the response.

Examples:
  frog daemon daemon.requestVersion
  frog daemon dev_server.start '{"workingDirectory":".","port":8080,"dartVmServicePort":8181}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := rawRequest(args)
		if err != nil {
			return err
		}

		ctx := context.Background()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		req.ID = s.Generate()
		reqCtx, cancel := requestContext(ctx)
		defer cancel()

		resp, err := s.Send(reqCtx, req)
		var reqErr *daemon.RequestError
		switch {
		case errors.As(err, &reqErr):
			printJSON(resp)
			return err
		case err != nil:
			return fmt.Errorf("request %s failed: %w", req.Method, err)
		}

		if jsonOutput {
			return printJSON(resp)
		}
		var result interface{}
		if len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, &result); err != nil {
				return fmt.Errorf("failed to decode result: %w", err)
			}
		}
		return output.JSON(os.Stdout, result)
	},
}

// rawRequest builds a request without an id from command arguments.
func rawRequest(args []string) (*protocol.Request, error) {
	req := &protocol.Request{Method: args[0]}
	if len(args) > 1 {
		params := json.RawMessage(args[1])
		if !json.Valid(params) {
			return nil, fmt.Errorf("params are not valid JSON: %s", args[1])
		}
		req.Params = params
	}
	return req, nil
}
