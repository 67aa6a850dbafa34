package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ocean/cli/render"
	"github.com/pithecene-io/ocean/types"
)

// RunCommand returns the run command with subcommands.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Create, inspect, signal, and delete runs",
		Subcommands: []*cli.Command{
			runCreateCommand(),
			runGetCommand(),
			runSignalCommand(),
			runDeleteCommand(),
		},
	}
}

func runCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a run (and its session if absent)",
		Flags: append(CoreFlags(),
			&cli.StringFlag{Name: "session", Usage: "Session id", Required: true},
			&cli.StringFlag{Name: "clog", Usage: "Owning clog id", Required: true},
			&cli.StringFlag{Name: "input", Usage: "Initial input as JSON (omit to start idle)"},
			&cli.IntFlag{Name: "max-attempts", Usage: "Retry budget before terminal failure"},
		),
		Action: runCreateAction,
	}
}

// CreateRunResponse is the response for run create.
type CreateRunResponse struct {
	RunID string `json:"run_id"`
}

func runCreateAction(c *cli.Context) error {
	input, err := jsonFlag(c, "input")
	if err != nil {
		return err
	}

	core, err := openCore(c)
	if err != nil {
		return err
	}
	defer core.Close()

	runID, err := core.CreateRun(c.Context, types.CreateRunOptions{
		SessionID:   c.String("session"),
		ClogID:      c.String("clog"),
		Input:       input,
		MaxAttempts: c.Int("max-attempts"),
	})
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(CreateRunResponse{RunID: runID})
}

func runGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show the external view of a run",
		ArgsUsage: "<run-id>",
		Flags:     CoreFlags(),
		Action:    runGetAction,
	}
}

func runGetAction(c *cli.Context) error {
	runID, err := requireRunID(c)
	if err != nil {
		return err
	}

	core, err := openCore(c)
	if err != nil {
		return err
	}
	defer core.Close()

	view, err := core.GetRun(c.Context, runID)
	if err != nil {
		return err
	}
	if view == nil {
		return cli.Exit(fmt.Sprintf("run not found: %s", runID), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(view)
}

func runSignalCommand() *cli.Command {
	return &cli.Command{
		Name:      "signal",
		Usage:     "Enqueue input into a run, waking it if idle or waiting",
		ArgsUsage: "<run-id>",
		Flags: append(CoreFlags(),
			&cli.StringFlag{Name: "input", Usage: "Signal input as JSON", Required: true},
		),
		Action: runSignalAction,
	}
}

// SignalResponse is the response for run signal.
type SignalResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func runSignalAction(c *cli.Context) error {
	runID, err := requireRunID(c)
	if err != nil {
		return err
	}
	input, err := jsonFlag(c, "input")
	if err != nil {
		return err
	}

	core, err := openCore(c)
	if err != nil {
		return err
	}
	defer core.Close()

	if err := core.Signal(c.Context, runID, input); err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(SignalResponse{RunID: runID, Status: "signaled"})
}

func runDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a run and its storage, ticks, and tick rows",
		ArgsUsage: "<run-id>",
		Flags:     CoreFlags(),
		Action:    runDeleteAction,
	}
}

// DeleteResponse is the response for run delete.
type DeleteResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func runDeleteAction(c *cli.Context) error {
	runID, err := requireRunID(c)
	if err != nil {
		return err
	}

	core, err := openCore(c)
	if err != nil {
		return err
	}
	defer core.Close()

	if err := core.DeleteRun(c.Context, runID); err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(DeleteResponse{RunID: runID, Status: "deleted"})
}

// requireRunID reads the single positional run id argument.
func requireRunID(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit("expected exactly one <run-id> argument", 1)
	}
	return c.Args().First(), nil
}

// jsonFlag parses a flag value as JSON. An unset flag returns nil.
func jsonFlag(c *cli.Context, name string) (json.RawMessage, error) {
	s := c.String(name)
	if s == "" {
		return nil, nil
	}
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("--%s must be valid JSON, got: %s", name, s)
	}
	return json.RawMessage(s), nil
}
