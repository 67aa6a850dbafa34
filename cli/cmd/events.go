package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ocean/cli/render"
	"github.com/pithecene-io/ocean/types"
)

// EventsCommand returns the events command with subcommands.
func EventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Read and garbage-collect the append-only event log",
		Subcommands: []*cli.Command{
			eventsReadCommand(),
			eventsGCCommand(),
		},
	}
}

func eventsReadCommand() *cli.Command {
	return &cli.Command{
		Name:  "read",
		Usage: "Read a scope-filtered, cursor-paginated page of events",
		Flags: append(CoreFlags(),
			&cli.StringFlag{Name: "scope", Usage: "Scope: global, session, run, tick", Required: true},
			&cli.StringFlag{Name: "session", Usage: "Session id (required for session scope)"},
			&cli.StringFlag{Name: "run", Usage: "Run id (required for run and tick scopes)"},
			&cli.StringFlag{Name: "tick", Usage: "Tick id (required for tick scope)"},
			&cli.Int64Flag{Name: "after", Usage: "Cursor: exclude events with seq <= after"},
			&cli.IntFlag{Name: "limit", Usage: "Page size cap (default 100)"},
		),
		Action: eventsReadAction,
	}
}

func eventsReadAction(c *cli.Context) error {
	core, err := openCore(c)
	if err != nil {
		return err
	}
	defer core.Close()

	events, err := core.ReadEvents(c.Context, types.ReadEventsQuery{
		Scope:     types.ScopeKind(c.String("scope")),
		SessionID: c.String("session"),
		RunID:     c.String("run"),
		TickID:    c.String("tick"),
		AfterSeq:  c.Int64("after"),
		Limit:     c.Int("limit"),
	})
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(events)
}

func eventsGCCommand() *cli.Command {
	return &cli.Command{
		Name:  "gc",
		Usage: "Sweep events older than the retention window",
		Flags: append(CoreFlags(),
			&cli.BoolFlag{Name: "force", Usage: "Sweep even if the minimum interval has not elapsed"},
		),
		Action: eventsGCAction,
	}
}

// GCResponse is the response for events gc.
type GCResponse struct {
	Removed int64 `json:"removed"`
}

func eventsGCAction(c *cli.Context) error {
	core, err := openCore(c)
	if err != nil {
		return err
	}
	defer core.Close()

	var removed int64
	if c.Bool("force") {
		removed, err = core.GCEvents(c.Context)
	} else {
		removed, err = core.GCEventsIfDue(c.Context)
	}
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(GCResponse{Removed: removed})
}
