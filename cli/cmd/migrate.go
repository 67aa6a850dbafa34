package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ocean/cli/render"
)

// MigrateResponse is the response for the migrate command.
type MigrateResponse struct {
	Status string `json:"status"`
}

// MigrateCommand returns the migrate command. Applies the schema, creating
// the database file if absent. Idempotent.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply the database schema (idempotent)",
		Flags:  CoreFlags(),
		Action: migrateAction,
	}
}

func migrateAction(c *cli.Context) error {
	core, err := openCore(c)
	if err != nil {
		return err
	}
	defer core.Close()

	if err := core.Migrate(); err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(MigrateResponse{Status: "ok"})
}
