// Package cmd provides CLI commands for the ocean binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags.
var (
	// ConfigFlag points at an ocean.yaml file. Flags override config values.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to ocean.yaml config file",
		EnvVars: []string{"OCEAN_CONFIG"},
	}

	// DBFlag is the SQLite database path.
	DBFlag = &cli.StringFlag{
		Name:    "db",
		Usage:   "SQLite database file path",
		EnvVars: []string{"OCEAN_DB"},
	}

	// InstanceFlag identifies this process as a lock holder.
	InstanceFlag = &cli.StringFlag{
		Name:  "instance-id",
		Usage: "Instance id used for advance locks (default: generated)",
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}
)

// CoreFlags returns the flags every database-touching command takes.
func CoreFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		DBFlag,
		InstanceFlag,
		FormatFlag,
	}
}

// ReadOnlyFlags returns the flags for commands that never open the database.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
	}
}
