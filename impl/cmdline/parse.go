package cmdline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/aceeric/imgpreload/impl/config"

	"github.com/urfave/cli/v3"
)

// fromCmdline will be populated with flags indicating which configuration settings were
// specified on the command line.
var fromCmdline config.FromCmdLine

// cfg has the parsed configuration - including defaults (e.g. port) if the user does not override
var cfg = config.Configuration{}

var errSceneAndWeight = errors.New("specify --scene or --weight, not both")

// isFile validates that a flag value names an existing regular file
func isFile(path string) error {
	if fi, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found")
	} else if fi.IsDir() {
		return fmt.Errorf("not a file")
	}
	return nil
}

func catalogFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "catalog",
		Usage:       "A yaml file listing the resources to load",
		Destination: &cfg.CatalogFile,
		Validator:   isFile,
		Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
			fromCmdline.CatalogFile = true
			return nil
		},
	}
}

func selectorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "scene",
			Usage:       "Selects resources in the scene, and resources without a scene",
			Destination: &cfg.LoadConfig.Scene,
			Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
				fromCmdline.LoadConfig = true
				return nil
			},
		},
		&cli.FloatFlag{
			Name:        "weight",
			Usage:       "Selects resources with at least the weight, and resources without a weight",
			Destination: &cfg.LoadConfig.Weight,
			Action: func(ctx context.Context, cmd *cli.Command, _ float64) error {
				fromCmdline.LoadConfig = true
				cfg.LoadConfig.ByWeight = true
				return nil
			},
		},
	}
}

func concurrentFlag() cli.Flag {
	return &cli.IntFlag{
		Name:        "concurrent",
		Value:       8,
		Usage:       "The maximum number of fetches to run at one time (zero means no limit)",
		Destination: &cfg.Concurrent,
		Validator: func(n int64) error {
			if n < 0 {
				return fmt.Errorf("must not be negative")
			}
			return nil
		},
		Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
			fromCmdline.Concurrent = true
			return nil
		},
	}
}

func pullTimeoutFlag() cli.Flag {
	return &cli.IntFlag{
		Name:        "pull-timeout",
		Value:       60000,
		Usage:       "The max time to fetch one resource in milliseconds before timing out",
		Destination: &cfg.PullTimeout,
		Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
			fromCmdline.PullTimeout = true
			return nil
		},
	}
}

// checkSelector rejects a command line with both selector flags
func checkSelector(cmd *cli.Command) error {
	if cmd.IsSet("scene") && cmd.IsSet("weight") {
		return errSceneAndWeight
	}
	return nil
}

// cmds is for the command line parser urfave/cli
var cmds = &cli.Command{
	Name:  "imgpreload",
	Usage: "a deduplicating, scene and weight aware resource preloader",
	// define this or the parser terminates the program
	ExitErrHandler: func(_ context.Context, _ *cli.Command, _ error) {},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "error",
			Usage:       "Sets the minimum value for logging: debug, warn, info, or error",
			Destination: &cfg.LogLevel,
			Validator: func(lvl string) error {
				validValues := []string{"debug", "warn", "info", "error"}
				if !slices.Contains(validValues, strings.ToLower(lvl)) {
					return fmt.Errorf("must be one of %s", strings.Join(validValues, ", "))
				}
				return nil
			},
			Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
				fromCmdline.LogLevel = true
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "config-file",
			Usage:       "A file to load configuration values from (cmdline overrides file settings)",
			Destination: &cfg.ConfigFile,
			Validator:   isFile,
			Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
				fromCmdline.ConfigFile = true
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "cache-path",
			Value:       "/var/lib/imgpreload",
			Usage:       "The path where fetched resources are stored",
			Destination: &cfg.CachePath,
			Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
				fromCmdline.CachePath = true
				return nil
			},
		},
		&cli.StringFlag{
			Name:        "log-file",
			Value:       "",
			Usage:       "log to the specified file rather than the console",
			Destination: &cfg.LogFile,
			Action: func(ctx context.Context, cmd *cli.Command, _ string) error {
				fromCmdline.LogFile = true
				return nil
			},
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "load",
			Usage: "Loads a catalog, or the part of it picked by scene or weight, and exits",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fromCmdline.Command = "load"
				return checkSelector(cmd)
			},
			Flags: append([]cli.Flag{
				catalogFlag(),
				concurrentFlag(),
				pullTimeoutFlag(),
				&cli.IntFlag{
					Name:        "wait-timeout",
					Value:       0,
					Usage:       "The max time in milliseconds to wait for the load to complete (zero waits forever)",
					Destination: &cfg.WaitTimeout,
					Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
						fromCmdline.WaitTimeout = true
						return nil
					},
				},
			}, selectorFlags()...),
		},
		{
			Name:  "serve",
			Usage: "Runs the preload API server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fromCmdline.Command = "serve"
				return nil
			},
			Flags: []cli.Flag{
				catalogFlag(),
				concurrentFlag(),
				pullTimeoutFlag(),
				&cli.IntFlag{
					Name:        "port",
					Value:       8080,
					Usage:       "The port to serve on",
					Destination: &cfg.Port,
					Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
						fromCmdline.Port = true
						return nil
					},
				},
				&cli.IntFlag{
					Name:        "metrics",
					Value:       0,
					Usage:       "Serves prometheus metrics on the port (zero disables metrics)",
					Destination: &cfg.Metrics,
					Action: func(ctx context.Context, cmd *cli.Command, _ int64) error {
						fromCmdline.Metrics = true
						return nil
					},
				},
				&cli.BoolFlag{
					Name:        "watch",
					Value:       false,
					Usage:       "Adds new items to the catalog when the catalog file changes",
					Destination: &cfg.Watch,
					Action: func(ctx context.Context, cmd *cli.Command, _ bool) error {
						fromCmdline.Watch = true
						return nil
					},
				},
			},
		},
		{
			Name:  "list",
			Usage: "Lists the catalog entries picked by scene or weight",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fromCmdline.Command = "list"
				return checkSelector(cmd)
			},
			Flags: append([]cli.Flag{catalogFlag()}, selectorFlags()...),
		},
		{
			Name:  "version",
			Usage: "Displays the version",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fromCmdline.Command = "version"
				return nil
			},
		},
	},
}

// Parse parses the command line. It returns the following:
//
//  1. A FromCmdLine struct which has the command to run ("serve", "load", etc.). If the command
//     is the empty string then no sub-command was specified in which case the parser auto-displays
//     help. This struct also has flags telling you which configuration values were provided by the
//     user on the command line.
//  2. A Configuration struct containing the parsed configuration values. For any configuration flag
//     in the FromCmdLine struct with a false value, the corresponding configuration value in *this*
//     struct will be the default.
//  3. An error, if the parser returned one, else nil.
func Parse() (config.FromCmdLine, config.Configuration, error) {
	if err := cmds.Run(context.Background(), os.Args); err != nil {
		return config.FromCmdLine{}, config.Configuration{}, err
	}
	return fromCmdline, cfg, nil
}

// ClearParse supports unit testing
func ClearParse() {
	fromCmdline = config.FromCmdLine{}
	cfg = config.Configuration{}
}
