// Package main is the vecsync CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/hyperjump/vecsync/internal/config"
	"github.com/hyperjump/vecsync/internal/metrics"
	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/vecsync/config.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "vecsync",
		Usage:     "Chunk documents and keep a vector collection in sync with them",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file path",
				Value:   defaultConfigPath,
				EnvVars: []string{"VECSYNC_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file with provider credentials (ignored when missing)",
				Value: ".env",
			},
		},
		Before: loadEnv,
		// Errors are reported by main so tests can run the app without exiting.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			trainCmd(),
			searchCmd(),
			itemsCmd(),
			deleteCmd(),
			statusCmd(),
			watchCmd(),
			serveCmd(),
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "vecsync %s\n", version)
					return nil
				},
			},
		},
	}
}

func loadEnv(c *cli.Context) error {
	path := c.String("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence, and a missing default file falls back to built-in defaults.
// Returns the config and the path it belongs to (for saving watch changes).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				cfg, err := config.Load(local)
				return cfg, local, err
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// openComponents loads config and opens the store for a one-shot command.
func openComponents(c *cli.Context, rec *metrics.Recorder) (*Components, error) {
	cfg, _, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger, err := utils.NewCLILogger(cfg.Debug || c.Bool("debug"))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	comps, err := initializeComponents(c.Context, cfg, logger, rec)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return comps, nil
}

// exitCode is 2 for configuration problems and 1 for everything else.
func exitCode(err error) int {
	if errors.Is(err, models.ErrConfiguration) || errors.Is(err, models.ErrMixedSourceTypes) {
		return 2
	}
	return 1
}
