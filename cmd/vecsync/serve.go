package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/vecsync/internal/identity"
	"github.com/hyperjump/vecsync/internal/metrics"
	"github.com/hyperjump/vecsync/internal/server"
	"github.com/hyperjump/vecsync/internal/trainer"
	"github.com/hyperjump/vecsync/internal/watcher"
	"github.com/hyperjump/vecsync/pkg/utils"
)

const defaultServerURL = "http://localhost:8080"

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API and keep watched directories in sync",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "listen host (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port (default from config)"},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, configPath, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("host") {
		cfg.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	debug := cfg.Debug || c.Bool("debug")
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", configPath), zap.Bool("debug", debug))

	rec := metrics.New("vecsync")
	comps, err := initializeComponents(c.Context, cfg, logger, rec)
	if err != nil {
		return err
	}
	defer comps.Close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	lock := &sync.Mutex{}
	w, err := startWatcher(ctx, comps, cfg.Watch.Directories, lock)
	if err != nil {
		return err
	}
	defer w.Stop()

	srv := server.NewServer(cfg, comps.Trainer, comps.Store, comps.Embedder,
		server.WithLogger(logger),
		server.WithMetrics(rec),
		server.WithWatch(w, configPath),
		server.WithCollectionLock(lock),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return srv.Stop(shutdownCtx)
}

// watchStrategy picks the strategy for re-training changed files. Content ids change with the
// text, so adding is enough; positional ids keep their value and need an update.
func watchStrategy(scheme string) trainer.Strategy {
	if identity.Scheme(scheme) == identity.SchemePositional {
		return trainer.IncrementalUpdate
	}
	return trainer.IncrementalAdd
}

// startWatcher starts watching dirs and queues the files already in them. lock is held for
// every batch the watcher writes.
func startWatcher(ctx context.Context, comps *Components, dirs []string, lock sync.Locker) (*watcher.Watcher, error) {
	cfg := comps.Config
	t, err := comps.Trainer(watchStrategy(cfg.Identity.Scheme))
	if err != nil {
		return nil, err
	}
	var w *watcher.Watcher
	opts := []watcher.SyncerOption{watcher.WithLock(lock)}
	if sharesIDs(cfg.Identity.Scheme) {
		opts = append(opts, watcher.WithRestore(func() []string { return w.Files() }))
	}
	syncer := watcher.NewTrainerSyncer(t, comps.Store, comps.Logger, opts...)
	w = watcher.New(dirs, cfg.Watch.Extensions, cfg.Watch.RecursiveOrDefault(), syncer,
		watcher.WithLogger(comps.Logger),
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond),
	)
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	w.SyncExistingFiles()
	return w, nil
}

// sharesIDs reports whether identical chunk text in different files maps to one id.
func sharesIDs(scheme string) bool {
	s := identity.Scheme(scheme)
	return s == "" || s == identity.SchemeContent
}

func watchCmd() *cli.Command {
	serverURL := &cli.StringFlag{Name: "server", Usage: "server URL", Value: defaultServerURL}
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch directories in the foreground, or manage a running server's watch list",
		Subcommands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Watch directories (default from config) until interrupted",
				ArgsUsage: "[dir]...",
				Action:    watchRunAction,
			},
			{
				Name:      "add",
				Usage:     "Add a directory to the server's watch list",
				ArgsUsage: "<dir>",
				Flags: []cli.Flag{
					serverURL,
					&cli.BoolFlag{Name: "sync", Usage: "sync files already in the directory", Value: true},
				},
				Action: func(c *cli.Context) error {
					dir, err := dirArg(c)
					if err != nil {
						return err
					}
					if err := watchAddViaHTTP(c.Context, c.String("server"), dir, c.Bool("sync")); err != nil {
						return fmt.Errorf("add failed: %w", err)
					}
					fmt.Fprintf(c.App.Writer, "Added: %s\n", dir)
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a directory from the server's watch list",
				ArgsUsage: "<dir>",
				Flags:     []cli.Flag{serverURL},
				Action: func(c *cli.Context) error {
					dir, err := dirArg(c)
					if err != nil {
						return err
					}
					if err := watchRemoveViaHTTP(c.Context, c.String("server"), dir); err != nil {
						return fmt.Errorf("remove failed: %w", err)
					}
					fmt.Fprintf(c.App.Writer, "Removed: %s\n", dir)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List the server's watched directories",
				Flags: []cli.Flag{serverURL},
				Action: func(c *cli.Context) error {
					dirs, err := watchListViaHTTP(c.Context, c.String("server"))
					if err != nil {
						return fmt.Errorf("list failed: %w", err)
					}
					for _, d := range dirs {
						fmt.Fprintln(c.App.Writer, d)
					}
					return nil
				},
			},
		},
	}
}

func dirArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", fmt.Errorf("%s: directory argument is required", c.Command.Name)
	}
	return filepath.Abs(c.Args().First())
}

func watchRunAction(c *cli.Context) error {
	comps, err := openComponents(c, nil)
	if err != nil {
		return err
	}
	defer comps.Close()
	dirs := c.Args().Slice()
	if len(dirs) == 0 {
		dirs = comps.Config.Watch.Directories
	}
	if len(dirs) == 0 {
		return fmt.Errorf("watch run: no directories given or configured")
	}
	w, err := startWatcher(c.Context, comps, dirs, &sync.Mutex{})
	if err != nil {
		return err
	}
	defer w.Stop()
	fmt.Fprintf(c.App.Writer, "Watching %d director(ies); press Ctrl-C to stop\n", len(dirs))
	<-c.Context.Done()
	return nil
}
