// ABOUTME: Root Cobra command for the lift CLI.
// ABOUTME: Wires config, logging, storage, remote, store and syncer via PersistentPre/PostRunE.
package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/charm"
	"github.com/harperreed/lift/internal/config"
	"github.com/harperreed/lift/internal/logging"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
	"github.com/harperreed/lift/internal/store"
	"github.com/harperreed/lift/internal/sync"
	"github.com/harperreed/lift/internal/workoutlog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool

	cfg        *config.Config
	logger     *logging.Logger
	db         *storage.DB
	liftStore  *store.Store
	syncer     *sync.Syncer // nil when no remote is configured
	maintainer *workoutlog.Maintainer
	syncCfg    *sync.Config

	charmClient  *charm.Client // set when the charm backend is open
	remoteCloser io.Closer
	wrote        atomic.Bool
	serving      bool
)

var rootCmd = &cobra.Command{
	Use:   "lift",
	Short: "Offline-first strength and conditioning tracker",
	Long: `Lift tracks exercises, workouts and weekly routines on this device and
keeps them in sync with a remote store whenever one is reachable.

WHAT IT TRACKS:

  Exercises   a movement with planned sets (reps, distance, time or calories,
              plus weight, speed, incline, resistance or level)
  Workouts    an ordered list of exercises
  Routines    a weekly schedule: one workout or a rest day per weekday
  Logs        a frozen per-day copy of the scheduled workout with progress

QUICK START:

  $ lift exercise add Squat --volume reps --intensity weight --set 5,100 --set 5,105
  $ lift workout add "Leg day" <exercise-id>
  $ lift routine add "Three day" --mon <workout-id> --fri <workout-id>
  $ lift routine activate <routine-id>
  $ lift log show                       # Today's workout
  $ lift log complete <exercise-id> 2   # Two sets done

SYNC:

  $ lift sync login --server https://lift.example.com --token <token>
  $ lift sync now
  $ lift serve                          # Background sync, realtime feed, daily logs

MCP INTEGRATION:

  Run 'lift mcp' to start the Model Context Protocol server for use with
  Claude Desktop or other MCP-compatible AI assistants.

DATA STORAGE:

  Data lives in SQLite at ~/.local/share/lift/lift.db and configuration in
  ~/.config/lift/config.yaml. Every change is saved locally first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for commands that don't touch data
		switch cmd.Name() {
		case "version", "help", "install-skill", "login", "logout", "completion":
			return nil
		}
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		autoSync(cmd)
	},
}

// Execute runs the root command and releases everything setup opened,
// including when the command fails.
func Execute() error {
	err := rootCmd.Execute()
	if cerr := teardown(); err == nil {
		err = cerr
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/lift/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func setup() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.File = config.ExpandPath(cfg.Log.File)
	if verbose {
		logCfg.Level = "debug"
	}
	logger = logging.New(logCfg)

	db, err = storage.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	syncCfg, err = sync.LoadConfig()
	if err != nil {
		logger.Warn("ignoring unreadable sync config", "error", err)
		syncCfg = &sync.Config{}
	}

	r := openRemote()
	maintainer = workoutlog.New(db, logger, cfg.Logs.MaxBackfillDays)
	if r != nil {
		syncer = sync.New(db, r, logger, sync.Options{
			Timeout: cfg.Sync.Timeout,
			AfterSync: func(ctx context.Context) error {
				_, err := maintainer.UpdateLogs(ctx, time.Now())
				return err
			},
		})
	}

	wrote.Store(false)
	liftStore = store.New(db, r, logger, store.Options{
		AfterWrite: func() {
			wrote.Store(true)
			if serving && syncer != nil && cfg.Sync.AutoSync {
				syncer.Trigger()
			}
		},
	})
	return nil
}

// openRemote selects the configured backend. Any failure leaves lift offline.
func openRemote() remote.Remote {
	switch cfg.Sync.Backend {
	case "http":
		if !syncCfg.IsConfigured() {
			return nil
		}
		return remote.NewHTTPClient(syncCfg.Server, syncCfg.Token, syncCfg.DeviceID, cfg.Sync.Timeout)
	case "charm":
		client, err := charm.Open(cfg.Charm.DB, cfg.Charm.Host)
		if err != nil {
			logger.Warn("charm unavailable, working offline", "error", err)
			return nil
		}
		charmClient = client
		remoteCloser = client
		return remote.NewKVStore(client)
	default:
		return nil
	}
}

// autoSync pushes one-shot command writes right away when enabled.
func autoSync(cmd *cobra.Command) {
	if serving || syncer == nil || cfg == nil || !cfg.Sync.AutoSync || !wrote.Load() {
		return
	}
	if _, err := syncer.Run(cmd.Context()); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("⚠ Sync deferred: %v", err))
	}
}

func teardown() error {
	var firstErr error
	if remoteCloser != nil {
		firstErr = remoteCloser.Close()
		remoteCloser = nil
		charmClient = nil
	}
	if db != nil {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		db = nil
	}
	if logger != nil {
		_ = logger.Close()
		logger = nil
	}
	syncer = nil
	liftStore = nil
	maintainer = nil
	return firstErr
}

// requireSyncer returns the syncer or explains how to configure one.
func requireSyncer() (*sync.Syncer, error) {
	if syncer == nil {
		return nil, fmt.Errorf("sync is not configured; run 'lift sync login' (backend %q)", cfg.Sync.Backend)
	}
	return syncer, nil
}
