// ABOUTME: CLI commands for syncing with the remote store.
// ABOUTME: Supports now, status, login, logout, link, and unlink operations.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/sync"
	"github.com/spf13/cobra"
)

var (
	loginServer      string
	loginToken       string
	loginRealtimeURL string
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync data with the remote store",
	Long: `Sync exercises, workouts and routines with the remote store.

Every change is saved on this device first and marked dirty. A sync pushes
dirty rows and pending deletes, pulls everything the remote changed since the
last sync, and keeps the newest version of each row.

BACKENDS (sync.backend in config.yaml):

  http    A lift sync server. Configure with 'lift sync login'.
  charm   Charm Cloud KV, E2E encrypted with your SSH key. Use 'lift sync link'.
  none    Local only.

COMMANDS:

  now       Run a sync cycle
  status    Show pending changes and the last sync time
  login     Save sync server credentials
  logout    Remove sync server credentials
  link      Link this device to Charm
  unlink    Disconnect this device from Charm`,
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run a sync cycle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := requireSyncer()
		if err != nil {
			return err
		}
		res, err := s.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("✓ Sync complete"))
		fmt.Fprintf(out, "  Pushed:  %d changes, %d deletes\n", res.Pushed, res.Deleted)
		fmt.Fprintf(out, "  Pulled:  %d applied, %d older than local\n", res.Applied, res.Skipped)
		if res.Purged > 0 {
			fmt.Fprintf(out, "  Removed: %d deleted elsewhere\n", res.Purged)
		}
		if res.Pending > 0 {
			fmt.Fprintln(out, color.YellowString("  %d changes not acknowledged; retrying next sync", res.Pending))
		}
		if res.Dropped > 0 {
			fmt.Fprintln(out, color.YellowString("  %d invalid remote rows ignored", res.Dropped))
		}
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := syncer
		if s == nil {
			// Status only reads local bookkeeping.
			s = sync.New(db, nil, logger, sync.Options{})
		}
		st, err := s.Status(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backend:   %s\n", cfg.Sync.Backend)
		switch {
		case cfg.Sync.Backend == "http" && syncCfg.IsConfigured():
			fmt.Fprintf(out, "Server:    %s\n", syncCfg.Server)
		case cfg.Sync.Backend == "charm" && charmClient != nil:
			if id, err := charmClient.ID(); err == nil {
				fmt.Fprintf(out, "Charm ID:  %s\n", id)
			}
		}
		fmt.Fprintf(out, "Device:    %s\n", syncCfg.DeviceID)
		if st.LastSync.IsZero() {
			fmt.Fprintln(out, "Last sync: never")
		} else {
			fmt.Fprintf(out, "Last sync: %s\n", st.LastSync.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(out)

		for _, kind := range []models.Kind{models.KindExercise, models.KindWorkout, models.KindRoutine} {
			fmt.Fprintf(out, "  %s %d changed, %d deleted\n",
				padRight(string(kind)+"s:", 11), st.Dirty[kind], st.Tombstones[kind])
		}
		if st.Pending() == 0 {
			fmt.Fprintln(out, color.GreenString("\n✓ Up to date"))
		} else if syncer == nil {
			fmt.Fprintln(out, color.YellowString("\n⚠ Sync is not configured; changes stay on this device"))
		}
		return nil
	},
}

var syncLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save sync server credentials",
	Long: `Save the sync server URL and token used by the http backend.

Example:
  lift sync login --server https://lift.example.com --token <token>
  lift sync login --server https://lift.example.com --token <token> \
    --realtime-url wss://lift.example.com/changes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		existing, err := sync.LoadConfig()
		if err != nil {
			existing = &sync.Config{DeviceID: sync.GenerateDeviceID()}
		}
		existing.Server = loginServer
		existing.Token = loginToken
		existing.RealtimeURL = loginRealtimeURL
		if err := sync.SaveConfig(existing); err != nil {
			return fmt.Errorf("failed to save sync config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("✓ Logged in to %s", loginServer))
		fmt.Fprintf(out, "  Device: %s\n", existing.DeviceID)
		fmt.Fprintln(out, "Set sync.backend to \"http\" in config.yaml if it isn't already.")
		return nil
	},
}

var syncLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove sync server credentials",
	Long: `Remove the saved sync server credentials.

Local data is preserved. Unsynced changes stay dirty until the next login.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := sync.ClearConfig(); err != nil {
			return fmt.Errorf("failed to clear sync config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Logged out"))
		return nil
	},
}

var syncLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link this device to Charm",
	Long: `Link this device to your Charm account.

If you don't have a Charm account, one will be created using your SSH key.
If you already have an account, you'll be prompted to link via charm.sh.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runCharm("link"); err != nil {
			return fmt.Errorf("failed to link: %w\n\nMake sure 'charm' CLI is installed: go install github.com/charmbracelet/charm@latest", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("\n✓ Device linked to Charm"))

		if charmClient == nil {
			fmt.Fprintln(out, "Set sync.backend to \"charm\" in config.yaml to sync through it.")
			return nil
		}
		if err := charmClient.Sync(); err != nil {
			fmt.Fprintln(out, color.YellowString("⚠ Initial sync failed: %v", err))
			return nil
		}
		if syncer != nil {
			if _, err := syncer.Run(cmd.Context()); err != nil {
				fmt.Fprintln(out, color.YellowString("⚠ Initial sync failed: %v", err))
				return nil
			}
		}
		fmt.Fprintln(out, color.GreenString("✓ Initial sync complete"))
		return nil
	},
}

var syncUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Disconnect from Charm",
	Long: `Disconnect this device from Charm.

This does not delete your local data.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runCharm("unlink"); err != nil {
			return fmt.Errorf("failed to unlink: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Device unlinked from Charm"))
		return nil
	},
}

func runCharm(args ...string) error {
	charmCmd := exec.Command("charm", args...)
	charmCmd.Stdin = os.Stdin
	charmCmd.Stdout = os.Stdout
	charmCmd.Stderr = os.Stderr
	return charmCmd.Run()
}

func init() {
	syncLoginCmd.Flags().StringVar(&loginServer, "server", "", "sync server URL")
	syncLoginCmd.Flags().StringVar(&loginToken, "token", "", "auth token")
	syncLoginCmd.Flags().StringVar(&loginRealtimeURL, "realtime-url", "", "change feed websocket URL")
	_ = syncLoginCmd.MarkFlagRequired("server")
	_ = syncLoginCmd.MarkFlagRequired("token")

	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncLoginCmd)
	syncCmd.AddCommand(syncLogoutCmd)
	syncCmd.AddCommand(syncLinkCmd)
	syncCmd.AddCommand(syncUnlinkCmd)
	rootCmd.AddCommand(syncCmd)
}
