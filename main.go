package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ironbutton/config"
	"ironbutton/doctor"
	"ironbutton/hotkey"
	"ironbutton/log"
	"ironbutton/login"
	"ironbutton/notify"
	"ironbutton/portal"
	"ironbutton/shortcut"
	"ironbutton/shutdown"
)

var version = "dev"

var (
	flagVerbose          bool
	flagShowPortalConfig bool
	flagConfig           string
	flagBackend          string
	flagWatch            bool
)

var errDoctorFailed = errors.New("some checks failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "iron-button",
	Short: "Run commands on global keyboard shortcuts",
	Long: `iron-button binds the shortcuts listed in its config file through the
desktop's GlobalShortcuts portal and runs the configured action whenever
one is pressed or released.

Send SIGHUP (or pass --watch) to reload the config without restarting.

Examples:
  iron-button                          # Run with $XDG_CONFIG_HOME/iron-button/config.yml
  iron-button --config ./binds.yml -v  # Custom config, debug logging
  iron-button --show-portal-config     # Open the desktop's shortcut settings
  iron-button doctor                   # Check config, programs and portal`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Init(os.Stderr, flagVerbose)
		defer log.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		stopOnSignal(cancel)

		if flagShowPortalConfig {
			return showPortalConfig(ctx)
		}
		return runDaemon(ctx)
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the config, the configured programs and the portal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ResolvePath(flagConfig)
		if err != nil {
			return err
		}
		if code := doctor.New(cmd.OutOrStdout()).Run(cmd.Context(), path); code != 0 {
			return errDoctorFailed
		}
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Manage the systemd user unit that starts iron-button with the session",
}

var loginEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Install, enable and start the unit with the current --config, --backend and --watch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		unitArgs, err := daemonArgs()
		if err != nil {
			return err
		}
		if err := login.Enable(cmd.Context(), unitArgs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s enabled\n", login.UnitName)
		return nil
	},
}

var loginDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop and remove the unit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := login.Disable(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s disabled\n", login.UnitName)
		return nil
	},
}

var loginStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the unit is installed and running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := login.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", login.UnitName, status)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $"+config.EnvPath+" or $XDG_CONFIG_HOME/iron-button/config.yml)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "portal", "Shortcut backend (portal or x11)")
	rootCmd.PersistentFlags().BoolVar(&flagWatch, "watch", false, "Reload when the config file changes")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	rootCmd.Flags().BoolVar(&flagShowPortalConfig, "show-portal-config", false, "Open the portal's shortcut configuration dialog and exit")

	loginCmd.AddCommand(loginEnableCmd, loginDisableCmd, loginStatusCmd)
	rootCmd.AddCommand(doctorCmd, loginCmd)
}

// daemonArgs reproduces the daemon flags for a unit's ExecStart.
func daemonArgs() ([]string, error) {
	var args []string
	if flagConfig != "" {
		path, err := config.ResolvePath(flagConfig)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", path)
	}
	if flagBackend != "portal" {
		args = append(args, "--backend", flagBackend)
	}
	if flagWatch {
		args = append(args, "--watch")
	}
	return args, nil
}

// stopOnSignal cancels on SIGINT or SIGTERM. A second signal exits at once.
func stopOnSignal(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 2)
	shutdown.Notify(sigChan)
	go func() {
		sig := <-sigChan
		log.Infof("received %s, shutting down", sig)
		cancel()
		<-sigChan
		os.Exit(1)
	}()
}

func connect(ctx context.Context, backend string) (shortcut.Gateway, error) {
	switch backend {
	case "portal":
		s, err := portal.Connect(ctx)
		if err != nil {
			return nil, fmt.Errorf("connecting to GlobalShortcuts portal: %w", err)
		}
		return s, nil
	case "x11":
		return hotkey.New()
	}
	return nil, fmt.Errorf("unknown backend %q (want portal or x11)", backend)
}

func showPortalConfig(ctx context.Context) error {
	gw, err := connect(ctx, flagBackend)
	if err != nil {
		return err
	}
	return configure(ctx, gw)
}

// configure shows the service's shortcut dialog once and ends the session.
func configure(ctx context.Context, gw shortcut.Gateway) error {
	defer gw.Close()
	return gw.Configure(ctx)
}

func runDaemon(ctx context.Context) error {
	// SIGHUP must not hit the default disposition once we are running.
	hangup := make(chan os.Signal, 1)
	shutdown.Hangup(hangup)
	defer shutdown.Stop(hangup)

	path, err := config.ResolvePath(flagConfig)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	gw, err := connect(ctx, flagBackend)
	if err != nil {
		return err
	}
	defer gw.Close()

	return serve(ctx, daemon{
		gateway: gw,
		path:    path,
		backend: flagBackend,
		watch:   flagWatch,
		notify:  notify.New(),
		hangup:  hangup,
	}, cfg)
}
