package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"shieldvpn/internal/models"
	"shieldvpn/internal/storage"

	"github.com/spf13/cobra"
)

var (
	selectCmd = &cobra.Command{
		Use:   "select <server-id>",
		Short: "select the server to connect to",
		Long: `Stores the server the client connects to. A client already running in
another shell keeps its current server; the selection applies the next
time ` + "`shieldvpn run`" + ` starts. Use ` + "`select`" + ` on the run prompt to switch
a live session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := startApp()
			defer app.Shutdown()

			if err := app.Controller.SelectServer(context.Background(), args[0]); err != nil {
				return err
			}
			s, _ := app.Catalog.Get(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "selected %s\n", s.DisplayName())
			return nil
		},
	}

	favoriteCmd = &cobra.Command{
		Use:   "favorite <server-id>",
		Short: "add or remove a server from favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := startApp()
			defer app.Shutdown()

			member, err := app.Controller.ToggleFavorite(context.Background(), args[0])
			if err != nil {
				return err
			}
			if member {
				fmt.Fprintf(cmd.OutOrStdout(), "%s added to favorites\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed from favorites\n", args[0])
			}
			return nil
		},
	}

	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "show or change VPN settings",
	}

	settingsShowCmd = &cobra.Command{
		Use:   "show",
		Short: "print the current settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := startApp()
			defer app.Shutdown()

			if err := app.Controller.WaitLoaded(context.Background()); err != nil {
				return err
			}
			printSettings(cmd, app.Controller.Snapshot().Settings)
			return nil
		},
	}

	settingsSetCmd = &cobra.Command{
		Use:   "set <key> <value>",
		Short: "change one setting (killSwitch, autoConnect, splitTunneling, darkMode, protocol)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := models.ParseSettingsPatch(args[0], args[1])
			if err != nil {
				return err
			}

			app := startApp()
			defer app.Shutdown()

			settings, err := app.Controller.UpdateSettings(context.Background(), patch)
			if err != nil {
				return err
			}
			printSettings(cmd, settings)
			return nil
		},
	}

	onboardingCmd = &cobra.Command{
		Use:   "onboarding",
		Short: "mark onboarding as complete",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := startApp()
			defer app.Shutdown()

			if err := app.Controller.CompleteOnboarding(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "onboarding complete")
			return nil
		},
	}

	premiumCmd = &cobra.Command{
		Use:       "premium <on|off>",
		Short:     "record whether premium servers are unlocked",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app := startApp()
			defer app.Shutdown()

			on := args[0] == "on"
			if err := app.Settings.SavePremium(context.Background(), on); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "premium: %t\n", on)
			return nil
		},
	}

	credentialsCmd = &cobra.Command{
		Use:   "credentials",
		Short: "manage VPN account credentials in the OS keyring",
	}

	credentialsSetCmd = &cobra.Command{
		Use:   "set <username>",
		Short: "store a username; the password is read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), "password: ")
			password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && password == "" {
				return fmt.Errorf("read password: %w", err)
			}

			creds := storage.Credentials{Username: args[0], Password: strings.TrimRight(password, "\r\n")}
			if err := storage.NewCredentialStore().Save(creds); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credentials saved")
			return nil
		},
	}

	credentialsShowCmd = &cobra.Command{
		Use:   "show",
		Short: "print the stored username",
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, ok, err := storage.NewCredentialStore().Get()
			switch {
			case err != nil:
				return err
			case !ok:
				fmt.Fprintln(cmd.OutOrStdout(), "no credentials stored")
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "username: %s\n", creds.Username)
			}
			return nil
		},
	}

	credentialsClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "remove stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := storage.NewCredentialStore().Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credentials cleared")
			return nil
		},
	}
)

func printSettings(cmd *cobra.Command, s models.VpnSettings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "killSwitch:     %t\n", s.KillSwitch)
	fmt.Fprintf(out, "autoConnect:    %t\n", s.AutoConnect)
	fmt.Fprintf(out, "splitTunneling: %t\n", s.SplitTunneling)
	fmt.Fprintf(out, "darkMode:       %t\n", s.DarkMode)
	fmt.Fprintf(out, "protocol:       %s\n", s.Protocol)
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsShowCmd, credentialsClearCmd)
	rootCmd.AddCommand(selectCmd, favoriteCmd, settingsCmd, onboardingCmd, premiumCmd, credentialsCmd)
}
