package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/minutes/credentials"
)

// NewAuthCommand creates the 'auth' command group.
func NewAuthCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the admin password used by remote commands",
		Long: `Manage the admin password the remote commands send to a minutes server.

The password is kept in the system keyring. MINUTES_PASSWORD takes precedence
over the stored value. Without a password, remote commands use a demo
session with a limited number of free requests.`,
	}

	cmd.AddCommand(newLoginCommand(deps))
	cmd.AddCommand(newLogoutCommand(deps))
	cmd.AddCommand(newAuthStatusCommand(deps))

	return cmd
}

func newLoginCommand(deps *CommandDeps) *cobra.Command {
	var (
		password       string
		server         string
		nonInteractive bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the admin password",
		Long: `Store the admin password in the system keyring.

Examples:
  # Prompt for the password
  minutes auth login

  # Store the password and remember the server
  minutes auth login --server https://minutes.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.OutOrStdout(), deps, password, server, nonInteractive)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted when omitted)")
	cmd.Flags().StringVar(&server, "server", "", "Server URL to save in the config file")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of prompting for input")

	return cmd
}

func runLogin(out io.Writer, deps *CommandDeps, password, server string, nonInteractive bool) error {
	if password == "" {
		if nonInteractive {
			return errors.New("no password provided and --non-interactive flag set")
		}
		var err error
		password, err = deps.ReadSecret("Admin password: ")
		if err != nil {
			return err
		}
	}
	if password == "" {
		return errors.New("no password provided")
	}

	if err := deps.Credentials.SetPassword(password); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	fmt.Fprintln(out, "Login successful!")
	fmt.Fprintf(out, "  Password: %s\n", credentials.MaskSecret(password))
	fmt.Fprintf(out, "  Stored in: %s\n", deps.Credentials.Description())

	if server != "" {
		cfg, err := deps.config()
		if err != nil {
			return err
		}
		cfg.Remote.ServerURL = server
		if err := deps.SaveConfig(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(out, "  Server: %s\n", server)
	}

	return nil
}

func newLogoutCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored admin password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.OutOrStdout(), deps)
		},
	}
}

func runLogout(out io.Writer, deps *CommandDeps) error {
	err := deps.Credentials.Delete()
	if errors.Is(err, credentials.ErrNoCredentials) {
		fmt.Fprintln(out, "No stored credentials found.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("removing credentials: %w", err)
	}

	fmt.Fprintln(out, "Logged out successfully.")
	if os.Getenv(credentials.EnvPassword) != "" {
		fmt.Fprintf(out, "\nNote: %s environment variable is still set.\n", credentials.EnvPassword)
	}
	return nil
}

func newAuthStatusCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which credential remote commands will use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd.OutOrStdout(), deps)
		},
	}
}

func runAuthStatus(out io.Writer, deps *CommandDeps) error {
	pw, source, err := deps.Credentials.Password()
	if errors.Is(err, credentials.ErrNoCredentials) {
		fmt.Fprintln(out, "Not logged in. Remote commands use a demo session.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Logged in with admin password.")
	fmt.Fprintf(out, "  Password: %s\n", credentials.MaskSecret(pw))
	fmt.Fprintf(out, "  Source: %s\n", source)
	return nil
}
