package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devilmonastery/atrecord/internal/client"
	"github.com/devilmonastery/atrecord/internal/pkg/logger"
)

// formatDuration formats a duration in a human-friendly way (e.g., "2 days, 3 hours and 45 minutes")
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 && seconds > 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Manage the session the CLI uses for the current context`,
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthStatusCommand())
	cmd.AddCommand(newAuthTokenCommand())

	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var (
		identifier    string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Create a session with identifier and password",
		Long: `Authenticate with the service and store the session in the context's storage backend.

Use an app password rather than your main account password.

Examples:
  # Prompt for the password
  atrecord auth login --identifier alice.example.com

  # Read the password from a pipe
  echo "$APP_PASSWORD" | atrecord auth login -i alice.example.com --password-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			log := logger.WithCommand(cliCtx.Logger, "login")

			id := identifier
			if id == "" {
				id = cliCtx.Context.Identifier
			}
			id, password, err := promptCredentials(cmd.InOrStdin(), cmd.ErrOrStderr(), id, passwordStdin)
			if err != nil {
				return err
			}

			storage, closer, err := openStorage(cliCtx.ContextName, cliCtx.Context)
			if err != nil {
				return err
			}
			defer closer.Close()

			log.Info("Starting login", "identifier", id, "service", cliCtx.Context.Service.URL)
			err = client.Login(cmd.Context(), cliCtx.Context.Service.URL, id, password, storage, clientOptions(cliCtx)...)
			if err != nil {
				if apiErr, ok := client.AsAPIError(err); ok {
					return fmt.Errorf("login failed: %s", apiErr.Message)
				}
				return fmt.Errorf("login failed: %w", err)
			}

			session, err := storage.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("session was not persisted: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s (%s)\n", session.Handle, session.DID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&identifier, "identifier", "i", "", "Handle, DID or email (default: the context's identifier)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

// promptCredentials fills in the identifier and reads the password
func promptCredentials(in io.Reader, out io.Writer, identifier string, passwordStdin bool) (string, string, error) {
	reader := bufio.NewReader(in)

	if passwordStdin {
		if identifier == "" {
			return "", "", fmt.Errorf("--identifier is required with --password-stdin")
		}
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", "", fmt.Errorf("empty password on stdin")
		}
		return identifier, password, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", "", fmt.Errorf("stdin is not a terminal; use --password-stdin")
	}

	if identifier == "" {
		fmt.Fprint(out, "Identifier: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("failed to read identifier: %w", err)
		}
		identifier = strings.TrimSpace(line)
	}

	fmt.Fprint(out, "Password: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out) // newline after password input
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	return identifier, string(passwordBytes), nil
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			storage, closer, err := openStorage(cliCtx.ContextName, cliCtx.Context)
			if err != nil {
				return err
			}
			defer closer.Close()

			clearer, ok := storage.(client.Clearer)
			if !ok {
				return fmt.Errorf("storage backend %q cannot forget sessions", cliCtx.Context.Storage.Backend)
			}
			if err := clearer.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			out := cmd.OutOrStdout()

			storage, closer, err := openStorage(cliCtx.ContextName, cliCtx.Context)
			if err != nil {
				return err
			}
			defer closer.Close()

			session, err := storage.Load(cmd.Context())
			if errors.Is(err, client.ErrNoSession) {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load session: %w", err)
			}

			fmt.Fprintf(out, "Logged in as: %s\n", session.Handle)
			fmt.Fprintf(out, "DID: %s\n", session.DID)
			fmt.Fprintf(out, "Service: %s\n", cliCtx.Context.Service.URL)
			fmt.Fprintf(out, "Storage: %s\n", cliCtx.Context.Storage.Backend)

			now := time.Now()
			printExpiry(out, "Access token", session.AccessExpiry, now)
			printExpiry(out, "Refresh token", session.RefreshExpiry, now)
			return nil
		},
	}
}

func printExpiry(out io.Writer, label string, expiry func() (time.Time, error), now time.Time) {
	exp, err := expiry()
	if err != nil {
		fmt.Fprintf(out, "%s expiry: unknown\n", label)
		return
	}

	fmt.Fprintf(out, "%s expires: %s\n", label, exp.Local().Format("2006-01-02 15:04:05 MST"))
	if now.After(exp) {
		fmt.Fprintf(out, "⚠  %s expired %s ago\n", label, formatDuration(now.Sub(exp)))
	} else {
		fmt.Fprintf(out, "✓  %s valid for %s\n", label, formatDuration(exp.Sub(now)))
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Display the current access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			c, closer, err := openClient(cmd, cliCtx)
			if err != nil {
				return err
			}
			defer closer.Close()

			token, err := c.TokenSource().Token()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return nil
		},
	}
}

// openClient opens a client on the context's stored session
func openClient(cmd *cobra.Command, cliCtx *CliContext) (*client.Client, io.Closer, error) {
	storage, closer, err := openStorage(cliCtx.ContextName, cliCtx.Context)
	if err != nil {
		return nil, nil, err
	}

	c, err := client.Open(cmd.Context(), cliCtx.Context.Service.URL, storage, clientOptions(cliCtx)...)
	if err != nil {
		closer.Close()
		if errors.Is(err, client.ErrNoSession) {
			return nil, nil, fmt.Errorf("not logged in\nPlease run 'atrecord auth login' first")
		}
		return nil, nil, err
	}
	return c, closer, nil
}
