package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msomdec/gymtrack/internal/domain"
)

func newLoginCmd(opts *options) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the server and store the token",
		Long: "Authenticate with the server. The password comes from --password, " +
			"GYMTRACK_PASSWORD or the first line of stdin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				token, ttl, err := a.client.Login(ctx, pw)
				if err != nil {
					return fmt.Errorf("login: %w", err)
				}
				if err := a.tokens.Save(ctx, token); err != nil {
					return fmt.Errorf("store token: %w", err)
				}
				a.logger.Info("logged in", "server", a.client.BaseURL(), "expires_in", ttl)
				return a.print(map[string]any{"server": a.client.BaseURL(), "expiresIn": ttl.String()}, func() string {
					return good.Render("logged in") + muted.Render(fmt.Sprintf(" to %s, token valid for %s", a.client.BaseURL(), ttl))
				})
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}

func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("GYMTRACK_PASSWORD"); env != "" {
		return env, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", fmt.Errorf("%w: password required", domain.ErrInvalidInput)
	}
	return line, nil
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				if err := a.tokens.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, muted.Render("logged out"))
				return nil
			})
		},
	}
}
