package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geniusharmony/harmony"
	"github.com/geniusharmony/harmony/pkg/catalog"
	"github.com/geniusharmony/harmony/pkg/model"
)

func init() {
	rootCmd.AddCommand(newLoginCommand(), newLogoutCommand(), newWhoamiCommand())
}

func newLoginCommand() *cobra.Command {
	var password string

	loginCmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and persist the session tokens",
		Long:  "Log in and persist the session tokens. The password is read from --password, HARMONY_PASSWORD or the first line of stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = settings.GetString("password")
			}
			if password == "" {
				cmd.Print("Password: ")
				read, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = read
			}

			return withClient(cmd, func(ctx context.Context, client *harmony.Client) error {
				user, err := client.Login(ctx, args[0], password)
				if err != nil {
					return err
				}
				cmd.Printf("Logged in as %s (%s).\n", user.Username, catalog.Role(user.Role).Label)
				return nil
			})
		},
	}
	loginCmd.Flags().StringVar(&password, "password", "", "Account password.")

	return loginCmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session tokens of the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client *harmony.Client) error {
				if err := client.Logout(ctx); err != nil {
					return err
				}
				cmd.Println("Logged out.")
				return nil
			})
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the user of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, client *harmony.Client) error {
				printUser(cmd, client.Session().User())
				return nil
			})
		},
	}
}

func printUser(cmd *cobra.Command, user *model.User) {
	cmd.Printf("id:       %d\n", user.ID)
	cmd.Printf("username: %s\n", user.Username)
	cmd.Printf("role:     %s\n", catalog.Role(user.Role).Label)
	switch {
	case user.Pole != nil && user.PoleName != "":
		cmd.Printf("pole:     %s (%d)\n", user.PoleName, *user.Pole)
	case user.Pole != nil:
		cmd.Printf("pole:     %d\n", *user.Pole)
	case user.PoleName != "":
		cmd.Printf("pole:     %s (unresolved)\n", user.PoleName)
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}
