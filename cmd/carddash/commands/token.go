package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"carddash/internal/auth"
)

// ErrEmptyPassword is returned when no password was given.
var ErrEmptyPassword = errors.New("password must not be empty")

func newTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token [password]",
		Short: "Print the bcrypt hash to use as auth.admin_password_hash",
		Long: `Print the bcrypt hash to use as auth.admin_password_hash.
Without an argument the password is read from the first line of stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				sc := bufio.NewScanner(cmd.InOrStdin())
				if sc.Scan() {
					password = strings.TrimRight(sc.Text(), "\r")
				}
				if err := sc.Err(); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}
			if password == "" {
				return ErrEmptyPassword
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
