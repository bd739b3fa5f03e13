package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCommand(app *App) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Merge the guest cart and wishlist into an account",
		Long: `login sends the guest cart and wishlist to the cart API once, drops the
device copy and keeps the token for later commands. Guest items the server
could not take are listed as skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			existing, err := app.savedToken()
			if err != nil {
				return err
			}
			if existing != "" {
				return fmt.Errorf("already signed in; run logout first")
			}
			remote, err := app.NewRemote(app.Config, token)
			if err != nil {
				return err
			}
			return app.withSession(cmd.Context(), func(s *session) error {
				result, err := s.facade.Login(cmd.Context(), remote)
				if err != nil {
					return err
				}
				if err := app.saveToken(token); err != nil {
					return err
				}
				return app.printer(cmd).login(result)
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token issued by the identity provider")
	return cmd
}

func newLogoutCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the account session and start a new guest cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.dropToken(); err != nil {
				return err
			}
			return app.withSession(cmd.Context(), func(s *session) error {
				if err := s.facade.Logout(cmd.Context(), app.Config.DeviceKey); err != nil {
					return err
				}
				return app.printer(cmd).message("signed out")
			})
		},
	}
}

func newRefreshCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the cart and wishlist from the cart API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				if err := s.facade.Refresh(cmd.Context()); err != nil {
					return err
				}
				return app.printer(cmd).cart(cartOutput(s.facade))
			})
		},
	}
}
