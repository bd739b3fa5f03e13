// Package cli implements cartctl, a device client that keeps a guest cart
// and wishlist on disk and syncs them with the cart API after login.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/cartsync-backend/internal/localstore"
	"github.com/angelmondragon/cartsync-backend/internal/syncfacade"
	"github.com/angelmondragon/cartsync-backend/pkg/cartclient"
	"github.com/angelmondragon/cartsync-backend/pkg/config"
	"github.com/angelmondragon/cartsync-backend/pkg/db"
	"github.com/angelmondragon/cartsync-backend/pkg/logger"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RemoteFactory builds an authenticated remote for a bearer token.
type RemoteFactory func(cfg *config.DeviceConfig, token string) (syncfacade.Remote, error)

// App carries what every command needs.
type App struct {
	Config    *config.DeviceConfig
	Logger    *logger.Logger
	NewRemote RemoteFactory

	format string
}

// HTTPRemote is the production RemoteFactory.
func HTTPRemote(cfg *config.DeviceConfig, token string) (syncfacade.Remote, error) {
	client, err := cartclient.New(cartclient.Options{
		BaseURL:   cfg.APIURL,
		Token:     token,
		Timeout:   cfg.Timeout,
		TripAfter: cfg.TripAfter,
		OpenFor:   cfg.OpenFor,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewRootCommand creates the cartctl root command.
func NewRootCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cartctl",
		Short: "Device cart and wishlist client",
		Long: `cartctl keeps a guest cart and wishlist in a local SQLite file.
After "cartctl login" the guest state is merged into the account and every
change is confirmed by the cart API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(app.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", app.format, ValidFormats)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&app.format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newAddCommand(app))
	cmd.AddCommand(newUpdateCommand(app))
	cmd.AddCommand(newRemoveCommand(app))
	cmd.AddCommand(newClearCommand(app))
	cmd.AddCommand(newShowCommand(app))
	cmd.AddCommand(newCouponCommand(app))
	cmd.AddCommand(newWishlistCommand(app))
	cmd.AddCommand(newLoginCommand(app))
	cmd.AddCommand(newLogoutCommand(app))
	cmd.AddCommand(newRefreshCommand(app))
	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// session is the device state opened for one command.
type session struct {
	facade *syncfacade.Facade
	client *db.Client
}

func (s *session) Close() error {
	return s.client.Close()
}

// open loads the device record and, when a saved token exists, resumes the
// signed-in session.
func (a *App) open(ctx context.Context) (*session, error) {
	client, err := db.OpenSQLite(ctx, a.Config.DBPath, a.Logger)
	if err != nil {
		return nil, err
	}
	persister, err := localstore.NewSQLitePersister(ctx, client.DB())
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	store, err := localstore.Open(ctx, persister, a.Config.DeviceKey)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	facade, err := syncfacade.New(store, a.Logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s := &session{facade: facade, client: client}

	token, err := a.savedToken()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if token == "" {
		return s, nil
	}
	remote, err := a.NewRemote(a.Config, token)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := facade.Resume(ctx, remote); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("resume session: %w", err)
	}
	return s, nil
}

// withSession opens the device state, runs fn and closes it again.
func (a *App) withSession(ctx context.Context, fn func(s *session) error) (err error) {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(s)
}

func (a *App) savedToken() (string, error) {
	raw, err := os.ReadFile(a.Config.SessionFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (a *App) saveToken(token string) error {
	if err := os.WriteFile(a.Config.SessionFile, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (a *App) dropToken() error {
	if err := os.Remove(a.Config.SessionFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
