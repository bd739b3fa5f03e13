package cli

import (
	"github.com/spf13/cobra"
)

func newWishlistCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Manage liked products",
	}

	var product productFlags
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Like a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := product.snapshot(args[0])
			if err != nil {
				return err
			}
			return app.withSession(cmd.Context(), func(s *session) error {
				if err := s.facade.AddToWishlist(cmd.Context(), snapshot); err != nil {
					return err
				}
				return app.printer(cmd).wishlist(s.facade.Store().WishlistItems())
			})
		},
	}
	product.register(add)
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <product-id>",
		Short: "Unlike a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				if err := s.facade.RemoveFromWishlist(cmd.Context(), args[0]); err != nil {
					return err
				}
				return app.printer(cmd).wishlist(s.facade.Store().WishlistItems())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print liked products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				return app.printer(cmd).wishlist(s.facade.Store().WishlistItems())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every liked product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				if err := s.facade.ClearWishlist(cmd.Context()); err != nil {
					return err
				}
				return app.printer(cmd).wishlist(s.facade.Store().WishlistItems())
			})
		},
	})
	return cmd
}
