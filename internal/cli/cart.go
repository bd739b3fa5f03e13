package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

// productFlags describe the product snapshot a device keeps for display.
type productFlags struct {
	name  string
	price string
	stock int
}

func (p *productFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.name, "name", "", "product display name")
	cmd.Flags().StringVar(&p.price, "price", "0", "unit price")
	cmd.Flags().IntVar(&p.stock, "stock", 0, "known stock level")
}

func (p *productFlags) snapshot(productID string) (types.ProductSnapshot, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return types.ProductSnapshot{}, fmt.Errorf("product id %q is not a uuid", productID)
	}
	price, err := decimal.NewFromString(p.price)
	if err != nil {
		return types.ProductSnapshot{}, fmt.Errorf("invalid --price %q: %w", p.price, err)
	}
	return types.ProductSnapshot{
		ProductID: productID,
		NameEN:    p.name,
		Price:     price,
		Stock:     p.stock,
	}, nil
}

func parseQuantity(value string) (int, error) {
	quantity, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a number", value)
	}
	return quantity, nil
}

func newAddCommand(app *App) *cobra.Command {
	var product productFlags
	cmd := &cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add units of a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity := 1
			if len(args) == 2 {
				q, err := parseQuantity(args[1])
				if err != nil {
					return err
				}
				quantity = q
			}
			snapshot, err := product.snapshot(args[0])
			if err != nil {
				return err
			}
			return app.withSession(cmd.Context(), func(s *session) error {
				if _, err := s.facade.AddItem(cmd.Context(), snapshot, quantity); err != nil {
					return err
				}
				return app.printer(cmd).cart(cartOutput(s.facade))
			})
		},
	}
	product.register(cmd)
	return cmd
}

func newUpdateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update <line-id> <quantity>",
		Short: "Set a cart line quantity; zero removes the line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			return app.withSession(cmd.Context(), func(s *session) error {
				if err := s.facade.UpdateQuantity(cmd.Context(), args[0], quantity); err != nil {
					return err
				}
				return app.printer(cmd).cart(cartOutput(s.facade))
			})
		},
	}
}

func newRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <line-id>",
		Short: "Remove a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				if err := s.facade.RemoveItem(cmd.Context(), args[0]); err != nil {
					return err
				}
				return app.printer(cmd).cart(cartOutput(s.facade))
			})
		},
	}
}

func newClearCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				if err := s.facade.ClearCart(cmd.Context()); err != nil {
					return err
				}
				return app.printer(cmd).cart(cartOutput(s.facade))
			})
		},
	}
}

func newShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				return app.printer(cmd).cart(cartOutput(s.facade))
			})
		},
	}
}

func newCouponCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coupon",
		Short: "Apply or remove the cart coupon (signed-in only)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "apply <code>",
		Short: "Apply a coupon code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				if err := s.facade.ApplyCoupon(cmd.Context(), args[0]); err != nil {
					return err
				}
				return app.printer(cmd).cart(cartOutput(s.facade))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove",
		Short: "Remove the applied coupon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd.Context(), func(s *session) error {
				if err := s.facade.RemoveCoupon(cmd.Context()); err != nil {
					return err
				}
				return app.printer(cmd).cart(cartOutput(s.facade))
			})
		},
	})
	return cmd
}

func (a *App) printer(cmd *cobra.Command) printer {
	return printer{format: a.format, w: cmd.OutOrStdout()}
}
