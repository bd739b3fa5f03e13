package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cartsync-backend/internal/localstore"
	"github.com/angelmondragon/cartsync-backend/internal/syncfacade"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
)

// Exit codes for cartctl.
const (
	ExitSuccess  = 0
	ExitFailure  = 1
	ExitRejected = 2 // a cart rule or the cart API rejected the command
)

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if pkgerrors.As(err) != nil {
		return ExitRejected
	}
	return ExitFailure
}

// Response is the JSON envelope printed with --format json.
type Response struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// CartOutput is the printable device cart.
type CartOutput struct {
	CartID     string            `json:"cart_id,omitempty"`
	SignedIn   bool              `json:"signed_in"`
	Items      []localstore.Line `json:"items"`
	Coupon     string            `json:"coupon,omitempty"`
	TotalItems int               `json:"total_items"`
	Subtotal   decimal.Decimal   `json:"subtotal"`
	Total      decimal.Decimal   `json:"total"`
}

func cartOutput(f *syncfacade.Facade) CartOutput {
	store := f.Store()
	out := CartOutput{
		CartID:     store.CartID(),
		SignedIn:   f.Identified(),
		Items:      store.Items(),
		TotalItems: store.TotalItems(),
		Subtotal:   store.TotalPrice(false),
		Total:      store.TotalPrice(true),
	}
	if out.Items == nil {
		out.Items = []localstore.Line{}
	}
	if coupon := store.Coupon(); coupon != nil {
		out.Coupon = coupon.Code
	}
	return out
}

type printer struct {
	format string
	w      io.Writer
}

func (p printer) json(data any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(Response{Status: "ok", Data: data})
}

func (p printer) cart(out CartOutput) error {
	if p.format == "json" {
		return p.json(out)
	}
	state := "guest"
	if out.SignedIn {
		state = "signed in"
	}
	fmt.Fprintf(p.w, "cart (%s)\n", state)
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tPRODUCT\tNAME\tQTY\tPRICE")
	for _, line := range out.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", line.ID, line.ProductID, line.Product.NameEN, line.Quantity, line.Product.Price.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if out.Coupon != "" {
		fmt.Fprintf(p.w, "coupon: %s\n", out.Coupon)
	}
	fmt.Fprintf(p.w, "items: %d  subtotal: %s  total: %s\n", out.TotalItems, out.Subtotal.StringFixed(2), out.Total.StringFixed(2))
	return nil
}

func (p printer) wishlist(entries []localstore.WishlistEntry) error {
	if entries == nil {
		entries = []localstore.WishlistEntry{}
	}
	if p.format == "json" {
		return p.json(entries)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tPRICE")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", entry.ProductID, entry.Product.NameEN, entry.Product.Price.StringFixed(2))
	}
	return tw.Flush()
}

func (p printer) login(result *syncfacade.LoginResult) error {
	if p.format == "json" {
		return p.json(result)
	}
	fmt.Fprintf(p.w, "cart merge: %s (added %d, updated %d)\n", result.Cart.Status, result.Cart.Added, result.Cart.Updated)
	for _, skipped := range result.Cart.Skipped {
		fmt.Fprintf(p.w, "  skipped %s: %s (available %d)\n", skipped.ProductID, skipped.Reason, skipped.Available)
	}
	fmt.Fprintf(p.w, "wishlist merge: %s (added %d)\n", result.Wishlist.Status, result.Wishlist.Added)
	for _, skipped := range result.Wishlist.Skipped {
		fmt.Fprintf(p.w, "  skipped %s: %s\n", skipped.ProductID, skipped.Reason)
	}
	return nil
}

func (p printer) message(msg string) error {
	if p.format == "json" {
		return p.json(map[string]string{"message": msg})
	}
	_, err := fmt.Fprintln(p.w, msg)
	return err
}

// WriteError prints err in the requested format.
func WriteError(w io.Writer, format string, err error) {
	body := &ErrorBody{Code: string(pkgerrors.CodeInternal), Message: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		body = &ErrorBody{Code: string(typed.Code()), Message: typed.Message(), Details: typed.Details()}
	}
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(Response{Status: "error", Error: body})
		return
	}
	fmt.Fprintf(w, "error: %s: %s\n", body.Code, body.Message)
}

// Format returns the --format value after flag parsing.
func (a *App) Format() string {
	return a.format
}
