// Package cartclient talks to the cart HTTP API on behalf of a signed-in
// device session.
package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultOpenTimeout  = 30 * time.Second
	defaultTripFailures = 5
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// TripAfter is the number of consecutive server faults that opens the breaker.
	TripAfter uint32
	// OpenFor is how long the breaker stays open before probing again.
	OpenFor    time.Duration
	HTTPClient *http.Client
}

// Client is a Remote backed by the cart HTTP API.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[response]
}

type response struct {
	status int
	body   []byte
}

// serverFault marks responses that count against the breaker.
type serverFault struct {
	status int
}

func (e serverFault) Error() string {
	return fmt.Sprintf("cart api returned %d", e.status)
}

// New builds a client for one bearer token.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("base url required")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("token required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.TripAfter == 0 {
		opts.TripAfter = defaultTripFailures
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = defaultOpenTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	tripAfter := opts.TripAfter
	breaker := gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:    "cart-api",
		Timeout: opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: func(err error) bool {
			var fault serverFault
			return !errors.As(err, &fault) && !isTransport(err)
		},
	})

	return &Client{baseURL: base, token: opts.Token, http: httpClient, breaker: breaker}, nil
}

type transportError struct{ err error }

func (e transportError) Error() string { return e.err.Error() }

func (e transportError) Unwrap() error { return e.err }

func isTransport(err error) bool {
	var te transportError
	return errors.As(err, &te)
}

func (c *Client) do(ctx context.Context, method, path string, body any, idempotent bool, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = encoded
	}

	resp, err := c.breaker.Execute(func() (response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, bytes.NewReader(payload))
		if err != nil {
			return response{}, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idempotent {
			req.Header.Set("Idempotency-Key", uuid.NewString())
		}

		res, err := c.http.Do(req)
		if err != nil {
			return response{}, transportError{err: err}
		}
		defer res.Body.Close()
		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return response{}, transportError{err: err}
		}
		out := response{status: res.StatusCode, body: raw}
		if res.StatusCode >= http.StatusInternalServerError {
			return out, serverFault{status: res.StatusCode}
		}
		return out, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart service unavailable")
	case isTransport(err):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart service unreachable")
	case err != nil && resp.status == 0:
		return fmt.Errorf("build request: %w", err)
	}

	if resp.status >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.status == http.StatusNoContent {
		return nil
	}
	envelope := types.SuccessEnvelope{Data: out}
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cart api response")
	}
	return nil
}

func decodeError(resp response) error {
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(resp.body, &envelope); err != nil || envelope.Error.Code == "" {
		if resp.status >= http.StatusInternalServerError {
			return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("cart api returned %d", resp.status))
		}
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unexpected cart api status %d", resp.status))
	}
	apiErr := pkgerrors.New(pkgerrors.Code(envelope.Error.Code), envelope.Error.Message)
	if envelope.Error.Details != nil {
		apiErr = apiErr.WithDetails(envelope.Error.Details)
	}
	return apiErr
}

func (c *Client) GetCart(ctx context.Context) (*types.CartView, error) {
	var out types.CartView
	if err := c.do(ctx, http.MethodGet, "/api/v1/cart", nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddItem(ctx context.Context, productID string, quantity int) (*types.CartLineView, error) {
	var out types.CartLineView
	body := map[string]any{"product_id": productID, "quantity": quantity}
	if err := c.do(ctx, http.MethodPost, "/api/v1/cart/items", body, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateItem(ctx context.Context, lineItemID string, quantity int) (*types.LineRef, error) {
	var out types.LineRef
	path := "/api/v1/cart/items/" + url.PathEscape(lineItemID)
	if err := c.do(ctx, http.MethodPatch, path, map[string]any{"quantity": quantity}, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveItem(ctx context.Context, lineItemID string) (*types.CartRef, error) {
	var out types.CartRef
	path := "/api/v1/cart/items/" + url.PathEscape(lineItemID)
	if err := c.do(ctx, http.MethodDelete, path, nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClearCart(ctx context.Context, cartID string) (*types.CartRef, error) {
	var out types.CartRef
	if err := c.do(ctx, http.MethodDelete, "/api/v1/cart/"+url.PathEscape(cartID), nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ApplyCoupon(ctx context.Context, cartID, code string) (*types.RecalcOutcome, error) {
	var out types.RecalcOutcome
	path := "/api/v1/cart/" + url.PathEscape(cartID) + "/coupon"
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"code": code}, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveCoupon(ctx context.Context, cartID string) (*types.RecalcOutcome, error) {
	var out types.RecalcOutcome
	path := "/api/v1/cart/" + url.PathEscape(cartID) + "/coupon"
	if err := c.do(ctx, http.MethodDelete, path, nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MergeCart(ctx context.Context, items []types.MergeItem) (*types.MergeResult, error) {
	if items == nil {
		items = []types.MergeItem{}
	}
	var out types.MergeResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/cart/merge", map[string]any{"items": items}, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetWishlist(ctx context.Context) (*types.WishlistView, error) {
	var out types.WishlistView
	if err := c.do(ctx, http.MethodGet, "/api/v1/wishlist", nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddWishlistItem(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/wishlist/items", map[string]any{"product_id": productID}, false, nil)
}

func (c *Client) RemoveWishlistItem(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/wishlist/items/"+url.PathEscape(productID), nil, false, nil)
}

func (c *Client) ClearWishlist(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/wishlist", nil, false, nil)
}

func (c *Client) MergeWishlist(ctx context.Context, productIDs []string) (*types.WishlistMergeResult, error) {
	if productIDs == nil {
		productIDs = []string{}
	}
	var out types.WishlistMergeResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/wishlist/merge", map[string]any{"product_ids": productIDs}, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
