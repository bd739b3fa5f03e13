package cartclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cartsync-backend/internal/syncfacade"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

var _ syncfacade.Remote = (*Client)(nil)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func newClient(t *testing.T, srv *httptest.Server, opts Options) *Client {
	t.Helper()
	opts.BaseURL = srv.URL
	opts.Token = "token-1"
	opts.HTTPClient = srv.Client()
	client, err := New(opts)
	require.NoError(t, err)
	return client
}

func TestAddItemSendsTokenAndIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/cart/items" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("expected bearer token, got %q", got)
		}
		if r.Header.Get("Idempotency-Key") == "" {
			t.Fatalf("expected idempotency key")
		}
		var body struct {
			ProductID string `json:"product_id"`
			Quantity  int    `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		writeJSON(w, http.StatusCreated, types.SuccessEnvelope{Data: types.CartLineView{ID: "line-1", ProductID: body.ProductID, Quantity: body.Quantity}})
	}))
	defer srv.Close()

	line, err := newClient(t, srv, Options{}).AddItem(context.Background(), "p-1", 3)
	require.NoError(t, err)
	assert.Equal(t, "line-1", line.ID)
	assert.Equal(t, 3, line.Quantity)
}

func TestErrorEnvelopeBecomesTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, types.ErrorEnvelope{Error: types.APIError{
			Code:    string(pkgerrors.CodeInsufficientStock),
			Message: "not enough stock",
			Details: map[string]any{"product_id": "p-1", "requested": 5, "available": 2},
		}})
	}))
	defer srv.Close()

	_, err := newClient(t, srv, Options{}).UpdateItem(context.Background(), "line-1", 5)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	assert.Equal(t, "not enough stock", typed.Message())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, details["available"])
}

func TestBreakerOpensOnServerFaultsOnly(t *testing.T) {
	var hits atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			writeJSON(w, http.StatusServiceUnavailable, types.ErrorEnvelope{Error: types.APIError{Code: string(pkgerrors.CodeDependency), Message: "db down"}})
			return
		}
		writeJSON(w, http.StatusNotFound, types.ErrorEnvelope{Error: types.APIError{Code: string(pkgerrors.CodeNotFound), Message: "cart not found"}})
	}))
	defer srv.Close()

	client := newClient(t, srv, Options{TripAfter: 2, OpenFor: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.GetCart(ctx)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	}

	fail.Store(true)
	for i := 0; i < 2; i++ {
		_, err := client.GetCart(ctx)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	}
	before := hits.Load()

	_, err := client.GetCart(ctx)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, before, hits.Load(), "open breaker must not reach the server")
}

func TestMergeSendsEmptyListsAsArrays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		switch r.URL.Path {
		case "/api/v1/cart/merge":
			if string(body["items"]) != "[]" {
				t.Fatalf("expected empty items array, got %s", body["items"])
			}
			writeJSON(w, http.StatusOK, types.SuccessEnvelope{Data: types.MergeResult{Status: "empty"}})
		case "/api/v1/wishlist/merge":
			if string(body["product_ids"]) != "[]" {
				t.Fatalf("expected empty product_ids array, got %s", body["product_ids"])
			}
			writeJSON(w, http.StatusOK, types.SuccessEnvelope{Data: types.WishlistMergeResult{Status: "empty"}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newClient(t, srv, Options{})
	result, err := client.MergeCart(context.Background(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, "empty", result.Status)

	wl, err := client.MergeWishlist(context.Background(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, "empty", wl.Status)
}

func TestUnreachableServerIsDependencyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newClient(t, srv, Options{})
	srv.Close()

	err := client.ClearWishlist(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Token: "t"})
	assert.Error(t, err)
	_, err = New(Options{BaseURL: "http://localhost"})
	assert.Error(t, err)
}
