package wishlist

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cartsync-backend/internal/catalog"
	"github.com/angelmondragon/cartsync-backend/internal/testdb"
	"github.com/angelmondragon/cartsync-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
)

func newTestService(t *testing.T, client *db.Client) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		WishlistRepo: NewRepository(client.DB()),
		Catalog:      catalog.NewRepository(client.DB()),
		Tx:           client,
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestWishlistIsAPresenceSet(t *testing.T) {
	client := testdb.Open(t)
	svc := newTestService(t, client)
	ctx := context.Background()
	userID := testdb.MustUser(t, client)
	a := testdb.MustProduct(t, client, "1.00", 0)
	b := testdb.MustProduct(t, client, "2.00", 5)

	view, err := svc.GetWishlistFull(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	require.NoError(t, svc.AddItem(ctx, userID, a.ID))
	require.NoError(t, svc.AddItem(ctx, userID, a.ID))
	require.NoError(t, svc.AddItem(ctx, userID, b.ID))

	view, err = svc.GetWishlistFull(ctx, userID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, a.ID.String(), view.Items[0].ProductID)
	assert.Equal(t, "1", view.Items[0].Product.Price.String())

	require.NoError(t, svc.RemoveItem(ctx, userID, a.ID))
	require.NoError(t, svc.RemoveItem(ctx, userID, a.ID))
	view, err = svc.GetWishlistFull(ctx, userID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	require.NoError(t, svc.Clear(ctx, userID))
	view, err = svc.GetWishlistFull(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestAddItemErrors(t *testing.T) {
	client := testdb.Open(t)
	svc := newTestService(t, client)
	ctx := context.Background()
	userID := testdb.MustUser(t, client)
	product := testdb.MustProduct(t, client, "1.00", 1)

	err := svc.AddItem(ctx, userID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
	err = svc.AddItem(ctx, uuid.New(), product.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
	err = svc.AddItem(ctx, userID, uuid.Nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddItemsCountsOnlyNewRows(t *testing.T) {
	client := testdb.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	userID := testdb.MustUser(t, client)
	a := testdb.MustProduct(t, client, "1.00", 1)
	b := testdb.MustProduct(t, client, "1.00", 1)

	list, err := repo.EnsureWishlist(ctx, userID)
	require.NoError(t, err)
	again, err := repo.EnsureWishlist(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, list.ID, again.ID)

	added, err := repo.AddItems(ctx, list.ID, []uuid.UUID{a.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, added)

	added, err = repo.AddItems(ctx, list.ID, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, added)
}
