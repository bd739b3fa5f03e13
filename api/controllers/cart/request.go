package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	cartdto "github.com/angelmondragon/cartsync-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/cartsync-backend/api/validators"
	"github.com/angelmondragon/cartsync-backend/internal/merge"
)

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw, err := validators.ParseUUIDParam(chi.URLParam(r, name), name)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

func toLocalItems(payload cartdto.MergeCartRequest) []merge.LocalItem {
	items := make([]merge.LocalItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, merge.LocalItem{
			ProductID: uuid.MustParse(item.ProductID),
			Quantity:  item.Quantity,
		})
	}
	return items
}
