package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cartsync-backend/api/middleware"
	"github.com/angelmondragon/cartsync-backend/internal/merge"
	"github.com/angelmondragon/cartsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

type stubCartService struct {
	err error

	addProduct  uuid.UUID
	addQuantity int
	updateLine  uuid.UUID
	couponCode  string
	cleared     bool
	reset       bool
}

func (s *stubCartService) AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) (*types.CartLineView, error) {
	s.addProduct, s.addQuantity = productID, quantity
	if s.err != nil {
		return nil, s.err
	}
	return &types.CartLineView{ID: uuid.NewString(), ProductID: productID.String(), Quantity: quantity}, nil
}

func (s *stubCartService) UpdateCartItem(ctx context.Context, userID, lineItemID uuid.UUID, quantity int) (*types.LineRef, error) {
	s.updateLine = lineItemID
	if s.err != nil {
		return nil, s.err
	}
	return &types.LineRef{CartID: uuid.NewString(), LineItemID: lineItemID.String()}, nil
}

func (s *stubCartService) RemoveCartItem(ctx context.Context, userID, lineItemID uuid.UUID) (*types.CartRef, error) {
	return &types.CartRef{CartID: uuid.NewString()}, s.err
}

func (s *stubCartService) ApplyCoupon(ctx context.Context, userID, cartID uuid.UUID, code string) (*types.RecalcOutcome, error) {
	s.couponCode = code
	if s.err != nil {
		return nil, s.err
	}
	return &types.RecalcOutcome{CartID: cartID.String(), CouponCode: &code, Total: decimal.NewFromInt(180)}, nil
}

func (s *stubCartService) RemoveCoupon(ctx context.Context, userID, cartID uuid.UUID) (*types.RecalcOutcome, error) {
	return &types.RecalcOutcome{CartID: cartID.String()}, s.err
}

func (s *stubCartService) ClearCart(ctx context.Context, userID, cartID uuid.UUID) (*types.CartRef, error) {
	s.cleared = true
	return &types.CartRef{CartID: cartID.String()}, s.err
}

func (s *stubCartService) ResetCart(ctx context.Context, userID, cartID uuid.UUID) (*types.CartRef, error) {
	s.reset = true
	return &types.CartRef{CartID: cartID.String()}, s.err
}

func (s *stubCartService) GetCartFull(ctx context.Context, userID uuid.UUID) (*types.CartView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.CartView{ID: uuid.NewString(), UserID: userID.String(), Total: decimal.NewFromInt(45)}, nil
}

func (s *stubCartService) Invalidate(ctx context.Context, userID uuid.UUID) {}

type stubMerger struct {
	items []merge.LocalItem
	err   error
}

func (s *stubMerger) MergeCart(ctx context.Context, userID uuid.UUID, items []merge.LocalItem) (*types.MergeResult, error) {
	s.items = items
	if s.err != nil {
		return nil, s.err
	}
	return &types.MergeResult{Status: enums.MergeOutcomeMerged, Added: len(items)}, nil
}

func authed(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func withParams(req *http.Request, params map[string]string) *http.Request {
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return envelope.Error.Code
}

func TestCartFetchSuccess(t *testing.T) {
	userID := uuid.New()
	handler := CartFetch(&stubCartService{}, nil)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data types.CartView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.UserID != userID.String() {
		t.Fatalf("unexpected user id: %s", envelope.Data.UserID)
	}
	if !envelope.Data.Total.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("unexpected total: %s", envelope.Data.Total)
	}
}

func TestCartFetchRequiresUser(t *testing.T) {
	handler := CartFetch(&stubCartService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartFetchNotFound(t *testing.T) {
	handler := CartFetch(&stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authed(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), uuid.New()))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCartAddItemPassesQuantityThrough(t *testing.T) {
	svc := &stubCartService{}
	productID := uuid.New()
	body := `{"product_id":"` + productID.String() + `","quantity":3}`

	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), uuid.New()))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.addProduct != productID || svc.addQuantity != 3 {
		t.Fatalf("unexpected service input %s x%d", svc.addProduct, svc.addQuantity)
	}
}

func TestCartAddItemRejectsBadProductID(t *testing.T) {
	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"nope","quantity":1}`))
	CartAddItem(&stubCartService{}, nil).ServeHTTP(resp, authed(req, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %s", code)
	}
}

func TestCartAddItemSurfacesStockConflict(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{err: pkgerrors.InsufficientStock(productID.String(), 4, 1)}
	body := `{"product_id":"` + productID.String() + `","quantity":4}`

	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body)), uuid.New()))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock got %s", code)
	}
}

func TestCartUpdateItemValidatesLineID(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/bad", strings.NewReader(`{"quantity":2}`))
	req = withParams(authed(req, uuid.New()), map[string]string{"lineItemId": "bad"})

	resp := httptest.NewRecorder()
	CartUpdateItem(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	lineID := uuid.New()
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+lineID.String(), strings.NewReader(`{"quantity":2}`))
	req = withParams(authed(req, uuid.New()), map[string]string{"lineItemId": lineID.String()})
	resp = httptest.NewRecorder()
	CartUpdateItem(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.updateLine != lineID {
		t.Fatalf("expected line %s got %s", lineID, svc.updateLine)
	}
}

func TestCartApplyCouponTrimsCode(t *testing.T) {
	svc := &stubCartService{}
	cartID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"  SAVE10 "}`))
	req = withParams(authed(req, uuid.New()), map[string]string{"cartId": cartID.String()})

	resp := httptest.NewRecorder()
	CartApplyCoupon(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.couponCode != "SAVE10" {
		t.Fatalf("expected trimmed code, got %q", svc.couponCode)
	}
}

func TestCartApplyCouponInvalidIs422(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon expired")}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"OLD"}`))
	req = withParams(authed(req, uuid.New()), map[string]string{"cartId": uuid.NewString()})

	resp := httptest.NewRecorder()
	CartApplyCoupon(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestCartClearHonoursReset(t *testing.T) {
	cartID := uuid.NewString()

	svc := &stubCartService{}
	req := withParams(authed(httptest.NewRequest(http.MethodDelete, "/", nil), uuid.New()), map[string]string{"cartId": cartID})
	CartClear(svc, nil).ServeHTTP(httptest.NewRecorder(), req)
	if !svc.cleared || svc.reset {
		t.Fatalf("expected plain clear, got cleared=%v reset=%v", svc.cleared, svc.reset)
	}

	svc = &stubCartService{}
	req = withParams(authed(httptest.NewRequest(http.MethodDelete, "/?reset=true", nil), uuid.New()), map[string]string{"cartId": cartID})
	CartClear(svc, nil).ServeHTTP(httptest.NewRecorder(), req)
	if !svc.reset || svc.cleared {
		t.Fatalf("expected reset, got cleared=%v reset=%v", svc.cleared, svc.reset)
	}
}

func TestCartMergeForwardsItems(t *testing.T) {
	merger := &stubMerger{}
	productID := uuid.New()
	body := `{"items":[{"product_id":"` + productID.String() + `","quantity":2},{"product_id":"` + productID.String() + `","quantity":0}]}`

	resp := httptest.NewRecorder()
	CartMerge(merger, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(body)), uuid.New()))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(merger.items) != 2 || merger.items[0].ProductID != productID || merger.items[1].Quantity != 0 {
		t.Fatalf("unexpected merge input %+v", merger.items)
	}
}

func TestCartMergeLockUnavailable(t *testing.T) {
	merger := &stubMerger{err: pkgerrors.New(pkgerrors.CodeLockUnavailable, "merge in progress")}

	resp := httptest.NewRecorder()
	CartMerge(merger, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(`{"items":[]}`)), uuid.New()))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if code := errorCode(t, resp); code != string(pkgerrors.CodeLockUnavailable) {
		t.Fatalf("expected lock unavailable got %s", code)
	}
}
