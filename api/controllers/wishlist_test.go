package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/internal/wishlist"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/pagination"
	"github.com/agromart/agromart-backend/pkg/types"
)

type stubWishlist struct {
	added   uuid.UUID
	removed uuid.UUID
	addErr  error
}

func (s *stubWishlist) GetWishlist(context.Context, uuid.UUID, pagination.Params) (*types.Page[wishlist.WishlistItemDTO], error) {
	return &types.Page[wishlist.WishlistItemDTO]{Items: []wishlist.WishlistItemDTO{}}, nil
}

func (s *stubWishlist) GetWishlistIDs(context.Context, uuid.UUID) (*wishlist.WishlistIDsDTO, error) {
	return &wishlist.WishlistIDsDTO{ProductIDs: []uuid.UUID{s.added}}, nil
}

func (s *stubWishlist) AddItem(_ context.Context, _ uuid.UUID, productID uuid.UUID) error {
	s.added = productID
	return s.addErr
}

func (s *stubWishlist) RemoveItem(_ context.Context, _ uuid.UUID, productID uuid.UUID) error {
	s.removed = productID
	return nil
}

func TestAddWishlistItem(t *testing.T) {
	svc := &stubWishlist{}
	id := uuid.New()
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/api/v1/wishlist/"+id.String(), "", uuid.New(), map[string]string{"productId": id.String()})

	AddWishlistItem(svc, testLogger).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.added != id {
		t.Fatalf("expected %s saved, got %s", id, svc.added)
	}
}

func TestAddWishlistItemUnknownProduct(t *testing.T) {
	svc := &stubWishlist{addErr: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodPost, "/", "", uuid.New(), map[string]string{"productId": uuid.NewString()})

	AddWishlistItem(svc, testLogger).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRemoveWishlistItemRequiresUser(t *testing.T) {
	svc := &stubWishlist{}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodDelete, "/", "", uuid.Nil, map[string]string{"productId": uuid.NewString()})

	RemoveWishlistItem(svc, testLogger).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if svc.removed != uuid.Nil {
		t.Fatal("service should not be called without a user")
	}
}

func TestGetWishlistIDs(t *testing.T) {
	svc := &stubWishlist{added: uuid.New()}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodGet, "/api/v1/wishlist/ids", "", uuid.New(), nil)

	GetWishlistIDs(svc, testLogger).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ids wishlist.WishlistIDsDTO
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &ids); err != nil {
		t.Fatalf("decode ids: %v", err)
	}
	if len(ids.ProductIDs) != 1 || ids.ProductIDs[0] != svc.added {
		t.Fatalf("unexpected ids %+v", ids)
	}
}
