package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreatePurchaseInput is a user's request to redeem a product. A non-empty
// IdempotencyKey makes retries safe: a repeated key returns the original
// purchase instead of creating a second one.
type CreatePurchaseInput struct {
	ProductID      string
	IdempotencyKey string
	PurchasedAt    *time.Time
}

// CreatePurchase records a redemption for the buyer. The product must be
// live; internal products additionally require the buyer to hold an active
// membership in the owning institution, any role. The product's current
// price is captured on the purchase and never changes afterwards.
func (s *Service) CreatePurchase(ctx context.Context, buyerID string, in CreatePurchaseInput) (PurchaseWithProduct, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.ProductID == "" {
		return PurchaseWithProduct{}, fmt.Errorf("%w: product_id is required", ErrInvalidInput)
	}

	if in.IdempotencyKey != "" {
		prev, err := s.store.GetPurchaseByIdempotencyKey(ctx, in.IdempotencyKey)
		switch {
		case err == nil:
			if prev.UserID != buyerID || prev.ProductID != in.ProductID {
				return PurchaseWithProduct{}, fmt.Errorf("%w: idempotency key already used for a different purchase", ErrConflict)
			}
			return prev, nil
		case errors.Is(err, ErrNotFound):
			// fresh key
		default:
			return PurchaseWithProduct{}, err
		}
	}

	product, err := s.store.GetProduct(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PurchaseWithProduct{}, fmt.Errorf("%w: product not found", ErrNotFound)
		}
		return PurchaseWithProduct{}, err
	}
	if product.IsInternal {
		if _, err := s.store.GetActiveMembership(ctx, buyerID, product.InstitutionID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return PurchaseWithProduct{}, fmt.Errorf("%w: product is restricted to members of its institution", ErrForbidden)
			}
			return PurchaseWithProduct{}, err
		}
	}

	now := s.timestamp()
	purchasedAt := now
	if in.PurchasedAt != nil {
		purchasedAt = in.PurchasedAt.UTC()
	}
	p := Purchase{
		ID:              s.newID(),
		ProductID:       product.ID,
		UserID:          buyerID,
		PriceAtPurchase: product.Price,
		IdempotencyKey:  in.IdempotencyKey,
		PurchasedAt:     purchasedAt,
		CreatedAt:       now,
	}
	if err := s.store.CreatePurchase(ctx, &p); err != nil {
		if errors.Is(err, ErrConflict) && in.IdempotencyKey != "" {
			// Lost a race with a concurrent retry carrying the same key.
			prev, lookupErr := s.store.GetPurchaseByIdempotencyKey(ctx, in.IdempotencyKey)
			if lookupErr == nil && prev.UserID == buyerID && prev.ProductID == in.ProductID {
				return prev, nil
			}
		}
		return PurchaseWithProduct{}, err
	}
	return PurchaseWithProduct{Purchase: p, Product: product}, nil
}

// UserPurchases lists a user's purchase history, newest first. Products are
// embedded even when soft-deleted since.
func (s *Service) UserPurchases(ctx context.Context, userID string) ([]PurchaseWithProduct, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListPurchasesByUser(ctx, userID)
}

// InstitutionPurchases lists every purchase of the institution's products.
func (s *Service) InstitutionPurchases(ctx context.Context, institutionID string) ([]PurchaseDetail, error) {
	if _, err := s.store.GetInstitution(ctx, institutionID); err != nil {
		return nil, err
	}
	return s.store.ListPurchasesByInstitution(ctx, institutionID)
}
