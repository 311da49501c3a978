package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// CreateProductInput carries the attributes for a new product. IsInternal is
// a pointer because the flag is mandatory at creation; there is no default.
type CreateProductInput struct {
	Name        string
	Price       int64
	IsInternal  *bool
	Image       string
	Description string
}

// UpdateProductInput is the partial update shape for products. InstitutionID
// re-parents the product; the new owner must exist.
type UpdateProductInput struct {
	InstitutionID *string
	Name          *string
	Price         *int64
	IsInternal    *bool
	Image         *string
	Description   *string
}

// CreateProduct creates a product under the owning institution.
func (s *Service) CreateProduct(ctx context.Context, institutionID string, in CreateProductInput) (Product, error) {
	if _, err := s.store.GetInstitution(ctx, institutionID); err != nil {
		return Product{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Price < 0 {
		return Product{}, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	if in.IsInternal == nil {
		return Product{}, fmt.Errorf("%w: is_internal is required", ErrInvalidInput)
	}

	now := s.timestamp()
	p := Product{
		ID:            s.newID(),
		InstitutionID: institutionID,
		Name:          in.Name,
		Price:         in.Price,
		IsInternal:    *in.IsInternal,
		Image:         strings.TrimSpace(in.Image),
		Description:   strings.TrimSpace(in.Description),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateProduct(ctx, &p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// GetProduct returns one live product.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	return s.store.GetProduct(ctx, id)
}

// ListProducts returns every live product.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.store.ListProducts(ctx)
}

// ListProductsByInstitution returns the institution's live products.
func (s *Service) ListProductsByInstitution(ctx context.Context, institutionID string) ([]Product, error) {
	if _, err := s.store.GetInstitution(ctx, institutionID); err != nil {
		return nil, err
	}
	return s.store.ListProductsByInstitution(ctx, institutionID)
}

// ListPublicProducts returns live products purchasable by anyone.
func (s *Service) ListPublicProducts(ctx context.Context) ([]Product, error) {
	return s.store.ListPublicProducts(ctx)
}

// SearchProducts performs a case-insensitive substring match over name and
// description. The term must be at least two characters long.
func (s *Service) SearchProducts(ctx context.Context, term string) ([]ProductWithInstitution, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < 2 {
		return nil, fmt.Errorf("%w: search term must be at least 2 characters long", ErrInvalidInput)
	}
	return s.store.SearchProducts(ctx, term)
}

// UpdateProduct applies a partial update. Negative prices are rejected;
// re-parenting validates the new owner.
func (s *Service) UpdateProduct(ctx context.Context, id string, in UpdateProductInput) (Product, error) {
	if in.Price != nil && *in.Price < 0 {
		return Product{}, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return Product{}, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		in.Name = &trimmed
	}
	if in.InstitutionID != nil {
		if _, err := s.store.GetInstitution(ctx, *in.InstitutionID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Product{}, fmt.Errorf("%w: target institution not found", ErrNotFound)
			}
			return Product{}, err
		}
	}
	return s.store.UpdateProduct(ctx, id, ProductUpdate{
		InstitutionID: in.InstitutionID,
		Name:          in.Name,
		Price:         in.Price,
		IsInternal:    in.IsInternal,
		Image:         in.Image,
		Description:   in.Description,
	})
}

// DeleteProduct soft-deletes a product. Historical purchases keep embedding it.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.store.DeleteProduct(ctx, id)
}

// ProductDetails returns a product with its owning institution summary.
func (s *Service) ProductDetails(ctx context.Context, id string) (ProductDetails, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return ProductDetails{}, err
	}
	detail := ProductDetails{Product: p}
	inst, err := s.store.GetInstitution(ctx, p.InstitutionID)
	switch {
	case err == nil:
		detail.Institution = NewInstitutionSummary(inst)
	case errors.Is(err, ErrNotFound):
		detail.Institution = InstitutionSummary{ID: p.InstitutionID}
	default:
		return ProductDetails{}, err
	}
	return detail, nil
}

// ProductPurchases returns the product's purchases with purchaser summaries.
func (s *Service) ProductPurchases(ctx context.Context, id string) ([]PurchaseDetail, error) {
	if _, err := s.store.GetProduct(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListPurchasesByProduct(ctx, id)
}
