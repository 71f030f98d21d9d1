package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/groceryplus/admin-console/internal/cache"
	"github.com/groceryplus/admin-console/internal/domain"
)

type ProductService struct {
	api   API
	cache *cache.Coordinator
}

func NewProductService(api API, c *cache.Coordinator) *ProductService {
	return &ProductService{api: api, cache: c}
}

func (s *ProductService) List(ctx context.Context, filters domain.ProductFilters) (domain.ListResult[domain.Product], error) {
	filters = filters.WithDefaults()
	return cache.ReadJSON(ctx, s.cache, cache.ListKey(FamilyProducts, filters), func(ctx context.Context) (domain.ListResult[domain.Product], error) {
		var resp domain.CMSResponse[[]domain.Product]
		if err := s.api.PostJSON(ctx, "/products/list", filters, &resp); err != nil {
			return domain.ListResult[domain.Product]{}, fmt.Errorf("list products: %w", err)
		}
		return domain.NewListResult(resp), nil
	})
}

func (s *ProductService) Get(ctx context.Context, id int) (domain.Product, error) {
	return cache.ReadJSON(ctx, s.cache, cache.DetailKey(FamilyProducts, strconv.Itoa(id)), func(ctx context.Context) (domain.Product, error) {
		var raw json.RawMessage
		if err := s.api.PostJSON(ctx, "/products/detail", idBody{ID: id}, &raw); err != nil {
			return domain.Product{}, fmt.Errorf("get product %d: %w", id, err)
		}
		return decodeRecord[domain.Product](raw)
	})
}

func (s *ProductService) Create(ctx context.Context, payload domain.ProductPayload) (domain.Product, error) {
	var raw json.RawMessage
	if err := s.api.PostJSON(ctx, "/products/create", productDefaults(payload), &raw); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	s.cache.Invalidate(ctx, FamilyProducts)
	return decodeRecord[domain.Product](raw)
}

type productUpdate struct {
	ID int `json:"id"`
	domain.ProductPayload
}

func (s *ProductService) Update(ctx context.Context, id int, payload domain.ProductPayload) (domain.Product, error) {
	var raw json.RawMessage
	body := productUpdate{ID: id, ProductPayload: productDefaults(payload)}
	if err := s.api.PostJSON(ctx, "/products/update", body, &raw); err != nil {
		return domain.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	s.cache.InvalidateID(ctx, FamilyProducts, strconv.Itoa(id))
	return decodeRecord[domain.Product](raw)
}

func (s *ProductService) Delete(ctx context.Context, id int) error {
	if err := s.api.PostJSON(ctx, "/products/delete", idBody{ID: id}, nil); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	s.cache.InvalidateID(ctx, FamilyProducts, strconv.Itoa(id))
	return nil
}

// productDefaults applies the storefront defaults for fields the admin form
// may leave blank.
func productDefaults(p domain.ProductPayload) domain.ProductPayload {
	if p.Currency == "" {
		p.Currency = domain.DefaultCurrencyCode
	}
	if p.CurrencySymbol == "" {
		p.CurrencySymbol = domain.DefaultCurrencySymbol
	}
	if p.IsActive == nil {
		active := true
		p.IsActive = &active
	}
	if p.Variants == nil {
		p.Variants = []domain.ProductVariant{}
	}
	if p.Images == nil {
		p.Images = []domain.Image{}
	}
	return p
}
