package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/groceryplus/admin-console/internal/cache"
	"github.com/groceryplus/admin-console/internal/domain"
)

type CategoryService struct {
	api   API
	cache *cache.Coordinator
}

func NewCategoryService(api API, c *cache.Coordinator) *CategoryService {
	return &CategoryService{api: api, cache: c}
}

func (s *CategoryService) List(ctx context.Context, filters domain.CategoryFilters) (domain.ListResult[domain.Category], error) {
	filters = filters.WithDefaults()
	return cache.ReadJSON(ctx, s.cache, cache.ListKey(FamilyCategories, filters), func(ctx context.Context) (domain.ListResult[domain.Category], error) {
		var resp domain.CMSResponse[[]domain.Category]
		if err := s.api.PostJSON(ctx, "/categories/list", filters, &resp); err != nil {
			return domain.ListResult[domain.Category]{}, fmt.Errorf("list categories: %w", err)
		}
		return domain.NewListResult(resp), nil
	})
}

func (s *CategoryService) Get(ctx context.Context, id int) (domain.Category, error) {
	return cache.ReadJSON(ctx, s.cache, cache.DetailKey(FamilyCategories, strconv.Itoa(id)), func(ctx context.Context) (domain.Category, error) {
		var raw json.RawMessage
		if err := s.api.PostJSON(ctx, "/categories/detail", idBody{ID: id}, &raw); err != nil {
			return domain.Category{}, fmt.Errorf("get category %d: %w", id, err)
		}
		return decodeRecord[domain.Category](raw)
	})
}

// Create defaults a new category to active. Image URLs are sent as null when
// absent.
func (s *CategoryService) Create(ctx context.Context, payload domain.CategoryPayload) (domain.Category, error) {
	if payload.IsActive == nil {
		active := true
		payload.IsActive = &active
	}
	if payload.ImageURL != nil && *payload.ImageURL == "" {
		payload.ImageURL = nil
	}
	if payload.ImageThumbnailURL != nil && *payload.ImageThumbnailURL == "" {
		payload.ImageThumbnailURL = nil
	}
	var raw json.RawMessage
	if err := s.api.PostJSON(ctx, "/categories/create", payload, &raw); err != nil {
		return domain.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.cache.Invalidate(ctx, FamilyCategories)
	return decodeRecord[domain.Category](raw)
}

type categoryUpdate struct {
	ID int `json:"id"`
	domain.CategoryPayload
}

func (s *CategoryService) Update(ctx context.Context, id int, payload domain.CategoryPayload) (domain.Category, error) {
	var raw json.RawMessage
	if err := s.api.PostJSON(ctx, "/categories/update", categoryUpdate{ID: id, CategoryPayload: payload}, &raw); err != nil {
		return domain.Category{}, fmt.Errorf("update category %d: %w", id, err)
	}
	s.cache.InvalidateID(ctx, FamilyCategories, strconv.Itoa(id))
	return decodeRecord[domain.Category](raw)
}

func (s *CategoryService) Delete(ctx context.Context, id int) error {
	if err := s.api.PostJSON(ctx, "/categories/delete", idBody{ID: id}, nil); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	s.cache.InvalidateID(ctx, FamilyCategories, strconv.Itoa(id))
	return nil
}
