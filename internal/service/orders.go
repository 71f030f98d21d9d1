package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/groceryplus/admin-console/internal/cache"
	"github.com/groceryplus/admin-console/internal/domain"
)

// OrderService is read only. Orders are never persisted locally.
type OrderService struct {
	api   API
	cache *cache.Coordinator
}

func NewOrderService(api API, c *cache.Coordinator) *OrderService {
	return &OrderService{api: api, cache: c}
}

func (s *OrderService) List(ctx context.Context, filters domain.OrderFilters) (domain.ListResult[domain.Order], error) {
	filters = filters.WithDefaults()
	return cache.ReadJSON(ctx, s.cache, cache.ListKey(FamilyOrders, filters), func(ctx context.Context) (domain.ListResult[domain.Order], error) {
		var resp domain.CMSResponse[[]domain.Order]
		if err := s.api.PostJSON(ctx, "/orders/list", filters, &resp); err != nil {
			return domain.ListResult[domain.Order]{}, fmt.Errorf("list orders: %w", err)
		}
		return domain.NewListResult(resp), nil
	})
}

func (s *OrderService) Get(ctx context.Context, id int) (domain.Order, error) {
	return cache.ReadJSON(ctx, s.cache, cache.DetailKey(FamilyOrders, strconv.Itoa(id)), func(ctx context.Context) (domain.Order, error) {
		var raw json.RawMessage
		if err := s.api.PostJSON(ctx, "/orders/detail", idBody{ID: id}, &raw); err != nil {
			return domain.Order{}, fmt.Errorf("get order %d: %w", id, err)
		}
		return decodeRecord[domain.Order](raw)
	})
}
