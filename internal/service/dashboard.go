package service

import (
	"context"
	"fmt"

	"github.com/groceryplus/admin-console/internal/cache"
	"github.com/groceryplus/admin-console/internal/domain"
)

type DashboardService struct {
	api   API
	cache *cache.Coordinator
}

func NewDashboardService(api API, c *cache.Coordinator) *DashboardService {
	return &DashboardService{api: api, cache: c}
}

func (s *DashboardService) Get(ctx context.Context, opts ...cache.ReadOption) (domain.DashboardData, error) {
	return cache.ReadJSON(ctx, s.cache, cache.ListKey(FamilyDashboard, nil), func(ctx context.Context) (domain.DashboardData, error) {
		var resp domain.APIResponse[domain.DashboardData]
		if err := s.api.GetJSON(ctx, "/admin/dashboard", &resp); err != nil {
			return domain.DashboardData{}, fmt.Errorf("load dashboard: %w", err)
		}
		return resp.Result, nil
	}, opts...)
}
