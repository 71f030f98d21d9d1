package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/groceryplus/admin-console/internal/cache"
	"github.com/groceryplus/admin-console/internal/domain"
)

// BannerService manages storefront banners on the CMS, which speaks plain
// REST with {data: ...} bodies.
type BannerService struct {
	api   API
	cache *cache.Coordinator
}

func NewBannerService(api API, c *cache.Coordinator) *BannerService {
	return &BannerService{api: api, cache: c}
}

type bannerBody struct {
	Data domain.BannerPayload `json:"data"`
}

func (s *BannerService) List(ctx context.Context, filters domain.BannerFilters) (domain.ListResult[domain.Banner], error) {
	return cache.ReadJSON(ctx, s.cache, cache.ListKey(FamilyBanners, filters), func(ctx context.Context) (domain.ListResult[domain.Banner], error) {
		var resp domain.CMSResponse[[]domain.Banner]
		if err := s.api.GetJSON(ctx, bannerListPath(filters), &resp); err != nil {
			return domain.ListResult[domain.Banner]{}, fmt.Errorf("list banners: %w", err)
		}
		return domain.NewListResult(resp), nil
	})
}

func bannerListPath(f domain.BannerFilters) string {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(f.PageSize))
	}
	if f.Active != nil {
		q.Set("active", strconv.FormatBool(*f.Active))
	}
	if len(q) == 0 {
		return "/banners"
	}
	return "/banners?" + q.Encode()
}

func (s *BannerService) Get(ctx context.Context, id int) (domain.Banner, error) {
	return cache.ReadJSON(ctx, s.cache, cache.DetailKey(FamilyBanners, strconv.Itoa(id)), func(ctx context.Context) (domain.Banner, error) {
		var resp domain.CMSResponse[domain.Banner]
		if err := s.api.GetJSON(ctx, "/banners/"+strconv.Itoa(id), &resp); err != nil {
			return domain.Banner{}, fmt.Errorf("get banner %d: %w", id, err)
		}
		return resp.Data, nil
	})
}

func (s *BannerService) Create(ctx context.Context, payload domain.BannerPayload) (domain.Banner, error) {
	var resp domain.CMSResponse[domain.Banner]
	if err := s.api.PostJSON(ctx, "/banners", bannerBody{Data: payload}, &resp); err != nil {
		return domain.Banner{}, fmt.Errorf("create banner: %w", err)
	}
	s.cache.Invalidate(ctx, FamilyBanners)
	return resp.Data, nil
}

func (s *BannerService) Update(ctx context.Context, id int, payload domain.BannerPayload) (domain.Banner, error) {
	var resp domain.CMSResponse[domain.Banner]
	if err := s.api.PutJSON(ctx, "/banners/"+strconv.Itoa(id), bannerBody{Data: payload}, &resp); err != nil {
		return domain.Banner{}, fmt.Errorf("update banner %d: %w", id, err)
	}
	s.cache.InvalidateID(ctx, FamilyBanners, strconv.Itoa(id))
	return resp.Data, nil
}

func (s *BannerService) Delete(ctx context.Context, id int) error {
	if err := s.api.Delete(ctx, "/banners/"+strconv.Itoa(id), nil); err != nil {
		return fmt.Errorf("delete banner %d: %w", id, err)
	}
	s.cache.InvalidateID(ctx, FamilyBanners, strconv.Itoa(id))
	return nil
}
