package service

import (
	"context"
	"fmt"

	"github.com/groceryplus/admin-console/internal/cache"
	"github.com/groceryplus/admin-console/internal/domain"
)

// ProfileService loads the signed-in admin's own profile.
type ProfileService struct {
	api   API
	cache *cache.Coordinator
}

func NewProfileService(api API, c *cache.Coordinator) *ProfileService {
	return &ProfileService{api: api, cache: c}
}

func (s *ProfileService) Get(ctx context.Context, opts ...cache.ReadOption) (domain.UserProfile, error) {
	return cache.ReadJSON(ctx, s.cache, cache.ListKey(FamilyUserProfile, nil), func(ctx context.Context) (domain.UserProfile, error) {
		var resp domain.APIResponse[domain.UserProfile]
		if err := s.api.PostJSON(ctx, "/users/profile", struct{}{}, &resp); err != nil {
			return domain.UserProfile{}, fmt.Errorf("load profile: %w", err)
		}
		return resp.Result, nil
	}, opts...)
}
