package service

import (
	"context"

	"github.com/groceryplus/admin-console/internal/http/client"
)

// Cache families. Mutations invalidate by family; list and detail reads key
// under the same family.
const (
	FamilyProducts    = "products"
	FamilyCategories  = "categories"
	FamilyBanners     = "banners"
	FamilyOrders      = "orders"
	FamilyDashboard   = "dashboard"
	FamilyUserProfile = "userProfile"
	FamilyGallery     = "gallery-images"
)

// API is the part of client.Client the services drive.
type API interface {
	GetJSON(ctx context.Context, path string, out any) error
	PostJSON(ctx context.Context, path string, body, out any) error
	PutJSON(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
	PostMultipart(ctx context.Context, path string, fields map[string]string, files []client.File, out any) error
}

var _ API = (*client.Client)(nil)
