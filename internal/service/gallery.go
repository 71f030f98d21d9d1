package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/groceryplus/admin-console/internal/cache"
	"github.com/groceryplus/admin-console/internal/domain"
	"github.com/groceryplus/admin-console/internal/http/client"
)

const (
	galleryPageSize  = 20
	uploadSegment    = "/upload/"
	thumbnailSegment = "/upload/c_thumb,w_200/"
)

var ErrNoFiles = errors.New("no files to upload")

type GalleryService struct {
	api   API
	cache *cache.Coordinator
}

func NewGalleryService(api API, c *cache.Coordinator) *GalleryService {
	return &GalleryService{api: api, cache: c}
}

type galleryQuery struct {
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Folder   string `json:"folder"`
}

type galleryResult struct {
	Data       []domain.GalleryImage `json:"data"`
	Pagination *domain.Pagination    `json:"pagination"`
}

func (s *GalleryService) List(ctx context.Context, folder string, page int) (domain.GalleryPage, error) {
	if page <= 0 {
		page = 1
	}
	q := galleryQuery{Page: page, PageSize: galleryPageSize, Folder: folder}
	return cache.ReadJSON(ctx, s.cache, cache.ListKey(FamilyGallery, q), func(ctx context.Context) (domain.GalleryPage, error) {
		var resp domain.APIResponse[galleryResult]
		if err := s.api.PostJSON(ctx, "/uploads/images/list", q, &resp); err != nil {
			return domain.GalleryPage{}, fmt.Errorf("list gallery %q: %w", folder, err)
		}
		out := domain.GalleryPage{Images: resp.Result.Data}
		if out.Images == nil {
			out.Images = []domain.GalleryImage{}
		}
		if resp.Result.Pagination != nil {
			out.Pagination = *resp.Result.Pagination
		} else {
			out.Pagination = domain.Pagination{Page: 1, PageSize: galleryPageSize, PageCount: 1, Total: len(out.Images)}
		}
		return out, nil
	})
}

// Upload sends files as the multipart "images" field and returns the URLs
// the backend stored them under.
func (s *GalleryService) Upload(ctx context.Context, folder string, files []client.File) ([]string, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	parts := make([]client.File, len(files))
	for i, f := range files {
		f.Field = "images"
		parts[i] = f
	}
	var resp domain.UploadResult
	if err := s.api.PostMultipart(ctx, "/uploads/images", map[string]string{"folder": folder}, parts, &resp); err != nil {
		return nil, fmt.Errorf("upload to %q: %w", folder, err)
	}
	s.cache.Invalidate(ctx, FamilyGallery)
	if resp.URLs == nil {
		resp.URLs = []string{}
	}
	return resp.URLs, nil
}

// ThumbnailURL rewrites a CDN upload URL to its 200px thumbnail rendition.
// URLs outside the upload path are returned unchanged.
func ThumbnailURL(url string) string {
	return strings.Replace(url, uploadSegment, thumbnailSegment, 1)
}
