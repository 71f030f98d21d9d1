package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/groceryplus/admin-console/internal/domain"
	"github.com/groceryplus/admin-console/internal/http/client"
	"github.com/groceryplus/admin-console/internal/http/response"
	"github.com/groceryplus/admin-console/internal/service"
)

const maxUploadMemory = 32 << 20

// ResourceHandler serves the catalog, order, dashboard, profile and gallery
// reads and writes through the cached services.
type ResourceHandler struct {
	products   *service.ProductService
	categories *service.CategoryService
	banners    *service.BannerService
	orders     *service.OrderService
	dashboard  *service.DashboardService
	profile    *service.ProfileService
	gallery    *service.GalleryService
	errs       errorWriter
}

type Services struct {
	Products   *service.ProductService
	Categories *service.CategoryService
	Banners    *service.BannerService
	Orders     *service.OrderService
	Dashboard  *service.DashboardService
	Profile    *service.ProfileService
	Gallery    *service.GalleryService
}

func NewResourceHandler(s Services, loginRoute string, nav Navigator) *ResourceHandler {
	return &ResourceHandler{
		products:   s.Products,
		categories: s.Categories,
		banners:    s.Banners,
		orders:     s.Orders,
		dashboard:  s.Dashboard,
		profile:    s.Profile,
		gallery:    s.Gallery,
		errs:       errorWriter{loginRoute: loginRoute, nav: nav},
	}
}

// respond writes v or maps err.
func (h *ResourceHandler) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	response.JSON(w, r, status, v)
}

func (h *ResourceHandler) respondCMS(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		h.errs.write(w, r, err, true)
		return
	}
	response.JSON(w, r, status, v)
}

func (h *ResourceHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	filters := domain.ProductFilters{
		Page:        q.getInt("page"),
		PageSize:    q.getInt("pageSize"),
		SortBy:      q.get("sortBy"),
		SortOrder:   q.get("sortOrder"),
		SearchValue: q.get("search"),
		PriceMin:    q.optFloat("priceMin"),
		PriceMax:    q.optFloat("priceMax"),
		CategoryID:  q.optInt("categoryId"),
		IsActive:    q.optBool("isActive"),
	}
	if q.err != nil {
		h.errs.write(w, r, q.err, false)
		return
	}
	res, err := h.products.List(r.Context(), filters)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *ResourceHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	p, err := h.products.Get(r.Context(), id)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *ResourceHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var payload domain.ProductPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	p, err := h.products.Create(r.Context(), payload)
	h.respond(w, r, http.StatusCreated, p, err)
}

func (h *ResourceHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	var payload domain.ProductPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	p, err := h.products.Update(r.Context(), id, payload)
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *ResourceHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	err = h.products.Delete(r.Context(), id)
	h.respond(w, r, http.StatusOK, map[string]int{"deleted": id}, err)
}

func (h *ResourceHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	filters := domain.CategoryFilters{
		Page:        q.getInt("page"),
		PageSize:    q.getInt("pageSize"),
		SortBy:      q.get("sortBy"),
		SortOrder:   q.get("sortOrder"),
		SearchValue: q.get("search"),
		IsActive:    q.optBool("isActive"),
	}
	if q.err != nil {
		h.errs.write(w, r, q.err, false)
		return
	}
	res, err := h.categories.List(r.Context(), filters)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *ResourceHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	c, err := h.categories.Get(r.Context(), id)
	h.respond(w, r, http.StatusOK, c, err)
}

func (h *ResourceHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload domain.CategoryPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	c, err := h.categories.Create(r.Context(), payload)
	h.respond(w, r, http.StatusCreated, c, err)
}

func (h *ResourceHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	var payload domain.CategoryPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	c, err := h.categories.Update(r.Context(), id, payload)
	h.respond(w, r, http.StatusOK, c, err)
}

func (h *ResourceHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	err = h.categories.Delete(r.Context(), id)
	h.respond(w, r, http.StatusOK, map[string]int{"deleted": id}, err)
}

func (h *ResourceHandler) ListBanners(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	filters := domain.BannerFilters{Page: q.getInt("page"), PageSize: q.getInt("pageSize"), Active: q.optBool("active")}
	if q.err != nil {
		h.errs.write(w, r, q.err, true)
		return
	}
	res, err := h.banners.List(r.Context(), filters)
	h.respondCMS(w, r, http.StatusOK, res, err)
}

func (h *ResourceHandler) GetBanner(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errs.write(w, r, err, true)
		return
	}
	b, err := h.banners.Get(r.Context(), id)
	h.respondCMS(w, r, http.StatusOK, b, err)
}

func (h *ResourceHandler) CreateBanner(w http.ResponseWriter, r *http.Request) {
	var payload domain.BannerPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.errs.write(w, r, err, true)
		return
	}
	b, err := h.banners.Create(r.Context(), payload)
	h.respondCMS(w, r, http.StatusCreated, b, err)
}

func (h *ResourceHandler) UpdateBanner(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errs.write(w, r, err, true)
		return
	}
	var payload domain.BannerPayload
	if err := decodeJSON(r, &payload); err != nil {
		h.errs.write(w, r, err, true)
		return
	}
	b, err := h.banners.Update(r.Context(), id, payload)
	h.respondCMS(w, r, http.StatusOK, b, err)
}

func (h *ResourceHandler) DeleteBanner(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errs.write(w, r, err, true)
		return
	}
	err = h.banners.Delete(r.Context(), id)
	h.respondCMS(w, r, http.StatusOK, map[string]int{"deleted": id}, err)
}

func (h *ResourceHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	filters := domain.OrderFilters{Page: q.getInt("page"), PageSize: q.getInt("pageSize"), SearchValue: q.get("search"), Status: q.get("status")}
	if q.err != nil {
		h.errs.write(w, r, q.err, false)
		return
	}
	res, err := h.orders.List(r.Context(), filters)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h *ResourceHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.errs.write(w, r, err, false)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *ResourceHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard.Get(r.Context())
	h.respond(w, r, http.StatusOK, d, err)
}

func (h *ResourceHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profile.Get(r.Context())
	h.respond(w, r, http.StatusOK, p, err)
}

func (h *ResourceHandler) ListGallery(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	page := q.getInt("page")
	if q.err != nil {
		h.errs.write(w, r, q.err, false)
		return
	}
	res, err := h.gallery.List(r.Context(), q.get("folder"), page)
	h.respond(w, r, http.StatusOK, res, err)
}

// UploadGallery relays a multipart upload: every "images" part is forwarded
// under the requested folder.
func (h *ResourceHandler) UploadGallery(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.errs.write(w, r, fmt.Errorf("%w: multipart form: %v", errBadParam, err), false)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	headers := r.MultipartForm.File["images"]
	files := make([]client.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.errs.write(w, r, fmt.Errorf("open upload %q: %w", fh.Filename, err), false)
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		files = append(files, client.File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Content: f})
	}
	urls, err := h.gallery.Upload(r.Context(), r.FormValue("folder"), files)
	h.respond(w, r, http.StatusCreated, map[string][]string{"urls": urls}, err)
}

// Thumbnail returns the thumbnail rendition of an uploaded image URL.
func (h *ResourceHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	raw := newQuery(r).get("url")
	if raw == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "url is required", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"url": raw, "thumbnailUrl": service.ThumbnailURL(raw)})
}
