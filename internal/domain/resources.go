package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Amount decodes prices the CMS returns either as numbers or numeric strings.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == `""` {
		*a = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// CategoryRef is either a bare category id or an embedded {id,name} object.
type CategoryRef struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

func (c *CategoryRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = CategoryRef{}
		return nil
	}
	if b[0] == '{' {
		type plain CategoryRef
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*c = CategoryRef(p)
		return nil
	}
	id, err := strconv.Atoi(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*c = CategoryRef{ID: id}
	return nil
}

type Image struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

type ProductCategory struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

type ProductVariant struct {
	Name          string  `json:"name"`
	SKU           string  `json:"sku"`
	Price         float64 `json:"price"`
	DiscountPrice float64 `json:"discountPrice"`
	StockQuantity int     `json:"stockQuantity"`
	Weight        float64 `json:"weight"`
	WeightUnit    string  `json:"weightUnit"`
	IsDefault     bool    `json:"isDefault"`
	IsActive      bool    `json:"isActive"`
}

type Product struct {
	ID               int              `json:"id"`
	DocumentID       string           `json:"documentId"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	ShortDescription string           `json:"shortDescription"`
	BasePrice        Amount           `json:"basePrice"`
	DiscountPrice    Amount           `json:"discountPrice"`
	CostPrice        Amount           `json:"costPrice"`
	WeightUnit       string           `json:"weightUnit"`
	IsActive         bool             `json:"isActive"`
	Currency         string           `json:"currency"`
	CurrencySymbol   string           `json:"currencySymbol"`
	Barcode          *string          `json:"barcode"`
	Brand            *string          `json:"brand"`
	Category         *ProductCategory `json:"category,omitempty"`
	CategoryID       CategoryRef      `json:"categoryId"`
	Images           []Image          `json:"images"`
	Variants         []ProductVariant `json:"variants"`
	CreatedAt        string           `json:"createdAt"`
	UpdatedAt        string           `json:"updatedAt"`
	PublishedAt      string           `json:"publishedAt"`
	SoftDeleted      bool             `json:"_softDeleted,omitempty"`
}

type ProductPayload struct {
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	ShortDescription string           `json:"shortDescription"`
	BasePrice        *float64         `json:"basePrice,omitempty"`
	DiscountPrice    *float64         `json:"discountPrice,omitempty"`
	CostPrice        *float64         `json:"costPrice,omitempty"`
	Images           []Image          `json:"images"`
	WeightUnit       string           `json:"weightUnit"`
	Brand            string           `json:"brand"`
	CategoryID       int              `json:"categoryId,omitempty"`
	Currency         string           `json:"currency"`
	CurrencySymbol   string           `json:"currencySymbol"`
	IsActive         *bool            `json:"isActive,omitempty"`
	Variants         []ProductVariant `json:"variants"`
}

type ProductFilters struct {
	Page        int      `json:"page"`
	PageSize    int      `json:"pageSize"`
	SortBy      string   `json:"sortBy"`
	SortOrder   string   `json:"sortOrder"`
	SearchValue string   `json:"searchValue"`
	PriceMin    *float64 `json:"priceMin,omitempty"`
	PriceMax    *float64 `json:"priceMax,omitempty"`
	CategoryID  *int     `json:"categoryId,omitempty"`
	IsActive    *bool    `json:"isActive,omitempty"`
}

// WithDefaults fills the list defaults the admin product screen uses.
func (f ProductFilters) WithDefaults() ProductFilters {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 10
	}
	if f.SortBy == "" {
		f.SortBy = "updatedAt"
	}
	if f.SortOrder == "" {
		f.SortOrder = "desc"
	}
	return f
}

type Category struct {
	ID                int     `json:"id"`
	DocumentID        string  `json:"documentId"`
	Name              string  `json:"name"`
	Slug              *string `json:"slug"`
	Description       string  `json:"description"`
	EnabledAt         *string `json:"enabledAt"`
	IsActive          bool    `json:"isActive"`
	DisplayOrder      int     `json:"displayOrder"`
	ImageURL          string  `json:"imageUrl"`
	ImageThumbnailURL string  `json:"imageThumbnailUrl"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
	PublishedAt       string  `json:"publishedAt"`
}

type CategoryPayload struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	IsActive          *bool   `json:"isActive,omitempty"`
	DisplayOrder      int     `json:"displayOrder"`
	ImageURL          *string `json:"imageUrl"`
	ImageThumbnailURL *string `json:"imageThumbnailUrl"`
}

type CategoryFilters struct {
	Page        int    `json:"page"`
	PageSize    int    `json:"pageSize"`
	SortBy      string `json:"sortBy"`
	SortOrder   string `json:"sortOrder"`
	SearchValue string `json:"searchValue"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

func (f CategoryFilters) WithDefaults() CategoryFilters {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 10
	}
	if f.SortBy == "" {
		f.SortBy = "displayOrder"
	}
	if f.SortOrder == "" {
		f.SortOrder = "asc"
	}
	return f
}

type Banner struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Link        string `json:"link"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type BannerPayload struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Link        string `json:"link,omitempty"`
	Active      *bool  `json:"active,omitempty"`
}

type BannerFilters struct {
	Page     int   `json:"page,omitempty"`
	PageSize int   `json:"pageSize,omitempty"`
	Active   *bool `json:"active,omitempty"`
}

type Order struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type OrderFilters struct {
	Page        int    `json:"page"`
	PageSize    int    `json:"pageSize"`
	SearchValue string `json:"searchValue"`
	Status      string `json:"status,omitempty"`
}

func (f OrderFilters) WithDefaults() OrderFilters {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 10
	}
	return f
}

type DashboardData struct {
	UserCount             int `json:"user_count"`
	OrdersCount           int `json:"orders_count"`
	ProductsCount         int `json:"products_count"`
	CategoriesCount       int `json:"categories_count"`
	ActiveProductsCount   int `json:"active_products_count"`
	ActiveCategoriesCount int `json:"active_categories_count"`
	Data                  struct {
		FewProducts   []Product  `json:"few_products"`
		FewCategories []Category `json:"few_categories"`
	} `json:"data"`
}

type UserProfile struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type GalleryImage struct {
	ID           int    `json:"id"`
	PublicID     string `json:"public_id"`
	URL          string `json:"url"`
	Format       string `json:"format"`
	ResourceType string `json:"resource_type"`
	Folder       string `json:"folder"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type GalleryPage struct {
	Images     []GalleryImage `json:"images"`
	Pagination Pagination     `json:"pagination"`
}

type UploadResult struct {
	URLs []string `json:"urls"`
}
