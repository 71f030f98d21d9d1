package domain

// APIResponse is the primary backend envelope.
type APIResponse[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type CMSMeta struct {
	Pagination *Pagination `json:"pagination,omitempty"`
}

// CMSResponse is the CMS envelope; also used by the list endpoints proxied
// through the primary backend.
type CMSResponse[T any] struct {
	Data T        `json:"data"`
	Meta *CMSMeta `json:"meta,omitempty"`
}

// ListResult is what list reads hand back to callers.
type ListResult[T any] struct {
	Data []T         `json:"data"`
	Meta *Pagination `json:"meta,omitempty"`
}

func NewListResult[T any](resp CMSResponse[[]T]) ListResult[T] {
	out := ListResult[T]{Data: resp.Data}
	if out.Data == nil {
		out.Data = []T{}
	}
	if resp.Meta != nil {
		out.Meta = resp.Meta.Pagination
	}
	return out
}
