package domain

// List - страница результатов в формате {items, total, page, totalPages}.
type List[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
}

// NewList собирает страницу. Items никогда не nil, чтобы в JSON был [].
func NewList[T any](items []T, total int64, page, limit int) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Total: total, Page: page, TotalPages: TotalPages(total, limit)}
}

// TotalPages = ceil(total / limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// NotificationList дополняет страницу числом непрочитанных.
type NotificationList struct {
	List[*NotificationView]
	UnreadCount int64 `json:"unreadCount"`
}
