package dto

// APIResponse represents the standard API response structure
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail represents error details in API responses
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}

// PaginationInfo represents pagination metadata for list responses
type PaginationInfo struct {
	CurrentPage uint `json:"current_page"` // Current page number
	PageSize    uint `json:"page_size"`    // Number of items per page
	TotalItems  uint `json:"total_items"`  // Total number of items
	TotalPages  uint `json:"total_pages"`  // Total number of pages
	HasNext     bool `json:"has_next"`     // Whether there's a next page
	HasPrevious bool `json:"has_previous"` // Whether there's a previous page
}
