package domain

type CreateOrderItem struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Quantity int     `json:"quantity" validate:"min=1,max=100"`
	Price    float64 `json:"price" validate:"gt=0"`
}

type CreateOrderRequest struct {
	RestaurantID  string            `json:"restaurant_id" validate:"required,uuid"`
	TableID       string            `json:"table_id" validate:"required,uuid"`
	CustomerName  string            `json:"customer_name" validate:"required,min=2,max=50"`
	CustomerEmail string            `json:"customer_email,omitempty" validate:"omitempty,email"`
	Items         []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	Tip           float64           `json:"tip" validate:"min=0"`
	Instructions  string            `json:"special_instructions,omitempty"`
}

type CreateOrderResponse struct {
	OrderNumber string      `json:"order_number"`
	Status      OrderStatus `json:"status"`
	TotalAmount float64     `json:"total_amount"`
}

type UpdateStatusRequest struct {
	Status OrderStatus `json:"status"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"pageSize"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

func NewPagination(page, pageSize, total int) Pagination {
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages := (total + pageSize - 1) / pageSize
	return Pagination{
		Page:        page,
		PageSize:    pageSize,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// APIResponse is the envelope every data-fetch endpoint answers with.
type APIResponse struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}
