package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gulautos/storefront-backend/pkg/db/models"
	"github.com/gulautos/storefront-backend/pkg/enums"
	"github.com/gulautos/storefront-backend/pkg/pagination"
)

// CheckoutInput is the shipping data collected at checkout.
type CheckoutInput struct {
	ShippingAddress string `json:"shippingAddress" validate:"required,min=5,max=500"`
	Phone           string `json:"phone" validate:"required,min=6,max=32"`
}

// UpdateStatusInput is the admin status change payload.
type UpdateStatusInput struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

type OrderDTO struct {
	ID              uuid.UUID          `json:"_id"`
	UserID          uuid.UUID          `json:"userId"`
	Status          enums.OrderStatus  `json:"status"`
	Items           []models.OrderItem `json:"orderItems"`
	TotalQuantity   int                `json:"totalQuantity"`
	TotalPrice      decimal.Decimal    `json:"totalPrice"`
	ShippingAddress string             `json:"shippingAddress"`
	Phone           string             `json:"phone"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

type OrderListResult = pagination.Page[OrderDTO]

// StockShortage describes one line that could not be fulfilled.
type StockShortage struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func FromModel(o *models.Order) OrderDTO {
	items := []models.OrderItem(o.Items)
	if items == nil {
		items = []models.OrderItem{}
	}
	return OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		Items:           items,
		TotalQuantity:   o.TotalQuantity,
		TotalPrice:      o.TotalPrice,
		ShippingAddress: o.ShippingAddress,
		Phone:           o.Phone,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
