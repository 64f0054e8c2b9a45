package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gulautos/storefront-backend/pkg/enums"
)

// OrderItem is the snapshot of a cart line taken at checkout.
type OrderItem struct {
	ProductID      uuid.UUID       `json:"_id"`
	Name           string          `json:"name"`
	Image          string          `json:"image,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	TotalItemPrice decimal.Decimal `json:"totalItemPrice"`
}

// OrderItems is stored as a JSON document column.
type OrderItems []OrderItem

func (o OrderItems) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (o *OrderItems) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*o = OrderItems{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("OrderItems: unsupported Scan type %T", src)
	}
	items := OrderItems{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("OrderItems: %w", err)
	}
	*o = items
	return nil
}

// Order is a placed order.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:pending"`
	Items           OrderItems        `gorm:"column:items;type:jsonb;not null"`
	TotalQuantity   int               `gorm:"column:total_quantity;not null"`
	TotalPrice      decimal.Decimal   `gorm:"column:total_price;type:numeric(12,2);not null"`
	ShippingAddress string            `gorm:"column:shipping_address;not null"`
	Phone           string            `gorm:"column:phone;not null"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = enums.OrderStatusPending
	}
	return nil
}
