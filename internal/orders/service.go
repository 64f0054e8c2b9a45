package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gulautos/storefront-backend/internal/cart"
	product "github.com/gulautos/storefront-backend/internal/products"
	"github.com/gulautos/storefront-backend/pkg/db"
	"github.com/gulautos/storefront-backend/pkg/db/models"
	"github.com/gulautos/storefront-backend/pkg/enums"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/logger"
	"github.com/gulautos/storefront-backend/pkg/pagination"
)

// Service exposes checkout and order management.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*OrderDTO, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListResult, error)
	GetUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, status string, params pagination.Params) (*OrderListResult, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*OrderDTO, error)
}

type cartDrainer interface {
	Drain(ctx context.Context, ownerID uuid.UUID, fn func(cart.State) error) error
}

// ServiceParams bundles the orders service dependencies.
type ServiceParams struct {
	Repo     Repository
	Products *product.Repository
	Carts    cartDrainer
	Tx       db.Transactor
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	products *product.Repository
	carts    cartDrainer
	tx       db.Transactor
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transactor required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		carts:    params.Carts,
		tx:       params.Tx,
		logg:     logg,
	}, nil
}

// Checkout turns the caller's cart into an order. Stock is verified and
// decremented under row locks in the same transaction that inserts the order;
// the cart is emptied only when that transaction commits.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*OrderDTO, error) {
	address := strings.TrimSpace(input.ShippingAddress)
	phone := strings.TrimSpace(input.Phone)
	if address == "" || phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address and phone are required")
	}

	var placed *models.Order
	err := s.carts.Drain(ctx, userID, func(state cart.State) error {
		if len(state.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.placeOrder(ctx, tx, userID, state, address, phone)
			if err != nil {
				return err
			}
			placed = order
			return nil
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":       placed.ID.String(),
		"total_quantity": placed.TotalQuantity,
	}), "orders.checkout.placed")

	dto := FromModel(placed)
	return &dto, nil
}

func (s *service) placeOrder(ctx context.Context, tx *gorm.DB, userID uuid.UUID, state cart.State, address, phone string) (*models.Order, error) {
	productRepo := s.products.WithTx(tx)

	ids := make([]uuid.UUID, 0, len(state.Items))
	for _, line := range state.Items {
		id, err := uuid.Parse(line.ID)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains an invalid product id").
				WithDetails(map[string]any{"productId": line.ID})
		}
		ids = append(ids, id)
	}

	locked, err := productRepo.FindForUpdate(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock products")
	}
	byID := make(map[uuid.UUID]models.Product, len(locked))
	for _, p := range locked {
		byID[p.ID] = p
	}

	items := make(models.OrderItems, 0, len(state.Items))
	var shortages []StockShortage
	totalQty := 0
	totalPrice := decimal.Zero
	for i, line := range state.Items {
		p, ok := byID[ids[i]]
		if !ok || !p.IsActive {
			shortages = append(shortages, StockShortage{ProductID: line.ID, Name: line.Name, Requested: line.Quantity, Available: 0})
			continue
		}
		if p.Stock < line.Quantity {
			shortages = append(shortages, StockShortage{ProductID: line.ID, Name: p.Name, Requested: line.Quantity, Available: p.Stock})
			continue
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		image := line.Image
		if p.ImageURL != nil {
			image = *p.ImageURL
		}
		items = append(items, models.OrderItem{
			ProductID:      p.ID,
			Name:           p.Name,
			Image:          image,
			Price:          p.Price,
			Quantity:       line.Quantity,
			TotalItemPrice: lineTotal,
		})
		totalQty += line.Quantity
		totalPrice = totalPrice.Add(lineTotal)
	}
	if len(shortages) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(shortages)
	}

	for _, item := range items {
		ok, err := productRepo.AdjustStock(ctx, item.ProductID, -item.Quantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
				WithDetails([]StockShortage{{ProductID: item.ProductID.String(), Name: item.Name, Requested: item.Quantity}})
		}
	}

	order := &models.Order{
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		Items:           items,
		TotalQuantity:   totalQty,
		TotalPrice:      totalPrice,
		ShippingAddress: address,
		Phone:           phone,
	}
	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListResult, error) {
	return s.list(ctx, ListFilter{UserID: &userID}, params)
}

func (s *service) GetUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.NotFound("order")
	}
	dto := FromModel(order)
	return &dto, nil
}

func (s *service) ListOrders(ctx context.Context, status string, params pagination.Params) (*OrderListResult, error) {
	filter := ListFilter{}
	if strings.TrimSpace(status) != "" {
		parsed, err := enums.ParseOrderStatus(status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
		filter.Status = &parsed
	}
	return s.list(ctx, filter, params)
}

// UpdateStatus moves an order along the status table. Cancelling puts the
// ordered quantities back into stock.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*OrderDTO, error) {
	next, err := enums.ParseOrderStatus(status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", order.Status, next)
		}

		if next == enums.OrderStatusCancelled {
			productRepo := s.products.WithTx(tx)
			for _, item := range order.Items {
				if _, err := productRepo.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
				}
			}
		}

		if err := repo.UpdateStatus(ctx, order.ID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = next
		updated = order
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	dto := FromModel(updated)
	return &dto, nil
}

func (s *service) list(ctx context.Context, filter ListFilter, params pagination.Params) (*OrderListResult, error) {
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	items := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	page := pagination.NewPage(items, params, total)
	return &page, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
