package cart

import (
	"github.com/shopspring/decimal"
)

// Item is one product line in a cart. Quantity stays within (0, Stock] and
// TotalItemPrice equals Price * Quantity.
type Item struct {
	ID             string          `json:"_id"`
	Name           string          `json:"name"`
	Image          string          `json:"image,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	Stock          int             `json:"stock"`
	TotalItemPrice decimal.Decimal `json:"totalItemPrice"`
}

// State is an owner's cart. TotalQuantity and TotalPrice are always the sums
// over Items; every mutation recomputes them.
type State struct {
	Items         []Item          `json:"cartItems"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

// Empty returns a cart with no lines.
func Empty() State {
	return State{Items: []Item{}, TotalPrice: decimal.Zero}
}

// AddToCart merges item into the cart. It is a no-op when the requested
// quantity is not positive, exceeds stock, or would push an existing line
// above stock. Name, price, image and stock of an existing line are refreshed
// from item.
func (s *State) AddToCart(item Item) bool {
	if item.ID == "" || item.Price.IsNegative() {
		return false
	}
	if item.Quantity <= 0 || item.Quantity > item.Stock {
		return false
	}

	if idx := s.indexOf(item.ID); idx >= 0 {
		line := &s.Items[idx]
		merged := line.Quantity + item.Quantity
		if merged > item.Stock {
			return false
		}
		line.Name = item.Name
		line.Image = item.Image
		line.Price = item.Price
		line.Stock = item.Stock
		line.Quantity = merged
	} else {
		s.Items = append(s.Items, item)
	}

	s.recompute()
	return true
}

// UpdateQuantity sets the quantity of line id. It is a no-op when the line is
// absent, the quantity is outside (0, stock], or unchanged.
func (s *State) UpdateQuantity(id string, quantity int) bool {
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	line := &s.Items[idx]
	if quantity <= 0 || quantity > line.Stock || quantity == line.Quantity {
		return false
	}
	line.Quantity = quantity
	s.recompute()
	return true
}

// Refresh copies catalog name, image, price and stock from item onto the
// matching line. Quantity is untouched, so the line may exceed its new stock
// until the caller updates it.
func (s *State) Refresh(item Item) bool {
	idx := s.indexOf(item.ID)
	if idx < 0 {
		return false
	}
	line := &s.Items[idx]
	if line.Name == item.Name && line.Image == item.Image && line.Stock == item.Stock && line.Price.Equal(item.Price) {
		return false
	}
	line.Name = item.Name
	line.Image = item.Image
	line.Price = item.Price
	line.Stock = item.Stock
	s.recompute()
	return true
}

// RemoveFromCart drops line id; absent ids are a no-op.
func (s *State) RemoveFromCart(id string) bool {
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	s.Items = append(s.Items[:idx], s.Items[idx+1:]...)
	s.recompute()
	return true
}

// EmptyCart clears every line. It reports false when the cart was already empty.
func (s *State) EmptyCart() bool {
	had := len(s.Items) > 0 || s.TotalQuantity != 0 || !s.TotalPrice.IsZero()
	*s = Empty()
	return had
}

// Sanitize drops lines that break the cart invariants and recomputes every
// derived total. It reports whether anything changed.
func (s *State) Sanitize() bool {
	before := s.Clone()

	kept := make([]Item, 0, len(s.Items))
	seen := make(map[string]struct{}, len(s.Items))
	for _, line := range s.Items {
		if !line.valid() {
			continue
		}
		if _, dup := seen[line.ID]; dup {
			continue
		}
		seen[line.ID] = struct{}{}
		kept = append(kept, line)
	}
	s.Items = kept
	s.recompute()

	return !before.Equal(*s)
}

// Consistent reports whether the derived totals match the lines and every
// line satisfies the quantity invariant.
func (s State) Consistent() bool {
	qty := 0
	total := decimal.Zero
	for _, line := range s.Items {
		if !line.valid() || !line.TotalItemPrice.Equal(line.lineTotal()) {
			return false
		}
		qty += line.Quantity
		total = total.Add(line.TotalItemPrice)
	}
	return qty == s.TotalQuantity && total.Equal(s.TotalPrice)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s State) Clone() State {
	out := s
	out.Items = make([]Item, len(s.Items))
	copy(out.Items, s.Items)
	return out
}

// Equal compares carts by value, treating decimals numerically.
func (s State) Equal(other State) bool {
	if len(s.Items) != len(other.Items) || s.TotalQuantity != other.TotalQuantity || !s.TotalPrice.Equal(other.TotalPrice) {
		return false
	}
	for i := range s.Items {
		a, b := s.Items[i], other.Items[i]
		if a.ID != b.ID || a.Name != b.Name || a.Image != b.Image || a.Quantity != b.Quantity || a.Stock != b.Stock {
			return false
		}
		if !a.Price.Equal(b.Price) || !a.TotalItemPrice.Equal(b.TotalItemPrice) {
			return false
		}
	}
	return true
}

// Line returns the line for id, if present.
func (s State) Line(id string) (Item, bool) {
	if idx := s.indexOf(id); idx >= 0 {
		return s.Items[idx], true
	}
	return Item{}, false
}

func (s State) indexOf(id string) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) recompute() {
	if s.Items == nil {
		s.Items = []Item{}
	}
	qty := 0
	total := decimal.Zero
	for i := range s.Items {
		s.Items[i].TotalItemPrice = s.Items[i].lineTotal()
		qty += s.Items[i].Quantity
		total = total.Add(s.Items[i].TotalItemPrice)
	}
	s.TotalQuantity = qty
	s.TotalPrice = total
}

func (i Item) valid() bool {
	return i.ID != "" && i.Quantity > 0 && i.Quantity <= i.Stock && !i.Price.IsNegative()
}

func (i Item) lineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
