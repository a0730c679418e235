// Package cart holds a session's cart and joins it against catalog products.
package cart

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// MaxQuantity caps the quantity of a single cart line.
const MaxQuantity = 10

var (
	ErrQuantityOutOfRange = fmt.Errorf("quantity must be between 1 and %d", MaxQuantity)
	ErrEmptyProductID     = errors.New("product id is required")
	ErrItemNotFound       = errors.New("item not in cart")
	ErrUnknownProduct     = errors.New("unknown product")
)

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Cart keeps items in insertion order.
type Cart struct {
	mu    sync.RWMutex
	items []Item
}

func New() *Cart { return &Cart{} }

// Add increases the quantity of productID by qty, creating the line if
// needed. The resulting quantity must stay within 1..MaxQuantity.
func (c *Cart) Add(productID string, qty int) (Item, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Item{}, ErrEmptyProductID
	}
	if qty < 1 {
		return Item{}, ErrQuantityOutOfRange
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(productID); i >= 0 {
		next := c.items[i].Quantity + qty
		if next > MaxQuantity {
			return c.items[i], ErrQuantityOutOfRange
		}
		c.items[i].Quantity = next
		return c.items[i], nil
	}
	if qty > MaxQuantity {
		return Item{}, ErrQuantityOutOfRange
	}
	it := Item{ProductID: productID, Quantity: qty}
	c.items = append(c.items, it)
	return it, nil
}

// SetQuantity replaces the quantity of an existing line.
func (c *Cart) SetQuantity(productID string, qty int) (Item, error) {
	if qty < 1 || qty > MaxQuantity {
		return Item{}, ErrQuantityOutOfRange
	}
	productID = strings.TrimSpace(productID)

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(productID)
	if i < 0 {
		return Item{}, ErrItemNotFound
	}
	c.items[i].Quantity = qty
	return c.items[i], nil
}

// Remove drops the line for productID and reports whether it existed.
func (c *Cart) Remove(productID string) bool {
	productID = strings.TrimSpace(productID)

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(productID)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

func (c *Cart) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Item(nil), c.items...)
}

// Count is the total quantity across all lines.
func (c *Cart) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

func (c *Cart) indexLocked(productID string) int {
	if productID == "" {
		return -1
	}
	for i, it := range c.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}
