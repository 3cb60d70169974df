// Package cart keeps the list of books the user intends to borrow. It is loaded
// once at start-up and persisted after every change.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"library-storefront/library"
	"library-storefront/storage"
)

const (
	// StorageKey is where the cart is persisted.
	StorageKey = "library-cart"
	// MaxQuantity is the largest quantity one line item can hold.
	MaxQuantity = 10
)

// LineItem is one book in the cart. Book is a snapshot taken when the item was
// added and is not refreshed afterwards.
type LineItem struct {
	Book     library.BookSnapshot `json:"book"`
	Quantity int                  `json:"quantity"`
	AddedAt  time.Time            `json:"addedAt"`
}

// Cart holds at most one line item per book id, in insertion order.
type Cart struct {
	mu     sync.Mutex
	items  []LineItem
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// New returns an empty cart persisted to store. Call Load to restore saved state.
func New(store storage.Store, logger *slog.Logger) *Cart {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cart{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Load replaces the in-memory cart with the persisted one. Missing or malformed
// state yields an empty cart; it is never an error.
func (c *Cart) Load(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	data, err := c.store.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("load cart", "error", err)
		}
		return
	}

	var items []LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		c.logger.Warn("discarding malformed cart", "error", err)
		return
	}

	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if it.Book.ID <= 0 || it.Quantity <= 0 || seen[it.Book.ID] {
			continue
		}
		seen[it.Book.ID] = true
		it.Quantity = min(it.Quantity, MaxQuantity)
		c.items = append(c.items, it)
	}
}

// Add puts one more copy of book in the cart and returns its line item. Adding a
// book that is already present increases its quantity, up to MaxQuantity.
func (c *Cart) Add(ctx context.Context, book library.BookSnapshot) LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(book.ID); i >= 0 {
		c.items[i].Quantity = min(c.items[i].Quantity+1, MaxQuantity)
		item := c.items[i]
		c.persistLocked(ctx)
		return item
	}

	item := LineItem{Book: book, Quantity: 1, AddedAt: c.now()}
	c.items = append(c.items, item)
	c.persistLocked(ctx)
	return item
}

// AddIfAbsent adds book with quantity 1 unless it is already in the cart. It
// reports whether the cart changed. Navigating to checkout with a book uses
// this so that coming back does not raise the quantity.
func (c *Cart) AddIfAbsent(ctx context.Context, book library.BookSnapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexLocked(book.ID) >= 0 {
		return false
	}
	c.items = append(c.items, LineItem{Book: book, Quantity: 1, AddedAt: c.now()})
	c.persistLocked(ctx)
	return true
}

// Remove drops the line item for bookID, if any.
func (c *Cart) Remove(ctx context.Context, bookID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(bookID)
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.persistLocked(ctx)
}

// UpdateQuantity sets the quantity of bookID. A quantity of zero or less removes
// the item; anything above MaxQuantity is clamped.
func (c *Cart) UpdateQuantity(ctx context.Context, bookID int64, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(bookID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	} else {
		c.items[i].Quantity = min(quantity, MaxQuantity)
	}
	c.persistLocked(ctx)
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.persistLocked(ctx)
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LineItem(nil), c.items...)
}

// TotalItems is the sum of all quantities.
func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, it := range c.items {
		total += it.Quantity
	}
	return total
}

// Len is the number of distinct books.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cart) Contains(bookID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexLocked(bookID) >= 0
}

func (c *Cart) indexLocked(bookID int64) int {
	for i, it := range c.items {
		if it.Book.ID == bookID {
			return i
		}
	}
	return -1
}

// persistLocked writes the cart to the store. Failures are logged and otherwise
// ignored; the in-memory cart stays authoritative for this process.
func (c *Cart) persistLocked(ctx context.Context) {
	items := c.items
	if items == nil {
		items = []LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		c.logger.Error("encode cart", "error", err)
		return
	}
	if err := c.store.Put(ctx, StorageKey, data); err != nil {
		c.logger.Warn("persist cart", "error", err, "items", len(items))
	}
}
