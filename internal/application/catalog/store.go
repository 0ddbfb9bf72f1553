// Package catalog holds the storefront's catalog cache and cart state, and the
// product views built on top of them.
package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/domain/cart"
	"github.com/omkarjtg/ecomm/internal/domain/catalog"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"go.uber.org/zap"
)

// MsgStockLimit is shown when a quantity step would exceed the known stock
const MsgStockLimit = "Cannot add more than available stock"

// ProductLister fetches the full product list
type ProductLister interface {
	Products(ctx context.Context) ([]catalog.Product, error)
}

// Snapshot is the catalog as last fetched
type Snapshot struct {
	Products  []catalog.Product
	Failed    bool
	Fetched   bool
	FetchedAt time.Time
}

// Store is the single source of truth for the cart and the cached catalog.
// Every cart mutation writes the full cart to local storage before it becomes
// visible.
type Store struct {
	mu      sync.RWMutex
	source  ProductLister
	storage localstore.Store
	notices *notice.Center
	logger  *zap.Logger

	products  []catalog.Product
	index     map[int64]catalog.Product
	failed    bool
	fetched   bool
	fetchedAt time.Time
	// refreshGen discards refresh results that a newer refresh overtook
	refreshGen uint64

	cart *cart.Cart
	// cartGen counts cart changes so readers can detect stale views
	cartGen uint64
}

// NewStore creates the store and loads the persisted cart. An unreadable cart
// entry is logged and replaced by an empty cart.
func NewStore(ctx context.Context, source ProductLister, storage localstore.Store, notices *notice.Center, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notices == nil {
		notices = notice.NewCenter()
	}
	s := &Store{
		source:  source,
		storage: storage,
		notices: notices,
		logger:  logger,
		index:   map[int64]catalog.Product{},
		cart:    cart.New(nil),
	}
	lines, err := s.readCart(ctx)
	if err != nil {
		logger.Warn("Discarding unreadable cart", zap.Error(err))
	}
	s.cart = cart.New(lines)
	return s
}

func (s *Store) readCart(ctx context.Context) ([]cart.Line, error) {
	var lines []cart.Line
	if _, err := localstore.GetJSON(ctx, s.storage, localstore.KeyCart, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// change applies fn to a copy of the cart and swaps the copy in once it is
// stored, so a failed write leaves the cart as it was. fn returning false
// skips the write. Callers hold s.mu.
func (s *Store) change(ctx context.Context, fn func(c *cart.Cart) bool) error {
	next := cart.New(s.cart.Lines())
	if !fn(next) {
		return nil
	}
	lines := next.Lines()
	if err := localstore.SetJSON(ctx, s.storage, localstore.KeyCart, lines); err != nil {
		s.logger.Error("Failed to persist cart", zap.Error(err), zap.Int("lines", len(lines)))
		return err
	}
	s.cart = next
	s.cartGen++
	return nil
}

// AddToCart increments the line for p or appends a new line with quantity 1
func (s *Store) AddToCart(ctx context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.change(ctx, func(c *cart.Cart) bool {
		c.Add(p)
		return true
	})
}

// AddProduct adds a product by ID, looking it up in the catalog cache and
// fetching the catalog once when it is not cached yet.
func (s *Store) AddProduct(ctx context.Context, productID int64) error {
	p, ok := s.Product(productID)
	if !ok {
		if err := s.Refresh(ctx); err != nil {
			return err
		}
		if p, ok = s.Product(productID); !ok {
			return shared.ErrNotFound
		}
	}
	if !p.InStock() {
		return shared.NewDomainError("OUT_OF_STOCK", "Product is out of stock")
	}
	return s.AddToCart(ctx, p)
}

// RemoveFromCart deletes the line for productID. Absent products are a no-op.
func (s *Store) RemoveFromCart(ctx context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.change(ctx, func(c *cart.Cart) bool {
		c.Remove(productID)
		return true
	})
}

// UpdateCartItemQuantity sets the absolute quantity of a line. Callers clamp.
func (s *Store) UpdateCartItemQuantity(ctx context.Context, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cart.Line(productID); !ok {
		return shared.ErrNotFound
	}
	return s.change(ctx, func(c *cart.Cart) bool {
		return c.SetQuantity(productID, quantity)
	})
}

// SetQuantity clamps quantity to [1, stock] before storing it. A request above
// the stock stores the stock and pushes a warning notice.
func (s *Store) SetQuantity(ctx context.Context, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.cart.Line(productID)
	if !ok {
		return shared.ErrNotFound
	}
	stock := s.stockOf(line)
	if quantity > stock {
		s.notices.Warning(MsgStockLimit)
	}
	return s.change(ctx, func(c *cart.Cart) bool {
		return c.SetQuantity(productID, cart.ClampQuantity(quantity, stock))
	})
}

// Increment steps a line up by one, refusing to pass the known stock
func (s *Store) Increment(ctx context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.cart.Line(productID)
	if !ok {
		return shared.ErrNotFound
	}
	if line.Quantity >= s.stockOf(line) {
		s.notices.Warning(MsgStockLimit)
		return nil
	}
	return s.change(ctx, func(c *cart.Cart) bool {
		return c.SetQuantity(productID, line.Quantity+1)
	})
}

// Decrement steps a line down by one, never below 1
func (s *Store) Decrement(ctx context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.cart.Line(productID)
	if !ok {
		return shared.ErrNotFound
	}
	quantity := cart.ClampQuantity(line.Quantity-1, s.stockOf(line))
	return s.change(ctx, func(c *cart.Cart) bool {
		return c.SetQuantity(productID, quantity)
	})
}

// ClearCart empties the cart. Only a confirmed order clears it.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.change(ctx, func(c *cart.Cart) bool {
		c.Clear()
		return true
	})
}

// stockOf prefers the freshest catalog stock over the line snapshot
func (s *Store) stockOf(l cart.Line) int {
	if p, ok := s.index[l.ProductID]; ok {
		return p.StockQuantity
	}
	return l.StockQuantity
}

// Lines returns a copy of the cart lines
func (s *Store) Lines() []cart.Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Lines()
}

// CartVersion returns a counter that changes on every cart mutation
func (s *Store) CartVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartGen
}

// ItemCount returns the total quantity in the cart
func (s *Store) ItemCount() int {
	n := 0
	for _, l := range s.Lines() {
		n += l.Quantity
	}
	return n
}

// Refresh replaces the catalog cache with the server's product list and
// brings the cart line snapshots up to date with it. A failed fetch keeps the
// previous cache and raises the error flag.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.refreshGen++
	gen := s.refreshGen
	s.mu.Unlock()

	products, err := s.source.Products(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.refreshGen {
		s.logger.Debug("Discarding stale catalog refresh", zap.Uint64("generation", gen))
		return nil
	}
	if err != nil {
		s.failed = true
		s.logger.Warn("Catalog refresh failed", zap.Error(err))
		return err
	}
	s.products = products
	s.index = catalog.IndexByID(products)
	s.failed = false
	s.fetched = true
	s.fetchedAt = time.Now()
	if err := s.change(ctx, func(c *cart.Cart) bool { return c.RefreshSnapshots(s.index) }); err != nil {
		s.logger.Warn("Cart snapshots not refreshed", zap.Error(err))
	}
	return nil
}

// Catalog returns the cached catalog and its error flag
func (s *Store) Catalog() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, len(s.products))
	copy(out, s.products)
	return Snapshot{Products: out, Failed: s.failed, Fetched: s.fetched, FetchedAt: s.fetchedAt}
}

// Product looks up a cached product
func (s *Store) Product(id int64) (catalog.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.index[id]
	return p, ok
}

// Stock returns the most recently fetched stock per product
func (s *Store) Stock() map[int64]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]int, len(s.index))
	for id, p := range s.index {
		out[id] = p.StockQuantity
	}
	return out
}

// ReconciledLines returns the cart lines whose product still exists in the
// fetched catalog. Before the first successful fetch every line is kept.
func (s *Store) ReconciledLines() []cart.Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := s.cart.Lines()
	if !s.fetched {
		return lines
	}
	out := lines[:0]
	for _, l := range lines {
		if _, ok := s.index[l.ProductID]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Watch subscribes to cart changes made by other tabs and applies them in the
// background until ctx is done. The returned channel closes when it stops.
func (s *Store) Watch(ctx context.Context) <-chan struct{} {
	changes := s.storage.Watch(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range changes {
			if c.Key != localstore.KeyCart {
				continue
			}
			s.applyRemote(c)
		}
	}()
	return done
}

func (s *Store) applyRemote(c localstore.Change) {
	var lines []cart.Line
	if !c.Removed {
		if err := json.Unmarshal([]byte(c.Value), &lines); err != nil {
			s.logger.Warn("Ignoring unreadable cart change", zap.Error(err), zap.String("origin", c.Origin))
			return
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = cart.New(lines)
	s.cartGen++
	s.logger.Debug("Cart updated by another tab", zap.Int("lines", s.cart.Len()))
}
