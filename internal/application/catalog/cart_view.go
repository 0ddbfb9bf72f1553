package catalog

import (
	"context"

	"github.com/omkarjtg/ecomm/internal/domain/cart"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartLineView is a cart line ready to render
type CartLineView struct {
	cart.Line
	ImageURL string          `json:"imageUrl"`
	Subtotal decimal.Decimal `json:"subtotal"`
	// Available is the freshest known stock for the line
	Available int `json:"available"`
}

// CartView is the reconciled cart
type CartView struct {
	Lines      []CartLineView        `json:"lines"`
	Total      decimal.Decimal       `json:"total"`
	ItemCount  int                   `json:"itemCount"`
	Violations []cart.StockViolation `json:"violations,omitempty"`
	// CatalogFailed is set when the catalog could not be refreshed and the
	// view falls back to the stored line snapshots
	CatalogFailed bool `json:"catalogFailed"`
}

// maxCartViewAttempts bounds how often a view is rebuilt when the cart
// changes while its images are loading
const maxCartViewAttempts = 3

// CartView refreshes the catalog, drops lines whose product no longer exists
// and resolves image URLs. Image results computed for a cart that changed in
// the meantime are discarded and the view is rebuilt.
func (s *ProductService) CartView(ctx context.Context) CartView {
	refreshErr := s.store.Refresh(ctx)

	var (
		lines []cart.Line
		urls  map[int64]string
	)
	for attempt := 0; attempt < maxCartViewAttempts; attempt++ {
		version := s.store.CartVersion()
		lines = s.store.ReconciledLines()
		ids := make([]int64, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}
		urls = s.ImageURLs(ctx, ids)
		if s.store.CartVersion() == version {
			break
		}
		s.logger.Debug("Cart changed while loading images, rebuilding view", zap.Int("attempt", attempt+1))
	}

	stock := s.store.Stock()
	view := CartView{
		Lines:         make([]CartLineView, 0, len(lines)),
		Total:         cart.Total(lines),
		Violations:    cart.StockViolations(lines, stock),
		CatalogFailed: refreshErr != nil,
	}
	for _, l := range lines {
		available, ok := stock[l.ProductID]
		if !ok {
			available = l.StockQuantity
		}
		url, ok := urls[l.ProductID]
		if !ok {
			url = s.placeholder
		}
		view.Lines = append(view.Lines, CartLineView{
			Line:      l,
			ImageURL:  url,
			Subtotal:  l.Subtotal(),
			Available: available,
		})
		view.ItemCount += l.Quantity
	}
	return view
}
