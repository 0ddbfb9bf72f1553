package catalog

import (
	"strings"

	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Known product categories. The server treats category as a free string; these
// are the values the storefront offers in its filter and forms.
const (
	CategoryLaptop      = "Laptop"
	CategoryHeadphone   = "Headphone"
	CategoryMobile      = "Mobile"
	CategoryElectronics = "Electronics"
	CategoryToys        = "Toys"
	CategoryFashion     = "Fashion"
)

// Categories lists the categories in display order
var Categories = []string{
	CategoryLaptop,
	CategoryHeadphone,
	CategoryMobile,
	CategoryElectronics,
	CategoryToys,
	CategoryFashion,
}

// Product is the client's read-only cached copy of a server-owned product
type Product struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Brand            string          `json:"brand"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	Category         string          `json:"category"`
	StockQuantity    int             `json:"stockQuantity"`
	ProductAvailable bool            `json:"productAvailable"`
	ReleaseDate      Date            `json:"releaseDate"`
	ImageName        string          `json:"imageName,omitempty"`
	ImageType        string          `json:"imageType,omitempty"`
}

// InStock reports whether the product can be added to a cart
func (p Product) InStock() bool {
	return p.ProductAvailable && p.StockQuantity > 0
}

// ProductInput holds the structured fields of an add/update product form
type ProductInput struct {
	ID               int64           `json:"id,omitempty"`
	Name             string          `json:"name" validate:"required,max=200"`
	Brand            string          `json:"brand" validate:"required,max=100"`
	Description      string          `json:"description" validate:"max=1000"`
	Price            decimal.Decimal `json:"price"`
	Category         string          `json:"category" validate:"required"`
	StockQuantity    int             `json:"stockQuantity" validate:"min=0"`
	ProductAvailable bool            `json:"productAvailable"`
	ReleaseDate      Date            `json:"releaseDate"`
}

// Validate checks the rules the validator tags cannot express
func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Product name cannot be empty")
	}
	if in.Price.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "Price cannot be negative")
	}
	if in.StockQuantity < 0 {
		return shared.NewDomainError("INVALID_INPUT", "Stock quantity cannot be negative")
	}
	return nil
}

// Image is the binary image of a product as served by the API
type Image struct {
	Data        []byte
	ContentType string
}

// ImageUpload is an image file submitted with an add/update product form
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FilterByCategory returns the products of the given category; an empty
// category returns the input unchanged.
func FilterByCategory(products []Product, category string) []Product {
	if category == "" {
		return products
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out
}

// IndexByID builds a lookup table keyed by product ID
func IndexByID(products []Product) map[int64]Product {
	idx := make(map[int64]Product, len(products))
	for _, p := range products {
		idx[p.ID] = p
	}
	return idx
}
