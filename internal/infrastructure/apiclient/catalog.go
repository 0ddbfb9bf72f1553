package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/omkarjtg/ecomm/internal/domain/catalog"
)

// CatalogAPI wraps the product endpoints
type CatalogAPI struct {
	c *Client
}

// Catalog returns the product endpoints
func (c *Client) Catalog() *CatalogAPI {
	return &CatalogAPI{c: c}
}

// Products lists every product
func (a *CatalogAPI) Products(ctx context.Context) ([]catalog.Product, error) {
	resp, err := a.c.Get(ctx, "/api/products", nil)
	if err != nil {
		return nil, err
	}
	var out []catalog.Product
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Product fetches one product
func (a *CatalogAPI) Product(ctx context.Context, id int64) (catalog.Product, error) {
	resp, err := a.c.Get(ctx, fmt.Sprintf("/api/product/%d", id), nil)
	if err != nil {
		return catalog.Product{}, err
	}
	var p catalog.Product
	if err := resp.Decode(&p); err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

// Search runs the keyword search
func (a *CatalogAPI) Search(ctx context.Context, keyword string) ([]catalog.Product, error) {
	resp, err := a.c.Get(ctx, "/api/products/search", map[string]string{"keyword": keyword})
	if err != nil {
		return nil, err
	}
	var out []catalog.Product
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Image fetches the binary product image
func (a *CatalogAPI) Image(ctx context.Context, id int64) (catalog.Image, error) {
	resp, err := a.c.Get(ctx, fmt.Sprintf("/api/product/%d/image", id), nil)
	if err != nil {
		return catalog.Image{}, err
	}
	if len(resp.Body) == 0 {
		return catalog.Image{}, fmt.Errorf("apiclient: product %d has an empty image", id)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/json") {
		ct = http.DetectContentType(resp.Body)
	}
	return catalog.Image{Data: resp.Body, ContentType: ct}, nil
}

func productParts(in catalog.ProductInput, img *catalog.ImageUpload) ([]Part, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encode product: %w", err)
	}
	parts := []Part{{Name: "product", ContentType: "application/json", Data: data}}
	if img != nil && len(img.Data) > 0 {
		parts = append(parts, Part{
			Name:        "imageFile",
			Filename:    img.Filename,
			ContentType: img.ContentType,
			Data:        img.Data,
		})
	}
	return parts, nil
}

// Create adds a product. The image is required by the server.
func (a *CatalogAPI) Create(ctx context.Context, in catalog.ProductInput, img *catalog.ImageUpload) (catalog.Product, error) {
	parts, err := productParts(in, img)
	if err != nil {
		return catalog.Product{}, err
	}
	resp, err := a.c.Do(ctx, Request{Method: http.MethodPost, Path: "/api/product", Parts: parts})
	if err != nil {
		return catalog.Product{}, err
	}
	var p catalog.Product
	if err := resp.Decode(&p); err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

// Update replaces a product. A nil image keeps the current one.
func (a *CatalogAPI) Update(ctx context.Context, id int64, in catalog.ProductInput, img *catalog.ImageUpload) error {
	in.ID = id
	parts, err := productParts(in, img)
	if err != nil {
		return err
	}
	_, err = a.c.Do(ctx, Request{Method: http.MethodPut, Path: fmt.Sprintf("/api/product/%d", id), Parts: parts})
	return err
}

// Delete removes a product
func (a *CatalogAPI) Delete(ctx context.Context, id int64) error {
	_, err := a.c.Delete(ctx, fmt.Sprintf("/api/product/%d", id))
	return err
}

// DecrementStock lowers the stock of a product after a purchase
func (a *CatalogAPI) DecrementStock(ctx context.Context, id int64, quantity int) error {
	_, err := a.c.Put(ctx, fmt.Sprintf("/api/product/%d/decrement-stock", id), map[string]int{"quantity": quantity})
	return err
}

// GenerateDescription asks the server to write a description for a product.
// The server answers either with the updated product or with the raw model
// response; in the latter case only the description text is filled in.
func (a *CatalogAPI) GenerateDescription(ctx context.Context, id int64) (catalog.Product, error) {
	resp, err := a.c.Post(ctx, fmt.Sprintf("/api/product/%d/generate-description", id), nil)
	if err != nil {
		return catalog.Product{}, err
	}

	var raw struct {
		catalog.Product
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := resp.Decode(&raw); err != nil {
		// Plain text description
		return catalog.Product{ID: id, Description: resp.Text()}, nil
	}

	p := raw.Product
	if p.ID == 0 {
		p.ID = id
	}
	if len(raw.Candidates) > 0 && len(raw.Candidates[0].Content.Parts) > 0 {
		p.Description = raw.Candidates[0].Content.Parts[0].Text
	}
	return p, nil
}
