// Package catalog looks up product metadata by barcode in the Open Food
// Facts database.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://world.openfoodfacts.org"

// maxImageBytes caps downloaded product images. Photos from the catalog
// are user uploads of unbounded size.
const maxImageBytes = 5 << 20

// ErrNotFound is returned when the catalog has no entry for a barcode.
var ErrNotFound = errors.New("catalog: product not found")

// Product is the subset of catalog metadata the app stores.
type Product struct {
	Barcode  string `json:"barcode"`
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Quantity string `json:"quantity"`
	ImageURL string `json:"image_url,omitempty"`
}

// Client queries the Open Food Facts read API. The zero value is not
// usable; construct with NewClient.
type Client struct {
	client  *http.Client
	baseURL string
}

func NewClient() *Client {
	return &Client{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
	}
}

// NewClientWithBaseURL exists for tests pointed at a local server.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

type lookupResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Product struct {
		ProductName string `json:"product_name"`
		Brands      string `json:"brands"`
		Quantity    string `json:"quantity"`
		ImageURL    string `json:"image_url"`
	} `json:"product"`
}

// Lookup fetches catalog metadata for a barcode. A barcode the catalog
// does not know returns ErrNotFound.
func (c *Client) Lookup(ctx context.Context, barcode string) (*Product, error) {
	u := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, url.PathEscape(barcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	// The API answers 404 for malformed barcodes and status:0 in the body
	// for well-formed but unknown ones.
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("barcode %s: %w", barcode, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var lr lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	if lr.Status == 0 {
		return nil, fmt.Errorf("barcode %s: %w", barcode, ErrNotFound)
	}

	return &Product{
		Barcode:  barcode,
		Name:     lr.Product.ProductName,
		Brand:    lr.Product.Brands,
		Quantity: lr.Product.Quantity,
		ImageURL: lr.Product.ImageURL,
	}, nil
}

// FetchImage downloads a product photo, capped at maxImageBytes.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d byte limit", maxImageBytes)
	}
	return data, nil
}
