package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLookupKnownBarcode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/product/3017620422003.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": 1,
			"code": "3017620422003",
			"product": {
				"product_name": "Nutella",
				"brands": "Ferrero",
				"quantity": "400 g",
				"image_url": "https://images.example/nutella.jpg"
			}
		}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	p, err := c.Lookup(context.Background(), "3017620422003")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p.Name != "Nutella" || p.Brand != "Ferrero" || p.Quantity != "400 g" {
		t.Errorf("product = %+v", p)
	}
	if p.Barcode != "3017620422003" {
		t.Errorf("barcode = %q", p.Barcode)
	}
}

func TestLookupUnknownBarcode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": 0, "code": "0000000000000", "status_verbose": "product not found"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	_, err := c.Lookup(context.Background(), "0000000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupNotFoundStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	_, err := c.Lookup(context.Background(), "bogus")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	_, err := c.Lookup(context.Background(), "3017620422003")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFetchImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	data, err := c.FetchImage(context.Background(), srv.URL+"/img.jpg")
	if err != nil {
		t.Fatalf("fetch image: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestFetchImageTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", maxImageBytes+1)))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL)
	if _, err := c.FetchImage(context.Background(), srv.URL+"/big.jpg"); err == nil {
		t.Fatal("expected error for oversized image")
	}
}
