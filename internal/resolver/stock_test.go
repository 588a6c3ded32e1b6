package resolver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/resolver"
)

const stockResponse = `{
  "videos": [
    {
      "id": 1,
      "duration": 12,
      "video_files": [
        {"link": "https://cdn.example.com/sd.mp4", "quality": "sd", "width": 640, "height": 360},
        {"link": "https://cdn.example.com/hd.mp4", "quality": "hd", "width": 1920, "height": 1080}
      ]
    }
  ]
}`

func stockConfig(baseURL string) config.Stock {
	return config.Stock{
		APIKey:      "stock-key",
		BaseURL:     baseURL,
		Orientation: "landscape",
	}
}

func TestSearchPrefersHDRendition(t *testing.T) {
	var gotQuery, gotAuth, gotOrientation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotOrientation = r.URL.Query().Get("orientation")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(stockResponse))
	}))
	defer srv.Close()

	client := resolver.NewStockClient(stockConfig(srv.URL))
	url, err := client.Search(context.Background(), "ocean sunrise")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if url != "https://cdn.example.com/hd.mp4" {
		t.Fatalf("unexpected url: %s", url)
	}
	if gotQuery != "ocean sunrise" {
		t.Fatalf("unexpected query: %q", gotQuery)
	}
	if gotOrientation != "landscape" {
		t.Fatalf("unexpected orientation: %q", gotOrientation)
	}
	if gotAuth != "stock-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}

func TestSearchEmptyResultsAreNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"videos": []}`))
	}))
	defer srv.Close()

	client := resolver.NewStockClient(stockConfig(srv.URL))
	url, err := client.Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if url != "" {
		t.Fatalf("expected empty url, got %s", url)
	}
}

func TestSearchReportsProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := resolver.NewStockClient(stockConfig(srv.URL))
	if _, err := client.Search(context.Background(), "ocean"); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestSearchRequiresQueryAndKey(t *testing.T) {
	client := resolver.NewStockClient(stockConfig("http://example.com"))
	if _, err := client.Search(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty query")
	}
	client = resolver.NewStockClient(config.Stock{BaseURL: "http://example.com"})
	if _, err := client.Search(context.Background(), "ocean"); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
