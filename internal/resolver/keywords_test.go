package resolver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/resolver"
)

func keywordsConfig(baseURL string) config.Keywords {
	return config.Keywords{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "test-model",
		MaxKeywords: 5,
	}
}

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func TestExtractParsesKeywordsAndCapsCount(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(completionBody(`{"keywords":["ocean","city","forest","desert","tundra","extra","more"]}`)))
	}))
	defer srv.Close()

	client := resolver.NewKeywordsClient(keywordsConfig(srv.URL))
	keywords, err := client.Extract(context.Background(), "a trip around the world")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(keywords) != 5 {
		t.Fatalf("expected keyword cap of 5, got %d", len(keywords))
	}
	if keywords[0] != "ocean" {
		t.Fatalf("unexpected first keyword: %s", keywords[0])
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}

func TestExtractToleratesCodeFences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody("```json\n{\"keywords\":[\"ocean\"]}\n```")))
	}))
	defer srv.Close()

	client := resolver.NewKeywordsClient(keywordsConfig(srv.URL))
	keywords, err := client.Extract(context.Background(), "sea")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(keywords) != 1 || keywords[0] != "ocean" {
		t.Fatalf("unexpected keywords: %v", keywords)
	}
}

func TestExtractRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(completionBody(`{"keywords":["ocean"]}`)))
	}))
	defer srv.Close()

	client := resolver.NewKeywordsClient(
		keywordsConfig(srv.URL),
		resolver.WithKeywordsRetry(3, 0, func(time.Duration) {}),
	)
	keywords, err := client.Extract(context.Background(), "sea")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected one retry, got %d attempts", attempts)
	}
	if len(keywords) != 1 {
		t.Fatalf("unexpected keywords: %v", keywords)
	}
}

func TestExtractDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := resolver.NewKeywordsClient(
		keywordsConfig(srv.URL),
		resolver.WithKeywordsRetry(3, 0, func(time.Duration) {}),
	)
	_, err := client.Extract(context.Background(), "sea")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if attempts != 1 {
		t.Fatalf("expected no retries, got %d attempts", attempts)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestExtractRequiresAPIKeyAndText(t *testing.T) {
	client := resolver.NewKeywordsClient(config.Keywords{BaseURL: "http://example.com"})
	if _, err := client.Extract(context.Background(), "sea"); err == nil {
		t.Fatal("expected error for missing api key")
	}
	client = resolver.NewKeywordsClient(keywordsConfig("http://example.com"))
	if _, err := client.Extract(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty text")
	}
}
