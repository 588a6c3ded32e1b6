package resolver_test

import (
	"context"
	"errors"
	"testing"

	"clipforge/internal/logging"
	"clipforge/internal/resolver"
	"clipforge/internal/services"
)

type stubExtractor struct {
	keywords []string
	err      error
}

func (s stubExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	return s.keywords, s.err
}

type stubSearcher struct {
	results map[string]string
	errs    map[string]error
}

func (s stubSearcher) Search(ctx context.Context, query string) (string, error) {
	if err, ok := s.errs[query]; ok {
		return "", err
	}
	return s.results[query], nil
}

func TestResolveKeepsKeywordOrder(t *testing.T) {
	r := resolver.New(
		stubExtractor{keywords: []string{"ocean sunrise", "city night", "forest rain"}},
		stubSearcher{results: map[string]string{
			"ocean sunrise": "https://cdn.example.com/ocean.mp4",
			"city night":    "https://cdn.example.com/city.mp4",
			"forest rain":   "https://cdn.example.com/forest.mp4",
		}},
		logging.NewNop(),
	)

	resolution, err := r.Resolve(context.Background(), "a journey from dawn to dusk")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolution.URLs) != 3 {
		t.Fatalf("expected three urls, got %d", len(resolution.URLs))
	}
	if resolution.URLs[0] != "https://cdn.example.com/ocean.mp4" || resolution.URLs[2] != "https://cdn.example.com/forest.mp4" {
		t.Fatalf("urls out of order: %v", resolution.URLs)
	}
}

func TestResolveDropsFailedSearches(t *testing.T) {
	r := resolver.New(
		stubExtractor{keywords: []string{"a", "b", "c"}},
		stubSearcher{
			results: map[string]string{"a": "https://cdn.example.com/a.mp4"},
			errs:    map[string]error{"b": errors.New("rate limited")},
		},
		logging.NewNop(),
	)

	resolution, err := r.Resolve(context.Background(), "text")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolution.URLs) != 1 || resolution.URLs[0] != "https://cdn.example.com/a.mp4" {
		t.Fatalf("unexpected urls: %v", resolution.URLs)
	}
	if len(resolution.Keywords) != 3 {
		t.Fatalf("keywords must be preserved, got %v", resolution.Keywords)
	}
}

func TestResolveFailsWhenExtractionFails(t *testing.T) {
	r := resolver.New(
		stubExtractor{err: errors.New("api key rejected")},
		stubSearcher{},
		logging.NewNop(),
	)

	_, err := r.Resolve(context.Background(), "text")
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
}

func TestSuggestKeepsEmptyCandidates(t *testing.T) {
	r := resolver.New(
		stubExtractor{keywords: []string{"a", "b", "c"}},
		stubSearcher{
			results: map[string]string{"a": "https://cdn.example.com/a.mp4"},
			errs:    map[string]error{"b": errors.New("rate limited")},
		},
		logging.NewNop(),
	)

	candidates, err := r.Suggest(context.Background(), "text")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("expected one candidate per keyword, got %d", len(candidates))
	}
	if candidates[0].URL != "https://cdn.example.com/a.mp4" {
		t.Fatalf("unexpected first candidate: %+v", candidates[0])
	}
	if candidates[1].URL != "" || candidates[2].URL != "" {
		t.Fatalf("expected empty urls for unresolved keywords: %+v", candidates)
	}
}

func TestResolveFailsWithNoUsableFootage(t *testing.T) {
	r := resolver.New(
		stubExtractor{keywords: []string{"a", "b"}},
		stubSearcher{},
		logging.NewNop(),
	)

	_, err := r.Resolve(context.Background(), "text")
	if !errors.Is(err, services.ErrNoUsableMedia) {
		t.Fatalf("expected ErrNoUsableMedia, got %v", err)
	}
}
