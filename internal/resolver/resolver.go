package resolver

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// KeywordExtractor turns free text into stock-footage search phrases.
type KeywordExtractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// StockSearcher finds a downloadable video URL for a search phrase.
type StockSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Resolution is the outcome of resolving free text to source footage.
type Resolution struct {
	Keywords []string
	URLs     []string
}

// Resolver maps a text description to downloadable stock footage: keyword
// extraction first, then one search per keyword.
type Resolver struct {
	keywords KeywordExtractor
	stock    StockSearcher
	logger   *slog.Logger
}

const searchConcurrency = 4

// New constructs a Resolver.
func New(keywords KeywordExtractor, stock StockSearcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{keywords: keywords, stock: stock, logger: logger}
}

// Candidate pairs a keyword with the footage URL found for it. URL is empty
// when no usable footage exists for the keyword.
type Candidate struct {
	Keyword string
	URL     string
}

// Resolve extracts keywords from text and searches footage for each one in
// parallel. Keyword extraction failing fails the resolution; an individual
// search failing only drops that keyword. URLs keep keyword order. Zero
// usable results yields ErrNoUsableMedia.
func (r *Resolver) Resolve(ctx context.Context, text string) (Resolution, error) {
	candidates, err := r.Suggest(ctx, text)
	if err != nil {
		return Resolution{}, err
	}

	keywords := make([]string, 0, len(candidates))
	urls := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		keywords = append(keywords, candidate.Keyword)
		if candidate.URL != "" {
			urls = append(urls, candidate.URL)
		}
	}
	if len(urls) == 0 {
		return Resolution{}, services.Wrap(services.ErrNoUsableMedia, "resolve", "stock", "no stock footage found for any keyword", nil)
	}
	return Resolution{Keywords: keywords, URLs: urls}, nil
}

// Suggest extracts keywords and runs one stock search per keyword without
// downloading anything. Every keyword comes back as a candidate; keywords
// with no usable footage carry an empty URL.
func (r *Resolver) Suggest(ctx context.Context, text string) ([]Candidate, error) {
	keywords, err := r.keywords.Extract(ctx, text)
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "resolve", "keywords", "keyword extraction failed", err)
	}

	urls := make([]string, len(keywords))
	var g errgroup.Group
	g.SetLimit(searchConcurrency)
	for i, keyword := range keywords {
		g.Go(func() error {
			url, err := r.stock.Search(ctx, keyword)
			if err != nil {
				r.logger.Warn("dropping failed stock search",
					logging.String("keyword", keyword),
					logging.Error(err),
					logging.String(logging.FieldEventType, "stock_search_drop"),
				)
				return nil
			}
			if url == "" {
				r.logger.Info("no stock footage for keyword",
					logging.String("keyword", keyword),
					logging.String(logging.FieldEventType, "stock_search_empty"),
				)
				return nil
			}
			urls[i] = url
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, services.Wrap(services.ErrTimeout, "resolve", "stock", "stock searches cancelled", ctx.Err())
	}

	candidates := make([]Candidate, len(keywords))
	for i, keyword := range keywords {
		candidates[i] = Candidate{Keyword: keyword, URL: urls[i]}
	}
	return candidates, nil
}
