package lexicon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/lexcrawl/internal/crawler"
	"github.com/nao1215/lexcrawl/internal/model"
	"github.com/nao1215/lexcrawl/internal/store"
)

// ErrPageRead is returned when a page listed in the page index cannot be read.
var ErrPageRead = errors.New("failed to read stored page")

// Indexer builds the lexical index of a page store.
//
// Pages are tokenized and lemmatized in parallel into page-local
// aggregates, which are then merged in page index order on one goroutine.
type Indexer struct {
	pagesDir  string
	indexPath string

	parser    crawler.LinkParser
	tokenizer *Tokenizer
	analyzer  Analyzer
	workers   int
	logger    *slog.Logger

	// perPageDir, when set, receives tokens/NNN_tokens.txt and lemmas/NNN_lemmas.txt.
	perPageDir string
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithTokenizer sets the tokenizer.
func WithTokenizer(t *Tokenizer) IndexerOption {
	return func(ix *Indexer) {
		ix.tokenizer = t
	}
}

// WithAnalyzer sets the morphological analyzer.
func WithAnalyzer(a Analyzer) IndexerOption {
	return func(ix *Indexer) {
		ix.analyzer = a
	}
}

// WithParser sets the parser that extracts page text.
func WithParser(p crawler.LinkParser) IndexerOption {
	return func(ix *Indexer) {
		ix.parser = p
	}
}

// WithIndexWorkers sets how many pages are processed in parallel.
func WithIndexWorkers(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithPerPageOutput writes per-page token and lemma files under dir.
func WithPerPageOutput(dir string) IndexerOption {
	return func(ix *Indexer) {
		ix.perPageDir = dir
	}
}

// WithIndexerLogger sets the logger.
func WithIndexerLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) {
		ix.logger = logger
	}
}

// NewIndexer creates an Indexer over the pages in pagesDir listed in indexPath.
// By default it strips page boilerplate, keeps tokens of two or more runes
// and groups them with the Snowball analyzer.
func NewIndexer(pagesDir, indexPath string, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		pagesDir:  pagesDir,
		indexPath: indexPath,
		parser:    crawler.NewHTMLParser(crawler.WithSkipBoilerplate(true)),
		tokenizer: NewTokenizer(),
		analyzer:  NewSnowballAnalyzer(),
		workers:   4,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Build reads every page of the store and returns the merged aggregate.
func (ix *Indexer) Build(ctx context.Context) (*Aggregator, int, error) {
	entries, err := store.ReadIndex(ix.indexPath)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrPageRead, err)
	}

	if ix.perPageDir != "" {
		for _, sub := range []string{"tokens", "lemmas"} {
			if err := os.MkdirAll(filepath.Join(ix.perPageDir, sub), 0o750); err != nil {
				return nil, 0, fmt.Errorf("create per-page directory: %w", err)
			}
		}
	}

	pages := make([]*Aggregator, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			agg, err := ix.indexPage(entry)
			if err != nil {
				return err
			}
			pages[i] = agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	global := NewAggregator(ix.analyzer, WithAggregatorLogger(ix.logger))
	for _, agg := range pages {
		global.Merge(agg)
	}
	return global, len(entries), nil
}

// Run builds the index and writes the token and lemma lists.
func (ix *Indexer) Run(ctx context.Context, tokensPath, lemmasPath string) (*model.IndexSummary, error) {
	start := time.Now()

	global, pages, err := ix.Build(ctx)
	if err != nil {
		return nil, err
	}

	if err := WriteTokensFile(tokensPath, global.Tokens()); err != nil {
		return nil, fmt.Errorf("write tokens: %w", err)
	}
	if err := WriteLemmasFile(lemmasPath, global.Groups()); err != nil {
		return nil, fmt.Errorf("write lemmas: %w", err)
	}

	summary := &model.IndexSummary{
		Pages:      pages,
		Tokens:     global.TokenCount(),
		Lemmas:     global.LemmaCount(),
		SelfLemmas: global.SelfLemmaCount(),
		TokensFile: tokensPath,
		LemmasFile: lemmasPath,
		Elapsed:    time.Since(start),
	}
	ix.logger.Info("index written",
		"pages", summary.Pages,
		"tokens", summary.Tokens,
		"lemmas", summary.Lemmas,
		"self_lemmas", summary.SelfLemmas)
	return summary, nil
}

// indexPage aggregates the tokens of one stored page.
func (ix *Indexer) indexPage(entry model.IndexEntry) (*Aggregator, error) {
	path, err := store.PagePath(ix.pagesDir, entry.Seq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPageRead, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPageRead, err)
	}

	text := ""
	parsed, err := ix.parser.Parse(entry.URL, bytes.NewReader(content))
	if err != nil {
		ix.logger.Warn("page text unavailable", "seq", entry.Seq, "url", entry.URL, "error", err)
	} else {
		text = parsed.Text
	}

	agg := NewAggregator(ix.analyzer, WithAggregatorLogger(ix.logger))
	agg.AddAll(ix.tokenizer.Tokens(text))
	ix.logger.Debug("page indexed", "seq", entry.Seq, "tokens", agg.TokenCount(), "lemmas", agg.LemmaCount())

	if ix.perPageDir != "" {
		name := trimExt(filepath.Base(path))
		tokensPath := filepath.Join(ix.perPageDir, "tokens", name+"_tokens.txt")
		if err := WriteTokensFile(tokensPath, agg.Tokens()); err != nil {
			return nil, fmt.Errorf("write %s: %w", tokensPath, err)
		}
		lemmasPath := filepath.Join(ix.perPageDir, "lemmas", name+"_lemmas.txt")
		if err := WriteLemmasFile(lemmasPath, agg.Groups()); err != nil {
			return nil, fmt.Errorf("write %s: %w", lemmasPath, err)
		}
	}
	return agg, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
