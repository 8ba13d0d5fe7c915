package pipeline

import (
	"fmt"
	"net/http"
	"unicode"

	"github.com/nao1215/lexcrawl/internal/config"
	"github.com/nao1215/lexcrawl/internal/crawler"
	"github.com/nao1215/lexcrawl/internal/lexicon"
)

// ScriptTable returns the Unicode table of a config.Script* name.
// ScriptAny and unknown names return nil, which means any script.
func ScriptTable(name string) *unicode.RangeTable {
	switch name {
	case config.ScriptCyrillic:
		return unicode.Cyrillic
	case config.ScriptLatin:
		return unicode.Latin
	default:
		return nil
	}
}

// NewScope builds the crawl scope of cfg.SeedURL.
func NewScope(cfg *config.Config) (*crawler.Scope, error) {
	return crawler.NewScope(cfg.SeedURL, cfg.ScopeDomain,
		crawler.WithIgnorePatterns(cfg.IgnorePatterns),
		crawler.WithFollowPatterns(cfg.FollowPatterns),
	)
}

// NewFetcher builds the HTTP fetcher. A nil client uses a fresh one.
// Redirects are only followed inside scope.
func NewFetcher(cfg *config.Config, client *http.Client, scope *crawler.Scope) *crawler.Fetcher {
	opts := make([]crawler.FetcherOption, 0, 7)
	if client != nil {
		opts = append(opts, crawler.WithHTTPClient(client))
	}
	opts = append(opts,
		crawler.WithTimeout(cfg.RequestTimeout),
		crawler.WithDelay(cfg.InterRequestDelay),
		crawler.WithJitter(cfg.DelayJitter),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithRedirectScope(scope),
	)
	return crawler.NewFetcher(opts...)
}

// NewTokenizer builds the tokenizer, loading the stop word file if needed.
func NewTokenizer(cfg *config.Config) (*lexicon.Tokenizer, error) {
	opts := []lexicon.TokenizerOption{
		lexicon.WithMinLength(cfg.MinTokenLength),
		lexicon.WithScript(ScriptTable(cfg.Script)),
	}

	switch cfg.StopWords {
	case "":
	case config.StopWordsRussian:
		opts = append(opts, lexicon.WithStopWords(lexicon.RussianStopWords()))
	default:
		words, err := lexicon.LoadStopWords(cfg.StopWords)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lexicon.WithStopWords(words))
	}

	return lexicon.NewTokenizer(opts...), nil
}

// NewAnalyzer builds the morphological analyzer selected by cfg.Analyzer.
// The dictionary analyzer falls back to the Snowball stemmer for forms the
// dictionary does not list.
func NewAnalyzer(cfg *config.Config) (lexicon.Analyzer, error) {
	switch cfg.Analyzer {
	case config.AnalyzerSnowball, "":
		return lexicon.NewSnowballAnalyzer(), nil
	case config.AnalyzerIdentity:
		return lexicon.IdentityAnalyzer{}, nil
	case config.AnalyzerDictionary:
		if cfg.Dictionary == "" {
			return nil, config.ErrNoDictionary
		}
		dict, err := lexicon.LoadDictionary(cfg.Dictionary)
		if err != nil {
			return nil, err
		}
		return lexicon.ChainAnalyzer{dict, lexicon.NewSnowballAnalyzer()}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownAnalyzer, cfg.Analyzer)
	}
}
