package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "lexcrawl"

	// DefaultPageCap is the number of pages a crawl saves before it stops.
	DefaultPageCap = 100

	// DefaultRequestTimeout bounds every HTTP request, including reading the body.
	DefaultRequestTimeout = 15 * time.Second

	// DefaultInterRequestDelay is the fixed politeness delay between requests.
	DefaultInterRequestDelay = 1 * time.Second

	// DefaultDelayJitter is the upper bound of the random extra pause added
	// to the fixed delay. Zero disables jitter.
	DefaultDelayJitter = 0 * time.Second

	// DefaultMinTokenLength is the minimum token length in runes.
	DefaultMinTokenLength = 2

	// DefaultWorkers is the number of concurrent fetches. One keeps the
	// traversal strictly breadth-first.
	DefaultWorkers = 1

	// DefaultSeedRetries is the number of extra attempts made for the seed URL.
	DefaultSeedRetries = 2

	// SeedRetryBackoff is multiplied by the attempt number before each seed retry.
	SeedRetryBackoff = 2 * time.Second

	// DefaultUserAgent identifies lexcrawl in HTTP requests.
	DefaultUserAgent = "lexcrawl/1.0 (+https://github.com/nao1215/lexcrawl)"

	// DefaultMaxBodySize limits the response body size read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultOutDir is the directory receiving pages, the page index and the lexicon.
	DefaultOutDir = "lexcrawl-out"

	// DefaultIndexWorkers is the number of pages tokenized in parallel.
	DefaultIndexWorkers = 4
)

// Analyzer names accepted by Config.Analyzer.
const (
	AnalyzerSnowball   = "snowball"
	AnalyzerDictionary = "dictionary"
	AnalyzerIdentity   = "identity"
)

// Script names accepted by Config.Script.
const (
	ScriptAny      = "any"
	ScriptCyrillic = "cyrillic"
	ScriptLatin    = "latin"
)

// StopWordsRussian selects the built-in Russian function word list.
const StopWordsRussian = "russian"

// Config holds every option of a lexcrawl run.
// It is populated from defaults, the YAML configuration file and CLI flags,
// in that order, and passed explicitly to the components that need it.
type Config struct {
	// SeedURL is the absolute URL the crawl starts from.
	SeedURL string

	// PageCap is the hard upper bound on saved pages. Must be at least 1.
	PageCap int

	// RequestTimeout is the per-request timeout.
	RequestTimeout time.Duration

	// InterRequestDelay is the fixed politeness delay between requests.
	InterRequestDelay time.Duration

	// DelayJitter adds a random pause in [0, DelayJitter) to every delay.
	DelayJitter time.Duration

	// ScopeDomain restricts the crawl to one registrable domain.
	// Empty means the registrable domain of SeedURL.
	ScopeDomain string

	// Workers is the number of fetches allowed in flight at once.
	Workers int

	// SeedRetries is the number of additional attempts for the seed URL.
	SeedRetries int

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum number of body bytes read per response.
	MaxBodySize int64

	// MinScriptLetters skips pages whose text has fewer letters of Script.
	// Zero disables the filter.
	MinScriptLetters int

	// IgnorePatterns are URL path globs never crawled.
	IgnorePatterns []string

	// FollowPatterns, when set, are the only URL path globs crawled.
	FollowPatterns []string

	// OutDir receives pages/, index.txt, tokens.txt, lemmas.txt and the log file.
	OutDir string

	// MinTokenLength is the minimum token length in runes.
	MinTokenLength int

	// Script restricts tokens to one writing system (any, cyrillic, latin).
	Script string

	// StopWords is empty (no stop words), "russian", or a path to a file
	// with one stop word per line.
	StopWords string

	// Analyzer selects the morphological analyzer (snowball, dictionary, identity).
	Analyzer string

	// Dictionary is the path of a lemma list ("<lemma> <form> ..." per line)
	// used by the dictionary analyzer.
	Dictionary string

	// IndexWorkers is the number of pages tokenized in parallel.
	IndexWorkers int

	// PerPage also writes per-page token and lemma files.
	PerPage bool

	// Verbose enables debug output on the console.
	Verbose bool

	// ConfigFilePath is the path of the YAML configuration file, if any.
	ConfigFilePath string

	// DBDir is the directory of the SQLite crawl database.
	DBDir string

	// SaveToDB mirrors the run into the crawl database.
	SaveToDB bool

	// ReportFile, when set, receives a Markdown run summary.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		PageCap:           DefaultPageCap,
		RequestTimeout:    DefaultRequestTimeout,
		InterRequestDelay: DefaultInterRequestDelay,
		DelayJitter:       DefaultDelayJitter,
		Workers:           DefaultWorkers,
		SeedRetries:       DefaultSeedRetries,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		OutDir:            DefaultOutDir,
		MinTokenLength:    DefaultMinTokenLength,
		Script:            ScriptAny,
		Analyzer:          AnalyzerSnowball,
		IndexWorkers:      DefaultIndexWorkers,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// PagesDir returns the page store directory.
func (c *Config) PagesDir() string {
	return filepath.Join(c.OutDir, "pages")
}

// IndexFile returns the Page Index file path.
func (c *Config) IndexFile() string {
	return filepath.Join(c.OutDir, "index.txt")
}

// TokensFile returns the token output path.
func (c *Config) TokensFile() string {
	return filepath.Join(c.OutDir, "tokens.txt")
}

// LemmasFile returns the lemma output path.
func (c *Config) LemmasFile() string {
	return filepath.Join(c.OutDir, "lemmas.txt")
}

// LogFile returns the run log file path.
func (c *Config) LogFile() string {
	return filepath.Join(c.OutDir, AppName+".log")
}

// XDGDataDir returns the XDG data directory for lexcrawl.
// On Linux: ~/.local/share/lexcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for lexcrawl.
// On Linux: ~/.config/lexcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ValidateCrawl checks the options used by the crawl phase.
// It returns the first problem found.
func (c *Config) ValidateCrawl() error {
	if c.SeedURL == "" {
		return ErrNoSeed
	}
	u, err := url.Parse(c.SeedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidSeed
	}
	if c.PageCap < 1 {
		return ErrInvalidPageCap
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.InterRequestDelay < 0 || c.DelayJitter < 0 {
		return ErrInvalidDelay
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.SeedRetries < 0 {
		return ErrInvalidSeedRetries
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MinScriptLetters < 0 {
		return ErrInvalidMinScriptLetters
	}
	return c.validateScript()
}

// ValidateIndex checks the options used by the index phase.
func (c *Config) ValidateIndex() error {
	if c.OutDir == "" {
		return ErrNoOutDir
	}
	if c.MinTokenLength < 1 {
		return ErrInvalidMinTokenLength
	}
	if c.IndexWorkers < 1 {
		return ErrInvalidWorkers
	}
	switch c.Analyzer {
	case AnalyzerSnowball, AnalyzerIdentity:
	case AnalyzerDictionary:
		if c.Dictionary == "" {
			return ErrNoDictionary
		}
	default:
		return ErrUnknownAnalyzer
	}
	return c.validateScript()
}

// Validate checks the options of a full crawl + index run.
func (c *Config) Validate() error {
	if c.OutDir == "" {
		return ErrNoOutDir
	}
	if err := c.ValidateCrawl(); err != nil {
		return err
	}
	return c.ValidateIndex()
}

func (c *Config) validateScript() error {
	switch c.Script {
	case ScriptAny, ScriptCyrillic, ScriptLatin:
		return nil
	default:
		return ErrUnknownScript
	}
}
