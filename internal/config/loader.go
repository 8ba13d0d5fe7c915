package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".lexcrawl"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// CrawlSection is the "crawl" section of the configuration file.
// Zero values mean "not set" and leave the current value untouched.
type CrawlSection struct {
	SeedURL           string        `yaml:"seedUrl,omitempty"`
	PageCap           int           `yaml:"pageCap,omitempty"`
	RequestTimeout    time.Duration `yaml:"requestTimeout,omitempty"`
	InterRequestDelay time.Duration `yaml:"interRequestDelay,omitempty"`
	DelayJitter       time.Duration `yaml:"delayJitter,omitempty"`
	ScopeDomain       string        `yaml:"scopeDomain,omitempty"`
	Workers           int           `yaml:"workers,omitempty"`
	SeedRetries       *int          `yaml:"seedRetries,omitempty"`
	UserAgent         string        `yaml:"userAgent,omitempty"`
	MaxBodySize       int64         `yaml:"maxBodySize,omitempty"`
	MinScriptLetters  int           `yaml:"minScriptLetters,omitempty"`
	IgnorePatterns    []string      `yaml:"ignorePatterns,omitempty"`
	FollowPatterns    []string      `yaml:"followPatterns,omitempty"`
}

// IndexSection is the "index" section of the configuration file.
type IndexSection struct {
	MinTokenLength int    `yaml:"minTokenLength,omitempty"`
	Script         string `yaml:"script,omitempty"`
	StopWords      string `yaml:"stopWords,omitempty"`
	Analyzer       string `yaml:"analyzer,omitempty"`
	Dictionary     string `yaml:"dictionary,omitempty"`
	Workers        int    `yaml:"workers,omitempty"`
	PerPage        *bool  `yaml:"perPage,omitempty"`
}

// File represents the structure of the .lexcrawl configuration file.
type File struct {
	// OutDir is the output directory shared by both phases.
	OutDir string `yaml:"outDir,omitempty"`

	// Crawl configures the crawl phase.
	Crawl CrawlSection `yaml:"crawl,omitempty"`

	// Index configures the lexical indexing phase.
	Index IndexSection `yaml:"index,omitempty"`
}

// Apply copies every value set in the file onto cfg.
// Relative dictionary and stop word paths are resolved against baseDir.
func (cf *File) Apply(cfg *Config, baseDir string) {
	if cf.OutDir != "" {
		cfg.OutDir = resolvePath(baseDir, cf.OutDir)
	}

	c := cf.Crawl
	if c.SeedURL != "" {
		cfg.SeedURL = c.SeedURL
	}
	if c.PageCap != 0 {
		cfg.PageCap = c.PageCap
	}
	if c.RequestTimeout != 0 {
		cfg.RequestTimeout = c.RequestTimeout
	}
	if c.InterRequestDelay != 0 {
		cfg.InterRequestDelay = c.InterRequestDelay
	}
	if c.DelayJitter != 0 {
		cfg.DelayJitter = c.DelayJitter
	}
	if c.ScopeDomain != "" {
		cfg.ScopeDomain = c.ScopeDomain
	}
	if c.Workers != 0 {
		cfg.Workers = c.Workers
	}
	if c.SeedRetries != nil {
		cfg.SeedRetries = *c.SeedRetries
	}
	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}
	if c.MaxBodySize != 0 {
		cfg.MaxBodySize = c.MaxBodySize
	}
	if c.MinScriptLetters != 0 {
		cfg.MinScriptLetters = c.MinScriptLetters
	}
	if len(c.IgnorePatterns) > 0 {
		cfg.IgnorePatterns = c.IgnorePatterns
	}
	if len(c.FollowPatterns) > 0 {
		cfg.FollowPatterns = c.FollowPatterns
	}

	i := cf.Index
	if i.MinTokenLength != 0 {
		cfg.MinTokenLength = i.MinTokenLength
	}
	if i.Script != "" {
		cfg.Script = i.Script
	}
	if i.StopWords != "" {
		if i.StopWords == StopWordsRussian {
			cfg.StopWords = i.StopWords
		} else {
			cfg.StopWords = resolvePath(baseDir, i.StopWords)
		}
	}
	if i.Analyzer != "" {
		cfg.Analyzer = i.Analyzer
	}
	if i.Dictionary != "" {
		cfg.Dictionary = resolvePath(baseDir, i.Dictionary)
	}
	if i.Workers != 0 {
		cfg.IndexWorkers = i.Workers
	}
	if i.PerPage != nil {
		cfg.PerPage = *i.PerPage
	}
}

func resolvePath(baseDir, path string) string {
	if baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .lexcrawl in the current directory
// 3. Look for .lexcrawl in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
