package config

import "errors"

// Configuration validation errors.
// They are returned by the Validate methods so that callers can use errors.Is.
var (
	// ErrNoSeed is returned when no seed URL is configured.
	ErrNoSeed = errors.New("no seed URL specified: provide it as an argument or set seedUrl in the config file")

	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrInvalidPageCap is returned when the page cap is below 1.
	ErrInvalidPageCap = errors.New("invalid page cap: must be at least 1")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid request timeout: must be positive")

	// ErrInvalidDelay is returned when the inter-request delay or jitter is negative.
	ErrInvalidDelay = errors.New("invalid inter-request delay: must be non-negative")

	// ErrInvalidWorkers is returned when a worker count is below 1.
	ErrInvalidWorkers = errors.New("invalid worker count: must be at least 1")

	// ErrInvalidSeedRetries is returned when the seed retry count is negative.
	ErrInvalidSeedRetries = errors.New("invalid seed retries: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidMinScriptLetters is returned when the text density threshold is negative.
	ErrInvalidMinScriptLetters = errors.New("invalid minimum script letters: must be non-negative")

	// ErrNoOutDir is returned when no output directory is configured.
	ErrNoOutDir = errors.New("no output directory specified")

	// ErrInvalidMinTokenLength is returned when the minimum token length is below 1.
	ErrInvalidMinTokenLength = errors.New("invalid minimum token length: must be at least 1")

	// ErrUnknownAnalyzer is returned for an analyzer name lexcrawl does not provide.
	ErrUnknownAnalyzer = errors.New("unknown analyzer: use snowball, dictionary or identity")

	// ErrNoDictionary is returned when the dictionary analyzer has no dictionary file.
	ErrNoDictionary = errors.New("dictionary analyzer requires a dictionary file")

	// ErrUnknownScript is returned for an unsupported script restriction.
	ErrUnknownScript = errors.New("unknown script: use any, cyrillic or latin")
)
