package main

import (
	"fmt"
	"path/filepath"

	"github.com/nao1215/lexcrawl/internal/config"
	"github.com/spf13/cobra"
)

// addOutputFlags registers the flags shared by run, crawl and index.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("out", "o", config.DefaultOutDir,
		"Output directory for pages, index, tokens, lemmas and the log file")
	cmd.Flags().StringP("report", "r", "",
		"Write the run summary to this file (.json for JSON, Markdown otherwise)")
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the crawl database")
	cmd.Flags().String("db-dir", "",
		"Crawl database directory (default: XDG data directory)")
}

// addCrawlFlags registers the crawl phase flags.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("page-cap", "p", config.DefaultPageCap,
		"Number of pages saved before the crawl stops")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout of a single request")
	cmd.Flags().DurationP("delay", "d", config.DefaultInterRequestDelay,
		"Pause between consecutive requests")
	cmd.Flags().Duration("jitter", config.DefaultDelayJitter,
		"Upper bound of a random extra pause added to the delay")
	cmd.Flags().String("scope", "",
		"Registrable domain to stay within (default: domain of the seed URL)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Concurrent fetches")
	cmd.Flags().Int("seed-retries", config.DefaultSeedRetries,
		"Extra attempts for an unreachable seed URL")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of bytes read per response")
	cmd.Flags().Int("min-script-letters", 0,
		"Skip pages with fewer letters of the index script (0 disables)")
	cmd.Flags().StringSlice("ignore", nil,
		"URL path pattern never crawled (repeatable)")
	cmd.Flags().StringSlice("follow", nil,
		"Only crawl URL paths matching this pattern (repeatable)")
}

// addIndexFlags registers the index phase flags.
func addIndexFlags(cmd *cobra.Command) {
	cmd.Flags().Int("min-token-length", config.DefaultMinTokenLength,
		"Minimum token length in letters")
	cmd.Flags().String("script", config.ScriptAny,
		"Keep only tokens in this script: any, cyrillic or latin")
	cmd.Flags().String("stop-words", "",
		`Stop words to drop: "russian" or a file with one word per line`)
	cmd.Flags().StringP("analyzer", "a", config.AnalyzerSnowball,
		"Morphological analyzer: snowball, dictionary or identity")
	cmd.Flags().String("dictionary", "",
		"Lemma list used by the dictionary analyzer")
	cmd.Flags().Int("index-workers", config.DefaultIndexWorkers,
		"Pages tokenized in parallel")
	cmd.Flags().Bool("per-page", false,
		"Also write per-page token and lemma files")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getConfigFlag retrieves the config file flag from the command or its parent.
func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return ""
		}
	}
	return path
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags set on the command line, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.ConfigFilePath = getConfigFlag(cmd)

	// An explicitly named config file must exist; the default search is optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cf.Apply(cfg, filepath.Dir(configPath))
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.SeedURL = args[0]
	}

	return cfg, nil
}

// applyFlags copies every flag given on the command line onto cfg.
// Flags left at their defaults do not override the configuration file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()

	var noDB bool
	setters := []func() error{
		func() error { return setIfChanged(cmd, "out", f.GetString, &cfg.OutDir) },
		func() error { return setIfChanged(cmd, "report", f.GetString, &cfg.ReportFile) },
		func() error { return setIfChanged(cmd, "db-dir", f.GetString, &cfg.DBDir) },
		func() error { return setIfChanged(cmd, "no-db", f.GetBool, &noDB) },

		func() error { return setIfChanged(cmd, "page-cap", f.GetInt, &cfg.PageCap) },
		func() error { return setIfChanged(cmd, "timeout", f.GetDuration, &cfg.RequestTimeout) },
		func() error { return setIfChanged(cmd, "delay", f.GetDuration, &cfg.InterRequestDelay) },
		func() error { return setIfChanged(cmd, "jitter", f.GetDuration, &cfg.DelayJitter) },
		func() error { return setIfChanged(cmd, "scope", f.GetString, &cfg.ScopeDomain) },
		func() error { return setIfChanged(cmd, "workers", f.GetInt, &cfg.Workers) },
		func() error { return setIfChanged(cmd, "seed-retries", f.GetInt, &cfg.SeedRetries) },
		func() error { return setIfChanged(cmd, "user-agent", f.GetString, &cfg.UserAgent) },
		func() error { return setIfChanged(cmd, "max-body-size", f.GetInt64, &cfg.MaxBodySize) },
		func() error { return setIfChanged(cmd, "min-script-letters", f.GetInt, &cfg.MinScriptLetters) },
		func() error { return setIfChanged(cmd, "ignore", f.GetStringSlice, &cfg.IgnorePatterns) },
		func() error { return setIfChanged(cmd, "follow", f.GetStringSlice, &cfg.FollowPatterns) },

		func() error { return setIfChanged(cmd, "min-token-length", f.GetInt, &cfg.MinTokenLength) },
		func() error { return setIfChanged(cmd, "script", f.GetString, &cfg.Script) },
		func() error { return setIfChanged(cmd, "stop-words", f.GetString, &cfg.StopWords) },
		func() error { return setIfChanged(cmd, "analyzer", f.GetString, &cfg.Analyzer) },
		func() error { return setIfChanged(cmd, "dictionary", f.GetString, &cfg.Dictionary) },
		func() error { return setIfChanged(cmd, "index-workers", f.GetInt, &cfg.IndexWorkers) },
		func() error { return setIfChanged(cmd, "per-page", f.GetBool, &cfg.PerPage) },
	}
	for _, set := range setters {
		if err := set(); err != nil {
			return err
		}
	}

	if noDB {
		cfg.SaveToDB = false
	}
	return nil
}

// setIfChanged stores the value of flag name in dst when the flag was given
// on the command line. Flags the command does not define are ignored.
func setIfChanged[T any](cmd *cobra.Command, name string, get func(string) (T, error), dst *T) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
