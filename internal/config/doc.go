// Package config provides the configuration of a lexcrawl run: defaults,
// validation, the YAML configuration file and XDG directory helpers.
package config
