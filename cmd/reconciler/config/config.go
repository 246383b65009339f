// Package config assembles component configurations for the CLI from flags
// and viper-managed settings.
package config

import (
	"fmt"

	"crown-reconciliation-engine/internal/matcher"
	"crown-reconciliation-engine/internal/normalizer"
	"crown-reconciliation-engine/pkg/logger"
)

// CreateMatchingConfig builds the matcher configuration from the CLI's
// similarity threshold flag.
func CreateMatchingConfig(nameThreshold int) (*matcher.MatchingConfig, error) {
	config := matcher.DefaultMatchingConfig()
	config.NameThreshold = nameThreshold

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}
	return config, nil
}

// CreateNormalizerConfig builds the normalizer configuration from the CLI's
// header threshold flag.
func CreateNormalizerConfig(headerThreshold int) (*normalizer.Config, error) {
	if headerThreshold < 0 || headerThreshold > 100 {
		return nil, fmt.Errorf("header threshold must be within 0-100, got %d", headerThreshold)
	}
	config := normalizer.DefaultConfig()
	config.HeaderThreshold = headerThreshold
	return config, nil
}

// CreateLoggerConfig builds the logger configuration. Verbose mode lowers
// the level to debug.
func CreateLoggerConfig(verbose bool) *logger.Config {
	config := logger.DefaultConfig()
	if verbose {
		config.Level = "debug"
	}
	return config
}
