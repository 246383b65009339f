package matcher

import "fmt"

// DefaultNameThreshold is the 0-100 partial-similarity score a candidate
// pair's names must exceed to be accepted.
const DefaultNameThreshold = 80

// MatchingConfig holds the tunables for the automatic matching pass.
type MatchingConfig struct {
	// NameThreshold is the strict lower bound on the partial-ratio score
	// of the two name keys. Pairs scoring exactly the threshold are rejected.
	NameThreshold int
}

// DefaultMatchingConfig returns the standard matching configuration.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{NameThreshold: DefaultNameThreshold}
}

// Validate checks that the configuration is usable.
func (c *MatchingConfig) Validate() error {
	if c.NameThreshold < 0 || c.NameThreshold > 100 {
		return fmt.Errorf("name threshold must be within 0-100, got %d", c.NameThreshold)
	}
	return nil
}
