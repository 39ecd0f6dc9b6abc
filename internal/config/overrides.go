package config

import (
	"fmt"

	"dario.cat/mergo"
)

// Apply merges command-line overrides onto the loaded configuration. Only
// non-zero fields in overrides replace existing values, so boolean flags can
// switch features on but not off; callers clear those explicitly.
func (c *Config) Apply(overrides Config) error {
	if err := mergo.Merge(c, overrides, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge overrides: %w", err)
	}
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}
