package message

import (
	"context"
	"time"
)

// ConfigRepository persists the singleton message configuration
type ConfigRepository interface {
	// Get returns the active configuration, or ErrConfigNotFound when none
	// was ever saved
	Get(ctx context.Context) (*Config, error)

	// Save upserts the configuration
	Save(ctx context.Context, cfg *Config) error

	// StampAutoRun records the moment of the latest automatic run
	StampAutoRun(ctx context.Context, at time.Time) error
}

// MappingRepository persists the template variable mappings
type MappingRepository interface {
	List(ctx context.Context) ([]FieldMapping, error)

	// Replace swaps the whole mapping set atomically
	Replace(ctx context.Context, mappings []FieldMapping) error
}
