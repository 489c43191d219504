package transform

import (
	"fmt"
	"strings"

	"github.com/dyne/cifrado/internal/config"
)

// Build returns the transformer described by cfg, or nil for a nil cfg.
func Build(cfg *config.TransformConfig) (Transformer, error) {
	if cfg == nil {
		return nil, nil
	}
	factory, ok := lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unknown transformer type: %s (known: %s)", cfg.Type, strings.Join(Names(), ", "))
	}
	tr, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Type, err)
	}
	return tr, nil
}
