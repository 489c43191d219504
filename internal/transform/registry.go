package transform

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dyne/cifrado/internal/config"
)

type Factory func(cfg *config.TransformConfig) (Transformer, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a transformer type available to Build. Names are matched
// case-insensitively; registering an existing name replaces it.
func Register(name string, factory Factory) {
	if name == "" || factory == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

func lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// Names lists the registered transformer types in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("encode", func(*config.TransformConfig) (Transformer, error) {
		return NewEncode(), nil
	})
	Register("decode", func(*config.TransformConfig) (Transformer, error) {
		return NewDecode(), nil
	})
	Register("shift", func(cfg *config.TransformConfig) (Transformer, error) {
		if cfg.Amount == nil {
			return nil, fmt.Errorf("shift requires amount")
		}
		return NewShift(*cfg.Amount), nil
	})
	Register("setnull", func(*config.TransformConfig) (Transformer, error) {
		return &SetNull{}, nil
	})
	Register("setvalue", func(cfg *config.TransformConfig) (Transformer, error) {
		return NewSetValue(cfg.Value), nil
	})
}
