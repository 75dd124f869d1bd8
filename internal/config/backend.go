package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Backend persists the settings written by `problems config set`.
// Lookup returns the stored value converted to typ (string, int or bool);
// ok is false when the key has never been written.
type Backend interface {
	Lookup(key string, typ keyType) (val any, ok bool, err error)
	Store(key string, val any) error
	Remove(key string) error
}

// coerce converts a raw stored value into the Go type of typ. Backends that
// only keep strings (the defaults CLI, env vars) and the JSON file backend,
// which decodes numbers as float64, both funnel through here.
func coerce(key string, typ keyType, raw any) (any, error) {
	switch typ {
	case kString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", raw), nil
	case kInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		case float64:
			if v < math.MinInt || v > math.MaxInt || v != math.Trunc(v) {
				return nil, fmt.Errorf("value %v for %s is not a valid integer or is out of range", v, key)
			}
			return int(v), nil
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("invalid integer for %s: %w", key, err)
			}
			return i, nil
		}
	case kBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("invalid bool for %s: %w", key, err)
			}
			return b, nil
		}
	}
	return nil, fmt.Errorf("invalid type %T for %s", raw, key)
}
