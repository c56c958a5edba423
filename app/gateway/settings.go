package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrSettingMissing is wrapped by every required-setting failure. Settings
// lookups run before any network call, so a misconfigured store fails the
// operation immediately.
var ErrSettingMissing = errors.New("required setting is missing")

// Settings is the flat per-store, per-gateway configuration mapping. Keys are
// gateway-defined; values are read-only for the duration of a request.
type Settings map[string]string

func (s Settings) Get(key string) string {
	return strings.TrimSpace(s[key])
}

func (s Settings) Required(key string) (string, error) {
	value := s.Get(key)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrSettingMissing, key)
	}
	return value, nil
}

func (s Settings) Bool(key string) bool {
	switch strings.ToLower(s.Get(key)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// TestMode reports whether the gateway should talk to its sandbox endpoints.
func (s Settings) TestMode() bool {
	return strings.ToLower(s.Get("mode")) != "live"
}

// Merge layers overrides on top of s without mutating either side.
func (s Settings) Merge(overrides Settings) Settings {
	merged := make(Settings, len(s)+len(overrides))
	for key, value := range s {
		merged[key] = value
	}
	for key, value := range overrides {
		if strings.TrimSpace(value) != "" {
			merged[key] = value
		}
	}
	return merged
}

// OptionGroup collects every key carrying the given prefix into a JSON object
// keyed by the remainder of the name. Gateways use it to pass merchant-tuned
// option blobs through to their APIs without each option becoming a required,
// schema-validated setting.
func (s Settings) OptionGroup(prefix string) (json.RawMessage, error) {
	options := map[string]string{}
	for key, value := range s {
		if !strings.HasPrefix(strings.ToLower(key), strings.ToLower(prefix)) {
			continue
		}
		name := strings.TrimSpace(key[len(prefix):])
		if name == "" {
			continue
		}
		options[name] = value
	}
	if len(options) == 0 {
		return nil, nil
	}
	return json.Marshal(options)
}
