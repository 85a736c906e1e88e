package models

import "encoding/json"

// The Advanced map arrives from JSON or YAML, so numeric values may be
// float64, int or json.Number depending on the decoder.

// AdvancedFloat extracts a float-valued advanced setting such as top_p.
func (c ProviderConfig) AdvancedFloat(key string) (float64, bool) {
	if c.Advanced == nil {
		return 0, false
	}
	if value, ok := c.Advanced[key]; ok {
		switch v := value.(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// AdvancedInt extracts an int-valued advanced setting such as context_window.
func (c ProviderConfig) AdvancedInt(key string) (int, bool) {
	if c.Advanced == nil {
		return 0, false
	}
	if value, ok := c.Advanced[key]; ok {
		switch v := value.(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return int(i), true
			}
		}
	}
	return 0, false
}

// AdvancedString extracts a string-valued advanced setting such as base_url.
func (c ProviderConfig) AdvancedString(key string) (string, bool) {
	if c.Advanced == nil {
		return "", false
	}
	if value, ok := c.Advanced[key]; ok {
		if str, ok := value.(string); ok && str != "" {
			return str, true
		}
	}
	return "", false
}

// AdvancedBool extracts a bool-valued advanced setting such as stream_response.
func (c ProviderConfig) AdvancedBool(key string) (bool, bool) {
	if c.Advanced == nil {
		return false, false
	}
	if value, ok := c.Advanced[key]; ok {
		if b, ok := value.(bool); ok {
			return b, true
		}
	}
	return false, false
}
