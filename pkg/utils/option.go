// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package utils

import "fmt"

// Option is a loosely-typed bag of provider/model options keyed by dotted
// paths ("listen.language", "listen.model"). Callers use the typed getters
// and fall back to their own defaults on error.
type Option map[string]interface{}

// GetString returns the option value as a string.
func (o Option) GetString(key string) (string, error) {
	v, ok := o[key]
	if !ok {
		return "", fmt.Errorf("option %q not set", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q is not a string", key)
	}
	return s, nil
}

// GetBool returns the option value as a bool.
func (o Option) GetBool(key string) (bool, error) {
	v, ok := o[key]
	if !ok {
		return false, fmt.Errorf("option %q not set", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %q is not a bool", key)
	}
	return b, nil
}

// GetInt returns the option value as an int. JSON-decoded numbers arrive as
// float64 and are accepted.
func (o Option) GetInt(key string) (int, error) {
	v, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("option %q not set", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("option %q is not a number", key)
}

// GetFloat returns the option value as a float64.
func (o Option) GetFloat(key string) (float64, error) {
	v, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("option %q not set", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	return 0, fmt.Errorf("option %q is not a number", key)
}

// GetStringSlice returns the option value as a string slice. Accepts both
// []string and []interface{} (JSON decoding).
func (o Option) GetStringSlice(key string) ([]string, error) {
	v, ok := o[key]
	if !ok {
		return nil, fmt.Errorf("option %q not set", key)
	}
	switch vs := v.(type) {
	case []string:
		return vs, nil
	case []interface{}:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("option %q contains a non-string", key)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("option %q is not a list", key)
}
