package utils

import "testing"

func TestOptionGetString(t *testing.T) {
	opts := Option{"listen.language": "en-US", "listen.sample_rate": 16000}

	v, err := opts.GetString("listen.language")
	if err != nil || v != "en-US" {
		t.Errorf("expected en-US, got %q (err %v)", v, err)
	}
	if _, err := opts.GetString("missing"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := opts.GetString("listen.sample_rate"); err == nil {
		t.Error("expected error for non-string value")
	}
}

func TestOptionGetInt(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected int
		wantErr  bool
	}{
		{"int", 8, 8, false},
		{"int64", int64(9), 9, false},
		{"json float", float64(16000), 16000, false},
		{"string", "10", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Option{"k": tt.value}
			v, err := opts.GetInt("k")
			if tt.wantErr != (err != nil) {
				t.Fatalf("wantErr=%t, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && v != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, v)
			}
		})
	}
}

func TestOptionGetStringSlice(t *testing.T) {
	opts := Option{
		"typed":   []string{"a", "b"},
		"decoded": []interface{}{"x", "y"},
		"mixed":   []interface{}{"x", 1},
	}
	if v, err := opts.GetStringSlice("typed"); err != nil || len(v) != 2 {
		t.Errorf("typed slice: %v %v", v, err)
	}
	if v, err := opts.GetStringSlice("decoded"); err != nil || v[1] != "y" {
		t.Errorf("decoded slice: %v %v", v, err)
	}
	if _, err := opts.GetStringSlice("mixed"); err == nil {
		t.Error("expected error for mixed slice")
	}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"", true},
		{"   ", true},
		{"\t\n", true},
		{"hello", false},
		{" hello ", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if IsEmpty(tt.input) != tt.expected {
				t.Errorf("expected %t", tt.expected)
			}
		})
	}
}
