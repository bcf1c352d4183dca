package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"garbage", true, true},
		{"garbage", false, false},
		{" true ", false, true},
	}
	for _, tt := range tests {
		t.Setenv("CLIENTFLOW_TEST_FLAG", tt.value)
		if got := ParseBoolEnv("CLIENTFLOW_TEST_FLAG", tt.defaultValue); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
		}
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("CLIENTFLOW_TEST_VALUE", "")
	if got := EnvOrDefault("CLIENTFLOW_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
	t.Setenv("CLIENTFLOW_TEST_VALUE", "set")
	if got := EnvOrDefault("CLIENTFLOW_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("expected set, got %q", got)
	}
}
