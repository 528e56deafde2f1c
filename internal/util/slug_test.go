package util

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple title",
			input:    "Hello World",
			expected: "hello-world",
		},
		{
			name:     "with special characters",
			input:    "Widget, Deluxe!",
			expected: "widget-deluxe",
		},
		{
			name:     "with numbers",
			input:    "Widget 2000",
			expected: "widget-2000",
		},
		{
			name:     "with accents",
			input:    "Café résumé",
			expected: "cafe-resume",
		},
		{
			name:     "with multiple spaces",
			input:    "Hello   World",
			expected: "hello-world",
		},
		{
			name:     "with leading/trailing spaces",
			input:    "  Hello World  ",
			expected: "hello-world",
		},
		{
			name:     "german umlauts",
			input:    "Über München",
			expected: "uber-munchen",
		},
		{
			name:     "all special characters",
			input:    "!@#$%^&*()",
			expected: "",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsValidTLD(t *testing.T) {
	valid := []string{"nl", "de", "be", "com", "info"}
	invalid := []string{"", "n", "NL", "too-long", "a1", "white space"}

	for _, s := range valid {
		if !IsValidTLD(s) {
			t.Errorf("IsValidTLD(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if IsValidTLD(s) {
			t.Errorf("IsValidTLD(%q) = true, want false", s)
		}
	}
}

func TestIsValidLangCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"nl", true},
		{"de", true},
		{"NL", false},
		{"nld", false},
		{"n", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidLangCode(tt.code); got != tt.want {
			t.Errorf("IsValidLangCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"widget-2000", true},
		{"widget", true},
		{"", false},
		{"-leading", false},
		{"trailing-", false},
		{"double--hyphen", false},
		{"Upper", false},
	}

	for _, tt := range tests {
		if got := IsValidSlug(tt.slug); got != tt.want {
			t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
		}
	}
}
