package mock

import "testing"

// TestMockify verifies the alternating-case transform.
func TestMockify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "hello", "hElLo"},
		{"mixed input case", "HELLO", "hElLo"},
		{"punctuation keeps rhythm", "no, way!", "nO, wAy!"},
		{"digits pass through", "abc123def", "aBc123DeF"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mockify(tt.in); got != tt.want {
				t.Errorf("Mockify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestNormalizeName verifies mention decoration is stripped.
func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dave", "dave"},
		{"@Dave", "dave"},
		{"<@12345>", "12345"},
		{"  dave  ", "dave"},
	}

	for _, tt := range tests {
		if got := normalizeName(tt.in); got != tt.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestContainsLink verifies link detection exempts URL messages.
func TestContainsLink(t *testing.T) {
	if !containsLink("check https://example.com out") {
		t.Error("https link not detected")
	}
	if !containsLink("HTTP://EXAMPLE.COM") {
		t.Error("uppercase link not detected")
	}
	if containsLink("no links here") {
		t.Error("false positive")
	}
}
