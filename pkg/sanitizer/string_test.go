package sanitizer

import (
	"reflect"
	"testing"
)

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "basic trim",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "multiple spaces",
			input: "Mumbai    Strikers",
			want:  "Mumbai Strikers",
		},
		{
			name:  "tabs and newlines",
			input: "Pune\t\nPanthers",
			want:  "Pune Panthers",
		},
		{
			name:  "preserve special characters",
			input: " Café & Turf™ ",
			want:  "Café & Turf™",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ravi.K@Example.COM "); got != "ravi.k@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestNormalizeTrackingNumber(t *testing.T) {
	tests := map[string]string{
		" trk-abc 123 ": "TRK-ABC123",
		"TRK-1":         "TRK-1",
		"":              "",
	}
	for in, want := range tests {
		if got := NormalizeTrackingNumber(in); got != want {
			t.Errorf("NormalizeTrackingNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeLabels(t *testing.T) {
	got := NormalizeLabels([]string{" Cricket", "CRICKET", "", "table  tennis", "Football"})
	want := []string{"cricket", "table tennis", "football"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeLabels = %v, want %v", got, want)
	}

	if got := NormalizeLabels(nil); len(got) != 0 || got == nil {
		t.Errorf("NormalizeLabels(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestNormalizeAddressLine(t *testing.T) {
	if got := NormalizeAddressLine("  12,  MG   Road "); got != "12, MG Road" {
		t.Errorf("NormalizeAddressLine = %q", got)
	}
	if got := NormalizePostalCode(" 560 001 "); got != "560001" {
		t.Errorf("NormalizePostalCode = %q", got)
	}
}
