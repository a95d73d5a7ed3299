package reconcile

import (
	"testing"

	"github.com/lhn-coaching/coachsync/internal/config"
)

func TestNormalizePay(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"$250.00", "$250.00"},
		{" $125.00 ", "$125.00"},
		{"125", "$125.00"},
		{"99.5", "$99.50"},
		{"1,250", "$1,250.00"},
		{"one hundred", "$100.00"},
		{"", "$100.00"},
		{"-5", "$100.00"},
		{"NaN", "$100.00"},
	}

	for _, tt := range tests {
		if got := NormalizePay(tt.raw, "$100.00"); got != tt.want {
			t.Errorf("NormalizePay(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestResolvePay(t *testing.T) {
	cfg := config.Default()
	cfg.Coaches = []config.Coach{
		{Sheet: "Coach: A", Pay: "$250.00"},
		{Sheet: "Coach: B", Pay: "125"},
		{Sheet: "Coach: C", Pay: "ask Olivia"},
		{Sheet: "Coach: D"},
	}

	tests := []struct {
		coach string
		want  string
	}{
		{"Coach: A", "$250.00"},
		{"Coach: B", "$125.00"},
		{"Coach: C", "$100.00"},
		{"Coach: D", "$100.00"},
		{"Coach: Unknown", "$100.00"},
	}
	for _, tt := range tests {
		if got := ResolvePay(cfg, tt.coach); got != tt.want {
			t.Errorf("ResolvePay(%q) = %q, want %q", tt.coach, got, tt.want)
		}
	}
}
