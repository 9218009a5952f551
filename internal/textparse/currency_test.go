package textparse

import "testing"

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"$31,500", 31500, true},
		{"$1,200.50", 1200.50, true},
		{"50,000 mi.", 50000, true},
		{"51,000 mi", 51000, true},
		{"USD 99", 99, true},
		{"", 0, false},
		{"call for price", 0, false},
		{"1.2.3", 0, false},
		{".", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseCurrency(tt.raw)
		if ok != tt.wantOK {
			t.Errorf("ParseCurrency(%q) ok = %v; want %v", tt.raw, ok, tt.wantOK)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCurrency(%q) = %.2f; want %.2f", tt.raw, got, tt.want)
		}
	}
}
