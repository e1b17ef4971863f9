package amount

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"5000", "5000", true},
		{"  5000 ", "5000", true},
		{"5.000", "5000", true},
		{"1.500.000", "1500000", true},
		{"1.500,50", "1500.5", true},
		{"1,500.50", "1500.5", true},
		{"2,5", "2.5", true},
		{"1,000,000", "1000000", true},
		{"12.5", "12.5", true},
		{"5.30", "5.3", true},
		{"R$ 2.000", "2000", true},
		{"r$10.000,00", "10000", true},
		{"US$ 500", "500", true},
		{"500 usdt", "500", true},
		{"10k", "10000", true},
		{"1,5k", "1500", true},
		{"10 mil", "10000", true},
		{"2kk", "2000000", true},
		{"1.2mi", "1200000", true},
		{"0", "0", true},
		{"", "0", false},
		{"abc", "0", false},
		{"-50", "0", false},
		{"10k?", "0", false},
		{"quero 5000", "0", false},
		{"5000 reais", "0", false},
		{",", "0", false},
		{"5.", "0", false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if ok != tt.wantOK {
			t.Errorf("Parse(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
