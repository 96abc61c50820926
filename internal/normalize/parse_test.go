package normalize

import (
	"testing"
	"time"
)

func TestParseAmountMinor(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"-4.50", -450, false},
		{"4.50", 450, false},
		{"$1,250.00", 125000, false},
		{"£12.34", 1234, false},
		{"(4.50)", -450, false},
		{" 100 ", 10000, false},
		{"0.005", 1, false},
		{"", 0, true},
		{"abc", 0, true},
		{"12.3.4", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmountMinor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAmountMinor(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"01/15/2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"1/5/24", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), false},
		{"12/31/99", time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"13/01/2024", time.Time{}, true},
		{"02/30/2024", time.Time{}, true},
		{"2024-02-30", time.Time{}, true},
		{"15 Jan 2024", time.Time{}, true},
		{"", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatMinor(t *testing.T) {
	if got := FormatMinor(-450); got != "-4.50" {
		t.Errorf("FormatMinor(-450) = %q", got)
	}
	if got := FormatMinor(125000); got != "1250.00" {
		t.Errorf("FormatMinor(125000) = %q", got)
	}
}
