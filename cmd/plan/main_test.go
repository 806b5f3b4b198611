//go:build unit

package main

import (
	"testing"
)

func TestParseUploadImage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    bool
		wantErr bool
	}{
		{"empty defaults to false", "", false, false},
		{"true", "true", true, false},
		{"false", "false", false, false},
		{"yaml style True", "True", true, false},
		{"numeric one", "1", true, false},
		{"garbage", "yes please", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUploadImage(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseUploadImage(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseUploadImage(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
