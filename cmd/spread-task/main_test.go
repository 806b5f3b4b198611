//go:build unit

package main

import (
	"testing"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantTutorial string
		wantOutput   string
		wantErr      bool
	}{
		{
			name:         "tutorial only defaults output",
			args:         []string{"docs/tutorial.md"},
			wantTutorial: "docs/tutorial.md",
			wantOutput:   "task.yaml",
		},
		{
			name:         "tutorial and output",
			args:         []string{"docs/tutorial.rst", "spread/general/"},
			wantTutorial: "docs/tutorial.rst",
			wantOutput:   "spread/general/",
		},
		{
			name:         "flag tokens are skipped",
			args:         []string{"--verbose", "docs/tutorial.md"},
			wantTutorial: "docs/tutorial.md",
			wantOutput:   "task.yaml",
		},
		{
			name:    "no arguments",
			args:    []string{},
			wantErr: true,
		},
		{
			name:    "too many arguments",
			args:    []string{"a.md", "b.yaml", "c.yaml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tutorial, output, err := parseArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if tutorial != tt.wantTutorial || output != tt.wantOutput {
				t.Errorf("parseArgs(%v) = (%q, %q), want (%q, %q)",
					tt.args, tutorial, output, tt.wantTutorial, tt.wantOutput)
			}
		})
	}
}
