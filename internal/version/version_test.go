//go:build unit

package version_test

import (
	"strings"
	"testing"

	"github.com/charmci/charmci/internal/version"
)

func TestNew(t *testing.T) {
	info := version.New("get-plan")
	if info.ToolName != "get-plan" {
		t.Errorf("Expected ToolName 'get-plan', got '%s'", info.ToolName)
	}
	if info.Version != "dev" {
		t.Errorf("Expected Version 'dev', got '%s'", info.Version)
	}
	if info.CommitSHA != "unknown" {
		t.Errorf("Expected CommitSHA 'unknown', got '%s'", info.CommitSHA)
	}
	if info.BuildTimestamp != "unknown" {
		t.Errorf("Expected BuildTimestamp 'unknown', got '%s'", info.BuildTimestamp)
	}
}

func TestGet(t *testing.T) {
	info := version.New("build")
	info.Version = "v1.0.0"
	info.CommitSHA = "abc1234"
	info.BuildTimestamp = "2026-01-01T00:00:00Z"

	v, c, ts := info.Get()
	if v != "v1.0.0" {
		t.Errorf("Expected version 'v1.0.0', got '%s'", v)
	}
	if c != "abc1234" {
		t.Errorf("Expected commit 'abc1234', got '%s'", c)
	}
	if ts != "2026-01-01T00:00:00Z" {
		t.Errorf("Expected timestamp '2026-01-01T00:00:00Z', got '%s'", ts)
	}
}

func TestString(t *testing.T) {
	info := version.New("publish")
	info.Version = "v1.2.3"

	str := info.String()
	expected := "publish version v1.2.3"
	if str != expected {
		t.Errorf("Expected '%s', got '%s'", expected, str)
	}
}

func TestUserAgent(t *testing.T) {
	info := version.New("get-plan")
	info.Version = "v1.2.3"

	ua := info.UserAgent()
	if ua != "charmci-get-plan/v1.2.3" {
		t.Errorf("Expected 'charmci-get-plan/v1.2.3', got '%s'", ua)
	}
}

func TestStringContainsToolName(t *testing.T) {
	tests := []struct {
		name     string
		toolName string
		version  string
	}{
		{"plan", "plan", "v1.0.0"},
		{"scan-plan", "scan-plan", "v2.0.0"},
		{"spread-task", "spread-task", "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := version.New(tt.toolName)
			info.Version = tt.version

			str := info.String()
			if !strings.Contains(str, tt.toolName) {
				t.Errorf("String() should contain tool name '%s', got '%s'", tt.toolName, str)
			}
			if !strings.Contains(str, tt.version) {
				t.Errorf("String() should contain version '%s', got '%s'", tt.version, str)
			}
		})
	}
}
