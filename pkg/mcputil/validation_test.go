//go:build unit

package mcputil_test

import (
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/charmci/charmci/pkg/mcputil"
)

func TestValidateRequired(t *testing.T) {
	for name, tc := range map[string]struct {
		fields   map[string]string
		wantText string
	}{
		"all fields present": {
			fields: map[string]string{
				"type":   "charm",
				"name":   "etcd",
				"output": "charm-etcd",
			},
		},
		"empty field reported": {
			fields: map[string]string{
				"type": "charm",
				"name": "",
			},
			wantText: "Operation failed: missing required field 'name'",
		},
		"no fields": {
			fields: map[string]string{},
		},
	} {
		t.Run(name, func(t *testing.T) {
			result := mcputil.ValidateRequired(tc.fields)

			if tc.wantText == "" {
				if result != nil {
					t.Fatalf("result = %v, want nil", result)
				}

				return
			}

			if result == nil || !result.IsError {
				t.Fatalf("result = %v, want an error result", result)
			}

			text, ok := result.Content[0].(*mcp.TextContent)
			if !ok || text.Text != tc.wantText {
				t.Errorf("text = %v, want %q", result.Content[0], tc.wantText)
			}
		})
	}
}

func TestValidateRequiredWithPrefix(t *testing.T) {
	result := mcputil.ValidateRequiredWithPrefix("Build failed", map[string]string{
		"output": "",
	})

	if result == nil || !result.IsError {
		t.Fatalf("result = %v, want an error result", result)
	}

	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok || !strings.HasPrefix(text.Text, "Build failed: ") {
		t.Errorf("text = %v, want the custom prefix", result.Content[0])
	}
}
