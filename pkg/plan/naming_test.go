//go:build unit

package plan

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean_name_unchanged",
			input:    "1700000000000-abcd1234__build__output__charm__foo",
			expected: "1700000000000-abcd1234__build__output__charm__foo",
		},
		{
			name:     "slashes_replaced",
			input:    "path/to\\thing",
			expected: "path-to-thing",
		},
		{
			name:     "forbidden_punctuation_replaced",
			input:    `a:b<c>d|e*f?g"h`,
			expected: "a-b-c-d-e-f-g-h",
		},
		{
			name:     "newlines_replaced",
			input:    "a\r\nb",
			expected: "a--b",
		},
		{
			name:     "empty_string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeName(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, got, tt.expected)
			}

			// Sanitization must be idempotent.
			if again := SanitizeName(got); again != got {
				t.Errorf("SanitizeName not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		buildType  BuildType
		buildName  string
		expected   string
	}{
		{
			name:      "charm_without_identifier",
			buildType: TypeCharm,
			buildName: "foo",
			expected:  "id__build__output__charm__foo",
		},
		{
			name:      "docker_image_without_identifier",
			buildType: TypeDockerImage,
			buildName: "foo",
			expected:  "id__build__output__docker-image__foo",
		},
		{
			name:       "rock_with_identifier",
			identifier: "arm64",
			buildType:  TypeRock,
			buildName:  "bar",
			expected:   "id__arm64__build__output__rock__bar",
		},
		{
			name:      "name_is_sanitized",
			buildType: TypeFile,
			buildName: "data/archive",
			expected:  "id__build__output__file__data-archive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputName("id", tt.identifier, tt.buildType, tt.buildName)
			if got != tt.expected {
				t.Errorf("OutputName = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPlanArtifactName(t *testing.T) {
	if got := PlanArtifactName("id", ""); got != "id__plan" {
		t.Errorf("PlanArtifactName = %q, want %q", got, "id__plan")
	}
	if got := PlanArtifactName("id", "amd64"); got != "id__amd64__plan" {
		t.Errorf("PlanArtifactName = %q, want %q", got, "id__amd64__plan")
	}
}

func TestIsPlanArtifactName(t *testing.T) {
	tests := []struct {
		name         string
		artifactName string
		identifier   string
		expected     bool
	}{
		{"plan_no_identifier", "1700-aaaa__plan", "", true},
		{"build_output_is_not_plan", "1700-aaaa__build__output__charm__foo", "", false},
		{"plan_with_matching_identifier", "1700-aaaa__amd64__plan", "amd64", true},
		{"plan_with_other_identifier", "1700-aaaa__arm64__plan", "amd64", false},
		{"identifier_ignored_when_unset", "1700-aaaa__arm64__plan", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsPlanArtifactName(tt.artifactName, tt.identifier)
			if got != tt.expected {
				t.Errorf("IsPlanArtifactName(%q, %q) = %v, want %v",
					tt.artifactName, tt.identifier, got, tt.expected)
			}
		})
	}
}

func TestNewGeneratedID(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	id := NewGeneratedID(now)
	if !strings.HasPrefix(id, "1787659200000-") {
		t.Fatalf("generated id %q is not timestamp prefixed", id)
	}
	if len(id) != len("1787659200000-")+generatedIDRandom {
		t.Errorf("generated id %q has unexpected length", id)
	}

	// Newer timestamps must sort later so reverse lexicographic order
	// picks the newest id.
	older := NewGeneratedID(now.Add(-time.Hour))
	if !(older < id) {
		t.Errorf("expected %q < %q", older, id)
	}
}
