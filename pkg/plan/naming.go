package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Artifact name grammar: segments joined by nameSeparator. A plan artifact
// is "<id>[__identifier]__plan" and a build output artifact is
// "<id>[__identifier]__build__output__<type>__<name>". Generated ids are
// timestamp prefixed so reverse lexicographic order picks the newest.
const (
	nameSeparator     = "__"
	planSegment       = "plan"
	buildSegment      = "build"
	outputSegment     = "output"
	generatedIDRandom = 8
)

// disallowedNameChars are the characters the artifact service rejects in
// artifact names. Sanitization replaces each with '-'.
const disallowedNameChars = `":<>|*?/\` + "\r\n"

// NewGeneratedID returns a fresh run-scoped plan identifier.
func NewGeneratedID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:generatedIDRandom]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), random)
}

// SanitizeName replaces every character not allowed in artifact names
// with '-'. Sanitizing an already sanitized name is a no-op.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(disallowedNameChars, r) {
			return '-'
		}
		return r
	}, name)
}

// PlanArtifactName returns the artifact name a plan is stored under.
func PlanArtifactName(id, identifier string) string {
	return joinSegments(id, identifier, planSegment)
}

// IsPlanArtifactName reports whether an artifact name denotes a plan, and
// when an identifier is given, whether it belongs to that identifier.
func IsPlanArtifactName(name, identifier string) bool {
	if !strings.HasSuffix(name, nameSeparator+planSegment) {
		return false
	}
	if identifier == "" {
		return true
	}
	return strings.Contains(name, nameSeparator+SanitizeName(identifier)+nameSeparator)
}

// OutputName returns the artifact name for one build entry's output.
func OutputName(id, identifier string, buildType BuildType, name string) string {
	return joinSegments(id, identifier, buildSegment, outputSegment, string(buildType), name)
}

func joinSegments(id, identifier string, rest ...string) string {
	segments := make([]string, 0, len(rest)+2)
	segments = append(segments, id)
	if identifier != "" {
		segments = append(segments, identifier)
	}
	segments = append(segments, rest...)
	return SanitizeName(strings.Join(segments, nameSeparator))
}
