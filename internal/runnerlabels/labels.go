// Package runnerlabels converts GitHub-hosted runner labels to the
// series labels the GitHub runner charm uses. The runner charm labels
// machines "jammy" where GitHub says "ubuntu-22.04", so workflows that
// target self-hosted runners need their labels translated.
package runnerlabels

import (
	"encoding/json"
	"errors"
	"strings"
)

var errParsingLabels = errors.New("parsing runner labels")

// seriesMapping translates GitHub's ubuntu labels to runner charm series
// labels. Anything unlisted passes through unchanged.
var seriesMapping = map[string]string{
	"ubuntu-latest": "jammy",
	"ubuntu-22.04":  "jammy",
	"ubuntu-20.04":  "focal",
}

// Convert maps each GitHub label to its runner charm equivalent.
func Convert(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if series, ok := seriesMapping[label]; ok {
			out = append(out, series)

			continue
		}

		out = append(out, label)
	}

	return out
}

// Parse reads labels from a JSON array or a comma separated list.
func Parse(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []string{}, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		out := []string{}
		if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
			return nil, errors.Join(err, errParsingLabels)
		}

		return out, nil
	}

	out := []string{}
	for _, field := range strings.Split(trimmed, ",") {
		if label := strings.TrimSpace(field); label != "" {
			out = append(out, label)
		}
	}

	return out, nil
}
