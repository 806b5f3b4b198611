package spread

import (
	"regexp"
	"strings"
)

var (
	// rstCodeBlock captures the indented body of a code-block
	// directive, allowing one blank line between directive and body.
	rstCodeBlock = regexp.MustCompile(`(?m)^\.\. code-block::[^\n]*\n\n?((?:[ \t]+.+(?:\n|$))+)`)

	rstSpreadStart = regexp.MustCompile(`(?m)^\.\. SPREAD[ \t\r]*$`)
	rstSpreadEnd   = regexp.MustCompile(`(?m)^\.\. SPREAD END[ \t\r]*$`)
	rstSpreadBlock = regexp.MustCompile(`(?ms)^\.\. SPREAD[ \t\r]*\n(.*?)^\.\. SPREAD END[ \t\r]*$`)

	rstSkipStart = regexp.MustCompile(`(?m)^\.\. SPREAD SKIP[ \t\r]*$`)
	rstSkipEnd   = regexp.MustCompile(`(?m)^\.\. SPREAD SKIP END[ \t\r]*$`)
	rstSkipBlock = regexp.MustCompile(`(?ms)^\.\. SPREAD SKIP[ \t\r]*\n(.*?)^\.\. SPREAD SKIP END[ \t\r]*$`)
)

// rstCommands extracts command blocks from reStructuredText content.
func rstCommands(content string) ([]string, error) {
	spreadBlocks, err := rstSpreadBlocks(content)
	if err != nil {
		return nil, err
	}

	skips, err := rstSkipRanges(content)
	if err != nil {
		return nil, err
	}

	blocks := []block{}

	// i. code-block directive bodies, dedented.
	for _, m := range rstCodeBlock.FindAllStringSubmatchIndex(content, -1) {
		if containsPos(skips, m[0]) {
			continue
		}

		if cmd := dedent(content[m[2]:m[3]]); cmd != "" {
			blocks = append(blocks, block{pos: m[0], commands: cmd})
		}
	}

	// ii. SPREAD comment blocks outside SKIP ranges.
	for _, b := range spreadBlocks {
		if containsPos(skips, b.pos) {
			continue
		}

		blocks = append(blocks, b)
	}

	return commandsOf(blocks), nil
}

// rstSpreadBlocks extracts .. SPREAD comment blocks, stripping the
// leading comment dots from each line before dedenting.
func rstSpreadBlocks(content string) ([]block, error) {
	if _, err := pairMarkers(matchStarts(rstSpreadStart, content), matchStarts(rstSpreadEnd, content), "SPREAD"); err != nil {
		return nil, err
	}

	blocks := []block{}

	for _, m := range rstSpreadBlock.FindAllStringSubmatchIndex(content, -1) {
		lines := strings.Split(content[m[2]:m[3]], "\n")
		for i, line := range lines {
			switch {
			case strings.HasPrefix(line, ".. "):
				lines[i] = line[3:]
			case strings.HasPrefix(line, ".."):
				lines[i] = line[2:]
			}
		}

		if cmd := dedent(strings.Join(lines, "\n")); cmd != "" {
			blocks = append(blocks, block{pos: m[0], commands: cmd})
		}
	}

	return blocks, nil
}

// rstSkipRanges validates and pairs SPREAD SKIP markers into exclusion
// ranges.
func rstSkipRanges(content string) ([]span, error) {
	if _, err := pairMarkers(matchStarts(rstSkipStart, content), matchStarts(rstSkipEnd, content), "SPREAD SKIP"); err != nil {
		return nil, err
	}

	spans := []span{}
	for _, m := range rstSkipBlock.FindAllStringIndex(content, -1) {
		spans = append(spans, span{start: m[0], end: m[1]})
	}

	return spans, nil
}

// matchStarts returns the start offset of every match.
func matchStarts(re *regexp.Regexp, content string) []int {
	out := []int{}
	for _, m := range re.FindAllStringIndex(content, -1) {
		out = append(out, m[0])
	}

	return out
}
