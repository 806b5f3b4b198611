package spread

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	mdSpreadOpen   = "<!-- SPREAD"
	mdCommentClose = "-->"
	mdSkipStart    = "<!-- SPREAD SKIP -->"
	mdSkipEnd      = "<!-- SPREAD SKIP END -->"
)

// mdFencedRegion matches a region delimited by four or more backticks.
// Three-backtick blocks inside such a region are documentation samples,
// not commands.
var mdFencedRegion = regexp.MustCompile("(?s)````+[^\n]*\n.*?````+")

// markdownCommands extracts command blocks from markdown content.
func markdownCommands(content string) ([]string, error) {
	spreadBlocks, err := markdownSpreadBlocks(content)
	if err != nil {
		return nil, err
	}

	skips, err := markdownSkipRanges(content)
	if err != nil {
		return nil, err
	}

	// i. Fenced 4+ backtick regions and SKIP ranges exclude the code
	// blocks they fully contain.
	excluded := []span{}
	for _, m := range mdFencedRegion.FindAllStringIndex(content, -1) {
		excluded = append(excluded, span{start: m[0], end: m[1]})
	}
	excluded = append(excluded, skips...)

	blocks := []block{}

	// ii. Three-backtick fences carry the commands, except admonition
	// blocks whose info string starts with {.
	for _, f := range markdownFences(content) {
		if strings.HasPrefix(strings.TrimSpace(f.info), "{") {
			continue
		}
		if containsRange(excluded, f.start, f.end) {
			continue
		}

		if cmd := strings.TrimSpace(f.body); cmd != "" {
			blocks = append(blocks, block{pos: f.start, commands: cmd})
		}
	}

	// iii. SPREAD comment blocks join in, unless a SKIP range covers
	// their start.
	for _, b := range spreadBlocks {
		if containsPos(skips, b.pos) {
			continue
		}

		blocks = append(blocks, b)
	}

	return commandsOf(blocks), nil
}

// fence is a paired three-backtick code block.
type fence struct {
	start, end int
	info       string
	body       string
}

// markdownFences pairs runs of exactly three backticks into code
// blocks. The info string runs to the end of the opening line, so a
// closing run must start after that newline; backticks inside longer
// runs never delimit a block.
func markdownFences(content string) []fence {
	runs := backtickRuns(content, 3)

	fences := []fence{}

	for i := 0; i < len(runs); {
		open := runs[i]

		nl := strings.IndexByte(content[open+3:], '\n')
		if nl == -1 {
			break
		}
		bodyStart := open + 3 + nl + 1

		j := i + 1
		for j < len(runs) && runs[j] < bodyStart {
			j++
		}
		if j == len(runs) {
			break
		}

		fences = append(fences, fence{
			start: open,
			end:   runs[j] + 3,
			info:  content[open+3 : bodyStart-1],
			body:  content[bodyStart:runs[j]],
		})

		i = j + 1
	}

	return fences
}

// backtickRuns returns the start of every maximal backtick run of
// exactly n characters.
func backtickRuns(content string, n int) []int {
	out := []int{}

	for i := 0; i < len(content); {
		if content[i] != '`' {
			i++

			continue
		}

		j := i
		for j < len(content) && content[j] == '`' {
			j++
		}

		if j-i == n {
			out = append(out, i)
		}

		i = j
	}

	return out
}

// markdownSpreadBlocks extracts <!-- SPREAD --> comment blocks. Every
// SPREAD comment must close before the next spread marker of any kind
// opens.
func markdownSpreadBlocks(content string) ([]block, error) {
	starts := []int{}
	for _, pos := range indexesOf(content, mdSpreadOpen) {
		if strings.HasPrefix(content[pos+len(mdSpreadOpen):], " SKIP") {
			continue
		}

		starts = append(starts, pos)
	}

	for _, pos := range starts {
		rest := content[pos:]

		closing := strings.Index(rest, mdCommentClose)
		if closing == -1 {
			return nil, fmt.Errorf("%w: opened at position %d", errUnclosedComment, pos)
		}

		if next := strings.Index(rest[1:], mdSpreadOpen); next != -1 && closing > next+1 {
			return nil, fmt.Errorf("%w: opened at position %d", errUnclosedComment, pos)
		}
	}

	blocks := []block{}

	for _, pos := range starts {
		after := pos + len(mdSpreadOpen)

		// The commands start on the line after the marker; a comment
		// closed on the marker line carries none.
		rest := content[after:]
		ws := rest[:len(rest)-len(strings.TrimLeft(rest, " \t\r\n\v\f"))]

		nl := strings.LastIndex(ws, "\n")
		if nl == -1 {
			continue
		}
		bodyStart := after + nl + 1

		closing := strings.Index(content[bodyStart:], mdCommentClose)
		if closing == -1 {
			continue
		}

		if cmd := strings.TrimSpace(content[bodyStart : bodyStart+closing]); cmd != "" {
			blocks = append(blocks, block{pos: pos, commands: cmd})
		}
	}

	return blocks, nil
}

// markdownSkipRanges validates and pairs SPREAD SKIP markers into
// exclusion ranges covering the end marker itself.
func markdownSkipRanges(content string) ([]span, error) {
	pairs, err := pairMarkers(indexesOf(content, mdSkipStart), indexesOf(content, mdSkipEnd), "SPREAD SKIP")
	if err != nil {
		return nil, err
	}

	for i := range pairs {
		pairs[i].end += len(mdSkipEnd)
	}

	return pairs, nil
}
