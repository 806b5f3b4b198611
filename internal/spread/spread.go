// Package spread turns tutorial documents into spread test tasks. It
// extracts the executable command blocks from a Markdown or
// reStructuredText file, honoring SPREAD include and skip markers, and
// writes them as a task.yaml the spread runner executes.
package spread

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TaskFileName is the file name spread expects for a task definition.
const TaskFileName = "task.yaml"

var (
	errGeneratingTask   = errors.New("generating spread task")
	errUnsupportedFile  = errors.New("unsupported tutorial file type")
	errUnpairedMarker   = errors.New("unpaired marker")
	errUnclosedComment  = errors.New("unclosed SPREAD comment block")
	errNothingToExecute = errors.New("tutorial contains no command blocks")
)

// ExtractCommands reads a Markdown or reStructuredText tutorial and
// returns its command blocks in document order.
func ExtractCommands(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(err, errGeneratingTask)
	}

	content := string(data)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return markdownCommands(content)
	case ".rst", ".rest":
		return rstCommands(content)
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedFile, filepath.Ext(path))
	}
}

// WriteTask writes the commands as a spread task definition and returns
// the path written. A directory output path gets task.yaml created
// inside it.
func WriteTask(commands []string, outputPath string) (string, error) {
	if len(commands) == 0 {
		return "", errNothingToExecute
	}

	if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
		outputPath = filepath.Join(outputPath, TaskFileName)
	} else if strings.HasSuffix(outputPath, "/") {
		outputPath = filepath.Join(outputPath, TaskFileName)
	}

	data, err := encodeTask(commands)
	if err != nil {
		return "", errors.Join(err, errGeneratingTask)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", errors.Join(err, errGeneratingTask)
	}

	return outputPath, nil
}

// encodeTask renders the task document. The execute script is a literal
// block scalar holding every command line in order.
func encodeTask(commands []string) ([]byte, error) {
	script := strings.Join(commands, "\n") + "\n"

	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "summary"},
			{Kind: yaml.ScalarNode, Value: "Tutorial test"},
			{Kind: yaml.ScalarNode, Value: "kill-timeout"},
			{Kind: yaml.ScalarNode, Value: "30m"},
			{Kind: yaml.ScalarNode, Value: "execute"},
			{Kind: yaml.ScalarNode, Value: script, Style: yaml.LiteralStyle},
		},
	}

	var buf strings.Builder

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return []byte(buf.String()), nil
}

// block is one extracted command block and where it starts in the
// document, so code blocks and SPREAD blocks interleave in source order.
type block struct {
	pos      int
	commands string
}

func commandsOf(blocks []block) []string {
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].pos < blocks[j].pos })

	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.commands)
	}

	return out
}

// span is a half-open [start, end) byte range in the document.
type span struct {
	start, end int
}

// containsPos reports whether any span contains the position.
func containsPos(spans []span, pos int) bool {
	for _, s := range spans {
		if s.start <= pos && pos < s.end {
			return true
		}
	}

	return false
}

// containsRange reports whether any span contains the whole range.
func containsRange(spans []span, start, end int) bool {
	for _, s := range spans {
		if s.start <= start && end <= s.end {
			return true
		}
	}

	return false
}

// pairMarkers validates that start and end marker positions nest
// properly, stack-wise, and returns the matched pairs.
func pairMarkers(starts, ends []int, name string) ([]span, error) {
	type marker struct {
		pos   int
		close bool
	}

	markers := make([]marker, 0, len(starts)+len(ends))
	for _, pos := range starts {
		markers = append(markers, marker{pos: pos, close: false})
	}
	for _, pos := range ends {
		markers = append(markers, marker{pos: pos, close: true})
	}

	sort.Slice(markers, func(i, j int) bool { return markers[i].pos < markers[j].pos })

	stack := []int{}
	pairs := []span{}

	for _, m := range markers {
		if !m.close {
			stack = append(stack, m.pos)

			continue
		}

		if len(stack) == 0 {
			return nil, fmt.Errorf("%w: closing %s marker at position %d has no opening marker",
				errUnpairedMarker, name, m.pos)
		}

		start := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pairs = append(pairs, span{start: start, end: m.pos})
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: %s marker at position %d is never closed",
			errUnpairedMarker, name, stack[0])
	}

	return pairs, nil
}

// indexesOf returns every occurrence of substr in content.
func indexesOf(content, substr string) []int {
	out := []int{}
	from := 0

	for {
		idx := strings.Index(content[from:], substr)
		if idx == -1 {
			return out
		}

		out = append(out, from+idx)
		from += idx + len(substr)
	}
}

// dedent removes the widest common leading whitespace of the non-empty
// lines and trims the result. Whitespace-only lines come out empty.
func dedent(raw string) string {
	lines := strings.Split(raw, "\n")

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " \t\v\f\r"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}

	if minIndent == -1 {
		return ""
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out[i] = line[minIndent:]
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
