package feedback

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	scorePrefix = "Overall score:"
	// Markdown hard line break.
	lineBreak = "  \n"
)

var (
	questionLine = regexp.MustCompile(`^Q\d+:\s*(.*)$`)
	scoreValue   = regexp.MustCompile(`^\s*\**\s*(\d+(?:\.\d+)?)`)
	labels       = []string{"Model answer:", "User answer:", "Missing areas:"}
)

// Report is the outcome of one evaluation.
type Report struct {
	Mode Mode
	// Raw is the evaluator output as received.
	Raw string
	// Text is Raw after Format.
	Text string
	// Score is NaN when the evaluator did not give a numeric overall score.
	Score float64
}

func NewReport(mode Mode, raw string) *Report {
	return &Report{
		Mode:  mode,
		Raw:   raw,
		Text:  Format(raw),
		Score: parseScore(raw),
	}
}

// HasScore reports whether a numeric overall score was found.
func (r *Report) HasScore() bool {
	return r != nil && !math.IsNaN(r.Score)
}

// Format segments raw evaluator output for display.
//
// The overall score gets a paragraph of its own, "Qn:" prefixes are dropped and
// the question starts a new paragraph, and the fixed answer labels are set in
// bold. Remaining lines keep their indentation. Lines are joined with Markdown
// hard line breaks.
func Format(raw string) string {
	var lines []string

	paragraph := func() {
		if len(lines) > 0 && lines[len(lines)-1] != "" {
			lines = append(lines, "")
		}
	}

	for _, original := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(original)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, scorePrefix) {
			paragraph()
			lines = append(lines, line, "")
			continue
		}

		if match := questionLine.FindStringSubmatch(line); match != nil {
			paragraph()
			lines = append(lines, match[1])
			continue
		}

		if emphasized, ok := emphasizeLabel(line); ok {
			lines = append(lines, emphasized)
			continue
		}

		// Trailing whitespace would merge with the line break marker.
		lines = append(lines, strings.TrimRight(original, " \t\r"))
	}

	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return strings.Join(lines, lineBreak)
}

func emphasizeLabel(line string) (string, bool) {
	for _, label := range labels {
		if rest, ok := strings.CutPrefix(line, label); ok {
			return "**" + label + "**" + rest, true
		}
	}
	return line, false
}

func parseScore(raw string) float64 {
	for _, line := range strings.Split(raw, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), scorePrefix)
		if !ok {
			continue
		}
		match := scoreValue.FindStringSubmatch(rest)
		if match == nil {
			return math.NaN()
		}
		score, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return math.NaN()
		}
		return score
	}
	return math.NaN()
}
