// Package questions loads the curated question bank keyed by position.
package questions

import (
	"sort"
	"strings"
)

// Source tells which supplier produced a question.
type Source string

const (
	SourcePredefined Source = "predefined"
	SourceGenerated  Source = "generated"
)

// Record is a single curated question with its reference answer.
type Record struct {
	Question string `mapstructure:"question" json:"question" yaml:"question"`
	Answer   string `mapstructure:"answer" json:"answer" yaml:"answer"`
	Source   Source `mapstructure:"source" json:"source" yaml:"source"`
}

// Bank maps a position title to its curated questions.
type Bank map[string][]Record

// For returns a copy of the questions stored for position.
// Lookup is exact first and falls back to a case-insensitive match. When
// several titles match that way the first one in sorted order wins.
func (b Bank) For(position string) []Record {
	records, ok := b[position]
	if !ok {
		titles := make([]string, 0, len(b))
		for title := range b {
			titles = append(titles, title)
		}
		sort.Strings(titles)

		for _, title := range titles {
			if strings.EqualFold(strings.TrimSpace(title), strings.TrimSpace(position)) {
				records = b[title]
				break
			}
		}
	}

	if len(records) == 0 {
		return nil
	}

	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// Positions returns the sorted list of positions that have at least one question.
func (b Bank) Positions() []string {
	positions := make([]string, 0, len(b))
	for title, records := range b {
		if len(records) > 0 {
			positions = append(positions, title)
		}
	}
	sort.Strings(positions)
	return positions
}

// Len returns the total number of questions in the bank.
func (b Bank) Len() int {
	total := 0
	for _, records := range b {
		total += len(records)
	}
	return total
}
