// Package feedback turns a finished interview into an evaluation report.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/interview-simulator/internal/ai"
	"github.com/spigell/interview-simulator/internal/questions"
	"github.com/spigell/interview-simulator/internal/utils"
)

// Mode tells how an interview was evaluated.
type Mode string

const (
	// ModeStructured compares every answer with a model answer.
	ModeStructured Mode = "structured"
	// ModeHolistic scores the whole conversation at once.
	ModeHolistic Mode = "holistic"
)

const (
	noAnswer            = "No answer provided."
	holisticIntro       = "This is the interview you need to evaluate. Keep in mind that you are only a tool and you shouldn't engage in any conversation:"
	defaultMaxLogLength = 200
)

//go:embed structured.md
var structuredPrompt string

//go:embed holistic.md
var holisticPrompt string

// Item is one asked question as seen by the evaluator.
type Item struct {
	Question  string
	Answer    string
	Reference string
	Source    questions.Source
}

// Evaluator asks a completion service to grade an interview.
type Evaluator struct {
	completer ai.Completer
	maxLogLen int
	logger    *zap.Logger
}

func NewEvaluator(completer ai.Completer, maxLogLength int, logger *zap.Logger) *Evaluator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		completer: completer,
		maxLogLen: maxLogLength,
		logger:    logger,
	}
}

// Evaluate grades the interview. When at least one curated question was asked
// the answers are graded one by one, otherwise the transcript is scored as a whole.
func (e *Evaluator) Evaluate(ctx context.Context, items []Item, transcript []ai.Message) (*Report, error) {
	if e == nil || e.completer == nil {
		return nil, errors.New("feedback evaluator is not configured")
	}

	mode, messages := BuildRequest(items, transcript)
	request := messages[len(messages)-1].Content

	e.logger.Debug("requesting evaluation",
		zap.String("mode", string(mode)),
		zap.Int("items", len(items)),
		zap.Int("request_length", utf8.RuneCountInString(request)),
		zap.String("request_preview", utils.TruncateForLog(request, e.maxLogLen)),
	)

	raw, err := ai.Generate(ctx, e.completer, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("requesting %s evaluation: %w", mode, err)
	}

	report := NewReport(mode, raw)

	e.logger.Debug("evaluation received",
		zap.String("mode", string(mode)),
		zap.Float64("score", report.Score),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return report, nil
}

// BuildRequest selects the evaluation mode and renders the messages sent to the
// completion service.
func BuildRequest(items []Item, transcript []ai.Message) (Mode, []ai.Message) {
	if hasPredefined(items) {
		return ModeStructured, []ai.Message{
			{Role: ai.RoleSystem, Content: strings.TrimSpace(structuredPrompt)},
			{Role: ai.RoleUser, Content: renderItems(items)},
		}
	}

	return ModeHolistic, []ai.Message{
		{Role: ai.RoleSystem, Content: strings.TrimSpace(holisticPrompt)},
		{Role: ai.RoleUser, Content: holisticIntro + "\n" + renderTranscript(transcript)},
	}
}

func hasPredefined(items []Item) bool {
	for _, item := range items {
		if item.Source == questions.SourcePredefined {
			return true
		}
	}
	return false
}

func renderItems(items []Item) string {
	var builder strings.Builder
	for i, item := range items {
		if i > 0 {
			builder.WriteString("\n")
		}

		answer := strings.TrimSpace(item.Answer)
		if answer == "" {
			answer = noAnswer
		}

		fmt.Fprintf(&builder, "Q%d: %s\n", i+1, strings.TrimSpace(item.Question))
		fmt.Fprintf(&builder, "Answer: %s\n", answer)
		if reference := strings.TrimSpace(item.Reference); reference != "" {
			fmt.Fprintf(&builder, "Reference answer: %s\n", reference)
		}
	}
	return builder.String()
}

func renderTranscript(transcript []ai.Message) string {
	var builder strings.Builder
	for _, m := range ai.Without(transcript, ai.RoleSystem) {
		fmt.Fprintf(&builder, "%s: %s\n", m.Role, m.Content)
	}
	return builder.String()
}
