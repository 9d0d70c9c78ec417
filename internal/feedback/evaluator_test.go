package feedback

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/interview-simulator/internal/ai"
	"github.com/spigell/interview-simulator/internal/questions"
)

type recordingCompleter struct {
	reply    string
	err      error
	requests [][]ai.Message
}

func (r *recordingCompleter) Complete(_ context.Context, messages []ai.Message) (string, error) {
	r.requests = append(r.requests, messages)
	return r.reply, r.err
}

func (r *recordingCompleter) Stream(ctx context.Context, messages []ai.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text, err := r.Complete(ctx, messages)
		yield(text, err)
	}
}

func (r *recordingCompleter) Model() string { return "fake" }

var transcript = []ai.Message{
	{Role: ai.RoleSystem, Content: "You are an HR executive"},
	{Role: ai.RoleAssistant, Content: "Describe your testing process"},
	{Role: ai.RoleUser, Content: "Risk based"},
	{Role: ai.RoleAssistant, Content: "How do you hire?"},
	{Role: ai.RoleUser, Content: "Carefully"},
}

func TestEvaluateStructured(t *testing.T) {
	completer := &recordingCompleter{reply: "Overall score: 7\nQ1: Describe your testing process\nModel answer: Use risk-based test design"}
	evaluator := NewEvaluator(completer, 0, zap.NewNop())

	items := []Item{
		{Question: "Describe your testing process", Answer: "Risk based", Reference: "Use risk-based test design", Source: questions.SourcePredefined},
		{Question: "How do you hire?", Answer: "", Source: questions.SourceGenerated},
	}

	report, err := evaluator.Evaluate(context.Background(), items, transcript)
	require.NoError(t, err)
	require.Equal(t, ModeStructured, report.Mode)
	require.InDelta(t, 7, report.Score, 1e-9)
	require.Contains(t, report.Text, "**Model answer:** Use risk-based test design")

	require.Len(t, completer.requests, 1)
	request := completer.requests[0]
	require.Len(t, request, 2)
	require.Equal(t, ai.RoleSystem, request[0].Role)
	require.Contains(t, request[0].Content, "Model answer:")

	body := request[1].Content
	require.Contains(t, body, "Q1: Describe your testing process\nAnswer: Risk based\nReference answer: Use risk-based test design\n")
	require.Contains(t, body, "Q2: How do you hire?\nAnswer: No answer provided.\n")
	require.NotContains(t, body, "HR executive")
}

func TestEvaluateHolistic(t *testing.T) {
	completer := &recordingCompleter{reply: "Overall score: 5\nFeedback: be more specific"}
	evaluator := NewEvaluator(completer, 0, nil)

	items := []Item{
		{Question: "Describe your testing process", Answer: "Risk based", Source: questions.SourceGenerated},
		{Question: "How do you hire?", Answer: "Carefully", Source: questions.SourceGenerated},
	}

	report, err := evaluator.Evaluate(context.Background(), items, transcript)
	require.NoError(t, err)
	require.Equal(t, ModeHolistic, report.Mode)
	require.InDelta(t, 5, report.Score, 1e-9)

	body := completer.requests[0][1].Content
	require.True(t, strings.HasPrefix(body, holisticIntro))
	require.Contains(t, body, "assistant: Describe your testing process\nuser: Risk based\n")
	require.Contains(t, body, "user: Carefully\n")
	require.NotContains(t, body, "system:")
	require.NotContains(t, body, "HR executive")
}

func TestEvaluateFailure(t *testing.T) {
	boom := errors.New("boom")
	evaluator := NewEvaluator(&recordingCompleter{err: boom}, 0, nil)

	_, err := evaluator.Evaluate(context.Background(), nil, transcript)
	require.ErrorIs(t, err, boom)

	_, err = NewEvaluator(&recordingCompleter{reply: "  "}, 0, nil).Evaluate(context.Background(), nil, transcript)
	require.ErrorIs(t, err, ai.ErrEmptyResponse)

	_, err = NewEvaluator(nil, 0, nil).Evaluate(context.Background(), nil, transcript)
	require.Error(t, err)
}
