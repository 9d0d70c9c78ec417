// Package interview runs an interview session: it asks planned questions one
// turn at a time, collects the answers and requests the final evaluation.
package interview

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/interview-simulator/internal/ai"
	"github.com/spigell/interview-simulator/internal/feedback"
	"github.com/spigell/interview-simulator/internal/logger"
	"github.com/spigell/interview-simulator/internal/questions"
	"github.com/spigell/interview-simulator/internal/scheduler"
	"github.com/spigell/interview-simulator/internal/utils"
)

const (
	DefaultTurns        = 5
	defaultMaxLogLength = 200
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrNoPendingQuestion is returned when an answer arrives but no question was asked.
	ErrNoPendingQuestion = errors.New("no pending question")
	ErrEmptyAnswer       = errors.New("answer is empty")
	ErrAnswerTooLong     = errors.New("answer is too long")
)

//go:embed interviewer.md
var interviewerTemplate string

// Evaluator grades a finished interview.
type Evaluator interface {
	Evaluate(ctx context.Context, items []feedback.Item, transcript []ai.Message) (*feedback.Report, error)
}

// Config tunes an Engine.
type Config struct {
	// Turns is the number of questions per interview. Zero means DefaultTurns.
	Turns int
	// MaxAnswerLength limits answers in runes. Zero disables the limit.
	MaxAnswerLength int
	MaxLogLength    int
}

// Engine applies interview actions to sessions.
type Engine struct {
	completer    ai.Completer
	evaluator    Evaluator
	bank         questions.Bank
	rng          *rand.Rand
	turns        int
	maxAnswerLen int
	maxLogLen    int
	logger       *zap.Logger
}

func NewEngine(completer ai.Completer, evaluator Evaluator, bank questions.Bank, rng *rand.Rand, cfg Config, logger *zap.Logger) (*Engine, error) {
	turns := cfg.Turns
	if turns == 0 {
		turns = DefaultTurns
	}
	if turns < 1 {
		return nil, fmt.Errorf("%w: got %d", scheduler.ErrInvalidTurns, turns)
	}

	if rng == nil {
		rng = scheduler.NewRand(0)
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		completer:    completer,
		evaluator:    evaluator,
		bank:         bank,
		rng:          rng,
		turns:        turns,
		maxAnswerLen: max(cfg.MaxAnswerLength, 0),
		maxLogLen:    maxLogLen,
		logger:       logger,
	}, nil
}

// Turns returns the configured number of questions per interview.
func (e *Engine) Turns() int { return e.turns }

// SetProfile stores the candidate profile. Allowed only during setup.
func (e *Engine) SetProfile(s *Session, profile Profile) error {
	if err := expect(s, StateSetup, "set profile"); err != nil {
		return err
	}
	s.profile = profile
	return nil
}

// SetPosition stores the position and rebuilds the plan when the title changed.
// Allowed only during setup.
func (e *Engine) SetPosition(s *Session, position Position) error {
	if err := expect(s, StateSetup, "set position"); err != nil {
		return err
	}
	s.position = position
	return e.ensurePlan(s)
}

// Start opens the interview and asks the first question. Profile and position
// values are not validated. When asking fails the session stays in the
// interviewing state without a pending question and Continue can be used.
func (e *Engine) Start(ctx context.Context, s *Session, sink ai.Sink) error {
	if err := expect(s, StateSetup, "start"); err != nil {
		return err
	}

	if err := e.ensurePlan(s); err != nil {
		return err
	}

	s.transcript = []ai.Message{{Role: ai.RoleSystem, Content: SystemPrompt(s.profile, s.position)}}
	s.setupComplete = true

	e.sessionLogger(s).Info("interview started",
		zap.Int("turns", len(s.plan)),
		zap.Int("predefined", len(s.selected)),
	)

	return e.askNext(ctx, s, sink)
}

// SubmitAnswer records the answer to the pending question and asks the next
// one, or closes the interview after the last planned turn.
func (e *Engine) SubmitAnswer(ctx context.Context, s *Session, answer string, sink ai.Sink) error {
	if err := expect(s, StateInterviewing, "submit answer"); err != nil {
		return err
	}

	if _, ok := s.PendingQuestion(); !ok {
		return ErrNoPendingQuestion
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ErrEmptyAnswer
	}
	if length := utf8.RuneCountInString(answer); e.maxAnswerLen > 0 && length > e.maxAnswerLen {
		return fmt.Errorf("%w: %d characters, limit is %d", ErrAnswerTooLong, length, e.maxAnswerLen)
	}

	s.transcript = append(s.transcript, ai.Message{Role: ai.RoleUser, Content: answer})
	s.records[len(s.records)-1].Answer = answer
	s.turn++

	e.sessionLogger(s).Debug("answer recorded",
		zap.Int("turn", s.turn),
		zap.String("answer_preview", utils.TruncateForLog(answer, e.maxLogLen)),
	)

	if s.turn < len(s.plan) {
		return e.askNext(ctx, s, sink)
	}

	s.chatComplete = true
	e.sessionLogger(s).Info("interview finished", zap.Int("answers", s.turn))
	return nil
}

// Continue asks the current turn's question again after a failed attempt.
func (e *Engine) Continue(ctx context.Context, s *Session, sink ai.Sink) error {
	if err := expect(s, StateInterviewing, "continue"); err != nil {
		return err
	}
	if _, ok := s.PendingQuestion(); ok {
		return fmt.Errorf("%w: continue with a question already pending", ErrInvalidTransition)
	}
	return e.askNext(ctx, s, sink)
}

// RequestFeedback evaluates the finished interview. On failure the session is
// left unchanged so the request can be repeated.
func (e *Engine) RequestFeedback(ctx context.Context, s *Session) (*feedback.Report, error) {
	if err := expect(s, StateAwaitingFeedback, "request feedback"); err != nil {
		return nil, err
	}
	if e.evaluator == nil {
		return nil, errors.New("feedback evaluator is not configured")
	}

	items := make([]feedback.Item, 0, len(s.records))
	for _, r := range s.records {
		items = append(items, feedback.Item{
			Question:  r.Question,
			Answer:    r.Answer,
			Reference: r.Reference,
			Source:    r.Source,
		})
	}

	report, err := e.evaluator.Evaluate(ctx, items, s.Transcript())
	if err != nil {
		return nil, fmt.Errorf("evaluating interview: %w", err)
	}

	s.report = report
	s.feedbackShown = true

	e.sessionLogger(s).Info("feedback ready", zap.String("mode", string(report.Mode)))
	return report, nil
}

// Restart discards the session contents and returns it to setup with a new ID.
func (e *Engine) Restart(s *Session) {
	previous := s.id
	*s = *NewSession()
	e.logger.Info("session restarted",
		zap.String("previous_session_id", previous),
		zap.String(logger.FieldSession, s.id),
	)
}

func (e *Engine) ensurePlan(s *Session) error {
	if s.plan != nil && s.planKey == s.position.Title {
		return nil
	}

	result, err := scheduler.Build(e.rng, e.bank.For(s.position.Title), e.turns)
	if err != nil {
		return fmt.Errorf("building question plan: %w", err)
	}

	s.planKey = s.position.Title
	s.plan = result.Plan
	s.selected = result.Selected
	s.cursor = 0
	s.turn = 0
	s.records = nil

	e.sessionLogger(s).Debug("question plan built",
		zap.Int("turns", len(result.Plan)),
		zap.Int("predefined", result.PredefinedCount()),
	)

	return nil
}

// askNext asks the question for the current turn, either verbatim from the
// selected curated questions or generated from the transcript.
func (e *Engine) askNext(ctx context.Context, s *Session, sink ai.Sink) error {
	record := Record{Source: questions.SourceGenerated}

	if s.plan[s.turn] == questions.SourcePredefined && s.cursor < len(s.selected) {
		curated := s.selected[s.cursor]
		s.cursor++
		record = Record{
			Question:  curated.Question,
			Source:    questions.SourcePredefined,
			Reference: curated.Answer,
		}
		if sink != nil {
			sink(record.Question)
		}
	} else {
		question, err := ai.Generate(ctx, e.completer, s.Transcript(), sink)
		if err != nil {
			return fmt.Errorf("asking question %d: %w", s.turn+1, err)
		}
		record.Question = question
	}

	s.records = append(s.records, record)
	s.transcript = append(s.transcript, ai.Message{Role: ai.RoleAssistant, Content: record.Question})

	e.sessionLogger(s).Debug("question asked",
		zap.Int("turn", s.turn+1),
		zap.String("source", string(record.Source)),
		zap.String("question_preview", utils.TruncateForLog(record.Question, e.maxLogLen)),
	)

	return nil
}

func (e *Engine) sessionLogger(s *Session) *zap.Logger {
	return logger.WithFields(e.logger, logger.SessionFields(s.id, s.position.Title)...)
}

func expect(s *Session, want State, action string) error {
	if s == nil {
		return errors.New("session is nil")
	}
	if state := s.State(); state != want {
		return fmt.Errorf("%w: cannot %s in state %s", ErrInvalidTransition, action, state)
	}
	return nil
}

// SystemPrompt renders the interviewer instructions for a candidate and position.
func SystemPrompt(profile Profile, position Position) string {
	replacer := strings.NewReplacer(
		"{{NAME}}", profile.Name,
		"{{EXPERIENCE}}", profile.Experience,
		"{{SKILLS}}", profile.Skills,
		"{{LEVEL}}", position.Level,
		"{{POSITION}}", position.Title,
		"{{COMPANY}}", position.Company,
	)
	return strings.TrimSpace(replacer.Replace(interviewerTemplate))
}
