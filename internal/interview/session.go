package interview

import (
	"slices"

	"github.com/google/uuid"

	"github.com/spigell/interview-simulator/internal/ai"
	"github.com/spigell/interview-simulator/internal/feedback"
	"github.com/spigell/interview-simulator/internal/questions"
	"github.com/spigell/interview-simulator/internal/scheduler"
)

// Session holds everything about one interview. It is owned by a single
// caller and is only changed through Engine.
type Session struct {
	id       string
	profile  Profile
	position Position

	// planKey is the position title the current plan was built for.
	planKey  string
	plan     scheduler.Plan
	selected []questions.Record
	cursor   int

	turn       int
	transcript []ai.Message
	records    []Record

	setupComplete bool
	chatComplete  bool
	feedbackShown bool

	report *feedback.Report
}

// NewSession returns an empty session in the setup state.
func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Profile() Profile { return s.profile }

func (s *Session) Position() Position { return s.position }

// State derives the lifecycle stage from the session flags.
func (s *Session) State() State {
	switch {
	case s.feedbackShown:
		return StateFeedbackShown
	case s.chatComplete:
		return StateAwaitingFeedback
	case s.setupComplete:
		return StateInterviewing
	default:
		return StateSetup
	}
}

// Turn is the number of answers submitted so far.
func (s *Session) Turn() int { return s.turn }

// TotalTurns is the length of the plan, or zero before a plan exists.
func (s *Session) TotalTurns() int { return len(s.plan) }

func (s *Session) Plan() scheduler.Plan { return slices.Clone(s.plan) }

// Selected returns the curated questions chosen for this interview.
func (s *Session) Selected() []questions.Record { return slices.Clone(s.selected) }

func (s *Session) Transcript() []ai.Message { return slices.Clone(s.transcript) }

// Records returns every asked question including a pending one.
func (s *Session) Records() []Record { return slices.Clone(s.records) }

// Answered returns the records that already have an answer.
func (s *Session) Answered() []Record {
	return slices.Clone(s.records[:min(s.turn, len(s.records))])
}

// PendingQuestion returns the question waiting for an answer.
func (s *Session) PendingQuestion() (Record, bool) {
	if s.State() != StateInterviewing || len(s.records) <= s.turn {
		return Record{}, false
	}
	return s.records[len(s.records)-1], true
}

// Report returns the evaluation, or nil before feedback was requested.
func (s *Session) Report() *feedback.Report { return s.report }
