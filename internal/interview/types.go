package interview

import (
	"strings"

	"github.com/spigell/interview-simulator/internal/questions"
)

// Profile is the candidate as entered before the interview.
type Profile struct {
	Name       string `mapstructure:"name" json:"name"`
	Experience string `mapstructure:"experience" json:"experience"`
	Skills     string `mapstructure:"skills" json:"skills"`
}

// Position is the job being interviewed for. Title keys the question bank.
type Position struct {
	Level   string `mapstructure:"level" json:"level"`
	Title   string `mapstructure:"title" json:"title"`
	Company string `mapstructure:"company" json:"company"`
}

// String returns "<level> <title> at <company>" omitting empty parts.
func (p Position) String() string {
	role := strings.TrimSpace(strings.Join([]string{strings.TrimSpace(p.Level), strings.TrimSpace(p.Title)}, " "))
	if company := strings.TrimSpace(p.Company); company != "" {
		if role == "" {
			return company
		}
		return role + " at " + company
	}
	return role
}

// Record is one asked question and the answer given to it.
type Record struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Source   questions.Source `json:"source"`
	// Reference is the curated answer for questions taken from the bank.
	Reference string `json:"reference,omitempty"`
}

// State is the lifecycle stage of a session.
type State int

const (
	StateSetup State = iota
	StateInterviewing
	StateAwaitingFeedback
	StateFeedbackShown
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateInterviewing:
		return "interviewing"
	case StateAwaitingFeedback:
		return "awaiting-feedback"
	case StateFeedbackShown:
		return "feedback-shown"
	default:
		return "unknown"
	}
}
