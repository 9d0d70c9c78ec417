package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"

	"github.com/spigell/interview-simulator/internal/ai"
	"github.com/spigell/interview-simulator/internal/feedback"
	"github.com/spigell/interview-simulator/internal/interview"
)

const (
	PromptStart    = "Start the interview"
	PromptFeedback = "Get feedback"
	PromptRetry    = "Retry"
	PromptRestart  = "Start a new interview"
	PromptQuit     = "Quit"

	// Markdown hard line break used by feedback.Format.
	reportLineBreak = "  \n"
)

var errExit = errors.New("exit requested")

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	interviewerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("12")).
				Bold(true)

	candidateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().Bold(true)

	reportStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("10")).
			Padding(0, 1)
)

// terminal renders the interview on out and reads input with promptui.
type terminal struct {
	out    io.Writer
	stream bool
	// streamed is set once the current question was printed through the sink.
	streamed bool
}

func newTerminal(out io.Writer, stream bool) *terminal {
	return &terminal{out: out, stream: stream}
}

// sink returns the fragment printer for the next question, or nil when
// streaming is disabled.
func (t *terminal) sink() ai.Sink {
	t.streamed = false
	if !t.stream {
		return nil
	}
	return func(fragment string) {
		if !t.streamed {
			fmt.Fprint(t.out, interviewerStyle.Render("Interviewer:")+" ")
			t.streamed = true
		}
		fmt.Fprint(t.out, fragment)
	}
}

// showQuestion completes the output for a freshly asked question.
func (t *terminal) showQuestion(s *interview.Session) {
	if t.streamed {
		fmt.Fprintln(t.out)
		return
	}
	if pending, ok := s.PendingQuestion(); ok {
		fmt.Fprintln(t.out, interviewerStyle.Render("Interviewer:")+" "+pending.Question)
	}
}

func (t *terminal) title(text string) {
	fmt.Fprintln(t.out, titleStyle.Render(text))
}

func (t *terminal) failure(text string, err error) {
	if t.streamed {
		fmt.Fprintln(t.out)
		t.streamed = false
	}
	fmt.Fprintln(t.out, errorStyle.Render(fmt.Sprintf("%s: %v", text, err)))
}

func (t *terminal) report(r *feedback.Report) {
	fmt.Fprintln(t.out, reportStyle.Render(renderReport(r)))
}

// renderReport turns the Markdown report into styled terminal text.
func renderReport(r *feedback.Report) string {
	if r == nil {
		return ""
	}

	lines := strings.Split(r.Text, reportLineBreak)
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "Overall score:"):
			lines[i] = scoreStyle.Render(line)
		case strings.HasPrefix(line, "**"):
			label, rest, ok := strings.Cut(strings.TrimPrefix(line, "**"), "**")
			if ok {
				lines[i] = labelStyle.Render(label) + rest
			}
		}
	}

	return strings.Join(lines, "\n")
}

func (t *terminal) text(label, def string) (string, error) {
	prompt := promptui.Prompt{
		Label:   label,
		Default: def,
	}
	value, err := prompt.Run()
	return strings.TrimSpace(value), promptError(err)
}

func (t *terminal) choose(label string, items []string) (string, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
	}
	_, value, err := prompt.Run()
	return value, promptError(err)
}

func (t *terminal) answer(turn, total, limit int) (string, error) {
	prompt := promptui.Prompt{
		Label: fmt.Sprintf("Your answer (%d/%d)", turn, total),
		Validate: func(input string) error {
			input = strings.TrimSpace(input)
			if input == "" {
				return interview.ErrEmptyAnswer
			}
			if limit > 0 && utf8.RuneCountInString(input) > limit {
				return fmt.Errorf("%w: limit is %d characters", interview.ErrAnswerTooLong, limit)
			}
			return nil
		},
	}

	value, err := prompt.Run()
	if err != nil {
		return "", promptError(err)
	}

	fmt.Fprintln(t.out, candidateStyle.Render("You: "+strings.TrimSpace(value)))
	return value, nil
}

// promptError maps an interrupted prompt to errExit.
func promptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return errExit
	}
	return err
}

// choices returns base followed by the extra entries it does not contain yet.
func choices(base []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, item := range append(append([]string{}, base...), extra...) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
