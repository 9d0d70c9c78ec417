package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-simulator/internal/feedback"
	"github.com/spigell/interview-simulator/internal/interview"
	"github.com/spigell/interview-simulator/internal/logger"
	"github.com/spigell/interview-simulator/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive interview",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("questions-file", "q", "", "question bank file (json or yaml)")
	runCmd.Flags().StringP("report-file", "o", "", "write the feedback to this file (.md or .html)")
	runCmd.Flags().IntP("turns", "t", 0, "number of questions per interview")
	runCmd.Flags().Uint64("seed", 0, "seed for question planning, 0 picks a random one")
	runCmd.Flags().Bool("no-stream", false, "print questions only when they are complete")

	viper.BindPFlag("questions-file", runCmd.Flags().Lookup("questions-file"))
	viper.BindPFlag("report-file", runCmd.Flags().Lookup("report-file"))
	viper.BindPFlag("interview.turns", runCmd.Flags().Lookup("turns"))
	viper.BindPFlag("interview.seed", runCmd.Flags().Lookup("seed"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if noStream, _ := cmd.Flags().GetBool("no-stream"); noStream {
		config.Interview.Stream = false
	}

	logger.Info("starting the interview-simulator", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	bank := loadBank(config.QuestionsFile, logger)

	interviewer, grader, err := newCompleters(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("preparing completion service",
			zap.Error(err),
			zap.String("hint", "set OPENAI_API_KEY or GEMINI_API_KEY, or the 'ai.api-key-file' key in the configuration file"),
		)
	}

	evaluator := newEvaluator(config.AI, grader, logger)

	engine, err := interview.NewEngine(
		interviewer,
		evaluator,
		bank,
		scheduler.NewRand(config.Interview.Seed),
		interview.Config{
			Turns:           config.Interview.Turns,
			MaxAnswerLength: config.Interview.MaxAnswerLength,
			MaxLogLength:    config.AI.MaxLogLength,
		},
		logger,
	)
	if err != nil {
		logger.Fatal("creating interview engine", zap.Error(err))
	}

	ui := newTerminal(os.Stdout, config.Interview.Stream)
	session := interview.NewSession()

	for {
		err := runSession(ctx, engine, session, config, bank.Positions(), ui, logger)
		if errors.Is(err, errExit) {
			logger.Info("exiting", zap.String("reason", "quit requested"))
			return
		}
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		engine.Restart(session)
	}
}

// runSession drives one session from setup to feedback. A nil error means the
// user asked for a new interview.
func runSession(ctx context.Context, engine *interview.Engine, s *interview.Session, config *Config, bankPositions []string, ui *terminal, log *zap.Logger) error {
	if err := setup(engine, s, config, bankPositions, ui); err != nil {
		return err
	}

	ui.title(fmt.Sprintf("Interview for %s (%d questions)", s.Position(), s.TotalTurns()))

	if err := ask(ctx, engine, s, ui, log, func() error {
		return engine.Start(ctx, s, ui.sink())
	}); err != nil {
		return err
	}

	for s.State() == interview.StateInterviewing {
		answer, err := ui.answer(s.Turn()+1, s.TotalTurns(), config.Interview.MaxAnswerLength)
		if err != nil {
			return err
		}

		err = ask(ctx, engine, s, ui, log, func() error {
			return engine.SubmitAnswer(ctx, s, answer, ui.sink())
		})
		if errors.Is(err, interview.ErrEmptyAnswer) || errors.Is(err, interview.ErrAnswerTooLong) {
			ui.failure("answer rejected", err)
			continue
		}
		if err != nil {
			return err
		}
	}

	report, err := requestFeedback(ctx, engine, s, ui, log)
	if err != nil {
		return err
	}

	ui.report(report)
	exportReport(config.ReportFile, s, report, log)

	action, err := ui.choose("What next?", []string{PromptRestart, PromptQuit})
	if err != nil {
		return err
	}
	if action == PromptQuit {
		return errExit
	}
	return nil
}

func setup(engine *interview.Engine, s *interview.Session, config *Config, bankPositions []string, ui *terminal) error {
	ui.title("Candidate")

	var profile interview.Profile
	var err error
	if profile.Name, err = ui.text("Name", ""); err != nil {
		return err
	}
	if profile.Experience, err = ui.text("Experience", ""); err != nil {
		return err
	}
	if profile.Skills, err = ui.text("Skills", ""); err != nil {
		return err
	}

	var position interview.Position
	if position.Level, err = ui.choose("Level", choices(config.Interview.Levels)); err != nil {
		return err
	}
	if position.Title, err = ui.choose("Position", choices(config.Interview.Positions, bankPositions...)); err != nil {
		return err
	}
	if position.Company, err = ui.choose("Company", choices(config.Interview.Companies)); err != nil {
		return err
	}

	if err := engine.SetProfile(s, profile); err != nil {
		return err
	}
	if err := engine.SetPosition(s, position); err != nil {
		return err
	}

	action, err := ui.choose("Ready?", []string{PromptStart, PromptQuit})
	if err != nil {
		return err
	}
	if action == PromptQuit {
		return errExit
	}
	return nil
}

// ask runs an action that ends by asking a question. When asking fails the
// user can retry the question or quit.
func ask(ctx context.Context, engine *interview.Engine, s *interview.Session, ui *terminal, log *zap.Logger, action func() error) error {
	err := action()
	for err != nil {
		if errors.Is(err, interview.ErrInvalidTransition) ||
			errors.Is(err, interview.ErrEmptyAnswer) ||
			errors.Is(err, interview.ErrAnswerTooLong) {
			return err
		}

		log.Warn("asking the next question failed",
			zap.Int("turn", s.Turn()+1),
			zap.Error(err),
		)
		ui.failure("could not get the next question", err)

		choice, perr := ui.choose("The interviewer did not respond", []string{PromptRetry, PromptQuit})
		if perr != nil {
			return perr
		}
		if choice == PromptQuit {
			return errExit
		}

		err = engine.Continue(ctx, s, ui.sink())
	}

	if s.State() == interview.StateInterviewing {
		ui.showQuestion(s)
	}
	return nil
}

func requestFeedback(ctx context.Context, engine *interview.Engine, s *interview.Session, ui *terminal, log *zap.Logger) (*feedback.Report, error) {
	ui.title("The interview is over")

	items := []string{PromptFeedback, PromptQuit}
	for {
		choice, err := ui.choose("Next step", items)
		if err != nil {
			return nil, err
		}
		if choice == PromptQuit {
			return nil, errExit
		}

		report, err := engine.RequestFeedback(ctx, s)
		if err == nil {
			return report, nil
		}

		log.Warn("requesting feedback failed", zap.Error(err))
		ui.failure("could not get feedback", err)
		items = []string{PromptRetry, PromptQuit}
	}
}

func exportReport(path string, s *interview.Session, report *feedback.Report, log *zap.Logger) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}

	path = strings.ReplaceAll(path, "{{SESSION_ID}}", s.ID())

	header := feedback.Header{
		SessionID: s.ID(),
		Candidate: s.Profile().Name,
		Position:  s.Position().String(),
	}

	if err := feedback.WriteReport(path, report, header); err != nil {
		log.Warn("saving the report failed", zap.String("path", path), zap.Error(err))
		return
	}

	log.Info("report saved", zap.String("path", path))
}
