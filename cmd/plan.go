package cmd

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-simulator/internal/logger"
	"github.com/spigell/interview-simulator/internal/questions"
	"github.com/spigell/interview-simulator/internal/scheduler"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview which questions an interview for a position would use",
	Run: func(cmd *cobra.Command, _ []string) {
		runPlan(cmd)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringP("position", "p", "", "position title to plan for")
	planCmd.Flags().IntP("turns", "t", 0, "number of questions (default is interview.turns from config)")
	planCmd.Flags().Uint64("seed", 0, "seed for question planning, 0 picks a random one")
	planCmd.Flags().StringP("questions-file", "q", "", "question bank file (json or yaml)")

	planCmd.MarkFlagRequired("position")
}

func runPlan(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	position, _ := cmd.Flags().GetString("position")
	seed, _ := cmd.Flags().GetUint64("seed")

	turns, _ := cmd.Flags().GetInt("turns")
	if turns == 0 {
		turns = viper.GetInt("interview.turns")
	}

	path := viper.GetString("questions-file")
	if flag := cmd.Flag("questions-file"); flag != nil && flag.Changed {
		path = flag.Value.String()
	}

	bank := loadBank(path, logger)

	result, err := scheduler.Build(scheduler.NewRand(seed), bank.For(position), turns)
	if err != nil {
		logger.Fatal("building a plan", zap.Error(err))
	}

	printPlan(cmd.OutOrStdout(), position, result)
}

func printPlan(out io.Writer, position string, result *scheduler.Result) {
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Plan for %s: %d curated, %d generated",
		position,
		result.Plan.Count(questions.SourcePredefined),
		result.Plan.Count(questions.SourceGenerated),
	)))

	next := 0
	for i, source := range result.Plan {
		line := fmt.Sprintf("%d. %s", i+1, source)
		if source == questions.SourcePredefined && next < len(result.Selected) {
			line += ": " + strings.TrimSpace(result.Selected[next].Question)
			next++
		}
		fmt.Fprintln(out, line)
	}
}
