package cmd

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "interview-simulator"
)

type Config struct {
	QuestionsFile string           `mapstructure:"questions-file"`
	ReportFile    string           `mapstructure:"report-file"`
	Interview     *InterviewConfig `mapstructure:"interview"`
	AI            *AIConfig        `mapstructure:"ai"`
}

type InterviewConfig struct {
	Turns           int      `mapstructure:"turns"`
	MaxAnswerLength int      `mapstructure:"max-answer-length"`
	Seed            uint64   `mapstructure:"seed"`
	Stream          bool     `mapstructure:"stream"`
	Levels          []string `mapstructure:"levels"`
	Positions       []string `mapstructure:"positions"`
	Companies       []string `mapstructure:"companies"`
}

type AIConfig struct {
	Provider      string `mapstructure:"provider"`
	Model         string `mapstructure:"model"`
	FeedbackModel string `mapstructure:"feedback-model"`
	APIKey        string `mapstructure:"api-key" json:"-"`
	APIKeyFile    string `mapstructure:"api-key-file"`
	BaseURL       string `mapstructure:"base-url"`
	MaxRetries    int    `mapstructure:"max-retries"`
	MaxLogLength  int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-simulator runs a mock job interview in the terminal and grades your answers",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"questions-file": "QUESTIONS_FILE",
		"report-file":    "REPORT_FILE",
		"ai.provider":    "AI_PROVIDER",
		"ai.model":       "AI_MODEL",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-simulator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("questions-file", "questions.json")
	viper.SetDefault("report-file", "")

	viper.SetDefault("interview.turns", 5)
	viper.SetDefault("interview.max-answer-length", 500)
	viper.SetDefault("interview.seed", 0)
	viper.SetDefault("interview.stream", true)
	viper.SetDefault("interview.levels", []string{"Junior", "Mid-level", "Senior"})
	viper.SetDefault("interview.positions", []string{"QA Manager", "Engineering Manager"})
	viper.SetDefault("interview.companies", []string{"Amazon", "Google"})

	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.max-retries", 3)
	viper.SetDefault("ai.max-log-length", 200)
}

func initConfig() {
	// .env is optional, variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// An explicitly given config must exist, the default one is optional.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Interview == nil {
		config.Interview = &InterviewConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}

	return config, nil
}
