package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/spigell/interview-simulator/internal/ai"
	"github.com/spigell/interview-simulator/internal/ai/gemini"
	"github.com/spigell/interview-simulator/internal/ai/openaichat"
	"github.com/spigell/interview-simulator/internal/feedback"
	"github.com/spigell/interview-simulator/internal/logger"
	"github.com/spigell/interview-simulator/internal/questions"
	"github.com/spigell/interview-simulator/internal/secrets"
)

const (
	providerOpenAI = "openai"
	providerGemini = "gemini"
)

// newCompleter builds the completion provider selected in cfg for model.
// An empty model lets the provider pick its default.
func newCompleter(ctx context.Context, cfg *AIConfig, model string, log *zap.Logger) (ai.Completer, error) {
	if cfg == nil {
		return nil, errors.New("ai configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", providerOpenAI:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			File:  cfg.APIKeyFile,
			Value: cfg.APIKey,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (or set ai.api-key-file)", err)
		}

		var opts []option.RequestOption
		if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}
		if cfg.MaxRetries > 0 {
			opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
		}

		if strings.TrimSpace(model) == "" {
			model = openaichat.DefaultModel
		}

		client, err := openaichat.New(apiKey, model, cfg.MaxLogLength, logger.WithCommonFields(log, providerOpenAI, model), opts...)
		if err != nil {
			return nil, err
		}
		return client, nil

	case providerGemini:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  cfg.APIKeyFile,
			Value: cfg.APIKey,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (or set ai.api-key-file)", err)
		}

		if strings.TrimSpace(model) == "" {
			model = gemini.DefaultModel
		}

		genLogger := logger.WithCommonFields(log, providerGemini, model).With(
			zap.Int("ai_retry_attempts", cfg.MaxRetries),
		)

		generator, err := gemini.NewGenerator(ctx, apiKey, model, cfg.MaxRetries, cfg.MaxLogLength, genLogger)
		if err != nil {
			return nil, err
		}
		return generator, nil

	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// newCompleters returns the interviewer and the evaluator providers. They are
// the same instance unless a separate feedback model is configured.
func newCompleters(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Completer, ai.Completer, error) {
	interviewer, err := newCompleter(ctx, cfg, cfg.Model, log)
	if err != nil {
		return nil, nil, fmt.Errorf("building interviewer: %w", err)
	}

	feedbackModel := strings.TrimSpace(cfg.FeedbackModel)
	if feedbackModel == "" || feedbackModel == interviewer.Model() {
		return interviewer, interviewer, nil
	}

	evaluator, err := newCompleter(ctx, cfg, feedbackModel, log)
	if err != nil {
		return nil, nil, fmt.Errorf("building evaluator: %w", err)
	}

	return interviewer, evaluator, nil
}

func newEvaluator(cfg *AIConfig, grader ai.Completer, log *zap.Logger) *feedback.Evaluator {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		provider = providerOpenAI
	}
	return feedback.NewEvaluator(grader, cfg.MaxLogLength, logger.WithCommonFields(log, provider, grader.Model()))
}

// loadBank reads the question bank. Problems only disable curated questions.
func loadBank(path string, log *zap.Logger) questions.Bank {
	bank, err := questions.Load(path)
	if err != nil {
		log.Warn("question bank is unusable, all questions will be generated",
			zap.String("path", path),
			zap.Error(err),
		)
		return bank
	}

	if bank.Len() == 0 {
		log.Info("no curated questions found, all questions will be generated", zap.String("path", path))
		return bank
	}

	log.Info("question bank loaded",
		zap.String("path", path),
		zap.Int("positions", len(bank.Positions())),
		zap.Int("questions", bank.Len()),
	)
	return bank
}
