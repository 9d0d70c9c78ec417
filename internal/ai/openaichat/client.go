// Package openaichat implements ai.Completer on top of the OpenAI chat completions API.
package openaichat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/spigell/interview-simulator/internal/ai"
	"github.com/spigell/interview-simulator/internal/utils"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

const defaultMaxLogLength = 200

// Client wraps the official OpenAI client.
type Client struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	maxLogLen int
}

// New creates a Client for model. Extra request options are appended after the API key,
// which lets tests point the client at a local server.
func New(apiKey, model string, maxLogLength int, logger *zap.Logger, opts ...option.RequestOption) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}

	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &Client{
		client:    openai.NewClient(options...),
		model:     model,
		logger:    logger,
		maxLogLen: maxLogLength,
	}, nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Complete returns the first choice of a non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, messages []ai.Message) (string, error) {
	params, err := c.params(messages)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("openai completion response",
		zap.Int("response_length", utf8.RuneCountInString(content)),
		zap.String("response_preview", utils.TruncateForLog(content, c.maxLogLen)),
	)

	return content, nil
}

// Stream yields content deltas of a streaming chat completion.
func (c *Client) Stream(ctx context.Context, messages []ai.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		params, err := c.params(messages)
		if err != nil {
			yield("", err)
			return
		}

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(choice.Delta.Content, nil) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("openai chat stream: %w", err))
		}
	}
}

func (c *Client) params(messages []ai.Message) (openai.ChatCompletionNewParams, error) {
	if len(messages) == 0 {
		return openai.ChatCompletionNewParams{}, errors.New("at least one message is required")
	}

	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case ai.RoleSystem:
			converted = append(converted, openai.SystemMessage(m.Content))
		case ai.RoleUser:
			converted = append(converted, openai.UserMessage(m.Content))
		case ai.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(m.Content))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	last := messages[len(messages)-1].Content
	c.logger.Debug("openai completion request",
		zap.Int("messages", len(converted)),
		zap.String("last_message_preview", utils.TruncateForLog(last, c.maxLogLen)),
	)

	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: converted,
	}, nil
}
