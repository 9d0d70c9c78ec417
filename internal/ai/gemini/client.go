package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/interview-simulator/internal/ai"
	"github.com/spigell/interview-simulator/internal/utils"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-pro"

const (
	defaultMaxLogLength = 200

	baseBackoff = time.Second
	// Quota errors asking to wait longer than this are returned immediately.
	maxQuotaDelay = 30 * time.Second

	// Sent when the conversation does not end with a user turn, e.g. right
	// after the system instructions when the interview opens.
	continuePrompt = "Continue."
)

var wait = utils.WaitFor

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
	SendMessageStream(ctx context.Context, parts ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error]
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (g genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := g.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Generator wraps the Google GenAI chat API as an ai.Completer.
type Generator struct {
	chats      chatCreator
	model      string
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
// maxRetries is the total number of attempts for a single-shot completion.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries, maxLogLength int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
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

	return &Generator{
		chats:      genaiChats{chats: client.Chats},
		model:      model,
		maxRetries: maxRetries,
		maxLogLen:  maxLogLength,
		logger:     logger,
	}, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Complete sends the conversation and returns the reply, retrying temporary API errors.
func (g *Generator) Complete(ctx context.Context, messages []ai.Message) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	config, history, message, err := convert(messages)
	if err != nil {
		return "", err
	}

	g.logger.Debug("gemini generate content request",
		zap.Int("history", len(history)),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, g.maxLogLen)),
	)

	attempts := max(g.maxRetries, 1)

	var lastErr error
	for attempt := range attempts {
		chat, err := g.chats.Create(ctx, g.model, config, history)
		if err != nil {
			return "", fmt.Errorf("create gemini chat: %w", err)
		}

		resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
		if err == nil {
			text := responseText(resp)
			if text == "" {
				return "", ai.ErrEmptyResponse
			}
			g.logger.Debug("gemini generate content response",
				zap.Int("response_length", utf8.RuneCountInString(text)),
				zap.String("response_preview", utils.TruncateForLog(text, g.maxLogLen)),
			)
			return text, nil
		}

		lastErr = err
		delay, retryable := retryDelay(err, attempt)
		if !retryable || attempt == attempts-1 {
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

// Stream yields reply fragments as Gemini produces them. Streams are not retried.
func (g *Generator) Stream(ctx context.Context, messages []ai.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if g == nil || g.chats == nil {
			yield("", errors.New("gemini generator is not initialized"))
			return
		}

		config, history, message, err := convert(messages)
		if err != nil {
			yield("", err)
			return
		}

		chat, err := g.chats.Create(ctx, g.model, config, history)
		if err != nil {
			yield("", fmt.Errorf("create gemini chat: %w", err))
			return
		}

		for resp, err := range chat.SendMessageStream(ctx, genai.Part{Text: message}) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			text := chunkText(resp)
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// convert splits a conversation into the chat configuration, the prior history
// and the message to send. System entries become the system instruction.
func convert(messages []ai.Message) (*genai.GenerateContentConfig, []*genai.Content, string, error) {
	var system []string
	history := make([]*genai.Content, 0, len(messages))
	message := continuePrompt

	for i, m := range messages {
		switch m.Role {
		case ai.RoleSystem:
			system = append(system, m.Content)
		case ai.RoleUser:
			if i == len(messages)-1 {
				message = m.Content
				continue
			}
			history = append(history, genai.NewContentFromText(m.Content, genai.RoleUser))
		case ai.RoleAssistant:
			history = append(history, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			return nil, nil, "", fmt.Errorf("unsupported message role %q", m.Role)
		}
	}

	config := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	return config, history, message, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

// chunkText keeps whitespace intact so streamed fragments concatenate correctly.
func chunkText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		builder.WriteString(part.Text)
	}
	return builder.String()
}

func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	backoff := baseBackoff << attempt

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if match := retryAfterPattern.FindStringSubmatch(apiErr.Message); match != nil {
			seconds, perr := strconv.ParseFloat(match[1], 64)
			if perr == nil {
				delay := time.Duration(seconds * float64(time.Second))
				if delay > maxQuotaDelay {
					return 0, false
				}
				return delay, true
			}
		}
		return backoff, true
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	default:
		return 0, false
	}
}
