package gemini

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/interview-simulator/internal/ai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue map[string][]fakeChatResponse
}

type chatCallRecord struct {
	model   string
	config  *genai.GenerateContentConfig
	history []*genai.Content
	chat    *fakeChat
}

type fakeChatResponse struct {
	resp   *genai.GenerateContentResponse
	stream []*genai.GenerateContentResponse
	err    error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.record(parts)
	return f.response.resp, f.response.err
}

func (f *fakeChat) SendMessageStream(_ context.Context, parts ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.record(parts)
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, chunk := range f.response.stream {
			if !yield(chunk, nil) {
				return
			}
		}
		if f.response.err != nil {
			yield(nil, f.response.err)
		}
	}
}

func (f *fakeChat) record(parts []genai.Part) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
}

func newFakeChatCreator() *fakeChatCreator {
	return &fakeChatCreator{queue: make(map[string][]fakeChatResponse)}
}

func (f *fakeChatCreator) enqueue(model string, res fakeChatResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[model] = append(f.queue[model], res)
}

func (f *fakeChatCreator) Create(_ context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	responses := f.queue[model]
	if len(responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := responses[0]
	f.queue[model] = responses[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, history: history, chat: chat})
	return chat, nil
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(texts))
	for _, text := range texts {
		parts = append(parts, &genai.Part{Text: text})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func noWait(t *testing.T) {
	t.Helper()
	original := wait
	wait = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { wait = original })
}

var conversation = []ai.Message{
	{Role: ai.RoleSystem, Content: "system"},
	{Role: ai.RoleAssistant, Content: "first question"},
	{Role: ai.RoleUser, Content: "message"},
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	noWait(t)

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-pro", fakeChatResponse{err: tempErr})
	chats.enqueue("gemini-pro", fakeChatResponse{resp: textResponse("retry ok")})

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	output, err := g.Complete(context.Background(), conversation)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}

	for _, call := range chats.calls {
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatalf("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if len(call.history) != 1 || call.history[0].Parts[0].Text != "first question" {
			t.Fatalf("unexpected history: %+v", call.history)
		}
		if len(call.chat.messages) != 1 || call.chat.messages[0] != "message" {
			t.Fatalf("unexpected chat message: %+v", call.chat.messages)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	noWait(t)

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	chats.enqueue("gemini-pro", fakeChatResponse{err: tempErr})
	chats.enqueue("gemini-pro", fakeChatResponse{err: tempErr})

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 2, logger: zap.NewNop()}

	_, err := g.Complete(context.Background(), conversation)
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	chats := newFakeChatCreator()
	quotaErr := genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}
	chats.enqueue("gemini-pro", fakeChatResponse{err: quotaErr})

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

	_, err := g.Complete(context.Background(), conversation)
	if err == nil {
		t.Fatal("expected error when quota delay too long")
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", fakeChatResponse{err: genai.APIError{Code: http.StatusBadRequest}})

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.Complete(context.Background(), conversation); err == nil {
		t.Fatal("expected error")
	}
	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorOpensWithContinuePrompt(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", fakeChatResponse{resp: textResponse("Tell me about yourself.")})

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 1, logger: zap.NewNop()}

	out, err := g.Complete(context.Background(), []ai.Message{{Role: ai.RoleSystem, Content: "system"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Tell me about yourself." {
		t.Fatalf("unexpected output: %q", out)
	}

	call := chats.calls[0]
	if len(call.history) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(call.history))
	}
	if call.chat.messages[0] != continuePrompt {
		t.Fatalf("expected continue prompt, got %q", call.chat.messages[0])
	}
}

func TestGeneratorStream(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", fakeChatResponse{stream: []*genai.GenerateContentResponse{
		textResponse("How do you "),
		textResponse("prioritise "),
		{},
		textResponse("defects?"),
	}})

	g := &Generator{chats: chats, model: "gemini-pro", logger: zap.NewNop()}

	var fragments []string
	text, err := ai.Generate(context.Background(), g, conversation, func(f string) {
		fragments = append(fragments, f)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "How do you prioritise defects?" {
		t.Fatalf("unexpected text: %q", text)
	}
	if len(fragments) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(fragments))
	}
}

func TestGeneratorStreamError(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", fakeChatResponse{
		stream: []*genai.GenerateContentResponse{textResponse("partial")},
		err:    genai.APIError{Code: http.StatusInternalServerError},
	})

	g := &Generator{chats: chats, model: "gemini-pro", logger: zap.NewNop()}

	if _, err := ai.Generate(context.Background(), g, conversation, func(string) {}); err == nil {
		t.Fatal("expected stream error")
	}
}

func TestConvertRejectsUnknownRole(t *testing.T) {
	if _, _, _, err := convert([]ai.Message{{Role: "tool", Content: "x"}}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		attempt   int
		delay     time.Duration
		retryable bool
	}{
		{name: "server error backs off", err: genai.APIError{Code: 500}, attempt: 2, delay: 4 * time.Second, retryable: true},
		{name: "short quota delay", err: genai.APIError{Code: 429, Message: "Please retry in 2.5s."}, delay: 2500 * time.Millisecond, retryable: true},
		{name: "quota without hint", err: genai.APIError{Code: 429}, attempt: 1, delay: 2 * time.Second, retryable: true},
		{name: "not found", err: genai.APIError{Code: 404}},
		{name: "plain error", err: errors.New("dial tcp: refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, retryable := retryDelay(tt.err, tt.attempt)
			if retryable != tt.retryable {
				t.Fatalf("expected retryable=%v, got %v", tt.retryable, retryable)
			}
			if delay != tt.delay {
				t.Fatalf("expected delay %v, got %v", tt.delay, delay)
			}
		})
	}
}
