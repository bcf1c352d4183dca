// Package genai wraps the OpenAI API behind the content-generation contract
// the agents consume: prompt in, text out, empty string on any backend error.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoicesReturned indicates the backend answered without any completion choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChat adapts the OpenAI SDK client to the chatService interface.
type openaiChat struct {
	client openai.Client
}

func (o openaiChat) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding $OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model to use for completions.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service for generating agent content.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: openaiChat{client: cli}, model: cfg.Model}, nil
}

// GeneratePrompt generates a response for the given system and user prompts.
// Temperature is clamped to [0, 1].
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	if temperature < 0 {
		temperature = 0
	}
	if temperature > 1 {
		temperature = 1
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(temperature),
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate produces text for the given prompts, returning the empty string on
// any backend error. This is the contract the agents rely on: generation
// failures degrade to fallback content, they never propagate.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) string {
	out, err := c.GeneratePrompt(ctx, systemPrompt, userPrompt, temperature)
	if err != nil {
		slog.Error("genai.Generate failed", "error", err, "model", c.model)
		return ""
	}
	return out
}

// GenerateJSON generates a completion and unmarshals it into v. Markdown code
// fences around the JSON body are tolerated. Returns an error on backend
// failure or malformed output; callers supply their own fallback.
func (c *Client) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64, v any) error {
	out, err := c.GeneratePrompt(ctx, systemPrompt, userPrompt, temperature)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(StripCodeFence(out)), v); err != nil {
		return fmt.Errorf("malformed JSON completion: %w", err)
	}
	return nil
}

// StripCodeFence removes a surrounding markdown code fence, if present, and
// trims whitespace. Models frequently wrap JSON answers in ```json fences.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
