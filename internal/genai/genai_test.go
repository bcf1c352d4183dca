package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp openai.ChatCompletion
	err  error
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	return m.resp, m.err
}

func completionWith(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGeneratePrompt_Success(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completionWith("Hello World")}}
	out, err := client.GeneratePrompt(context.Background(), "system prompt", "user prompt", 0.7)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
}

func TestGeneratePrompt_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr", 0.5)
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGeneratePrompt_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}}
	_, err := client.GeneratePrompt(context.Background(), "sys", "usr", 0.5)
	if err != ErrNoChoicesReturned {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestGenerate_ReturnsEmptyOnError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("backend down")}}
	if out := client.Generate(context.Background(), "sys", "usr", 0.5); out != "" {
		t.Errorf("expected empty string on backend error, got %q", out)
	}
}

func TestGenerateJSON_Success(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completionWith(`{"sentiment":"positive","urgency":9}`)}}
	var parsed struct {
		Sentiment string `json:"sentiment"`
		Urgency   int    `json:"urgency"`
	}
	if err := client.GenerateJSON(context.Background(), "sys", "usr", 0.3, &parsed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Sentiment != "positive" || parsed.Urgency != 9 {
		t.Errorf("unexpected parse result: %+v", parsed)
	}
}

func TestGenerateJSON_CodeFenced(t *testing.T) {
	fenced := "```json\n{\"sentiment\":\"neutral\"}\n```"
	client := &Client{chat: &mockChatService{resp: completionWith(fenced)}}
	var parsed struct {
		Sentiment string `json:"sentiment"`
	}
	if err := client.GenerateJSON(context.Background(), "sys", "usr", 0.3, &parsed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Sentiment != "neutral" {
		t.Errorf("expected neutral, got %q", parsed.Sentiment)
	}
}

func TestGenerateJSON_Malformed(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completionWith("sorry, I cannot help with that")}}
	var parsed map[string]any
	if err := client.GenerateJSON(context.Background(), "sys", "usr", 0.3, &parsed); err == nil {
		t.Error("expected error for malformed JSON, got nil")
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Error("expected client instance, got nil")
	}
}
