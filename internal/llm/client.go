// Package llm provides the chat-completion gateway client.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a chat-completion request.
type Message struct {
	Role    string
	Content string
}

// Options holds per-call sampling parameters.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// ChatClient generates a completion for a message sequence.
type ChatClient interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Client talks to an OpenAI-compatible chat-completions gateway.
type Client struct {
	client *openai.Client
	model  string
}

// Config holds gateway client configuration.
type Config struct {
	BaseURL string // OpenAI-compatible endpoint, e.g. https://openrouter.ai/api/v1
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient creates a new gateway client. The API key is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Complete sends the message sequence to the gateway and returns the first
// choice's content. Any gateway error is a hard failure for the caller.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: gateway returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// MockClient is a scripted chat client for tests. Responses are returned in
// order; calls record the messages each invocation received.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     [][]Message
}

// NewMockClient creates a mock that replays the given responses.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses}
}

// FailAt makes the call at index i (zero-based) return err instead of a response.
func (c *MockClient) FailAt(i int, err error) *MockClient {
	for len(c.errs) <= i {
		c.errs = append(c.errs, nil)
	}
	c.errs[i] = err
	return c
}

// Complete replays the next scripted response.
func (c *MockClient) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := len(c.calls)
	c.calls = append(c.calls, messages)

	if call < len(c.errs) && c.errs[call] != nil {
		return "", c.errs[call]
	}
	if call >= len(c.responses) {
		return "", fmt.Errorf("mock chat client: no response scripted for call %d", call)
	}
	return c.responses[call], nil
}

// Calls returns the message sequences received so far.
func (c *MockClient) Calls() [][]Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Ensure implementations satisfy interface.
var (
	_ ChatClient = (*Client)(nil)
	_ ChatClient = (*MockClient)(nil)
)
