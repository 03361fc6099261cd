package llm

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// GeminiBaseURL is Gemini's OpenAI-compatible endpoint
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

var (
	ErrNoAPIKey      = errors.New("GEMINI_API_KEY not set")
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Completer is the chat call the script writer and scene placer depend on
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// APIKeyFromEnv checks GEMINI_API_KEY then GOOGLE_API_KEY
func APIKeyFromEnv() string {
	for _, k := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Client talks to any OpenAI-compatible chat endpoint in JSON mode
type Client struct {
	cfg    Config
	client openai.Client
}

// New creates a new Client; an empty API key is ErrNoAPIKey
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = GeminiBaseURL
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(2),
	}
	return &Client{cfg: cfg, client: openai.NewClient(opts...)}, nil
}

func (c *Client) Model() string { return c.cfg.Model }

// Complete sends one system+user exchange and returns the raw message text
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       c.cfg.Model,
		Temperature: openai.Float(c.cfg.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return "", ErrEmptyResponse
	}
	return raw, nil
}
