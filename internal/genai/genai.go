// Package genai provides the generation collaborator of the dialogue core,
// backed by the OpenAI chat completions API.
//
// Prompt template selection by dialogue state lives here, not in the
// dialogue manager: the manager supplies the conversation history and the
// {knowledge_context, formatted_info} bundle, and this package turns them
// into a model request.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/medpipe/medpipe/internal/models"
	"github.com/medpipe/medpipe/internal/prompts"
)

// Error variables for generation failures.
var (
	ErrAPIKeyNotSet      = errors.New("OPENAI_API_KEY not set")
	ErrNoChoicesReturned = errors.New("no choices returned")
)

// PromptContext bundles the per-turn context the dialogue manager prepares
// for response generation.
type PromptContext struct {
	KnowledgeContext string // retrieved snippets joined as one block, may be empty
	FormattedInfo    string // collected medical info rendered with display names
	Urgency          string // referral urgency, "urgent" or "non_urgent"
	StyleGuide       string // optional communication-style guide appended to the system prompt
}

// ClientInterface is the generation collaborator contract consumed by the
// dialogue manager.
type ClientInterface interface {
	// Generate produces the natural-language response for a generation
	// state from the conversation history and the prompt context.
	Generate(ctx context.Context, state models.DialogueState, history []models.ConversationMessage, pc PromptContext) (string, error)
}

// chatService is the minimal chat completions surface used by the client.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds client configuration.
type Opts struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int64
	Temperature   float64
	MinConfidence float64
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the API key, overriding the OPENAI_API_KEY variable.
func WithAPIKey(key string) Option { return func(o *Opts) { o.APIKey = key } }

// WithBaseURL points the client at a compatible API endpoint.
func WithBaseURL(url string) Option { return func(o *Opts) { o.BaseURL = url } }

// WithModel overrides the default model.
func WithModel(model string) Option { return func(o *Opts) { o.Model = model } }

// WithMinConfidence sets the confidence floor of the intent classifier.
func WithMinConfidence(min float64) Option { return func(o *Opts) { o.MinConfidence = min } }

// Client implements ClientInterface over the OpenAI API.
type Client struct {
	chat          chatService
	model         string
	maxTokens     int64
	temperature   float64
	minConfidence float64
}

// NewClient initializes a generation client. The API key is taken from the
// options or the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:         openai.ChatModelGPT4oMini,
		MaxTokens:     800,
		Temperature:   0.7,
		MinConfidence: models.DefaultMinConfidence,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	slog.Debug("genai.NewClient: client initialized", "model", cfg.Model, "base_url_set", cfg.BaseURL != "")
	return &Client{
		chat:          &cli.Chat.Completions,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		minConfidence: cfg.MinConfidence,
	}, nil
}

// Generate builds the per-state prompt and requests a completion.
func (c *Client) Generate(ctx context.Context, state models.DialogueState, history []models.ConversationMessage, pc PromptContext) (string, error) {
	userPrompt, ok := prompts.Render(state, pc.KnowledgeContext, pc.FormattedInfo, pc.Urgency)
	if !ok {
		return "", fmt.Errorf("no generation template for state %s", state)
	}

	systemPrompt := prompts.SystemPrompt
	if pc.StyleGuide != "" {
		systemPrompt += "\n\n" + pc.StyleGuide
	}

	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt)}
	for _, msg := range history {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(c.maxTokens),
		Temperature:         openai.Float(c.temperature),
	})
	if err != nil {
		slog.Error("genai.Generate: completion request failed", "state", state, "error", err)
		return "", fmt.Errorf("failed to generate response for state %s: %w", state, err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.Generate: empty choice list", "state", state)
		return "", ErrNoChoicesReturned
	}
	out := resp.Choices[0].Message.Content
	slog.Debug("genai.Generate: response generated", "state", state, "length", len(out))
	return out, nil
}
