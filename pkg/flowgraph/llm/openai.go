package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	fgerrors "github.com/randalmurphal/flowlab/pkg/flowgraph/errors"
)

// Defaults target Gemini through its OpenAI-compatible endpoint.
const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel   = "gemini-2.5-flash"
)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds a single request. Zero uses the SDK default.
	Timeout time.Duration
}

// OpenAIClient implements Client over any OpenAI-compatible chat completions
// endpoint using the official openai-go SDK.
//
// The SDK's own retries are disabled; wrap the client with NewRetryingClient
// to retry transient failures.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient validates cfg and builds a client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api key missing; set llm.api_key or FLOWLAB_LLM_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIClient{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

// Model returns the default model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(req),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &fgerrors.SchemaValidationError{Message: "response has no choices"}
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Duration:     time.Since(start),
		Usage: TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

func toOpenAIMessages(req CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleTool:
			// Tool results are not replayed to the model.
			continue
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return msgs
}

// classifyOpenAIError maps SDK failures onto the errors taxonomy.
func classifyOpenAIError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		httpErr := &fgerrors.HTTPError{StatusCode: apiErr.StatusCode, Message: apiErr.Message, Endpoint: "chat/completions"}
		if fgerrors.IsRetryable(httpErr) {
			return fgerrors.Transient("complete", httpErr)
		}
		return httpErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fgerrors.Transient("complete", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fgerrors.Transient("complete", err)
	}

	return fmt.Errorf("complete: %w", err)
}
