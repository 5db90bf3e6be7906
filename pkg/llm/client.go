package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"dailysignal/pkg/retry"
)

// LLMClient is the surface the sentiment scorer depends on.
type LLMClient interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ChatStructured(ctx context.Context, req *ChatRequest, target any) error
	Close() error
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg    *Config
	api    openai.Client
	httpc  *http.Client
	logger Logger
	policy retry.Policy
}

// ClientOption configures optional client behaviour.
type ClientOption func(*Client)

// WithLogger injects a custom logger implementation.
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithRetry replaces the retry policy derived from MaxRetries.
func WithRetry(p retry.Policy) ClientOption {
	return func(c *Client) { c.policy = retry.New(p) }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpc = client }
}

// NewClient constructs a client. The configuration must carry an API key.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("llm: config cannot be nil")
	}
	c := &Client{cfg: cfg.Clone()}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	c.policy = RetryPolicy(c.cfg.MaxRetries)
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = NewLogger(c.cfg.LogLevel)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(c.cfg.APIKey),
		option.WithBaseURL(c.cfg.BaseURL),
		// Attempts are driven by policy.
		option.WithMaxRetries(0),
	}
	if c.cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(c.cfg.Timeout))
	}
	if c.httpc != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpc))
	}
	c.api = openai.NewClient(reqOpts...)
	return c, nil
}

// Chat performs one completion, retrying transient failures.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, errors.New("llm: request cannot be nil")
	}
	params, modelID, err := c.params(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	c.logger.Debug(ctx, "llm chat request", Fields{"model": modelID, "messages": len(req.Messages)})

	var completion *openai.ChatCompletion
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			err = classify(err)
			c.logger.Warn(ctx, "llm chat attempt failed", Fields{"model": modelID, "err": err})
			return err
		}
		completion = resp
		return nil
	})
	if err != nil {
		err = fmt.Errorf("llm: chat completion: %w", err)
		c.logger.Error(ctx, err, Fields{"model": modelID})
		return nil, err
	}

	out := toResponse(completion)
	c.logger.Info(ctx, "llm chat success", Fields{
		"model":             modelID,
		"duration_ms":       time.Since(start).Milliseconds(),
		"prompt_tokens":     out.Usage.PromptTokens,
		"completion_tokens": out.Usage.CompletionTokens,
	})
	return out, nil
}

// ChatStructured enforces a JSON schema derived from target and decodes the
// reply into it. target must be a non-nil pointer to a struct.
func (c *Client) ChatStructured(ctx context.Context, req *ChatRequest, target any) error {
	if req == nil {
		return errors.New("llm: request cannot be nil")
	}
	value := reflect.ValueOf(target)
	if target == nil || value.Kind() != reflect.Ptr || value.IsNil() {
		return errors.New("llm: structured target must be a non-nil pointer")
	}
	schema, err := GenerateSchema(target)
	if err != nil {
		return err
	}

	strict := true
	withSchema := *req
	withSchema.ResponseFormat = &ResponseFormat{
		Type:        "json_schema",
		Name:        strings.ToLower(value.Type().Elem().Name()),
		Schema:      schema,
		Description: "Structured response",
		Strict:      &strict,
	}
	resp, err := c.Chat(ctx, &withSchema)
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return errors.New("llm: empty structured response")
	}
	if err := ParseStructured(resp.Content(), target); err != nil {
		c.logger.Error(ctx, fmt.Errorf("parse structured response: %w", err), Fields{"model": resp.Model})
		return err
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.httpc != nil {
		c.httpc.CloseIdleConnections()
	}
	return nil
}

// params resolves the model alias and merges request sampling settings over
// the model defaults.
func (c *Client) params(req *ChatRequest) (openai.ChatCompletionNewParams, string, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionNewParams{}, "", errors.New("llm: request requires at least one message")
	}
	modelID, mc := c.cfg.ResolveModel(req.Model)

	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelID),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch strings.ToLower(m.Role) {
		case "system":
			p.Messages = append(p.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			p.Messages = append(p.Messages, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			p.Messages = append(p.Messages, openai.UserMessage(m.Content))
		}
	}

	if rf := req.ResponseFormat; rf != nil && strings.EqualFold(rf.Type, "json_schema") {
		if rf.Schema == nil {
			return openai.ChatCompletionNewParams{}, "", errors.New("llm: json_schema requires a schema")
		}
		js := shared.ResponseFormatJSONSchemaJSONSchemaParam{Name: rf.Name, Schema: rf.Schema}
		if js.Name == "" {
			js.Name = "structured_output"
		}
		if rf.Strict != nil {
			js.Strict = openai.Bool(*rf.Strict)
		}
		if desc := strings.TrimSpace(rf.Description); desc != "" {
			js.Description = openai.String(desc)
		}
		val := shared.ResponseFormatJSONSchemaParam{JSONSchema: js}
		val.Type = val.Type.Default()
		p.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONSchema: &val}
	} else if rf != nil && rf.Type != "" && !strings.EqualFold(rf.Type, "text") {
		return openai.ChatCompletionNewParams{}, "", fmt.Errorf("llm: unsupported response format %q", rf.Type)
	}

	if v := firstFloat(req.Temperature, mc.Temperature); v != nil {
		p.Temperature = openai.Float(*v)
	}
	if v := firstFloat(req.TopP, mc.TopP); v != nil {
		p.TopP = openai.Float(*v)
	}
	if req.MaxCompletionTokens != nil {
		p.MaxCompletionTokens = openai.Int(int64(*req.MaxCompletionTokens))
	} else if mc.MaxCompletionTokens != nil {
		p.MaxCompletionTokens = openai.Int(int64(*mc.MaxCompletionTokens))
	}
	return p, modelID, nil
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func toResponse(resp *openai.ChatCompletion) *ChatResponse {
	out := &ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, choice := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Index:        int(choice.Index),
			Message:      Message{Role: string(choice.Message.Role), Content: strings.TrimSpace(choice.Message.Content)},
			FinishReason: choice.FinishReason,
		})
	}
	return out
}
