package judge

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ksyjerry/fs-recon/internal/resilience"
)

// ClientConfig configures the Anthropic-backed judge.
type ClientConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	// RequestsPerSecond throttles calls to respect endpoint limits.
	// Zero disables throttling.
	RequestsPerSecond float64
}

// Client implements Judge on top of the official anthropic-sdk-go.
type Client struct {
	client    sdk.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// NewClient builds a judge backed by the Anthropic Messages API.
func NewClient(cfg ClientConfig) *Client {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 32768
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		client:    sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: maxTokens,
		limiter:   limiter,
	}
}

// CompleteJSON sends the messages at temperature 0 and parses the response
// through ParseJSON. Transport failures are retried with bounded
// exponential backoff; a non-JSON response after recovery is an error.
func (c *Client) CompleteJSON(ctx context.Context, msgs []Message) (any, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "judge: rate limit wait")
		}
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(0),
	}
	for _, m := range msgs {
		if m.Role == "system" {
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Content})
			continue
		}
		params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
	}

	resp, err := resilience.DoVal(ctx, resilience.RetryConfig{}, "judge.messages.new",
		func(ctx context.Context) (*sdk.Message, error) {
			return c.client.Messages.New(ctx, params)
		})
	if err != nil {
		return nil, eris.Wrap(err, "judge: create message")
	}

	text := extractText(resp)
	if text == "" {
		return nil, eris.New("judge: empty response")
	}
	return ParseJSON(text)
}

// extractText concatenates the text content blocks of a response.
func extractText(resp *sdk.Message) string {
	var out string
	for _, block := range resp.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}
