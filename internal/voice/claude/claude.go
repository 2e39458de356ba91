// Package claude refines low-confidence voice notes with the Anthropic
// Messages API.
package claude

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/rs/zerolog"

	"github.com/vbonduro/inspectflow/internal/domain"
	"github.com/vbonduro/inspectflow/internal/voice"
)

// The response is a single extraction row; 256 tokens leaves room for a
// chatty preamble.
const maxTokens = 256

type Refiner struct {
	client *anthropic.Client
	model  string
	logger zerolog.Logger
}

// Option customises a Refiner.
type Option func(*refinerOptions)

type refinerOptions struct {
	baseURL string
	logger  zerolog.Logger
}

// WithBaseURL points the client at a different API root, e.g. a test server.
func WithBaseURL(url string) Option {
	return func(o *refinerOptions) { o.baseURL = url }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *refinerOptions) { o.logger = l }
}

func NewRefiner(apiKey, model string, opts ...Option) *Refiner {
	o := refinerOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []anthropic.ClientOption
	if o.baseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(o.baseURL))
	}

	return &Refiner{
		client: anthropic.NewClient(apiKey, clientOpts...),
		model:  model,
		logger: o.logger.With().Str("component", "claude_refiner").Logger(),
	}
}

var _ voice.Refiner = (*Refiner)(nil)

// Refine asks the model to restate text as an extraction row. A response
// without a usable row is an error so the caller keeps its heuristic result.
func (r *Refiner) Refine(ctx context.Context, text string) (domain.Finding, error) {
	resp, err := r.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(r.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(voice.ExtractionPrompt + text),
		},
	})
	if err != nil {
		return domain.Finding{}, fmt.Errorf("failed to call claude: %w", err)
	}

	var responseText string
	for _, c := range resp.Content {
		if c.Type == "text" {
			responseText = c.GetText()
			break
		}
	}

	f, ok := voice.ParseExtraction(responseText)
	if !ok {
		r.logger.Debug().Str("response", responseText).Msg("no extraction row in claude response")
		return domain.Finding{}, fmt.Errorf("failed to parse claude response: no extraction row")
	}
	return f, nil
}
