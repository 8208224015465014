package provider

import (
	"context"
	"fmt"
	"io"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/websmith-ai/websmith/internal/logging"
)

// DeepSeekConfig configures the DeepSeek client.
type DeepSeekConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxTokens       int
	Temperature     float64
	EnableReasoning bool
}

// DeepSeek is the streaming client for DeepSeek's OpenAI-compatible
// API. With reasoning enabled it targets the reasoner model, whose
// stream interleaves reasoning_content deltas with the answer.
type DeepSeek struct {
	chatModel model.ToolCallingChatModel
	cfg       DeepSeekConfig
}

// NewDeepSeek creates the client.
func NewDeepSeek(ctx context.Context, cfg DeepSeekConfig) (*DeepSeek, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY not set")
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = "deepseek-chat"
		if cfg.EnableReasoning {
			modelID = "deepseek-reasoner"
		}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	mc := &openai.ChatModelConfig{
		APIKey:              cfg.APIKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if cfg.BaseURL != "" {
		mc.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to create DeepSeek model: %w", err)
	}

	return &DeepSeek{chatModel: chatModel, cfg: cfg}, nil
}

// Stream sends one chat request and emits the event sequence. On a
// transport error mid-stream it falls back to a single non-streaming
// call before giving up.
func (d *DeepSeek) Stream(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (<-chan StreamEvent, error) {
	chatModel := d.chatModel
	if len(tools) > 0 {
		var err error
		chatModel, err = chatModel.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
	}

	var opts []model.Option
	if d.cfg.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(d.cfg.Temperature)))
	}

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)

		reader, err := chatModel.Stream(ctx, messages, opts...)
		if err != nil {
			d.fallback(ctx, chatModel, messages, opts, events, err)
			return
		}
		defer reader.Close()

		acc := newAccumulator()
		for {
			chunk, err := reader.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				d.fallback(ctx, chatModel, messages, opts, events, err)
				return
			}

			hadReasoning := chunk.ReasoningContent != ""
			acc.add(chunk)
			if hadReasoning {
				events <- StreamEvent{
					Kind:      KindReasoningDelta,
					Chunk:     chunk.ReasoningContent,
					Reasoning: acc.reasoning.String(),
				}
			}
		}

		final := StreamEvent{
			Kind:      KindDone,
			Content:   acc.content.String(),
			Reasoning: acc.reasoning.String(),
		}
		if acc.hasToolCalls() {
			final.Kind = KindToolCalls
			final.ToolCalls = acc.toolCalls()
		}
		events <- final
	}()

	return events, nil
}

// fallback retries the request without streaming, then reports the
// turn as failed if that does not work either.
func (d *DeepSeek) fallback(ctx context.Context, chatModel model.ToolCallingChatModel, messages []*schema.Message, opts []model.Option, events chan<- StreamEvent, cause error) {
	logging.Warn().Err(cause).Msg("stream failed, retrying without streaming")

	var resp *schema.Message
	op := func() error {
		var err error
		resp, err = chatModel.Generate(ctx, messages, opts...)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		events <- StreamEvent{Kind: KindError, Err: fmt.Errorf("provider request failed: %w", err)}
		return
	}

	acc := newAccumulator()
	acc.add(resp)

	final := StreamEvent{
		Kind:      KindDone,
		Content:   acc.content.String(),
		Reasoning: acc.reasoning.String(),
	}
	if acc.hasToolCalls() {
		final.Kind = KindToolCalls
		final.ToolCalls = acc.toolCalls()
	}
	events <- final
}
