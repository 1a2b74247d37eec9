// Package llm is the single gateway between the cycle engine and the
// model backend. Every prompt lives here; callers get typed values
// back and never see raw completions. Transient provider errors are
// retried with jittered backoff behind a circuit breaker, and decode
// failures trigger one re-prompt carrying the decode error before the
// operation fails with a schema error.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/util/retry"
)

const (
	defaultMaxRetries  = 3
	defaultMaxHistory  = 5
	defaultTemperature = 0.0
)

// Client implements Gateway on top of a langchaingo model.
type Client struct {
	model       llms.Model
	log         logr.Logger
	breaker     *gobreaker.CircuitBreaker
	temperature float64
	maxRetries  int
	maxHistory  int
	retryDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTemperature sets the sampling temperature for every call.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithMaxRetries caps provider retries per call.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithMaxHistory caps how many prior failures a re-prompt carries.
func WithMaxHistory(n int) Option {
	return func(c *Client) { c.maxHistory = n }
}

// NewClient wraps a model into the typed gateway.
func NewClient(model llms.Model, log logr.Logger, opts ...Option) *Client {
	c := &Client{
		model:       model,
		log:         log.WithName("llm"),
		temperature: defaultTemperature,
		maxRetries:  defaultMaxRetries,
		maxHistory:  defaultMaxHistory,
		retryDelay:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c
}

// complete performs one model round trip, streaming into a buffer and
// returning the assembled completion.
func (c *Client) complete(ctx context.Context, op, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	var out string
	attempt := 0
	start := time.Now()
	err := retry.WithExponentialBackoff(ctx, func() error {
		attempt++
		var streamed strings.Builder
		raw, err := c.breaker.Execute(func() (any, error) {
			return c.model.GenerateContent(ctx, messages,
				llms.WithTemperature(c.temperature),
				llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
					streamed.Write(chunk)
					return nil
				}),
			)
		})
		if err != nil {
			if ctx.Err() != nil {
				return retry.Fatal(ctx.Err())
			}
			if err == gobreaker.ErrOpenState {
				return retry.Fatal(err)
			}
			return err
		}
		resp := raw.(*llms.ContentResponse)
		if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
			if streamed.Len() == 0 {
				return fmt.Errorf("model returned no content")
			}
			out = streamed.String()
			return nil
		}
		out = resp.Choices[0].Content
		return nil
	},
		retry.WithMaxRetries(c.maxRetries),
		retry.WithInitialDelay(c.retryDelay),
		retry.WithMaxDelay(60*time.Second),
		retry.WithOnRetry(func(n int, err error, delay time.Duration) {
			c.log.Info("model call retrying", "operation", op, "attempt", n, "delay", delay, "error", err.Error())
		}),
	)
	if err != nil {
		return "", cerrors.New(cerrors.TransientInfra, fmt.Errorf("%s: %w", op, err))
	}
	c.log.Info("model call completed", "operation", op, "attempts", attempt, "latency", time.Since(start))
	return out, nil
}

// generateText runs an operation whose answer is free text.
func (c *Client) generateText(ctx context.Context, op, user string) (string, error) {
	out, err := c.complete(ctx, op, systemPrompt, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripFences(out)), nil
}

// generateJSON runs an operation whose answer must decode into target.
// A decode failure re-prompts once with the decode error appended; a
// second failure surfaces as a schema error.
func (c *Client) generateJSON(ctx context.Context, op, user string, target any) error {
	prompt := user
	var decodeErr error
	for round := 0; round < 2; round++ {
		out, err := c.complete(ctx, op, systemPrompt+jsonInstruction, prompt)
		if err != nil {
			return err
		}
		payload := extractJSON(out)
		decodeErr = strictDecode(payload, target)
		if decodeErr == nil {
			return nil
		}
		c.log.Info("model response failed to decode, re-prompting",
			"operation", op, "error", decodeErr.Error())
		prompt = fmt.Sprintf("%s\n\nYour previous answer could not be parsed: %v\nPrevious answer:\n%s\nAnswer again with a single valid JSON object.",
			user, decodeErr, payload)
	}
	return cerrors.New(cerrors.SchemaFail, fmt.Errorf("%s: %w", op, decodeErr))
}

func strictDecode(payload string, target any) error {
	dec := json.NewDecoder(strings.NewReader(payload))
	return dec.Decode(target)
}

// stripFences removes a surrounding markdown code fence, tolerating a
// language tag on the opening line.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return ""
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// extractJSON pulls the outermost JSON object out of a completion that
// may carry prose or fences around it.
func extractJSON(s string) string {
	cleaned := stripFences(s)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		return cleaned[start : end+1]
	}
	return cleaned
}
