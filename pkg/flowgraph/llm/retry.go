package llm

import (
	"context"
	"log/slog"

	fgerrors "github.com/randalmurphal/flowlab/pkg/flowgraph/errors"
)

// RetryingClient retries transient failures of an inner Client.
type RetryingClient struct {
	inner  Client
	cfg    fgerrors.RetryConfig
	logger *slog.Logger
}

// NewRetryingClient wraps inner with cfg. A nil logger uses slog.Default().
func NewRetryingClient(inner Client, cfg fgerrors.RetryConfig, logger *slog.Logger) *RetryingClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingClient{inner: inner, cfg: cfg, logger: logger}
}

// Complete implements Client.
func (r *RetryingClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	attempt := 0
	res := fgerrors.WithRetryContext(ctx, r.cfg, func(ctx context.Context) (*CompletionResponse, error) {
		attempt++
		resp, err := r.inner.Complete(ctx, req)
		if err != nil && fgerrors.IsRetryable(err) && attempt < r.cfg.MaxAttempts {
			r.logger.Warn("llm call failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		}
		return resp, err
	})
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Value, nil
}
