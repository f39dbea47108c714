// Package embedding turns text into vectors using a hosted model.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

// ErrEmbeddingFailed is returned when the provider could not produce a vector.
var ErrEmbeddingFailed = errors.New("embedding: generation failed")

// Provider generates one vector per input text, in input order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Observer receives the latency of each provider call.
type Observer interface {
	ObserveEmbedding(provider string, outcome string, d time.Duration)
}

// ResilientConfig configures NewResilient.
type ResilientConfig struct {
	Name     string
	Timeout  time.Duration
	Retries  int
	Backoff  time.Duration
	Observer Observer
	Logger   *logging.Logger
}

// Resilient bounds each call with a timeout and retries retryable failures.
type Resilient struct {
	next     Provider
	name     string
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	observer Observer
	logger   *logging.Logger
}

// NewResilient wraps next. Zero values default to an 8s timeout and one retry.
func NewResilient(next Provider, cfg ResilientConfig) *Resilient {
	if next == nil {
		panic("embedding: provider cannot be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	} else if cfg.Retries == 0 {
		cfg.Retries = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Resilient{
		next:     next,
		name:     cfg.Name,
		timeout:  cfg.Timeout,
		retries:  cfg.Retries,
		backoff:  cfg.Backoff,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
}

// Embed implements Provider.
func (r *Resilient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, ctx.Err())
			case <-time.After(r.backoff):
			}
		}
		vectors, err := r.call(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !Retryable(err) || ctx.Err() != nil {
			break
		}
		r.logger.Warn("embedding call failed, retrying", "provider", r.name, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, lastErr)
}

func (r *Resilient) call(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	vectors, err := r.next.Embed(callCtx, texts)
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("embedding: expected %d vectors, got %d", len(texts), len(vectors))
	}
	if r.observer != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		r.observer.ObserveEmbedding(r.name, outcome, time.Since(start))
	}
	return vectors, err
}

type statusCoder interface {
	HTTPStatusCode() int
}

// Retryable reports whether err is a transient upstream failure: network
// errors, timeouts, 429 and 5xx responses.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return retryableStatus(sc.HTTPStatusCode())
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
