// Package answer adapts question-answering APIs to a single Provider
// interface used by the cell resolver.
package answer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/exa-sheets/internal/config"
	"github.com/sells-group/exa-sheets/internal/resilience"
	"github.com/sells-group/exa-sheets/pkg/anthropic"
	"github.com/sells-group/exa-sheets/pkg/exa"
	"github.com/sells-group/exa-sheets/pkg/perplexity"
)

// Provider answers a natural-language question with free text.
type Provider interface {
	Answer(ctx context.Context, question string) (*Response, error)
}

// Response carries the answer text. No other field of the upstream
// response is consumed.
type Response struct {
	Answer string
}

// ErrMissingCredential is returned by New when the selected backend has no
// API key configured.
var ErrMissingCredential = eris.New("answer: missing credential")

// New builds the provider selected by cfg.Answer.Provider. A missing API key
// is a setup failure and is returned as an error rather than degrading every
// cell to the unavailable marker.
func New(cfg *config.Config) (Provider, error) {
	timeout := time.Duration(cfg.Answer.TimeoutSecs) * time.Second

	var p Provider
	switch cfg.Answer.Provider {
	case "exa":
		if cfg.Exa.Key == "" {
			return nil, eris.Wrap(ErrMissingCredential, "exa: set EXA_API_KEY")
		}
		opts := []exa.Option{exa.WithTimeout(timeout), exa.WithRateLimit(cfg.Answer.RatePerSec)}
		if cfg.Exa.BaseURL != "" {
			opts = append(opts, exa.WithBaseURL(cfg.Exa.BaseURL))
		}
		p = NewExa(exa.NewClient(cfg.Exa.Key, opts...))
	case "perplexity":
		if cfg.Perplexity.Key == "" {
			return nil, eris.Wrap(ErrMissingCredential, "perplexity: set PERPLEXITY_API_KEY")
		}
		opts := []perplexity.Option{perplexity.WithModel(cfg.Perplexity.Model), perplexity.WithRateLimit(cfg.Answer.RatePerSec)}
		if cfg.Perplexity.BaseURL != "" {
			opts = append(opts, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
		}
		p = NewPerplexity(perplexity.NewClient(cfg.Perplexity.Key, opts...))
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.Wrap(ErrMissingCredential, "anthropic: set ANTHROPIC_API_KEY")
		}
		opts := []anthropic.Option{anthropic.WithModel(cfg.Anthropic.Model), anthropic.WithMaxTokens(cfg.Anthropic.MaxTokens)}
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		p = NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key, opts...))
	case "stub":
		p = &Stub{}
	default:
		return nil, eris.Errorf("answer: unknown provider %q", cfg.Answer.Provider)
	}

	if cfg.Answer.MaxAttempts > 1 {
		p = WithRetry(p, resilience.DefaultPolicy(cfg.Answer.MaxAttempts), cfg.Answer.Provider)
	}
	return p, nil
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, question string) (*Response, error)

// Answer implements Provider.
func (f Func) Answer(ctx context.Context, question string) (*Response, error) {
	return f(ctx, question)
}

type retrying struct {
	next   Provider
	policy resilience.Policy
}

// WithRetry retries transient failures of next according to policy.
func WithRetry(next Provider, policy resilience.Policy, service string) Provider {
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.RetryLogger(service)
	}
	return &retrying{next: next, policy: policy}
}

func (r *retrying) Answer(ctx context.Context, question string) (*Response, error) {
	return resilience.Do(ctx, r.policy, func(ctx context.Context) (*Response, error) {
		return r.next.Answer(ctx, question)
	})
}
