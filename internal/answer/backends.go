package answer

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/sells-group/exa-sheets/pkg/anthropic"
	"github.com/sells-group/exa-sheets/pkg/exa"
	"github.com/sells-group/exa-sheets/pkg/perplexity"
)

// Compile-time interface checks.
var (
	_ Provider = (*Exa)(nil)
	_ Provider = (*Perplexity)(nil)
	_ Provider = (*Anthropic)(nil)
	_ Provider = (*Stub)(nil)
	_ Provider = Func(nil)
)

// Exa answers questions with the Exa /answer endpoint.
type Exa struct {
	client exa.Client
}

// NewExa wraps an Exa client.
func NewExa(c exa.Client) *Exa {
	return &Exa{client: c}
}

// Answer implements Provider.
func (e *Exa) Answer(ctx context.Context, question string) (*Response, error) {
	resp, err := e.client.Answer(ctx, exa.AnswerRequest{Query: question})
	if err != nil {
		return nil, err
	}
	return &Response{Answer: resp.Answer}, nil
}

// Perplexity answers questions with a single Sonar completion.
type Perplexity struct {
	client perplexity.Client
}

// NewPerplexity wraps a Perplexity client.
func NewPerplexity(c perplexity.Client) *Perplexity {
	return &Perplexity{client: c}
}

// Answer implements Provider.
func (p *Perplexity) Answer(ctx context.Context, question string) (*Response, error) {
	resp, err := p.client.Ask(ctx, perplexity.Question{Text: question})
	if err != nil {
		return nil, err
	}
	return &Response{Answer: resp.Text}, nil
}

const anthropicSystem = "You look up facts about companies. Reply with the value only, no explanation."

// Anthropic answers questions with a single Claude message.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic wraps an Anthropic client.
func NewAnthropic(c anthropic.Client) *Anthropic {
	return &Anthropic{client: c}
}

// Answer implements Provider.
func (a *Anthropic) Answer(ctx context.Context, question string) (*Response, error) {
	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		System:      anthropicSystem,
		Messages:    []anthropic.Message{{Role: "user", Content: question}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	return &Response{Answer: resp.Text()}, nil
}

// Stub returns deterministic canned answers without network access. About
// one question in five gets the unavailable marker so offline runs exercise
// both paths.
type Stub struct{}

// Answer implements Provider.
func (s *Stub) Answer(ctx context.Context, question string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(question))
	sum := h.Sum32()
	if sum%5 == 0 {
		return &Response{Answer: "NA"}, nil
	}
	subject := question
	if i := strings.Index(question, "?"); i > 0 {
		subject = question[:i]
	}
	return &Response{Answer: fmt.Sprintf("stub-%08x (%s)", sum, strings.TrimPrefix(subject, "What is the "))}, nil
}
