package fill

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/exa-sheets/internal/answer"
	"github.com/sells-group/exa-sheets/internal/grid"
)

// DefaultQuestionTemplate is formatted with the attribute then the entity.
const DefaultQuestionTemplate = "What is the %s of %s? Return only the value or 'NA' if unavailable."

// unavailablePhrases are provider replies that mean "no answer". Compared
// after Unicode case folding.
var unavailablePhrases = map[string]struct{}{}

func init() {
	for _, p := range []string{"na", "n/a", "not available", "not applicable"} {
		unavailablePhrases[cases.Fold().String(p)] = struct{}{}
	}
}

// outcome classifies a raw provider answer.
type outcome int

const (
	outcomeValue outcome = iota
	outcomeEmpty
	outcomeExplicitNA
)

func classify(raw string) (string, outcome) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return grid.Unavailable, outcomeEmpty
	}
	// cases.Caser is stateful; a fresh one per call keeps this goroutine-safe.
	if _, ok := unavailablePhrases[cases.Fold().String(v)]; ok {
		return grid.Unavailable, outcomeExplicitNA
	}
	return v, outcomeValue
}

// Normalize trims a raw answer and maps empty or explicit "not available"
// replies to grid.Unavailable. Anything else is returned trimmed, verbatim.
func Normalize(raw string) string {
	v, _ := classify(raw)
	return v
}

// Resolver turns one (entity, attribute) pair into a cell value.
type Resolver struct {
	provider answer.Provider
	template string
	log      *zap.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithQuestionTemplate overrides DefaultQuestionTemplate. Empty keeps the
// default.
func WithQuestionTemplate(tmpl string) ResolverOption {
	return func(r *Resolver) {
		if tmpl != "" {
			r.template = tmpl
		}
	}
}

// WithResolverLogger sets the logger used for per-cell diagnostics.
func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// NewResolver creates a Resolver backed by p.
func NewResolver(p answer.Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		provider: p,
		template: DefaultQuestionTemplate,
		log:      zap.L(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Question builds the prompt sent to the provider.
func (r *Resolver) Question(entity, attribute string) string {
	return fmt.Sprintf(r.template, attribute, entity)
}

// Resolve asks the provider for attribute of entity. Provider failures never
// escape: they are logged and reported as grid.Unavailable so one bad cell
// cannot abort a fill.
func (r *Resolver) Resolve(ctx context.Context, entity, attribute string) string {
	question := r.Question(entity, attribute)
	log := r.log.With(zap.String("entity", entity), zap.String("attribute", attribute))

	resp, err := r.provider.Answer(ctx, question)
	if err != nil {
		log.Error("resolve: provider call failed", zap.Error(err))
		return grid.Unavailable
	}

	var raw string
	if resp != nil {
		raw = resp.Answer
	}

	value, kind := classify(raw)
	switch kind {
	case outcomeEmpty:
		log.Info("resolve: empty answer")
	case outcomeExplicitNA:
		log.Info("resolve: provider reported unavailable", zap.String("answer", strings.TrimSpace(raw)))
	default:
		log.Debug("resolve: answered", zap.String("value", value))
	}
	return value
}
