package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/exa-sheets/internal/answer"
	"github.com/sells-group/exa-sheets/internal/cost"
	"github.com/sells-group/exa-sheets/internal/fill"
	"github.com/sells-group/exa-sheets/internal/session"
	"github.com/sells-group/exa-sheets/internal/store"
	"github.com/sells-group/exa-sheets/internal/ui"
)

// initStore opens and migrates the session store selected by cfg.Store.Driver.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initFiller builds the answer provider, cell resolver and filler from cfg.
// concurrency overrides cfg.Fill.Concurrency when positive.
func initFiller(concurrency int) (*fill.Filler, error) {
	provider, err := answer.New(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "init answer provider")
	}

	if concurrency <= 0 {
		concurrency = cfg.Fill.Concurrency
	}

	resolver := fill.NewResolver(provider, fill.WithQuestionTemplate(cfg.Fill.QuestionTemplate))
	zap.L().Debug("answer provider ready",
		zap.String("provider", cfg.Answer.Provider),
		zap.Int("concurrency", concurrency),
	)
	return fill.NewFiller(resolver, fill.WithConcurrency(concurrency)), nil
}

// sessionEnv bundles the store and manager used by session commands.
type sessionEnv struct {
	store   store.Store
	manager *session.Manager
	bar     *ui.CellBar
}

// initSessionEnv opens the store and builds a manager. Commands that only
// read sessions pass withFiller=false so no provider credentials are needed.
func initSessionEnv(ctx context.Context, withFiller bool, concurrency int) (*sessionEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var f *fill.Filler
	if withFiller {
		f, err = initFiller(concurrency)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	bar := ui.NewCellBar(quiet)
	m := session.NewManager(st, f,
		session.WithSampleRows(cfg.Fill.SampleRows),
		session.WithProgress(bar),
	)
	return &sessionEnv{store: st, manager: m, bar: bar}, nil
}

func (e *sessionEnv) Close() error {
	return e.store.Close()
}

// spendCalculator applies cfg.Pricing overrides to the default rates.
func spendCalculator() *cost.Calculator {
	rates := cost.DefaultRates()
	if p := cfg.Pricing.ExaPerQuery; p > 0 {
		rates.Exa.PerQuery = p
	}
	if p := cfg.Pricing.PerplexityPerQuery; p > 0 {
		rates.Perplexity.PerQuery = p
	}
	for model, mp := range cfg.Pricing.Anthropic {
		rates.Anthropic[model] = cost.ModelRate{Input: mp.Input, Output: mp.Output}
	}
	return cost.NewCalculator(rates)
}

// estimateSpend returns the estimated USD price of answering cells questions
// with the configured provider.
func estimateSpend(cells int) float64 {
	return spendCalculator().Estimate(cfg.Answer.Provider, cfg.Anthropic.Model, cells)
}
