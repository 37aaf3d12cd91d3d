// Package cost estimates answer-provider spend for a fill.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Exa        QueryRate            `yaml:"exa" mapstructure:"exa"`
	Perplexity QueryRate            `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// QueryRate is a flat price per question.
type QueryRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Typical token counts for one cell question and its short answer.
const (
	cellInputTokens  = 60
	cellOutputTokens = 40
)

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of a Claude call with the given token counts.
func (c *Calculator) Claude(model string, input, output int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// PerCell returns the estimated price of answering one cell with provider.
// model only matters for anthropic. Unknown providers and the stub are free.
func (c *Calculator) PerCell(provider, model string) float64 {
	switch provider {
	case "exa":
		return c.rates.Exa.PerQuery
	case "perplexity":
		return c.rates.Perplexity.PerQuery
	case "anthropic":
		return c.Claude(model, cellInputTokens, cellOutputTokens)
	default:
		return 0
	}
}

// Estimate returns the estimated price of answering cells questions.
func (c *Calculator) Estimate(provider, model string, cells int) float64 {
	if cells <= 0 {
		return 0
	}
	return float64(cells) * c.PerCell(provider, model)
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Exa:        QueryRate{PerQuery: 0.005},
		Perplexity: QueryRate{PerQuery: 0.005},
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
	}
}
