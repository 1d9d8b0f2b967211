package cost

import (
	"go.uber.org/zap"
)

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps OpenRouter model ids to their pricing.
type Rates map[string]ModelRate

// Calculator computes costs for upstream chat completions.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Chat computes the cost of one chat completion. Unknown models cost 0.
func (c *Calculator) Chat(model string, promptTokens, completionTokens int) float64 {
	if c == nil {
		return 0
	}
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}
	in := (float64(promptTokens) / 1e6) * rate.Input
	out := (float64(completionTokens) / 1e6) * rate.Output
	return in + out
}

// LogChat logs token usage and estimated cost with structured zap fields.
func (c *Calculator) LogChat(log *zap.Logger, model string, promptTokens, completionTokens int) {
	log.Debug("cost attribution",
		zap.String("model", model),
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens),
		zap.Float64("estimated_cost_usd", c.Chat(model, promptTokens, completionTokens)),
	)
}

// Merge returns the default rates overlaid with overrides.
func Merge(overrides Rates) Rates {
	out := DefaultRates()
	for model, rate := range overrides {
		out[model] = rate
	}
	return out
}

// DefaultRates returns list prices for the vision models commonly routed
// through OpenRouter.
func DefaultRates() Rates {
	return Rates{
		"google/gemini-2.0-flash-001": {Input: 0.10, Output: 0.40},
		"google/gemini-2.5-flash":     {Input: 0.30, Output: 2.50},
		"openai/gpt-4o-mini":          {Input: 0.15, Output: 0.60},
		"openai/gpt-4o":               {Input: 2.50, Output: 10.00},
		"anthropic/claude-3.5-sonnet": {Input: 3.00, Output: 15.00},
	}
}
