package metrics

import (
	"strings"

	"github.com/ConfabulousDev/confab-insights/internal/logger"
	"github.com/shopspring/decimal"
)

// ModelPricing is USD per million tokens
type ModelPricing struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

func price(in, out float64) ModelPricing {
	return ModelPricing{Input: decimal.NewFromFloat(in), Output: decimal.NewFromFloat(out)}
}

// Source: https://www.anthropic.com/pricing
var modelPricingTable = map[string]ModelPricing{
	"opus-4-6":   price(5, 25),
	"opus-4-5":   price(5, 25),
	"opus-4-1":   price(15, 75),
	"opus-4":     price(15, 75),
	"sonnet-4-5": price(3, 15),
	"sonnet-4":   price(3, 15),
	"sonnet-3-7": price(3, 15),
	"haiku-4-5":  price(1, 5),
	"haiku-3-5":  price(0.80, 4),
	"haiku-3":    price(0.25, 1.25),
}

var oneMillion = decimal.NewFromInt(1_000_000)

// modelFamily maps a full model id onto a pricing key.
// e.g., "claude-opus-4-5-20251101" -> "opus-4-5", "claude-sonnet-4-20250514" -> "sonnet-4"
func modelFamily(model string) string {
	parts := strings.Split(strings.TrimPrefix(model, "claude-"), "-")
	if len(parts) < 2 {
		return strings.Join(parts, "-")
	}
	family := parts[0]
	if family != "opus" && family != "sonnet" && family != "haiku" {
		return strings.Join(parts, "-")
	}
	if !isDigit(parts[1]) {
		return strings.Join(parts, "-")
	}
	// Minor versions are one digit; date suffixes are 8
	if len(parts) >= 3 && isDigit(parts[2]) {
		return family + "-" + parts[1] + "-" + parts[2]
	}
	return family + "-" + parts[1]
}

func isDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

// EstimateCost prices the session's recorded usage. Unknown models cost
// zero rather than silently borrowing another model's rates.
func EstimateCost(model string, inputTokens, outputTokens int64) decimal.Decimal {
	p, ok := modelPricingTable[modelFamily(model)]
	if !ok {
		if model != "" {
			logger.Debug("unknown model for pricing", "model", model)
		}
		return decimal.Zero
	}
	in := decimal.NewFromInt(inputTokens).Mul(p.Input).Div(oneMillion)
	out := decimal.NewFromInt(outputTokens).Mul(p.Output).Div(oneMillion)
	return in.Add(out)
}

// Cost prices m using its recorded model
func (m SessionMetrics) Cost() decimal.Decimal {
	return EstimateCost(m.ModelUsed, m.TotalInputTokens, m.TotalOutputTokens)
}
