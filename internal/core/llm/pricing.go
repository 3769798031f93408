package llm

import "github.com/shopspring/decimal"

// Price is USD per one million tokens.
type Price struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// PriceTable is keyed by "provider/model".
type PriceTable map[string]Price

var million = decimal.NewFromInt(1_000_000)

func usd(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// DefaultPrices holds list prices for the default model tiers.
func DefaultPrices() PriceTable {
	return PriceTable{
		"openai/gpt-4o-mini":                {Input: usd("0.15"), Output: usd("0.60")},
		"openai/gpt-4o":                     {Input: usd("2.50"), Output: usd("10.00")},
		"anthropic/claude-3-5-haiku-latest": {Input: usd("0.80"), Output: usd("4.00")},
		"anthropic/claude-sonnet-4-0":       {Input: usd("3.00"), Output: usd("15.00")},
		"gemini/gemini-2.0-flash":           {Input: usd("0.10"), Output: usd("0.40")},
		"gemini/gemini-2.5-pro":             {Input: usd("1.25"), Output: usd("10.00")},
	}
}

// Cost estimates the spend for a call; unknown models cost zero and ok is false.
func (t PriceTable) Cost(provider, model string, u Usage) (cost decimal.Decimal, ok bool) {
	p, ok := t[provider+"/"+model]
	if !ok {
		return decimal.Zero, false
	}
	in := p.Input.Mul(decimal.NewFromInt(int64(u.InputTokens)))
	out := p.Output.Mul(decimal.NewFromInt(int64(u.OutputTokens)))
	return in.Add(out).Div(million), true
}
