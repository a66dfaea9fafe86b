package usage

import "strings"

// price per million tokens, USD
type price struct {
	input  float64
	output float64
}

// priceTable model substring to price; the first match wins, so the
// more specific ids come first. Unmatched models cost 0.
var priceTable = []struct {
	substring string
	price     price
}{
	{"gpt-5-mini", price{0.25, 2.00}},
	{"gpt-5-nano", price{0.05, 0.40}},
	{"gpt-5", price{1.25, 10.00}},
	{"gpt-4.1-mini", price{0.40, 1.60}},
	{"gpt-4.1", price{2.00, 8.00}},
	{"gpt-4o-mini", price{0.15, 0.60}},
	{"gpt-4o", price{2.50, 10.00}},
	{"o3-mini", price{1.10, 4.40}},
	{"o3", price{2.00, 8.00}},
	{"o4-mini", price{1.10, 4.40}},
	{"claude-opus", price{15.00, 75.00}},
	{"claude-sonnet", price{3.00, 15.00}},
	{"claude-haiku", price{0.80, 4.00}},
	{"deepseek-r1", price{0.55, 2.19}},
	{"deepseek", price{0.27, 1.10}},
	{"qwen3", price{0.35, 1.40}},
	{"grok-4", price{3.00, 15.00}},
	{"grok-3", price{3.00, 15.00}},
	{"kimi-k2", price{0.60, 2.50}},
	{"gemini-2.5-pro", price{1.25, 10.00}},
	{"gemini-2.5-flash", price{0.30, 2.50}},
	{"minimax-m2", price{0.30, 1.20}},
}

// EstimateCost prices one request in USD. Local and unknown models
// yield zero.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	name := strings.ToLower(model)
	for _, entry := range priceTable {
		if strings.Contains(name, entry.substring) {
			in := float64(inputTokens) / 1e6 * entry.price.input
			out := float64(outputTokens) / 1e6 * entry.price.output
			return in + out
		}
	}
	return 0
}
