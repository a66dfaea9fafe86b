package router

import (
	"strconv"
	"strings"
	"unicode"
)

// Reasoning policy modes
const (
	ReasoningOff    = "off"
	ReasoningEffort = "effort"
	ReasoningBudget = "budget"
)

// Budget clamp bounds, in tokens
const (
	MinReasoningBudget = 1024
	MaxReasoningBudget = 32768
)

// ReasoningPolicy the resolved reasoning settings for one route
type ReasoningPolicy struct {
	Mode      string // off | effort | budget
	Effort    string // low | medium | high, effort mode only
	MaxTokens int    // budget mode only, clamped to [1024, 32768]
	Exclude   bool   // drop thinking from the client response
	Verbosity string // low | medium | high, empty omits
}

// Enabled reports whether the policy asks the backend to reason
func (p ReasoningPolicy) Enabled() bool {
	return p.Mode == ReasoningEffort || p.Mode == ReasoningBudget
}

// ParseModelSuffix splits a reasoning suffix off a configured model
// id: "gpt-5:high" is effort, "qwen3:8000" and "qwen3:16k" are token
// budgets. A trailing segment that parses as neither stays part of the
// model id, so tags like "qwen3:30b" or "qwen3:thinking" survive.
func ParseModelSuffix(model string) (string, ReasoningPolicy) {
	idx := strings.LastIndex(model, ":")
	if idx <= 0 || idx == len(model)-1 {
		return model, ReasoningPolicy{}
	}

	base, suffix := model[:idx], strings.ToLower(model[idx+1:])
	switch suffix {
	case "low", "medium", "high":
		return base, ReasoningPolicy{Mode: ReasoningEffort, Effort: suffix}
	}

	numeric := suffix
	multiplier := 1
	if strings.HasSuffix(numeric, "k") {
		numeric = strings.TrimSuffix(numeric, "k")
		multiplier = 1024
	}
	n, err := strconv.Atoi(numeric)
	if err != nil || n <= 0 {
		return model, ReasoningPolicy{}
	}
	return base, ReasoningPolicy{Mode: ReasoningBudget, MaxTokens: clampBudget(n * multiplier)}
}

func clampBudget(n int) int {
	if n < MinReasoningBudget {
		return MinReasoningBudget
	}
	if n > MaxReasoningBudget {
		return MaxReasoningBudget
	}
	return n
}

// reasoningFamilies model id substrings known to accept a reasoning
// parameter
var reasoningFamilies = []string{
	"gpt-5",
	"claude-3-7",
	"claude-3.7",
	"claude-4",
	"claude-opus-4",
	"claude-sonnet-4",
	"claude-haiku-4",
	"qwen3",
	"qwen-2.5-thinking",
	"deepseek-v3",
	"deepseek-r1",
	"kimi-k2-thinking",
	"minimax-m2",
	"gemini-2.5",
}

// SupportsReasoning reports whether a model id is known to accept the
// reasoning request parameter. Unknown models are assumed not to, so
// the gateway never sends a parameter that would 400.
func SupportsReasoning(model string) bool {
	name := strings.ToLower(model)
	if strings.HasSuffix(name, ":thinking") || strings.HasSuffix(name, "-thinking") {
		return true
	}
	for _, family := range reasoningFamilies {
		if strings.Contains(name, family) {
			return true
		}
	}

	// o1/o3/o4 match as a name segment, not a bare substring, so ids
	// like "solo-13b" stay out
	segment := name
	if idx := strings.LastIndex(segment, "/"); idx >= 0 {
		segment = segment[idx+1:]
	}
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if segment == prefix || strings.HasPrefix(segment, prefix+"-") {
			return true
		}
	}

	// grok 3 and later, hyphenated or not ("grok-4", "grok3")
	if idx := strings.Index(name, "grok"); idx >= 0 {
		rest := strings.TrimPrefix(name[idx+len("grok"):], "-")
		if rest != "" && unicode.IsDigit(rune(rest[0])) && rest[0] >= '3' {
			return true
		}
	}
	return false
}
