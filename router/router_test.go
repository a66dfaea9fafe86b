package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yaoapp/relay/config"
)

func testConfig() config.Config {
	return config.Config{
		ProviderBaseURL: "https://api.openai.com/v1",
		ProviderAPIKey:  "sk-test",
		BigModel:        "openai/gpt-5:high",
		MiddleModel:     "gpt-5",
		SmallModel:      "gpt-5-mini",
	}
}

func TestResolveTiers(t *testing.T) {
	r := New(testConfig())

	route, err := r.Resolve("claude-opus-4-20250514")
	assert.NoError(t, err)
	assert.Equal(t, config.TierBig, route.Tier)
	assert.Equal(t, "openai/gpt-5", route.Model)
	assert.Equal(t, ReasoningEffort, route.Reasoning.Mode)
	assert.Equal(t, "high", route.Reasoning.Effort)

	route, err = r.Resolve("claude-sonnet-4")
	assert.NoError(t, err)
	assert.Equal(t, config.TierMiddle, route.Tier)
	assert.Equal(t, "gpt-5", route.Model)

	route, err = r.Resolve("claude-haiku-4")
	assert.NoError(t, err)
	assert.Equal(t, config.TierSmall, route.Tier)
	assert.Equal(t, "gpt-5-mini", route.Model)
}

func TestResolveNeverEchoesTierName(t *testing.T) {
	r := New(testConfig())
	for _, name := range []string{"claude-opus-4", "claude-sonnet-4", "claude-haiku-4"} {
		route, err := r.Resolve(name)
		assert.NoError(t, err)
		assert.NotEqual(t, name, route.Model)
	}
}

func TestResolvePassthrough(t *testing.T) {
	r := New(testConfig())
	route, err := r.Resolve("mistral-large")
	assert.NoError(t, err)
	assert.True(t, route.Passthrough)
	assert.Equal(t, config.TierMiddle, route.Tier)
	assert.Equal(t, "mistral-large", route.Model)
}

func TestResolvePassthroughIgnoresTierOverride(t *testing.T) {
	cfg := testConfig()
	cfg.EnableMiddleEndpoint = true
	cfg.MiddleEndpoint = "https://middle.example.com/v1"
	cfg.MiddleAPIKey = "sk-middle"

	r := New(cfg)

	// unknown models go to the global backend, not the middle override
	route, err := r.Resolve("mistral-large")
	assert.NoError(t, err)
	assert.True(t, route.Passthrough)
	assert.Equal(t, "https://api.openai.com/v1", route.Endpoint)
	assert.Equal(t, "sk-test", route.APIKey)

	// tier names still honor the override
	route, err = r.Resolve("claude-sonnet-4")
	assert.NoError(t, err)
	assert.Equal(t, "https://middle.example.com/v1", route.Endpoint)
	assert.Equal(t, "sk-middle", route.APIKey)
}

func TestResolveTierEndpointOverride(t *testing.T) {
	cfg := testConfig()
	cfg.ProviderAPIKey = ""
	cfg.EnableSmallEndpoint = true
	cfg.SmallEndpoint = "http://localhost:11434"
	cfg.SmallAPIKey = ""

	r := New(cfg)
	route, err := r.Resolve("claude-haiku-4")
	assert.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", route.Endpoint)
	// local endpoints run keyless
	assert.Equal(t, "dummy", route.APIKey)
}

func TestResolveMissingCredential(t *testing.T) {
	cfg := testConfig()
	cfg.ProviderAPIKey = ""

	r := New(cfg)
	_, err := r.Resolve("claude-sonnet-4")
	assert.Error(t, err)

	var missing *MissingCredentialError
	assert.ErrorAs(t, err, &missing)
	assert.Equal(t, config.TierMiddle, missing.Tier)
}

func TestDefaultReasoningPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.ReasoningEffort = "medium"
	cfg.ReasoningExclude = true
	cfg.Verbosity = "low"

	r := New(cfg)
	route, err := r.Resolve("claude-sonnet-4")
	assert.NoError(t, err)
	assert.Equal(t, ReasoningEffort, route.Reasoning.Mode)
	assert.Equal(t, "medium", route.Reasoning.Effort)
	assert.True(t, route.Reasoning.Exclude)
	assert.Equal(t, "low", route.Reasoning.Verbosity)
}

func TestBudgetDefaultBeatsEffort(t *testing.T) {
	cfg := testConfig()
	cfg.ReasoningEffort = "medium"
	cfg.ReasoningMaxTokens = 50000

	r := New(cfg)
	route, err := r.Resolve("claude-sonnet-4")
	assert.NoError(t, err)
	assert.Equal(t, ReasoningBudget, route.Reasoning.Mode)
	assert.Equal(t, MaxReasoningBudget, route.Reasoning.MaxTokens)
}

func TestReasoningSilencedForIncapableModel(t *testing.T) {
	cfg := testConfig()
	cfg.MiddleModel = "llama-3-70b"
	cfg.ReasoningEffort = "high"

	r := New(cfg)
	route, err := r.Resolve("claude-sonnet-4")
	assert.NoError(t, err)
	assert.Equal(t, ReasoningOff, route.Reasoning.Mode)
}

func TestParseModelSuffix(t *testing.T) {
	cases := []struct {
		in     string
		model  string
		mode   string
		effort string
		budget int
	}{
		{"gpt-5:high", "gpt-5", ReasoningEffort, "high", 0},
		{"gpt-5:LOW", "gpt-5", ReasoningEffort, "low", 0},
		{"openai/gpt-5:8k", "openai/gpt-5", ReasoningBudget, "", 8192},
		{"qwen3:2000", "qwen3", ReasoningBudget, "", 2000},
		{"qwen3:100", "qwen3", ReasoningBudget, "", MinReasoningBudget},
		{"qwen3:64k", "qwen3", ReasoningBudget, "", MaxReasoningBudget},
		{"qwen3:30b", "qwen3:30b", "", "", 0},
		{"qwen3:thinking", "qwen3:thinking", "", "", 0},
		{"gpt-5", "gpt-5", "", "", 0},
		{"gpt-5:", "gpt-5:", "", "", 0},
	}

	for _, tc := range cases {
		model, policy := ParseModelSuffix(tc.in)
		assert.Equal(t, tc.model, model, tc.in)
		assert.Equal(t, tc.mode, policy.Mode, tc.in)
		assert.Equal(t, tc.effort, policy.Effort, tc.in)
		assert.Equal(t, tc.budget, policy.MaxTokens, tc.in)
	}
}

func TestSupportsReasoning(t *testing.T) {
	yes := []string{
		"gpt-5", "openai/gpt-5-mini", "o3", "o3-mini", "openai/o4-mini", "o1",
		"claude-3-7-sonnet", "claude-sonnet-4", "qwen3-32b", "deepseek-r1",
		"deepseek-v3", "grok-4", "grok-3-beta", "grok3", "grok4",
		"kimi-k2-thinking", "minimax-m2", "gemini-2.5-pro",
		"qwen3:thinking", "some-model-thinking",
	}
	for _, model := range yes {
		assert.True(t, SupportsReasoning(model), model)
	}

	no := []string{
		"gpt-4o", "llama-3-70b", "mistral-large", "grok-2", "grok2",
		"solo-13b", "piano1", "gemma-7b",
	}
	for _, model := range no {
		assert.False(t, SupportsReasoning(model), model)
	}
}

func TestModels(t *testing.T) {
	r := New(testConfig())
	models := r.Models()
	assert.Contains(t, models, "claude-opus-4")
	assert.Contains(t, models, "claude-sonnet-4")
	assert.Contains(t, models, "claude-haiku-4")
	assert.Contains(t, models, "openai/gpt-5")
	assert.Contains(t, models, "gpt-5")
	assert.Contains(t, models, "gpt-5-mini")
}

func TestRoutes(t *testing.T) {
	r := New(testConfig())
	routes := r.Routes()
	assert.Len(t, routes, 3)
	assert.Equal(t, "openai/gpt-5", routes[config.TierBig].Model)
	assert.Equal(t, "gpt-5-mini", routes[config.TierSmall].Model)
	assert.Equal(t, "https://api.openai.com/v1", routes[config.TierMiddle].Endpoint)
}

func TestIsLocalEndpoint(t *testing.T) {
	assert.True(t, isLocalEndpoint("http://localhost:11434"))
	assert.True(t, isLocalEndpoint("http://127.0.0.1:8000/v1"))
	assert.True(t, isLocalEndpoint("http://0.0.0.0:1234"))
	assert.True(t, isLocalEndpoint("http://192.168.1.5:11434"))
	assert.True(t, isLocalEndpoint("http://myhost:1234/v1"))
	assert.False(t, isLocalEndpoint("https://api.openai.com/v1"))
	assert.False(t, isLocalEndpoint("https://openrouter.ai/api/v1"))
}
