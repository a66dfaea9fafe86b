package router

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/relay/config"
)

// Route the resolution of one client model id: the tier it landed on,
// the backend to call, and the reasoning policy to apply
type Route struct {
	Tier        string          // big | middle | small
	Endpoint    string          // backend base URL
	APIKey      string          // backend credential
	Model       string          // upstream model id, suffix stripped
	Passthrough bool            // client model was not an Anthropic family name
	Reasoning   ReasoningPolicy // resolved reasoning policy
}

// Router maps client model ids onto configured backend tiers
type Router struct {
	tiers          map[string]tier
	globalEndpoint string
	globalAPIKey   string
	defaultExclude bool
	defaultEffort  string
	defaultBudget  int
	verbosity      string
}

type tier struct {
	endpoint string
	apiKey   string
	model    string // raw configured id, suffix included
}

// MissingCredentialError a tier resolved to a remote endpoint that has
// no API key configured
type MissingCredentialError struct {
	Tier     string
	Endpoint string
}

// Error implements error
func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("tier %s: endpoint %s requires an API key and none is configured", e.Tier, e.Endpoint)
}

// New builds a router from the configuration. Tier endpoints and keys
// fall back to the global provider settings when empty.
func New(cfg config.Config) *Router {
	r := &Router{
		tiers:          map[string]tier{},
		globalEndpoint: cfg.ProviderBaseURL,
		globalAPIKey:   cfg.ProviderAPIKey,
		defaultExclude: cfg.ReasoningExclude,
		defaultEffort:  cfg.ReasoningEffort,
		defaultBudget:  cfg.ReasoningMaxTokens,
		verbosity:      cfg.Verbosity,
	}
	for _, tc := range cfg.Tiers() {
		endpoint := tc.Endpoint
		apiKey := tc.APIKey
		if endpoint == "" {
			endpoint = cfg.ProviderBaseURL
			apiKey = cfg.ProviderAPIKey
		} else if apiKey == "" {
			apiKey = cfg.ProviderAPIKey
		}
		r.tiers[tc.Tier] = tier{endpoint: endpoint, apiKey: apiKey, model: tc.Model}
	}
	return r
}

// Resolve maps a client model id to its route. Family keywords pick
// the tier; anything else passes through on the global backend with
// the client's model id unchanged.
func (r *Router) Resolve(model string) (*Route, error) {
	name := strings.ToLower(model)

	var tierName string
	switch {
	case strings.Contains(name, "opus"):
		tierName = config.TierBig
	case strings.Contains(name, "sonnet"):
		tierName = config.TierMiddle
	case strings.Contains(name, "haiku"):
		tierName = config.TierSmall
	}

	if tierName == "" {
		// Tier endpoint overrides never apply to passthrough models
		route := &Route{
			Tier:        config.TierMiddle,
			Endpoint:    r.globalEndpoint,
			APIKey:      r.globalAPIKey,
			Model:       model,
			Passthrough: true,
			Reasoning:   r.policyFor(model, ReasoningPolicy{}),
		}
		if err := r.checkCredential(route); err != nil {
			return nil, err
		}
		log.Debug("[router] %s -> passthrough via %s", model, r.globalEndpoint)
		return route, nil
	}

	t := r.tiers[tierName]
	base, suffix := ParseModelSuffix(t.model)
	route := &Route{
		Tier:      tierName,
		Endpoint:  t.endpoint,
		APIKey:    t.apiKey,
		Model:     base,
		Reasoning: r.policyFor(base, suffix),
	}
	if err := r.checkCredential(route); err != nil {
		return nil, err
	}
	log.Debug("[router] %s -> %s (%s)", model, base, tierName)
	return route, nil
}

// policyFor resolves the effective reasoning policy: the model suffix
// wins, the environment defaults fill in, and the capability gate
// turns it off for models that cannot reason
func (r *Router) policyFor(model string, suffix ReasoningPolicy) ReasoningPolicy {
	policy := suffix
	if policy.Mode == "" {
		switch {
		case r.defaultBudget > 0:
			policy = ReasoningPolicy{Mode: ReasoningBudget, MaxTokens: clampBudget(r.defaultBudget)}
		case r.defaultEffort != "":
			policy = ReasoningPolicy{Mode: ReasoningEffort, Effort: r.defaultEffort}
		default:
			policy = ReasoningPolicy{Mode: ReasoningOff}
		}
	}
	policy.Exclude = r.defaultExclude
	policy.Verbosity = r.verbosity
	if policy.Mode != ReasoningOff && !SupportsReasoning(model) {
		log.Trace("[router] %s does not support reasoning, policy dropped", model)
		policy.Mode = ReasoningOff
		policy.Effort = ""
		policy.MaxTokens = 0
	}
	return policy
}

// checkCredential rejects remote endpoints with no API key. Local
// model servers run without one.
func (r *Router) checkCredential(route *Route) error {
	if route.APIKey != "" {
		return nil
	}
	if isLocalEndpoint(route.Endpoint) {
		route.APIKey = "dummy"
		return nil
	}
	return &MissingCredentialError{Tier: route.Tier, Endpoint: route.Endpoint}
}

// isLocalEndpoint reports whether the endpoint is a loopback address
// or a well-known local model server port (Ollama 11434, LM Studio
// 1234)
func isLocalEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return true
	}
	switch u.Port() {
	case "11434", "1234":
		return true
	}
	return false
}

// Routes snapshots the tier table with suffixes stripped, for the
// health and models surfaces. Credentials are not resolved here.
func (r *Router) Routes() map[string]Route {
	routes := map[string]Route{}
	for name, t := range r.tiers {
		base, _ := ParseModelSuffix(t.model)
		routes[name] = Route{Tier: name, Endpoint: t.endpoint, Model: base}
	}
	return routes
}

// Models lists the ids the gateway advertises on /v1/models: the
// Anthropic family names plus the configured upstream ids
func (r *Router) Models() []string {
	seen := map[string]bool{}
	models := []string{"claude-opus-4", "claude-sonnet-4", "claude-haiku-4"}
	for _, name := range []string{config.TierBig, config.TierMiddle, config.TierSmall} {
		base, _ := ParseModelSuffix(r.tiers[name].model)
		if base != "" && !seen[base] {
			seen[base] = true
			models = append(models, base)
		}
	}
	return models
}
