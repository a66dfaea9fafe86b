package config

// Config relay gateway configuration, loaded from the environment
type Config struct {
	Mode string `json:"mode,omitempty" env:"RELAY_ENV" envDefault:"production"` // production/development
	Host string `json:"host,omitempty" env:"RELAY_HOST" envDefault:"0.0.0.0"`  // listen address
	Port int    `json:"port,omitempty" env:"RELAY_PORT" envDefault:"8082"`     // listen port

	// Backend provider
	ProviderBaseURL string            `json:"provider_base_url,omitempty" env:"RELAY_PROVIDER_BASE_URL" envDefault:"https://api.openai.com/v1"` // global backend URL
	ProviderAPIKey  string            `json:"provider_api_key,omitempty" env:"RELAY_PROVIDER_API_KEY"`                                          // global backend credential
	CustomHeaders   map[string]string `json:"custom_headers,omitempty" env:"RELAY_CUSTOM_HEADERS" envSeparator:"|"`                             // extra headers for every backend call, k:v pairs separated by |

	// Client auth
	ProxyAuthKey string `json:"proxy_auth_key,omitempty" env:"RELAY_PROXY_AUTH_KEY"` // enforces client auth when non-empty

	// Tier models. The model id may carry a reasoning suffix after the
	// last colon: :low|:medium|:high, :N, or :Nk
	BigModel    string `json:"big_model,omitempty" env:"RELAY_BIG_MODEL" envDefault:"gpt-5"`
	MiddleModel string `json:"middle_model,omitempty" env:"RELAY_MIDDLE_MODEL" envDefault:"gpt-5"`
	SmallModel  string `json:"small_model,omitempty" env:"RELAY_SMALL_MODEL" envDefault:"gpt-5-mini"`

	// Per-tier endpoint overrides
	EnableBigEndpoint    bool   `json:"enable_big_endpoint,omitempty" env:"RELAY_ENABLE_BIG_ENDPOINT"`
	EnableMiddleEndpoint bool   `json:"enable_middle_endpoint,omitempty" env:"RELAY_ENABLE_MIDDLE_ENDPOINT"`
	EnableSmallEndpoint  bool   `json:"enable_small_endpoint,omitempty" env:"RELAY_ENABLE_SMALL_ENDPOINT"`
	BigEndpoint          string `json:"big_endpoint,omitempty" env:"RELAY_BIG_ENDPOINT"`
	MiddleEndpoint       string `json:"middle_endpoint,omitempty" env:"RELAY_MIDDLE_ENDPOINT"`
	SmallEndpoint        string `json:"small_endpoint,omitempty" env:"RELAY_SMALL_ENDPOINT"`
	BigAPIKey            string `json:"big_api_key,omitempty" env:"RELAY_BIG_API_KEY"`
	MiddleAPIKey         string `json:"middle_api_key,omitempty" env:"RELAY_MIDDLE_API_KEY"`
	SmallAPIKey          string `json:"small_api_key,omitempty" env:"RELAY_SMALL_API_KEY"`

	// Reasoning defaults, used when the tier model id carries no suffix
	ReasoningEffort    string `json:"reasoning_effort,omitempty" env:"RELAY_REASONING_EFFORT"`         // low/medium/high, empty disables
	ReasoningMaxTokens int    `json:"reasoning_max_tokens,omitempty" env:"RELAY_REASONING_MAX_TOKENS"` // budget form, takes priority over effort
	ReasoningExclude   bool   `json:"reasoning_exclude,omitempty" env:"RELAY_REASONING_EXCLUDE"`       // hide thinking blocks from the client
	Verbosity          string `json:"verbosity,omitempty" env:"RELAY_VERBOSITY"`                       // low/medium/high, empty omits

	// Limits
	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty" env:"RELAY_REQUEST_TIMEOUT_SECONDS" envDefault:"120"`
	MaxTokensLimit        int `json:"max_tokens_limit,omitempty" env:"RELAY_MAX_TOKENS_LIMIT" envDefault:"65536"`
	MinTokensLimit        int `json:"min_tokens_limit,omitempty" env:"RELAY_MIN_TOKENS_LIMIT" envDefault:"1"`

	// Usage metering
	TrackUsage  bool   `json:"track_usage,omitempty" env:"RELAY_TRACK_USAGE" envDefault:"true"`
	UsageDBPath string `json:"usage_db_path,omitempty" env:"RELAY_USAGE_DB_PATH" envDefault:"./relay-usage.db"`

	// Logging
	Log           string `json:"log,omitempty" env:"RELAY_LOG"`                             // log file, stderr when empty
	LogMode       string `json:"log_mode,omitempty" env:"RELAY_LOG_MODE" envDefault:"TEXT"` // JSON|TEXT
	LogMaxSize    int    `json:"log_max_size,omitempty" env:"RELAY_LOG_MAX_SIZE" envDefault:"100"`
	LogMaxBackups int    `json:"log_max_backups,omitempty" env:"RELAY_LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAge     int    `json:"log_max_age,omitempty" env:"RELAY_LOG_MAX_AGE" envDefault:"7"`
}

// Tier names
const (
	TierBig    = "big"
	TierMiddle = "middle"
	TierSmall  = "small"
)

// TierConfig one tier of the routing table. An empty Endpoint or
// APIKey inherits the global provider settings.
type TierConfig struct {
	Tier     string `json:"tier"`
	Endpoint string `json:"endpoint,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model"`
}

// Tiers adapts the flat RELAY_BIG_/MIDDLE_/SMALL_ environment form
// into the tier table the router consumes
func (cfg Config) Tiers() []TierConfig {
	tiers := []TierConfig{
		{Tier: TierBig, Model: cfg.BigModel},
		{Tier: TierMiddle, Model: cfg.MiddleModel},
		{Tier: TierSmall, Model: cfg.SmallModel},
	}
	if cfg.EnableBigEndpoint {
		tiers[0].Endpoint = cfg.BigEndpoint
		tiers[0].APIKey = cfg.BigAPIKey
	}
	if cfg.EnableMiddleEndpoint {
		tiers[1].Endpoint = cfg.MiddleEndpoint
		tiers[1].APIKey = cfg.MiddleAPIKey
	}
	if cfg.EnableSmallEndpoint {
		tiers[2].Endpoint = cfg.SmallEndpoint
		tiers[2].APIKey = cfg.SmallAPIKey
	}
	return tiers
}
