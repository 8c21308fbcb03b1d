package config

import (
	"time"

	"ga4revenue/internal/api"
	"ga4revenue/internal/insights"
)

// AppConfig holds global application configuration
type AppConfig struct {
	SiteSecret     string         `json:"-" yaml:"site_secret"`                                   // Keys the secret store; never printed
	ActivePreset   string         `json:"active_preset,omitempty" yaml:"active_preset,omitempty"` // Current active preset
	Server         ServerConfig   `json:"server" yaml:"server"`
	Endpoints      EndpointConfig `json:"endpoints" yaml:"endpoints"`
	Timeouts       TimeoutConfig  `json:"timeouts" yaml:"timeouts"`
	ReportCacheTTL time.Duration  `json:"report_cache_ttl" yaml:"report_cache_ttl"` // 0 (default) disables the report cache
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" yaml:"updated_at"`

	// fileSiteSecret is what the file held before an environment override
	fileSiteSecret string
	secretFromEnv  bool
}

// ServerConfig configures `ga4revenue serve`
type ServerConfig struct {
	Addr           string        `json:"addr" yaml:"addr"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// EndpointConfig lists the upstream URLs. Overridable for proxies and tests.
type EndpointConfig struct {
	TokenURL       string `json:"token_url" yaml:"token_url"`
	DataAPIBaseURL string `json:"data_api_base_url" yaml:"data_api_base_url"`
	InsightsURL    string `json:"insights_url" yaml:"insights_url"`
}

// TimeoutConfig bounds each upstream call
type TimeoutConfig struct {
	OAuth    time.Duration `json:"oauth" yaml:"oauth"`
	Report   time.Duration `json:"report" yaml:"report"`
	Insights time.Duration `json:"insights" yaml:"insights"`
}

// Default returns a configuration with every field set to its default.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:           "127.0.0.1:8089",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
			RequestTimeout: 45 * time.Second,
		},
		Endpoints: EndpointConfig{
			TokenURL:       "https://oauth2.googleapis.com/token",
			DataAPIBaseURL: api.DefaultDataAPIBaseURL,
			InsightsURL:    insights.DefaultEndpoint,
		},
		Timeouts: TimeoutConfig{
			OAuth:    api.DefaultAuthTimeout,
			Report:   api.DefaultReportTimeout,
			Insights: insights.DefaultTimeout,
		},
	}
}

// applyDefaults fills fields a hand-edited file left empty or invalid.
// ReportCacheTTL is left alone since zero is meaningful.
func (c *AppConfig) applyDefaults() {
	d := Default()

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = d.Server.RequestTimeout
	}
	if c.Endpoints.TokenURL == "" {
		c.Endpoints.TokenURL = d.Endpoints.TokenURL
	}
	if c.Endpoints.DataAPIBaseURL == "" {
		c.Endpoints.DataAPIBaseURL = d.Endpoints.DataAPIBaseURL
	}
	if c.Endpoints.InsightsURL == "" {
		c.Endpoints.InsightsURL = d.Endpoints.InsightsURL
	}
	if c.Timeouts.OAuth <= 0 {
		c.Timeouts.OAuth = d.Timeouts.OAuth
	}
	if c.Timeouts.Report <= 0 {
		c.Timeouts.Report = d.Timeouts.Report
	}
	if c.Timeouts.Insights <= 0 {
		c.Timeouts.Insights = d.Timeouts.Insights
	}
	if c.ReportCacheTTL < 0 {
		c.ReportCacheTTL = 0
	}
}

// SiteSecretFromEnv reports whether the site secret came from the environment.
func (c *AppConfig) SiteSecretFromEnv() bool {
	return c.secretFromEnv
}

// Preset is a saved site profile: one GA4 property plus the credentials used
// to read it. Secrets are stored as SecretStore blobs.
type Preset struct {
	Name                string    `json:"name" yaml:"name"`
	PropertyID          string    `json:"property_id" yaml:"property_id"`                     // e.g., "263883430"
	ServiceAccountEmail string    `json:"service_account_email" yaml:"service_account_email"` // svc@project.iam.gserviceaccount.com
	PrivateKey          string    `json:"-" yaml:"private_key"`                               // encrypted PEM
	AIEnabled           bool      `json:"ai_enabled" yaml:"ai_enabled"`
	AIAPIKey            string    `json:"-" yaml:"ai_api_key,omitempty"` // encrypted
	AIModel             string    `json:"ai_model" yaml:"ai_model"`
	CreatedAt           time.Time `json:"created_at" yaml:"created_at"`
	LastUsed            time.Time `json:"last_used" yaml:"last_used"`
}

// HasCredentials reports whether both service-account values are stored.
func (p *Preset) HasCredentials() bool {
	return p.ServiceAccountEmail != "" && p.PrivateKey != ""
}

// HasAIKey reports whether an AI API key is stored.
func (p *Preset) HasAIKey() bool {
	return p.AIAPIKey != ""
}
