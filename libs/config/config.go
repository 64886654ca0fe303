// Package config loads runtime configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains runtime configuration and provider selection. Provider
// credentials and endpoints are read once at startup; the gateway core
// treats them as already-resolved descriptor fields.
type Config struct {
	HTTPAddr     string
	DatabasePath string
	// ProvidersFile optionally points at a YAML descriptor document
	// that replaces the env-derived provider chains.
	ProvidersFile string

	// Ordered fallback chains per capability.
	TextProviders   []string
	SpeechProviders []string

	AttemptTimeout time.Duration

	// Generic map for vendor-specific settings, keyed by vendor id.
	VendorSettings map[string]map[string]string
}

// Load reads configuration. Environment variables win over the optional
// .env file; both win over defaults.
//
// Recognized variables:
//
//	HTTP_ADDR, DATABASE_PATH, PROVIDERS_FILE, ATTEMPT_TIMEOUT_MS
//	TEXT_PROVIDERS, SPEECH_PROVIDERS   (comma-separated ordered chains)
//	OLLAMA_ENDPOINT
//	LLAMASTACK_ENDPOINT, LLAMASTACK_API_KEY, LLAMASTACK_API_SECRET
//	LLAMACLI_COMMAND, LLAMACLI_ARGS, LLAMACLI_DIR
//	PIPER_ENDPOINT
//	HF_BASE_URL, HF_TOKEN
func Load() (*Config, error) {
	v := viper.New()
	// .env is optional; a malformed one is still fatal.
	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_PATH", "data/ai.gateway.db")
	v.SetDefault("ATTEMPT_TIMEOUT_MS", 30000)
	v.SetDefault("TEXT_PROVIDERS", "ollama,llamastack,llamacli")
	v.SetDefault("SPEECH_PROVIDERS", "piper,hftts")

	cfg := &Config{
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		DatabasePath:    v.GetString("DATABASE_PATH"),
		ProvidersFile:   v.GetString("PROVIDERS_FILE"),
		TextProviders:   splitList(v.GetString("TEXT_PROVIDERS")),
		SpeechProviders: splitList(v.GetString("SPEECH_PROVIDERS")),
		AttemptTimeout:  time.Duration(v.GetInt("ATTEMPT_TIMEOUT_MS")) * time.Millisecond,
		VendorSettings:  make(map[string]map[string]string),
	}

	set := func(vendor, key, val string) {
		if val == "" {
			return
		}
		if cfg.VendorSettings[vendor] == nil {
			cfg.VendorSettings[vendor] = make(map[string]string)
		}
		cfg.VendorSettings[vendor][key] = val
	}

	set("ollama", "endpoint", v.GetString("OLLAMA_ENDPOINT"))
	set("llamastack", "endpoint", v.GetString("LLAMASTACK_ENDPOINT"))
	set("llamastack", "api_key", v.GetString("LLAMASTACK_API_KEY"))
	set("llamastack", "api_secret", v.GetString("LLAMASTACK_API_SECRET"))
	set("llamacli", "command", v.GetString("LLAMACLI_COMMAND"))
	set("llamacli", "args", v.GetString("LLAMACLI_ARGS"))
	set("llamacli", "dir", v.GetString("LLAMACLI_DIR"))
	set("piper", "endpoint", v.GetString("PIPER_ENDPOINT"))
	set("hftts", "base_url", v.GetString("HF_BASE_URL"))
	set("hftts", "token", v.GetString("HF_TOKEN"))

	return cfg, nil
}

// Vendor returns one vendor's settings map, never nil.
func (c *Config) Vendor(name string) map[string]string {
	if s, ok := c.VendorSettings[name]; ok {
		return s
	}
	return map[string]string{}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
