// Package factory turns runtime configuration into the gateway's
// provider descriptor table.
package factory

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/jacky-htg/ai-gateway/libs/config"
	"github.com/jacky-htg/ai-gateway/libs/gateway"
	"github.com/jacky-htg/ai-gateway/libs/vendors/hftts"
	"github.com/jacky-htg/ai-gateway/libs/vendors/llamacli"
	"github.com/jacky-htg/ai-gateway/libs/vendors/llamastack"
	"github.com/jacky-htg/ai-gateway/libs/vendors/ollama"
	"github.com/jacky-htg/ai-gateway/libs/vendors/piper"
)

// BuildTable constructs the descriptor table. When cfg.ProvidersFile is
// set, the YAML document declares the chains; otherwise they come from
// the env-derived ordered vendor lists.
func BuildTable(cfg *config.Config) (*gateway.Table, error) {
	if cfg.ProvidersFile != "" {
		return buildFromFile(cfg)
	}
	return buildFromEnv(cfg)
}

func buildFromEnv(cfg *config.Config) (*gateway.Table, error) {
	table := gateway.NewTable()
	for _, id := range cfg.TextProviders {
		desc, err := newDescriptor(cfg, id, gateway.CapabilityText, nil, cfg.AttemptTimeout)
		if err != nil {
			return nil, err
		}
		table.Register(desc)
	}
	for _, id := range cfg.SpeechProviders {
		desc, err := newDescriptor(cfg, id, gateway.CapabilitySpeech, nil, cfg.AttemptTimeout)
		if err != nil {
			return nil, err
		}
		table.Register(desc)
	}
	return table, nil
}

// descriptorDoc is the providers.yaml shape: an ordered provider list
// where list position is fallback priority.
type descriptorDoc struct {
	Providers []struct {
		ID         string   `yaml:"id"`
		Vendor     string   `yaml:"vendor"`
		Capability string   `yaml:"capability"`
		Models     []string `yaml:"models"`
		TimeoutMs  int      `yaml:"timeout_ms"`
	} `yaml:"providers"`
}

func buildFromFile(cfg *config.Config) (*gateway.Table, error) {
	data, err := os.ReadFile(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	var doc descriptorDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}
	if len(doc.Providers) == 0 {
		return nil, fmt.Errorf("providers file %s declares no providers", cfg.ProvidersFile)
	}

	table := gateway.NewTable()
	for _, p := range doc.Providers {
		vendor := p.Vendor
		if vendor == "" {
			vendor = p.ID
		}
		timeout := cfg.AttemptTimeout
		if p.TimeoutMs > 0 {
			timeout = time.Duration(p.TimeoutMs) * time.Millisecond
		}
		desc, err := newDescriptor(cfg, vendor, gateway.Capability(p.Capability), p.Models, timeout)
		if err != nil {
			return nil, err
		}
		if p.ID != "" {
			desc.ID = p.ID
		}
		table.Register(desc)
	}
	return table, nil
}

// newDescriptor wires one vendor adapter. The vendor name selects the
// implementation; settings come from the config vendor map.
func newDescriptor(cfg *config.Config, vendor string, capability gateway.Capability, models []string, timeout time.Duration) (gateway.ProviderDescriptor, error) {
	desc := gateway.ProviderDescriptor{
		ID:             vendor,
		Capability:     capability,
		Models:         models,
		AttemptTimeout: timeout,
	}

	switch vendor {
	case "ollama":
		desc.Kind = gateway.InvokeStream
		desc.Streamer = ollama.NewWithEndpoint(cfg.Vendor("ollama")["endpoint"])
	case "ollama-blocking":
		desc.Kind = gateway.InvokeBlocking
		desc.Completer = ollama.NewWithEndpoint(cfg.Vendor("ollama")["endpoint"])
	case "llamastack":
		s := cfg.Vendor("llamastack")
		desc.Kind = gateway.InvokeBlocking
		desc.CredentialRef = credRef("llamastack", s["api_key"])
		desc.Completer = llamastack.New(s["endpoint"], s["api_key"], s["api_secret"])
	case "llamacli":
		s := cfg.Vendor("llamacli")
		desc.Kind = gateway.InvokeProcess
		if s["command"] == "" {
			desc.Completer = llamacli.New()
		} else {
			desc.Completer = llamacli.NewWithCommand(s["command"], splitArgs(s["args"]), s["dir"], 0)
		}
	case "piper":
		desc.Kind = gateway.InvokeBlocking
		desc.Completer = piper.NewWithEndpoint(cfg.Vendor("piper")["endpoint"])
	case "hftts":
		s := cfg.Vendor("hftts")
		desc.Kind = gateway.InvokeBlocking
		desc.CredentialRef = credRef("hftts", s["token"])
		desc.Completer = hftts.New(s["base_url"], s["token"])
	default:
		return gateway.ProviderDescriptor{}, fmt.Errorf("unknown vendor %q", vendor)
	}
	return desc, nil
}

func credRef(vendor, credential string) string {
	if credential == "" {
		return ""
	}
	return vendor + "-credential"
}

func splitArgs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
