// Package settings loads the single external-producer document spec.md
// §6 describes: the YAML file naming the two listener addresses, the SOA
// fields, and the pre-registered subdomain-to-token map. Grounded on the
// lineage's internal/zone/parser_dnszone.go (YAML-tagged-struct style,
// os.ReadFile+yaml.Unmarshal) and cmd/dnsscience-grpc/config.go
// (flags-then-file-then-default layering); the environment-override idea
// follows the original koppeln settings.rs's RUN_MODE-driven loading,
// translated into spec.md §6's KOPPELN_-prefixed environment layer.
package settings

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SOA mirrors dnsmsg.SOA in the document's own (string-keyed, YAML-tagged)
// shape; internal/settings has no dependency on internal/dnsmsg, so
// cmd/koppelnd converts between the two at startup.
type SOA struct {
	MName   string `yaml:"mname"`
	RName   string `yaml:"rname"`
	Serial  uint32 `yaml:"serial"`
	Refresh uint32 `yaml:"refresh"`
	Retry   uint32 `yaml:"retry"`
	Expire  uint32 `yaml:"expire"`
	Minimum uint32 `yaml:"minimum"`
}

// AddressConfig is one entry of the addresses map: spec.md §6 only
// requires a token per pre-registered subdomain; IPv4/IPv6 always start
// unset and are populated only via the HTTP API at runtime.
type AddressConfig struct {
	Token string `yaml:"token"`
}

// Settings is the full document spec.md §6 names.
type Settings struct {
	DNSAddress string                   `yaml:"dns_address"`
	DNSPort    int                      `yaml:"dns_port"`
	WebAddress string                   `yaml:"web_address"`
	WebPort    int                      `yaml:"web_port"`
	SOA        SOA                      `yaml:"soa"`
	Addresses  map[string]AddressConfig `yaml:"addresses"`
}

// defaults returns the listener defaults spec.md §6 specifies:
// 127.0.0.1:53 for DNS, 127.0.0.1:80 for HTTP.
func defaults() Settings {
	return Settings{
		DNSAddress: "127.0.0.1",
		DNSPort:    53,
		WebAddress: "127.0.0.1",
		WebPort:    80,
	}
}

// Load reads the settings document at path (if it exists — absence of
// the caller-supplied default path is not fatal) and applies
// KOPPELN_-prefixed environment overrides for the four scalar listener
// fields. The SOA and Addresses documents are file-only. Settings are
// read once; there is no reload.
func Load(path string, pathWasExplicit bool) (Settings, error) {
	s := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if unmarshalErr := yaml.Unmarshal(data, &s); unmarshalErr != nil {
			return Settings{}, fmt.Errorf("settings: parse %s: %w", path, unmarshalErr)
		}
	case os.IsNotExist(err) && !pathWasExplicit:
		// no file at the default location: defaults + env only
	default:
		return Settings{}, fmt.Errorf("settings: read %s: %w", path, err)
	}

	applyEnvOverrides(&s)

	return s, nil
}

func applyEnvOverrides(s *Settings) {
	if v, ok := os.LookupEnv("KOPPELN_DNS_ADDRESS"); ok {
		s.DNSAddress = v
	}
	if v, ok := os.LookupEnv("KOPPELN_DNS_PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			s.DNSPort = p
		}
	}
	if v, ok := os.LookupEnv("KOPPELN_WEB_ADDRESS"); ok {
		s.WebAddress = v
	}
	if v, ok := os.LookupEnv("KOPPELN_WEB_PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			s.WebPort = p
		}
	}
}
