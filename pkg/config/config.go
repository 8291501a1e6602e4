// Package config loads zonedit configuration from TOML or YAML files
// and builds provider handles from it.
//
// A file names the zone, the dry-run switch, and one provider table:
//
//	domain = "example.com"
//	dry_run = false
//
//	[provider]
//	kind = "cloudflare"
//	token = "${CLOUDFLARE_TOKEN}"
//
// String values support ${VAR} and ${VAR:-default} interpolation from
// the environment. Credentials may also arrive through ZONEDIT_API_KEY,
// ZONEDIT_API_SECRET, and ZONEDIT_TOKEN; each has a _FILE variant
// naming a file whose contents hold the value (the Docker secrets
// convention), so the config file itself never has to carry a secret.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables that inject credentials without putting them in
// the file. Each also has a _FILE variant; see [Load].
const (
	EnvAPIKey    = "ZONEDIT_API_KEY"
	EnvAPISecret = "ZONEDIT_API_SECRET"
	EnvToken     = "ZONEDIT_TOKEN"
)

// File is the parsed configuration. Load fills it from disk; Build
// turns it into a provider handle.
type File struct {
	Domain string `toml:"domain" yaml:"domain"`
	DryRun bool   `toml:"dry_run" yaml:"dry_run"`

	Provider ProviderConfig `toml:"provider" yaml:"provider"`
}

// ProviderConfig selects the backend and carries its settings. Which
// fields matter depends on the kind: the REST adapters use the
// credential fields and optionally endpoint, rfc2136 uses server and
// the TSIG fields, dnsmasq uses path, reload_command, and ssh.
type ProviderConfig struct {
	Kind string `toml:"kind" yaml:"kind"`

	APIKey    string `toml:"api_key" yaml:"api_key"`
	APISecret string `toml:"api_secret" yaml:"api_secret"`
	Token     string `toml:"token" yaml:"token"`

	// Endpoint overrides the vendor API base URL (sandboxes, mocks).
	Endpoint string `toml:"endpoint" yaml:"endpoint"`

	// rfc2136 settings. Timeout is a duration string such as "5s".
	Server        string `toml:"server" yaml:"server"`
	TSIGAlgorithm string `toml:"tsig_algorithm" yaml:"tsig_algorithm"`
	TCP           bool   `toml:"tcp" yaml:"tcp"`
	Timeout       string `toml:"timeout" yaml:"timeout"`

	// dnsmasq settings.
	Path          string     `toml:"path" yaml:"path"`
	ReloadCommand string     `toml:"reload_command" yaml:"reload_command"`
	TTL           int        `toml:"ttl" yaml:"ttl"`
	SSH           *SSHConfig `toml:"ssh" yaml:"ssh"`
}

// SSHConfig carries remote access settings for file-backed providers.
type SSHConfig struct {
	Host           string `toml:"host" yaml:"host"`
	Port           int    `toml:"port" yaml:"port"`
	User           string `toml:"user" yaml:"user"`
	KeyFile        string `toml:"key_file" yaml:"key_file"`
	KeyPassphrase  string `toml:"key_passphrase" yaml:"key_passphrase"`
	Password       string `toml:"password" yaml:"password"`
	KnownHostsFile string `toml:"known_hosts_file" yaml:"known_hosts_file"`
	Timeout        string `toml:"timeout" yaml:"timeout"`
}

// Load reads and parses the file at path. The format follows the
// extension: .toml for TOML, .yaml or .yml for YAML. Environment
// interpolation and credential resolution run after parsing.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q (want .toml, .yaml, or .yml)", ext)
	}

	f.interpolate()
	f.resolveCredentials()
	return &f, nil
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} patterns with environment values. An
// unset variable yields its ${VAR:-default} fallback, or "".
func interpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value := os.Getenv(groups[1]); value != "" {
			return value
		}
		return groups[2]
	})
}

func (f *File) interpolate() {
	f.Domain = interpolateEnv(f.Domain)

	p := &f.Provider
	p.Kind = interpolateEnv(p.Kind)
	p.APIKey = interpolateEnv(p.APIKey)
	p.APISecret = interpolateEnv(p.APISecret)
	p.Token = interpolateEnv(p.Token)
	p.Endpoint = interpolateEnv(p.Endpoint)
	p.Server = interpolateEnv(p.Server)
	p.TSIGAlgorithm = interpolateEnv(p.TSIGAlgorithm)
	p.Timeout = interpolateEnv(p.Timeout)
	p.Path = interpolateEnv(p.Path)
	p.ReloadCommand = interpolateEnv(p.ReloadCommand)

	if s := p.SSH; s != nil {
		s.Host = interpolateEnv(s.Host)
		s.User = interpolateEnv(s.User)
		s.KeyFile = interpolateEnv(s.KeyFile)
		s.KeyPassphrase = interpolateEnv(s.KeyPassphrase)
		s.Password = interpolateEnv(s.Password)
		s.KnownHostsFile = interpolateEnv(s.KnownHostsFile)
		s.Timeout = interpolateEnv(s.Timeout)
	}
}

// getEnvOrFile reads key from the environment. When key_FILE names a
// readable file, its trimmed contents win over the direct value.
func getEnvOrFile(key string) string {
	if path := os.Getenv(key + "_FILE"); path != "" {
		if content, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return os.Getenv(key)
}

// resolveCredentials overlays environment credentials onto the file
// values. The environment wins so checked-in configs can stay free of
// secrets.
func (f *File) resolveCredentials() {
	if v := getEnvOrFile(EnvAPIKey); v != "" {
		f.Provider.APIKey = v
	}
	if v := getEnvOrFile(EnvAPISecret); v != "" {
		f.Provider.APISecret = v
	}
	if v := getEnvOrFile(EnvToken); v != "" {
		f.Provider.Token = v
	}
}
