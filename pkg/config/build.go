package config

import (
	"time"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
	"gitlab.bluewillows.net/root/zonedit/pkg/sshutil"
	"gitlab.bluewillows.net/root/zonedit/providers/bunny"
	"gitlab.bluewillows.net/root/zonedit/providers/cloudflare"
	"gitlab.bluewillows.net/root/zonedit/providers/desec"
	"gitlab.bluewillows.net/root/zonedit/providers/digitalocean"
	"gitlab.bluewillows.net/root/zonedit/providers/dnsimple"
	"gitlab.bluewillows.net/root/zonedit/providers/dnsmadeeasy"
	"gitlab.bluewillows.net/root/zonedit/providers/dnsmasq"
	"gitlab.bluewillows.net/root/zonedit/providers/gandi"
	"gitlab.bluewillows.net/root/zonedit/providers/linode"
	"gitlab.bluewillows.net/root/zonedit/providers/porkbun"
	"gitlab.bluewillows.net/root/zonedit/providers/rfc2136"
)

// Build constructs the provider handle the file describes. Every
// built-in adapter is registered; provider.kind picks one.
func (f *File) Build() (provider.Provider, error) {
	if f.Provider.Kind == "" {
		return nil, &provider.InputError{Field: "provider.kind", Message: "provider kind is required"}
	}

	reg, err := f.Registry()
	if err != nil {
		return nil, err
	}
	auth, err := f.auth()
	if err != nil {
		return nil, err
	}

	cfg := provider.Config{Domain: f.Domain, DryRun: f.DryRun}
	return reg.New(f.Provider.Kind, cfg, auth)
}

// Registry returns a provider registry with all built-in adapters
// registered. Settings the uniform factory signature cannot carry
// (endpoint, server, file path, SSH access) are fixed into the
// factories from the file, so registering an adapter the file does not
// select costs nothing.
func (f *File) Registry() (*provider.Registry, error) {
	p := f.Provider

	rfcOpts := []rfc2136.ProviderOption{rfc2136.WithServer(p.Server)}
	if p.TSIGAlgorithm != "" {
		rfcOpts = append(rfcOpts, rfc2136.WithTSIGAlgorithm(p.TSIGAlgorithm))
	}
	if p.TCP {
		rfcOpts = append(rfcOpts, rfc2136.WithTCP())
	}
	if p.Timeout != "" {
		timeout, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return nil, &provider.InputError{Field: "provider.timeout", Value: p.Timeout, Message: "invalid duration"}
		}
		rfcOpts = append(rfcOpts, rfc2136.WithTimeout(timeout))
	}

	masqOpts := []dnsmasq.ProviderOption{dnsmasq.WithPath(p.Path)}
	if p.ReloadCommand != "" {
		masqOpts = append(masqOpts, dnsmasq.WithReloadCommand(p.ReloadCommand))
	}
	if p.TTL > 0 {
		masqOpts = append(masqOpts, dnsmasq.WithTTL(p.TTL))
	}
	if p.SSH != nil {
		ssh, err := p.SSH.toSSHUtil()
		if err != nil {
			return nil, err
		}
		masqOpts = append(masqOpts, dnsmasq.WithSSH(ssh))
	}

	reg := provider.NewRegistry()
	reg.Register("bunny", bunny.Factory(endpointOpts(p.Endpoint, bunny.WithEndpoint)...))
	reg.Register("cloudflare", cloudflare.Factory(endpointOpts(p.Endpoint, cloudflare.WithEndpoint)...))
	reg.Register("desec", desec.Factory(endpointOpts(p.Endpoint, desec.WithEndpoint)...))
	reg.Register("digitalocean", digitalocean.Factory(endpointOpts(p.Endpoint, digitalocean.WithEndpoint)...))
	reg.Register("dnsimple", dnsimple.Factory(endpointOpts(p.Endpoint, dnsimple.WithEndpoint)...))
	reg.Register("dnsmadeeasy", dnsmadeeasy.Factory(endpointOpts(p.Endpoint, dnsmadeeasy.WithEndpoint)...))
	reg.Register("gandi", gandi.Factory(endpointOpts(p.Endpoint, gandi.WithEndpoint)...))
	reg.Register("linode", linode.Factory(endpointOpts(p.Endpoint, linode.WithEndpoint)...))
	reg.Register("porkbun", porkbun.Factory(endpointOpts(p.Endpoint, porkbun.WithEndpoint)...))
	reg.Register("rfc2136", rfc2136.Factory(rfcOpts...))
	reg.Register("dnsmasq", dnsmasq.Factory(masqOpts...))
	return reg, nil
}

// endpointOpts builds the option list shared by the REST adapters,
// which differ only in their option types.
func endpointOpts[T any](endpoint string, withEndpoint func(string) T) []T {
	if endpoint == "" {
		return nil
	}
	return []T{withEndpoint(endpoint)}
}

// auth maps the credential fields onto the Auth union. At most one
// variant can result: token, key and secret, or bare key.
func (f *File) auth() (provider.Auth, error) {
	p := f.Provider
	switch {
	case p.Token != "" && (p.APIKey != "" || p.APISecret != ""):
		return nil, &provider.InputError{Field: "provider.token", Message: "token and api_key/api_secret are mutually exclusive"}
	case p.Token != "":
		return provider.Token{Value: p.Token}, nil
	case p.APIKey != "" && p.APISecret != "":
		return provider.KeyAndSecret{Key: p.APIKey, Secret: p.APISecret}, nil
	case p.APIKey != "":
		return provider.APIKey{Key: p.APIKey}, nil
	case p.APISecret != "":
		return nil, &provider.InputError{Field: "provider.api_secret", Message: "api_secret requires api_key"}
	default:
		return nil, nil
	}
}

func (s *SSHConfig) toSSHUtil() (*sshutil.Config, error) {
	cfg := &sshutil.Config{
		Host:           s.Host,
		Port:           s.Port,
		User:           s.User,
		KeyFile:        s.KeyFile,
		KeyPassphrase:  s.KeyPassphrase,
		Password:       s.Password,
		KnownHostsFile: s.KnownHostsFile,
	}
	if s.Timeout != "" {
		timeout, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return nil, &provider.InputError{Field: "provider.ssh.timeout", Value: s.Timeout, Message: "invalid duration"}
		}
		cfg.Timeout = timeout
	}
	return cfg, nil
}
