package sshutil

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultPort              = 22
	DefaultTimeout           = 30 * time.Second
	DefaultKeepaliveInterval = 15 * time.Second
)

// Config holds the settings for one SSH connection.
type Config struct {
	// Host is the SSH server hostname or IP address.
	Host string

	// Port is the SSH server port. Zero means 22.
	Port int

	// User is the login name.
	User string

	// KeyFile is the path to a private key file. At least one of
	// KeyFile, KeyData, or Password must be set.
	KeyFile string

	// KeyData is the private key content itself, for keys delivered
	// through an environment variable or a mounted secret.
	KeyData string

	// KeyPassphrase decrypts an encrypted private key.
	KeyPassphrase string

	// Password enables password authentication. Keys are preferred.
	Password string

	// KnownHostsFile points at an OpenSSH known_hosts file used to
	// verify the server's host key. Empty disables verification.
	KnownHostsFile string

	// Timeout bounds the connection attempt. Zero means 30s.
	Timeout time.Duration

	// KeepaliveInterval is the gap between keepalive requests on an
	// established connection. Zero means 15s.
	KeepaliveInterval time.Duration
}

// Validate reports whether the configuration is complete enough to
// dial with.
func (c *Config) Validate() error {
	var errs []string

	if c.Host == "" {
		errs = append(errs, "host is required")
	}
	if c.User == "" {
		errs = append(errs, "user is required")
	}
	if c.KeyFile == "" && c.KeyData == "" && c.Password == "" {
		errs = append(errs, "an authentication method is required (key file, key data, or password)")
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 0 and 65535")
	}
	if c.Timeout < 0 {
		errs = append(errs, "timeout must be non-negative")
	}
	if c.KeepaliveInterval < 0 {
		errs = append(errs, "keepalive interval must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("ssh config: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Address returns the dial target in host:port form.
func (c *Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// GetTimeout returns the configured timeout or the default.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// GetKeepaliveInterval returns the configured interval or the default.
func (c *Config) GetKeepaliveInterval() time.Duration {
	if c.KeepaliveInterval > 0 {
		return c.KeepaliveInterval
	}
	return DefaultKeepaliveInterval
}
