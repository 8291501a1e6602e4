package dnsupdate

import (
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Default configuration values.
const (
	// DefaultPort is the standard DNS port.
	DefaultPort = 53

	// DefaultTimeout bounds each DNS exchange.
	DefaultTimeout = 10 * time.Second
)

// Config holds the connection settings for one authoritative server
// and zone.
type Config struct {
	// Server is the DNS server address in host:port form.
	// A bare host gets the default DNS port.
	Server string

	// Zone is the zone the client operates on. Must be fully
	// qualified ("example.com.").
	Zone string

	// Timeout bounds each exchange. Zero selects DefaultTimeout.
	Timeout time.Duration

	// UseTCP forces TCP transport. UDP is the default; large updates
	// or filtered UDP need TCP.
	UseTCP bool
}

// Validate checks that the required settings are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server == "" {
		errs = append(errs, "server is required")
	}

	if c.Zone == "" {
		errs = append(errs, "zone is required")
	} else if !dns.IsFqdn(c.Zone) {
		errs = append(errs, "zone must be fully qualified (trailing dot)")
	}

	if c.Timeout < 0 {
		errs = append(errs, "timeout must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("dnsupdate config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetServer returns the server address with a port, appending the
// default DNS port when none was given.
func (c *Config) GetServer() string {
	if c.Server == "" {
		return ""
	}
	if strings.Contains(c.Server, ":") {
		return c.Server
	}
	return fmt.Sprintf("%s:%d", c.Server, DefaultPort)
}

// GetTimeout returns the configured timeout or the default.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
