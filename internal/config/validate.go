package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const minAPIKeyLen = 32

// bindHosts are the accepted LISTEN_HOST values: loopback for local runs,
// wildcard for containers whose network boundary is enforced outside.
var bindHosts = []string{"127.0.0.1", "::1", "localhost", "0.0.0.0", "::"}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

// validate reports every problem at once so a broken deployment is fixed in
// one pass rather than one variable per restart.
func (c *Config) validate() error {
	var errs []error

	for _, check := range []func() error{
		c.checkDatabaseURL,
		c.checkListen,
		c.checkOrigins,
		c.checkLogging,
		c.checkKeys,
		c.checkTimeouts,
	} {
		if err := check(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *Config) checkDatabaseURL() error {
	raw := c.DatabaseURL.Value()
	if raw == "" {
		return errors.New("DATABASE_URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	switch {
	case u.Scheme != "postgres" && u.Scheme != "postgresql":
		return errors.New("DATABASE_URL scheme must be postgres:// or postgresql://")
	case u.Hostname() == "":
		return errors.New("DATABASE_URL must include a host")
	case !isLoopback(u.Hostname()) && u.Query().Get("sslmode") == "disable":
		return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", u.Hostname())
	}

	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)

	return ip != nil && ip.IsLoopback()
}

func (c *Config) checkListen() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}

	if !slices.Contains(bindHosts, c.ListenHost) {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	return nil
}

// checkOrigins rejects wildcards: the same list gates websocket upgrades.
func (c *Config) checkOrigins() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return errors.New("CORS_ORIGINS must not contain wildcard '*'")
		}

		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}

		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) checkLogging() error {
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of %s (got %q)", strings.Join(logLevels, ", "), c.LogLevel)
	}

	if !slices.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("LOG_FORMAT must be json or text (got %q)", c.LogFormat)
	}

	return nil
}

func (c *Config) checkKeys() error {
	if len(c.APIKeys) == 0 {
		return errors.New("API_KEY is required")
	}

	for i, k := range c.APIKeys {
		if len(k.Value()) < minAPIKeyLen {
			return fmt.Errorf("API_KEY entry %d must be at least %d characters", i+1, minAPIKeyLen)
		}
	}

	return nil
}

// checkTimeouts keeps the row lock wait inside the lease, otherwise a lease
// could expire while its holder is still queued on the row.
func (c *Config) checkTimeouts() error {
	if c.DBLockTimeout >= c.LeaseTimeout {
		return errors.New("DB_LOCK_TIMEOUT must be shorter than LEASE_TIMEOUT")
	}

	return nil
}
