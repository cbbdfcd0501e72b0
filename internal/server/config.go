package server

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Default server settings. The port matches the one the trading bot has
// always exposed its dashboard on.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = "58181"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
)

// Config holds HTTP server configuration parameters.
//
// It defines timeouts, size limits, and network settings for the HTTP server.
type Config struct {
	Host            string        // Interface to bind, empty means all
	Port            string        // Port number to listen on
	ReadTimeout     time.Duration // Maximum duration for reading the entire request
	WriteTimeout    time.Duration // Maximum duration for writing the response
	IdleTimeout     time.Duration // Maximum duration to wait for next request with keep-alives
	ShutdownTimeout time.Duration // Maximum duration to drain connections on shutdown
	MaxHeaderBytes  int           // Maximum size of request headers
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxHeaderBytes:  DefaultMaxHeaderBytes,
	}
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate validates that the server configuration is valid.
//
// A valid port must be:
//   - Numeric (can be converted to an integer)
//   - Within the valid TCP/UDP port range (1-65535)
//
// Timeouts must not be negative; zero leaves the net/http default in place.
//
// Returns an error describing the validation failure, or nil if valid.
func (c *Config) Validate() error {
	portNum, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port number: %s (must be numeric)", c.Port)
	}
	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("invalid port number: %s (must be between 1 and 65535)", c.Port)
	}
	for name, d := range map[string]time.Duration{
		"read timeout":     c.ReadTimeout,
		"write timeout":    c.WriteTimeout,
		"idle timeout":     c.IdleTimeout,
		"shutdown timeout": c.ShutdownTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("invalid %s: %s (must not be negative)", name, d)
		}
	}
	if c.MaxHeaderBytes < 0 {
		return fmt.Errorf("invalid max header bytes: %d (must not be negative)", c.MaxHeaderBytes)
	}
	return nil
}
