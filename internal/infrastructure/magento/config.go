package magento

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/magesync/backend/internal/domain/integration"
)

const (
	// DefaultTimeout bounds one SOAP round trip
	DefaultTimeout = 60 * time.Second
	// DefaultMaxResponseBytes caps how much of a response is read (32MB)
	DefaultMaxResponseBytes int64 = 32 * 1024 * 1024
	// minTokenLength is the shortest session id the remote ever issues
	minTokenLength = 10
	// errorExcerptBytes is how much of a failed response body is kept in errors
	errorExcerptBytes = 300
)

// ErrMissingCredentials indicates the endpoint, username or api key is not configured
var ErrMissingCredentials = errors.New("magento: endpoint, username and api key are required")

// Config holds the SOAP API connection settings
type Config struct {
	// Endpoint is the SOAP v2 endpoint; a trailing ?wsdl is ignored
	Endpoint string
	// Username is the API user
	Username string
	// APIKey is the API user's key
	APIKey string
	// Timeout is the per-request timeout
	Timeout time.Duration
	// RequestsPerSecond paces calls across all pipelines, 0 disables pacing
	RequestsPerSecond float64
	// Burst is the number of calls allowed at once when pacing
	Burst int
	// MaxOpsPerSession rotates the session after this many calls, 0 means never
	MaxOpsPerSession int
	// MaxResponseBytes caps the response size
	MaxResponseBytes int64
}

// applyDefaults fills unset optional fields
func (c *Config) applyDefaults() {
	c.Endpoint = strings.TrimSuffix(strings.TrimSpace(c.Endpoint), "?wsdl")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		c.Burst = 1
	}
	if c.MaxOpsPerSession < 0 {
		c.MaxOpsPerSession = 0
	}
}

// Validate applies defaults and checks that credentials are present.
// A missing credential is an authentication failure: no pass can start.
func (c *Config) Validate() error {
	c.applyDefaults()
	if c.Endpoint == "" || c.Username == "" || c.APIKey == "" {
		return fmt.Errorf("%w: %w", integration.ErrAuthFailed, ErrMissingCredentials)
	}
	return nil
}
