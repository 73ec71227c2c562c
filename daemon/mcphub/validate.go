package mcphub

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateBackend checks a BackendConfig's invariants: identity must be
// present, and the transport-dependent required field must be non-empty
// (and parseable, for the HTTP variants).
func ValidateBackend(b BackendConfig) error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("%w: backend id must not be empty", ErrConfigInvalid)
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: backend %q: name must not be empty", ErrConfigInvalid, b.ID)
	}

	switch b.Transport {
	case TransportStdio:
		if strings.TrimSpace(b.Command) == "" {
			return fmt.Errorf("%w: backend %q: stdio transport requires a command", ErrConfigInvalid, b.ID)
		}
	case TransportLegacySSE, TransportStreamableHTTP:
		if strings.TrimSpace(b.URL) == "" {
			return fmt.Errorf("%w: backend %q: %s transport requires a url", ErrConfigInvalid, b.ID, b.Transport)
		}
		if _, err := url.ParseRequestURI(b.URL); err != nil {
			return fmt.Errorf("%w: backend %q: invalid url %q: %v", ErrConfigInvalid, b.ID, b.URL, err)
		}
	default:
		return fmt.Errorf("%w: backend %q: unknown transport %q", ErrConfigInvalid, b.ID, b.Transport)
	}

	return nil
}

// ValidateAppConfig checks AppConfig's own invariants and validates every
// backend entry, failing on the first problem found.
func ValidateAppConfig(c AppConfig) error {
	if c.ProxyPort < 1024 {
		return fmt.Errorf("%w: proxy_port must be >= 1024, got %d", ErrConfigInvalid, c.ProxyPort)
	}
	if c.HealthCheckIntervalSecs < 5 {
		return fmt.Errorf("%w: health_check_interval_secs must be >= 5, got %d", ErrConfigInvalid, c.HealthCheckIntervalSecs)
	}

	seen := make(map[string]struct{}, len(c.MCPs))
	for _, b := range c.MCPs {
		if err := ValidateBackend(b); err != nil {
			return err
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: duplicate backend id %q", ErrConfigInvalid, b.ID)
		}
		seen[b.ID] = struct{}{}
	}

	return nil
}
