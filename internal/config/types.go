package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"
)

// Settings is the complete depkeeper configuration.
type Settings struct {
	// Endpoint is the API endpoint handed to the engine.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Token authenticates the engine. Usually supplied through the
	// environment rather than the settings file.
	Token string `json:"-" yaml:"-"`

	Telemetry Telemetry `json:"telemetry" yaml:"telemetry"`
	Release   Release   `json:"release" yaml:"release"`
	Advanced  Advanced  `json:"advanced" yaml:"advanced"`
}

// Telemetry controls the analytics opt-out passed to the engine.
type Telemetry struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Release selects where engine builds come from and how often to look for
// new ones.
type Release struct {
	Channel            string `json:"channel" yaml:"channel"`
	BaseURL            string `json:"base_url" yaml:"base_url"`
	UpdateIntervalDays int    `json:"update_interval_days" yaml:"update_interval_days"`

	// Keyring is an optional path to an OpenPGP public keyring. When set,
	// checksum files must carry a valid detached signature.
	Keyring string `json:"keyring,omitempty" yaml:"keyring,omitempty"`
}

// Advanced holds settings most users never touch.
type Advanced struct {
	AutomaticDependencyManagement bool   `json:"automatic_dependency_management" yaml:"automatic_dependency_management"`
	CliPath                       string `json:"cli_path,omitempty" yaml:"cli_path,omitempty"`
	AdditionalParameters          string `json:"additional_parameters,omitempty" yaml:"additional_parameters,omitempty"`
	IntegrationName               string `json:"integration_name" yaml:"integration_name"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		Endpoint:  DefaultEndpoint,
		Telemetry: Telemetry{Enabled: true},
		Release: Release{
			Channel:            DefaultChannel,
			BaseURL:            DefaultBaseURL,
			UpdateIntervalDays: DefaultUpdateIntervalDays,
		},
		Advanced: Advanced{
			AutomaticDependencyManagement: true,
			IntegrationName:               DefaultIntegrationName,
		},
	}
}

// UpdateInterval returns the minimum time between remote update checks.
func (s *Settings) UpdateInterval() time.Duration {
	return time.Duration(s.Release.UpdateIntervalDays) * 24 * time.Hour
}

// TelemetryDisabled reports whether the engine should be told to opt out of
// analytics.
func (s *Settings) TelemetryDisabled() bool {
	return !s.Telemetry.Enabled
}

// Validate performs basic validation on Settings.
func (s *Settings) Validate() error {
	if err := validateURL(s.Endpoint); err != nil {
		return &ValidationError{Field: "endpoint", Message: err.Error()}
	}

	if !slices.Contains(Channels, s.Release.Channel) {
		return &ValidationError{
			Field:   "release.channel",
			Message: fmt.Sprintf("unknown channel %q (expected one of %v)", s.Release.Channel, Channels),
		}
	}

	if err := validateURL(s.Release.BaseURL); err != nil {
		return &ValidationError{Field: "release.base_url", Message: err.Error()}
	}

	if s.Release.UpdateIntervalDays < 0 || s.Release.UpdateIntervalDays > MaxUpdateIntervalDays {
		return &ValidationError{
			Field:   "release.update_interval_days",
			Message: fmt.Sprintf("must be between 0 and %d, got %d", MaxUpdateIntervalDays, s.Release.UpdateIntervalDays),
		}
	}

	if s.Advanced.IntegrationName == "" {
		return &ValidationError{Field: "advanced.integration_name", Message: "cannot be empty"}
	}

	return nil
}

// ValidationError represents a settings validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

// validateURL accepts absolute http(s) URLs. Plain http is allowed because
// mirrors on private networks commonly use it.
func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL %q must use https:// or http://", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}
