// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides layered configuration loading (defaults → YAML
// file → environment variables) for the AutoWL pipeline, following the
// teacher's koanf-based approach in a much smaller configuration surface:
// spec.md §6 names a handful of keys, not dozens of subsystem sections.
package config

import "time"

// FixedWebSubInterval is the WebSub Subscription Manager's tick cadence.
// Spec.md §6: "WebSub manager and C cadences are fixed at 30 and 15
// minutes respectively" — this one is not configurable.
const FixedWebSubInterval = 30 * time.Minute

// FixedTokenRefreshInterval is the Token Refresh Loop's tick cadence.
// Spec.md §6: fixed at 15 minutes, not configurable.
const FixedTokenRefreshInterval = 15 * time.Minute

// DatabaseProvider enumerates the supported database backends. Spec.md
// §6: "DatabaseProvider ∈ {SQLite, Postgres, SqlServer}: driver
// selection; schema identical."
type DatabaseProvider string

const (
	DatabaseProviderSQLite    DatabaseProvider = "SQLite"
	DatabaseProviderPostgres  DatabaseProvider = "Postgres"
	DatabaseProviderSqlServer DatabaseProvider = "SqlServer"
)

// OAuthProviderConfig identifies this app to a named platform provider.
// Spec.md §6: "Authentication.<provider>.ClientId/ClientSecret".
type OAuthProviderConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

// ConnectionStringsConfig holds the shared database DSN. Spec.md §6:
// "ConnectionStrings.Default: the shared database."
type ConnectionStringsConfig struct {
	Default string `koanf:"default"`
}

// DataProtectionConfig controls Token Vault master key persistence.
// Spec.md §6: "DataProtection.KeyDirectory: master-key persistence path;
// absent → ephemeral keys (dev only)."
type DataProtectionConfig struct {
	KeyDirectory string `koanf:"key_directory"`
}

// YouTubePollingConfig controls the Fallback Poller's cadence. Spec.md
// §6: "YouTubePolling.IntervalHours (default 1.0): F cadence."
type YouTubePollingConfig struct {
	IntervalHours float64 `koanf:"interval_hours"`
}

// Interval returns the configured polling interval as a time.Duration.
func (c YouTubePollingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours * float64(time.Hour))
}

// VideoProcessingConfig controls the Fan-Out Processor's cadence. Spec.md
// §6: "VideoProcessing.IntervalMinutes (default 5.0): G cadence."
type VideoProcessingConfig struct {
	IntervalMinutes float64 `koanf:"interval_minutes"`
}

// Interval returns the configured fan-out interval as a time.Duration.
func (c VideoProcessingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes * float64(time.Minute))
}

// ServerConfig controls the webhook + diagnostics HTTP surface.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig controls the zerolog-based ambient logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Config is the top-level configuration for the AutoWL process, composed
// of one sub-struct per spec.md §6 concern — the same nested-struct-per-
// concern shape the teacher uses in internal/config/config.go, scaled to
// this system's much smaller surface.
type Config struct {
	Authentication    map[string]OAuthProviderConfig `koanf:"authentication"`
	ConnectionStrings ConnectionStringsConfig         `koanf:"connectionstrings"`
	DatabaseProvider  DatabaseProvider                `koanf:"databaseprovider"`
	DataProtection    DataProtectionConfig            `koanf:"dataprotection"`
	BaseUrl           string                          `koanf:"baseurl"`
	Server            ServerConfig                    `koanf:"server"`
	YouTubePolling    YouTubePollingConfig             `koanf:"youtubepolling"`
	VideoProcessing   VideoProcessingConfig            `koanf:"videoprocessing"`
	Logging           LoggingConfig                    `koanf:"logging"`
}

// PlatformCredentials returns the OAuth client id/secret configured for
// the named platform provider (e.g. "youtube").
func (c *Config) PlatformCredentials(provider string) (OAuthProviderConfig, bool) {
	cred, ok := c.Authentication[provider]
	return cred, ok
}

// CallbackURL returns the WebSub hub callback URL derived from BaseUrl.
// Spec.md §6: "BaseUrl: used to build the hub callback URL as
// {BaseUrl}/webhook; required for D and on bootstrap."
func (c *Config) CallbackURL() string {
	return c.BaseUrl + "/webhook"
}
