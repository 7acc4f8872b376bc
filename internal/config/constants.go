package config

// Lua schema field names and globals
const (
	luaGlobalDepkeeper = "depkeeper"

	luaFieldEndpoint  = "endpoint"
	luaFieldToken     = "token"
	luaFieldTelemetry = "telemetry"
	luaFieldRelease   = "release"
	luaFieldAdvanced  = "advanced"

	luaFieldEnabled            = "enabled"
	luaFieldChannel            = "channel"
	luaFieldBaseURL            = "base_url"
	luaFieldUpdateIntervalDays = "update_interval_days"
	luaFieldKeyring            = "keyring"

	luaFieldAutomaticDependencyManagement = "automatic_dependency_management"
	luaFieldCliPath                       = "cli_path"
	luaFieldAdditionalParameters          = "additional_parameters"
	luaFieldIntegrationName               = "integration_name"
)

// Defaults applied before the settings file is read.
const (
	DefaultEndpoint           = "https://api.depkeeper.dev"
	DefaultBaseURL            = "https://downloads.depkeeper.dev/engine"
	DefaultChannel            = "stable"
	DefaultUpdateIntervalDays = 4
	DefaultIntegrationName    = "DEPKEEPER_CLI"

	// MaxSettingsSize bounds the settings file read from disk.
	MaxSettingsSize = 1 << 20
	// MaxUpdateIntervalDays bounds release.update_interval_days.
	MaxUpdateIntervalDays = 365
)

// Channels lists the release channels the download server publishes.
var Channels = []string{"stable", "rc", "preview"}
