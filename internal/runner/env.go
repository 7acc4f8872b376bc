package runner

import (
	"strings"
)

// Environment variables understood by the engine.
const (
	EnvIntegrationName    = "DEPKEEPER_INTEGRATION_NAME"
	EnvIntegrationVersion = "DEPKEEPER_INTEGRATION_VERSION"
	EnvToken              = "DEPKEEPER_TOKEN"
	EnvAPI                = "DEPKEEPER_API"
	EnvDisableAnalytics   = "DEPKEEPER_CFG_DISABLE_ANALYTICS"
)

// Environment is what the engine is told about its caller.
type Environment struct {
	IntegrationName    string
	IntegrationVersion string
	Token              string
	Endpoint           string
	DisableAnalytics   bool
}

// EnvFunc returns the current Environment. It is called once per Spawn.
type EnvFunc func() Environment

// Vars renders e as KEY=VALUE pairs. Empty values are left out.
func (e Environment) Vars() []string {
	var vars []string
	add := func(key, value string) {
		if value != "" {
			vars = append(vars, key+"="+value)
		}
	}
	add(EnvIntegrationName, e.IntegrationName)
	add(EnvIntegrationVersion, e.IntegrationVersion)
	add(EnvToken, e.Token)
	add(EnvAPI, e.Endpoint)
	if e.DisableAnalytics {
		add(EnvDisableAnalytics, "1")
	}
	return vars
}

// mergeEnv drops any engine variables from base and appends e's.
func mergeEnv(base []string, e Environment) []string {
	owned := []string{EnvIntegrationName, EnvIntegrationVersion, EnvToken, EnvAPI, EnvDisableAnalytics}

	merged := make([]string, 0, len(base)+len(owned))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		skip := false
		for _, o := range owned {
			if key == o {
				skip = true
				break
			}
		}
		if !skip {
			merged = append(merged, kv)
		}
	}
	return append(merged, e.Vars()...)
}
