package config

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// secretRule flags one kind of credential written into the settings file.
type secretRule struct {
	name string
	desc string
	re   *regexp.Regexp
}

var secretRules = []secretRule{
	{
		name: "Token",
		desc: "authentication token hardcoded in settings",
		re:   regexp.MustCompile(`(?i)\btoken\s*=\s*['"][a-zA-Z0-9_.-]{15,}['"]`),
	},
	{
		name: "API Key",
		desc: "API key hardcoded in settings",
		re:   regexp.MustCompile(`(?i)\bapi[_-]?key\s*=\s*['"][a-zA-Z0-9_-]{15,}['"]`),
	},
	{
		name: "URL Credentials",
		desc: "user and password embedded in a URL",
		re:   regexp.MustCompile(`(?i)\bhttps?://[^/\s:@'"]+:[^/\s@'"]+@`),
	},
}

// SensitiveDataFinding is a line of the settings file that appears to hold a
// secret.
type SensitiveDataFinding struct {
	PatternName string
	Description string
	Line        int
	Preview     string // the line with the secret hidden
}

// DetectSensitiveData reports lines of a settings file that hold credentials.
// Lua comment lines are skipped.
func DetectSensitiveData(content string) []SensitiveDataFinding {
	var findings []SensitiveDataFinding

	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		for _, rule := range secretRules {
			if loc := rule.re.FindStringIndex(trimmed); loc != nil {
				findings = append(findings, SensitiveDataFinding{
					PatternName: rule.name,
					Description: rule.desc,
					Line:        i + 1,
					Preview:     preview(trimmed, loc),
				})
			}
		}
	}
	return findings
}

// preview keeps what precedes the match, and the key of a key = value
// match, hiding everything after.
func preview(line string, loc []int) string {
	match := line[loc[0]:loc[1]]
	if i := strings.IndexByte(match, '='); i >= 0 {
		return line[:loc[0]] + strings.TrimSpace(match[:i]) + " = " + redacted
	}
	return line[:loc[0]] + redacted
}

// Redact replaces every occurrence of the given secrets in s. Empty secrets
// are ignored.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, redacted)
		}
	}
	return s
}
