package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/ZebulonRouseFrantzich/depkeeper/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser represents a Lua settings parser with platform detection.
type Parser struct {
	detector platform.Detector
	logger   Logger
}

// NewParser creates a new settings parser with the given platform detector.
// A nil detector leaves the "platform" table undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector, logger: noopLogger{}}
}

// WithLogger sets the logger used to report hardcoded secrets.
func (p *Parser) WithLogger(logger Logger) *Parser {
	p.logger = OrNop(logger)
	return p
}

// ParseFile reads and parses the settings file at path. A missing file yields
// DefaultSettings.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Debug("settings file not found, using defaults", "path", path)
			s := DefaultSettings()
			return &s, nil
		}
		return nil, fmt.Errorf("open settings: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSettingsSize+1))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if len(data) > MaxSettingsSize {
		return nil, &ParseError{
			Message: "settings file too large",
			Detail:  fmt.Sprintf("%s exceeds %d bytes", path, MaxSettingsSize),
		}
	}

	content := string(data)
	for _, finding := range DetectSensitiveData(content) {
		p.logger.Warn("possible secret in settings file, prefer the DEPKEEPER_TOKEN environment variable",
			"path", path,
			"line", finding.Line,
			"kind", finding.PatternName,
			"preview", finding.Preview)
	}

	return p.ParseString(ctx, content)
}

// ParseString parses Lua settings from a string.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Settings, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractSettings(L)
}

// ParseError represents a settings parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractSettings reads the global "depkeeper" table on top of
// DefaultSettings. A file without the table is treated as all defaults.
func extractSettings(L *lua.LState) (*Settings, error) {
	settings := DefaultSettings()

	root := L.GetGlobal(luaGlobalDepkeeper)
	switch root.Type() {
	case lua.LTNil:
		return &settings, nil
	case lua.LTTable:
	default:
		return nil, &ParseError{
			Message: "invalid 'depkeeper' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}
	table := root.(*lua.LTable)

	r := fieldReader{}
	r.str(table, "", luaFieldEndpoint, &settings.Endpoint)
	r.str(table, "", luaFieldToken, &settings.Token)

	if t := r.table(table, "", luaFieldTelemetry); t != nil {
		r.boolean(t, luaFieldTelemetry, luaFieldEnabled, &settings.Telemetry.Enabled)
	}

	if t := r.table(table, "", luaFieldRelease); t != nil {
		r.str(t, luaFieldRelease, luaFieldChannel, &settings.Release.Channel)
		r.str(t, luaFieldRelease, luaFieldBaseURL, &settings.Release.BaseURL)
		r.integer(t, luaFieldRelease, luaFieldUpdateIntervalDays, &settings.Release.UpdateIntervalDays)
		r.str(t, luaFieldRelease, luaFieldKeyring, &settings.Release.Keyring)
	}

	if t := r.table(table, "", luaFieldAdvanced); t != nil {
		r.boolean(t, luaFieldAdvanced, luaFieldAutomaticDependencyManagement, &settings.Advanced.AutomaticDependencyManagement)
		r.str(t, luaFieldAdvanced, luaFieldCliPath, &settings.Advanced.CliPath)
		r.str(t, luaFieldAdvanced, luaFieldAdditionalParameters, &settings.Advanced.AdditionalParameters)
		r.str(t, luaFieldAdvanced, luaFieldIntegrationName, &settings.Advanced.IntegrationName)
	}

	if r.err != nil {
		return nil, r.err
	}

	settings.Release.BaseURL = strings.TrimRight(settings.Release.BaseURL, "/")

	if err := settings.Validate(); err != nil {
		return nil, &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}

	return &settings, nil
}

// fieldReader copies typed fields out of Lua tables, keeping the first type
// error. nil values leave the destination untouched so platform.when(...)
// falls back to the default.
type fieldReader struct {
	err error
}

func (r *fieldReader) get(t *lua.LTable, parent, name string, want lua.LValueType) (lua.LValue, bool) {
	if r.err != nil {
		return nil, false
	}
	v := t.RawGetString(name)
	if v.Type() == lua.LTNil {
		return nil, false
	}
	if v.Type() != want {
		field := name
		if parent != "" {
			field = parent + "." + name
		}
		r.err = &ParseError{
			Message: "invalid type for " + field,
			Detail:  fmt.Sprintf("expected %s, got %s", want, v.Type()),
		}
		return nil, false
	}
	return v, true
}

func (r *fieldReader) str(t *lua.LTable, parent, name string, dst *string) {
	if v, ok := r.get(t, parent, name, lua.LTString); ok {
		*dst = v.String()
	}
}

func (r *fieldReader) boolean(t *lua.LTable, parent, name string, dst *bool) {
	if v, ok := r.get(t, parent, name, lua.LTBool); ok {
		*dst = bool(v.(lua.LBool))
	}
}

func (r *fieldReader) integer(t *lua.LTable, parent, name string, dst *int) {
	v, ok := r.get(t, parent, name, lua.LTNumber)
	if !ok {
		return
	}
	n := float64(v.(lua.LNumber))
	if n != float64(int(n)) {
		field := parent + "." + name
		r.err = &ParseError{
			Message: "invalid value for " + field,
			Detail:  fmt.Sprintf("expected a whole number, got %v", n),
		}
		return
	}
	*dst = int(n)
}

func (r *fieldReader) table(t *lua.LTable, parent, name string) *lua.LTable {
	if v, ok := r.get(t, parent, name, lua.LTTable); ok {
		return v.(*lua.LTable)
	}
	return nil
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
