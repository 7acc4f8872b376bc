package binary

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var cliVersionPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)$`)

// CliVersion is an engine release version of the form MAJOR.MINOR.PATCH.
type CliVersion struct {
	v *semver.Version
}

// ParseCliVersion parses s, which may carry a "v" prefix and surrounding
// whitespace. Pre-release and build suffixes are rejected; leading zeros in a
// component are accepted, so "1.02.0" is 1.2.0.
func ParseCliVersion(s string) (CliVersion, error) {
	m := cliVersionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return CliVersion{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	var parts [3]uint64
	for i, raw := range m[1:] {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return CliVersion{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, s, err)
		}
		parts[i] = n
	}
	return CliVersion{v: semver.New(parts[0], parts[1], parts[2], "", "")}, nil
}

// MustParseCliVersion is like ParseCliVersion but panics on error.
func MustParseCliVersion(s string) CliVersion {
	v, err := ParseCliVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Major returns the major component.
func (c CliVersion) Major() uint64 { return c.v.Major() }

// Minor returns the minor component.
func (c CliVersion) Minor() uint64 { return c.v.Minor() }

// Patch returns the patch component.
func (c CliVersion) Patch() uint64 { return c.v.Patch() }

// String returns the version without a "v" prefix.
func (c CliVersion) String() string {
	if c.v == nil {
		return ""
	}
	return c.v.String()
}

// IsLatest reports whether other is not strictly newer than c.
func (c CliVersion) IsLatest(other CliVersion) bool {
	mine := [3]uint64{c.Major(), c.Minor(), c.Patch()}
	theirs := [3]uint64{other.Major(), other.Minor(), other.Patch()}
	for i := range mine {
		if theirs[i] != mine[i] {
			return theirs[i] < mine[i]
		}
	}
	return true
}

// Compare orders c against other using semver precedence.
func (c CliVersion) Compare(other CliVersion) int {
	return c.v.Compare(other.v)
}
