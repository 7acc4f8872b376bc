package runner

import (
	"fmt"
	"strings"
)

// JSONFlag asks the engine for machine-readable output.
const JSONFlag = "--json"

// BuildArgs assembles an engine command line: verbs, then targets, then
// JSONFlag, then the user's extra parameters split like a shell would.
func BuildArgs(verbs, targets []string, additional string) ([]string, error) {
	extra, err := SplitArgs(additional)
	if err != nil {
		return nil, fmt.Errorf("additional parameters: %w", err)
	}

	args := make([]string, 0, len(verbs)+len(targets)+1+len(extra))
	args = append(args, verbs...)
	args = append(args, targets...)
	args = append(args, JSONFlag)
	return append(args, extra...), nil
}

// SplitArgs splits s on whitespace. Single quotes keep their content as is;
// double quotes allow \" and \\ escapes. Quotes may start mid-word, as in
// --exclude="a b".
func SplitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == '\\':
			escaped = true
			inWord = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in %q", quote, s)
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash in %q", s)
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
