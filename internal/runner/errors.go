package runner

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ErrCanceled is returned when a run was stopped by Cancel, by a newer run
// of the same task, or by its context.
var ErrCanceled = errors.New("engine run canceled")

// SpawnError reports that the engine process could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start engine %s: %v", redactPaths(e.Path), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError reports an exit code outside the runner's success codes. Output
// holds the combined stdout and stderr with secrets removed.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	summary := strings.TrimSpace(e.Output)
	if i := strings.IndexByte(summary, '\n'); i >= 0 {
		summary = summary[:i]
	}
	const maxLen = 200
	if len(summary) > maxLen {
		summary = summary[:maxLen] + "..."
	}
	if summary == "" {
		return fmt.Sprintf("engine exited with code %d", e.Code)
	}
	return fmt.Sprintf("engine exited with code %d: %s", e.Code, redactPaths(summary))
}

var (
	linuxHome = regexp.MustCompile(`/home/[^/\s]+`)
	macHome   = regexp.MustCompile(`/Users/[^/\s]+`)
)

// redactPaths hides user names embedded in home directory paths.
func redactPaths(msg string) string {
	if home, err := os.UserHomeDir(); err == nil && len(home) > 1 {
		msg = strings.ReplaceAll(msg, home, "$HOME")
	}
	msg = linuxHome.ReplaceAllString(msg, "/home/<user>")
	msg = macHome.ReplaceAllString(msg, "/Users/<user>")
	return msg
}
