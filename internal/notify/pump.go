package notify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize bounds a single encoded message.
const MaxMessageSize = 4 << 20

// Pump reads newline-delimited JSON messages from r and dispatches each one
// until EOF. Lines that do not decode are logged and skipped. ctx is checked
// between lines; a blocked read is only interrupted by closing r.
func Pump(ctx context.Context, r io.Reader, d *Dispatcher) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxMessageSize)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++

		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			d.logger.Warn("skipping malformed notification", "line", line, "error", err)
			continue
		}
		if msg.Method == "" {
			d.logger.Warn("skipping notification without method", "line", line)
			continue
		}
		if !d.Dispatch(msg) {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read notifications: %w", err)
	}
	return ctx.Err()
}
