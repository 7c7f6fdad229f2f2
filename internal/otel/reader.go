package otel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Match selects events read back from a log. Zero fields match everything.
type Match struct {
	Kind     string // exact kind, or a subsystem prefix ending in "."
	Resource string
	Level    Level
	Since    time.Time
	Session  string
}

func (m Match) keep(e Event) bool {
	if m.Kind != "" {
		if strings.HasSuffix(m.Kind, ".") {
			if !strings.HasPrefix(string(e.Kind), m.Kind) {
				return false
			}
		} else if string(e.Kind) != m.Kind {
			return false
		}
	}
	if m.Resource != "" && e.Resource != m.Resource {
		return false
	}
	if m.Level != "" && e.Level != m.Level {
		return false
	}
	if !m.Since.IsZero() && e.Time.Before(m.Since) {
		return false
	}
	if m.Session != "" && e.SessionID != m.Session {
		return false
	}
	return true
}

// Read decodes JSONL events from r, skipping lines that do not parse.
// It returns at most limit of the newest matches when limit > 0.
func Read(r io.Reader, m Match, limit int) ([]Event, error) {
	var out []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if m.keep(e) {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("failed to read events: %w", err)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ReadFile is Read over the file at path.
func ReadFile(path string, m Match, limit int) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()
	return Read(f, m, limit)
}
