// Package ingest turns log lines from outside the process into
// console entries.
package ingest

import (
	"bytes"
	"regexp"
	"strings"

	"consolefwd/pkg/console"
	"consolefwd/pkg/model"

	"github.com/tidwall/gjson"
)

// EntrySink receives parsed entries. *console.Sink implements it.
type EntrySink interface {
	Log(entry console.Entry)
}

// severityRegex matches common severity levels in plain text.
var severityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)\b`)

// Parser converts one line into an entry.
//
// JSON object lines are read field by field: "level" or "severity"
// (names or pino numbers), "msg" or "message", and an optional "target"
// that replaces the default. Any other line is the message itself, with
// the first severity word found in it as the level.
type Parser struct {
	// Target is the origin given to lines that carry none.
	Target string
}

// Parse returns the entry for line, or false for a blank line.
func (p Parser) Parse(line []byte) (console.Entry, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if len(bytes.TrimSpace(line)) == 0 {
		return console.Entry{}, false
	}

	if line[0] == '{' && gjson.ValidBytes(line) {
		if entry, ok := p.parseJSON(line); ok {
			return entry, true
		}
	}

	text := string(line)
	return console.Entry{
		Level:   severityFromText(text),
		Target:  p.Target,
		Message: text,
	}, true
}

func (p Parser) parseJSON(line []byte) (console.Entry, bool) {
	fields := gjson.GetManyBytes(line, "level", "severity", "msg", "message", "target")

	msg := fields[2]
	if !msg.Exists() {
		msg = fields[3]
	}
	if !msg.Exists() {
		return console.Entry{}, false
	}

	lvl := fields[0]
	if !lvl.Exists() {
		lvl = fields[1]
	}

	entry := console.Entry{
		Level:   levelFromJSON(lvl),
		Target:  p.Target,
		Message: msg.String(),
	}
	if t := fields[4]; t.Type == gjson.String && t.Str != "" {
		entry.Target = t.Str
	}
	return entry, true
}

func levelFromJSON(v gjson.Result) model.Level {
	switch v.Type {
	case gjson.Number:
		return pinoLevel(v.Int())
	case gjson.String:
		if l, err := model.ParseLevel(v.Str); err == nil {
			return l
		}
	}
	return model.LevelInfo
}

// pinoLevel maps pino/bunyan numeric levels.
func pinoLevel(n int64) model.Level {
	switch {
	case n >= 50:
		return model.LevelError
	case n >= 40:
		return model.LevelWarn
	case n >= 30:
		return model.LevelInfo
	case n >= 20:
		return model.LevelDebug
	default:
		return model.LevelTrace
	}
}

func severityFromText(text string) model.Level {
	m := severityRegex.FindStringSubmatch(text)
	if len(m) < 2 {
		return model.LevelInfo
	}
	if l, err := model.ParseLevel(strings.ToUpper(m[1])); err == nil {
		return l
	}
	return model.LevelInfo
}
