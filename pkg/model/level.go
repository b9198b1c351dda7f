package model

import (
	"fmt"
	"strings"
)

// Level is the severity of a record. Lower values are more severe, so
// Error < Warn < Info < Debug < Trace.
type Level uint8

const (
	LevelError Level = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = [...]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

func (l Level) String() string {
	if l < LevelError || l > LevelTrace {
		return fmt.Sprintf("Level(%d)", uint8(l))
	}
	return levelNames[l]
}

// MarshalText encodes the level as its upper-case name. Both codecs
// use this, so the console sees "INFO" rather than a number.
func (l Level) MarshalText() ([]byte, error) {
	if l < LevelError || l > LevelTrace {
		return nil, fmt.Errorf("invalid level %d", uint8(l))
	}
	return []byte(levelNames[l]), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel converts a level name to a Level. Matching is case
// insensitive and accepts the usual short forms. Fatal-class names
// map to Error since there is nothing more severe on the wire.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR", "ERR", "ERRO", "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "PANIC":
		return LevelError, nil
	case "WARN", "WARNING", "WRN":
		return LevelWarn, nil
	case "INFO", "INFORMATION", "INF":
		return LevelInfo, nil
	case "DEBUG", "DEBU", "DBG":
		return LevelDebug, nil
	case "TRACE", "TRAC", "TRC":
		return LevelTrace, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}
