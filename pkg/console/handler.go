package console

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"consolefwd/pkg/model"
)

// LevelTrace is the slog level that maps to model.LevelTrace.
const LevelTrace = slog.Level(-8)

// TargetKey is the attribute that overrides the origin of a record.
const TargetKey = "target"

// Handler is a slog.Handler that forwards records through a Sink.
//
// The origin of a record is the "target" attribute if one was bound
// with With, otherwise the package path of the calling function.
// Attributes are appended to the message as key=value pairs.
type Handler struct {
	sink  *Sink
	level slog.Leveler

	target string
	attrs  string // preformatted attributes from WithAttrs
	group  string // dot-terminated group prefix
}

// NewHandler returns a handler over sink. A nil level means Info.
func NewHandler(sink *Sink, level slog.Leveler) *Handler {
	return &Handler{sink: sink, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return level >= min
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	entry := Entry{
		Level:  toLevel(r.Level),
		Target: h.target,
	}

	if r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		entry.ModulePath = packagePath(frame.Function)
		entry.File = frame.File
		if frame.Line > 0 {
			entry.Line = uint32(frame.Line)
		}
	}

	var b strings.Builder
	b.WriteString(r.Message)
	if h.attrs != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(h.attrs)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group == "" && a.Key == TargetKey && a.Value.Kind() == slog.KindString {
			entry.Target = a.Value.String()
			return true
		}
		appendAttr(&b, h.group, a)
		return true
	})
	entry.Message = b.String()

	if entry.Target == "" {
		entry.Target = entry.ModulePath
	}

	h.sink.Log(entry)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h

	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		if h.group == "" && a.Key == TargetKey && a.Value.Kind() == slog.KindString {
			h2.target = a.Value.String()
			continue
		}
		appendAttr(&b, h.group, a)
	}
	h2.attrs = b.String()
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = h.group + name + "."
	return &h2
}

func toLevel(l slog.Level) model.Level {
	switch {
	case l >= slog.LevelError:
		return model.LevelError
	case l >= slog.LevelWarn:
		return model.LevelWarn
	case l >= slog.LevelInfo:
		return model.LevelInfo
	case l >= slog.LevelDebug:
		return model.LevelDebug
	default:
		return model.LevelTrace
	}
}

// SlogLevel returns the slog level that Handler maps to l.
func SlogLevel(l model.Level) slog.Level {
	switch l {
	case model.LevelError:
		return slog.LevelError
	case model.LevelWarn:
		return slog.LevelWarn
	case model.LevelInfo:
		return slog.LevelInfo
	case model.LevelDebug:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// packagePath extracts the import path from a fully qualified function
// name such as "example.com/pkg/sub.(*T).Method". Dots in the last
// path element arrive escaped as %2e.
func packagePath(function string) string {
	start := strings.LastIndexByte(function, '/')
	if start < 0 {
		start = 0
	}
	path := function
	if dot := strings.IndexByte(function[start:], '.'); dot >= 0 {
		path = function[:start+dot]
	}
	return strings.ReplaceAll(path, "%2e", ".")
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if len(group) == 0 {
			return
		}
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range group {
			appendAttr(b, prefix, ga)
		}
		return
	}

	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')

	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " =\"\t\r\n") {
		v = strconv.Quote(v)
	}
	b.WriteString(v)
}
