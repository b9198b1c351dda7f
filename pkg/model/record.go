package model

import (
	"strings"
	"unicode/utf8"
)

// Metadata identifies the severity and origin of a record.
type Metadata struct {
	Level Level `json:"level"`

	// Target is the origin tag of the emitting subsystem, e.g.
	// "mirrord_layer::file".
	Target string `json:"target"`
}

// Record is a single log event as it travels to the console.
// The location fields are nil when the call site did not provide them
// and are encoded as null.
type Record struct {
	Metadata   Metadata `json:"metadata"`
	Message    string   `json:"message"`
	ModulePath *string  `json:"module_path"`
	File       *string  `json:"file"`
	Line       *uint32  `json:"line"`
}

// ProcessInfo is a snapshot of the host process taken at handshake time.
type ProcessInfo struct {
	Args []string `json:"args"`

	// Env holds "KEY=VALUE" strings in the order the runtime reports them.
	Env []string `json:"env"`
	Cwd *string  `json:"cwd"`
	ID  uint64   `json:"id"`
}

// Hello is the session descriptor. It is the first message on every
// connection and is sent exactly once.
type Hello struct {
	ProcessInfo ProcessInfo `json:"process_info"`
}

// Sanitized returns a copy of r whose strings are valid UTF-8. Invalid
// byte sequences are replaced with U+FFFD so the record encodes the
// same way under every codec.
func (r Record) Sanitized() Record {
	r.Metadata.Target = validUTF8(r.Metadata.Target)
	r.Message = validUTF8(r.Message)
	r.ModulePath = validUTF8Ptr(r.ModulePath)
	r.File = validUTF8Ptr(r.File)
	return r
}

// Sanitized returns a copy of p whose strings are valid UTF-8.
func (p ProcessInfo) Sanitized() ProcessInfo {
	p.Args = validUTF8Slice(p.Args)
	p.Env = validUTF8Slice(p.Env)
	p.Cwd = validUTF8Ptr(p.Cwd)
	return p
}

func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func validUTF8Ptr(s *string) *string {
	if s == nil || utf8.ValidString(*s) {
		return s
	}
	v := validUTF8(*s)
	return &v
}

func validUTF8Slice(ss []string) []string {
	var out []string
	for i, s := range ss {
		if utf8.ValidString(s) {
			continue
		}
		if out == nil {
			out = append([]string(nil), ss...)
		}
		out[i] = validUTF8(s)
	}
	if out == nil {
		return ss
	}
	return out
}
