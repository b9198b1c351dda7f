package engine

import (
	"regexp"

	"consolefwd/pkg/model"
)

// RedactionProcessor replaces matches of a pattern in the message with a mask.
type RedactionProcessor struct {
	name    string
	pattern *regexp.Regexp
	mask    string
}

// NewRedactionProcessor masks every literal occurrence of target.
func NewRedactionProcessor(name string, target string, mask string) *RedactionProcessor {
	return &RedactionProcessor{
		name:    name,
		pattern: regexp.MustCompile(regexp.QuoteMeta(target)),
		mask:    mask,
	}
}

// NewRegexRedactionProcessor masks every match of expr.
func NewRegexRedactionProcessor(name string, expr string, mask string) (*RedactionProcessor, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &RedactionProcessor{name: name, pattern: re, mask: mask}, nil
}

func (r *RedactionProcessor) Name() string {
	return r.name
}

func (r *RedactionProcessor) Process(ctx *ProcessingContext, rec model.Record) (model.Record, bool, error) {
	if r.pattern.String() == "" {
		return rec, false, nil
	}
	if r.pattern.MatchString(rec.Message) {
		rec.Message = r.pattern.ReplaceAllLiteralString(rec.Message, r.mask)
	}
	return rec, false, nil
}
