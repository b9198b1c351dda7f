package engine

import (
	"fmt"
	"regexp"
	"strings"

	"consolefwd/pkg/model"

	"github.com/tidwall/gjson"
)

// Operator defines the comparison operation for attribute filtering
type Operator string

const (
	OpEquals   Operator = "equals"
	OpContains Operator = "contains"
	OpRegex    Operator = "regex"
)

// recordSearchPaths maps short attribute names to their location in
// the JSON view of a record.
var recordSearchPaths = map[string][]string{
	"target":      {"metadata.target"},
	"level":       {"metadata.level"},
	"log.level":   {"metadata.level"},
	"message":     {"message"},
	"body":        {"message"},
	"module":      {"module_path"},
	"module_path": {"module_path"},
	"file":        {"file"},
	"code.file":   {"file"},
	"line":        {"line"},
	"code.line":   {"line"},
}

// genericSearchPaths are tried for any attribute not in recordSearchPaths
var genericSearchPaths = []string{
	"%s",          // top-level as-is
	"metadata.%s", // inside metadata
}

// AttributeFilterProcessor drops records based on attribute values.
// Supports both short attribute names (auto-search) and explicit paths.
type AttributeFilterProcessor struct {
	name     string
	attr     string // short attribute name (auto-search mode)
	path     string // explicit gjson path (explicit mode)
	operator Operator
	value    string
	regex    *regexp.Regexp // compiled regex if operator is OpRegex
}

// AttributeFilterConfig holds configuration for creating an AttributeFilterProcessor
type AttributeFilterConfig struct {
	Name      string
	Attribute string // use this for short attribute names (auto-search)
	Path      string // use this for explicit paths, segments separated by /
	Operator  Operator
	Value     string
}

// NewAttributeFilterProcessor creates a new attribute filter processor.
// Either Attribute or Path must be specified, not both.
func NewAttributeFilterProcessor(cfg AttributeFilterConfig) (*AttributeFilterProcessor, error) {
	if cfg.Attribute == "" && cfg.Path == "" {
		return nil, fmt.Errorf("either attribute or path must be specified")
	}
	if cfg.Attribute != "" && cfg.Path != "" {
		return nil, fmt.Errorf("cannot specify both attribute and path")
	}

	p := &AttributeFilterProcessor{
		name:     cfg.Name,
		attr:     cfg.Attribute,
		path:     cfg.Path,
		operator: cfg.Operator,
		value:    cfg.Value,
	}

	switch cfg.Operator {
	case "":
		p.operator = OpEquals
	case OpEquals, OpContains:
	case OpRegex:
		re, err := regexp.Compile(cfg.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern: %w", err)
		}
		p.regex = re
	default:
		return nil, fmt.Errorf("unknown operator %q", cfg.Operator)
	}

	return p, nil
}

func (p *AttributeFilterProcessor) Name() string {
	return p.name
}

// Process checks if the record matches the filter criteria.
// Returns (rec, drop=true, nil) if the attribute matches and the record should be dropped.
func (p *AttributeFilterProcessor) Process(ctx *ProcessingContext, rec model.Record) (model.Record, bool, error) {
	view, err := ctx.JSONView(rec)
	if err != nil {
		// Fail-open: a record we cannot render is passed through.
		return rec, false, nil
	}
	return rec, p.matchJSON(view), nil
}

// matchJSON reports whether the attribute exists in entry and matches.
func (p *AttributeFilterProcessor) matchJSON(entry []byte) bool {
	if !gjson.ValidBytes(entry) {
		return false
	}

	var value gjson.Result
	if p.path != "" {
		value = gjson.GetBytes(entry, convertToGjsonPath(p.path))
	} else {
		value = p.searchAttribute(entry)
	}

	// Attribute not found or null - pass through
	if !value.Exists() || value.Type == gjson.Null {
		return false
	}
	return p.matchValue(value)
}

// searchAttribute looks for the attribute in the known record paths,
// falling back to generic search paths.
func (p *AttributeFilterProcessor) searchAttribute(entry []byte) gjson.Result {
	if paths, ok := recordSearchPaths[p.attr]; ok {
		for _, path := range paths {
			result := gjson.GetBytes(entry, path)
			if result.Exists() {
				return result
			}
		}
	}

	// Escape dots in attribute name for gjson
	escapedAttr := strings.ReplaceAll(p.attr, ".", "\\.")
	for _, pathTemplate := range genericSearchPaths {
		path := fmt.Sprintf(pathTemplate, escapedAttr)
		result := gjson.GetBytes(entry, path)
		if result.Exists() {
			return result
		}
	}

	return gjson.Result{} // not found
}

// matchValue checks if the gjson result matches based on the operator
func (p *AttributeFilterProcessor) matchValue(value gjson.Result) bool {
	strValue := value.String()

	switch p.operator {
	case OpEquals:
		return strValue == p.value

	case OpContains:
		return strings.Contains(strValue, p.value)

	case OpRegex:
		if p.regex == nil {
			return false
		}
		return p.regex.MatchString(strValue)

	default:
		return false
	}
}

// convertToGjsonPath converts user-friendly path (using /) to gjson path.
// Example: "metadata/target" -> "metadata.target"
func convertToGjsonPath(userPath string) string {
	parts := strings.Split(userPath, "/")
	for i, part := range parts {
		// Escape dots within each part (they're literal key names)
		parts[i] = strings.ReplaceAll(part, ".", "\\.")
	}
	return strings.Join(parts, ".")
}
