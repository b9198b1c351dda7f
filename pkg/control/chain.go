package control

import (
	"fmt"
	"log/slog"
	"strconv"

	"consolefwd/pkg/config"
	"consolefwd/pkg/engine"
	"consolefwd/pkg/model"
)

// BuildChain turns processor rules into a chain. Rules that cannot be
// built are logged and skipped so one bad rule does not disable the rest.
func BuildChain(rules []config.ProcessorRule, logger *slog.Logger) *engine.ProcessorChain {
	var processors []engine.Processor
	for i, rule := range rules {
		proc, err := buildProcessor(rule)
		if err != nil {
			logger.Warn("skipping processor rule", "index", i, "id", rule.ID, "type", rule.Type, "error", err)
			continue
		}
		processors = append(processors, proc)
	}
	return engine.NewProcessorChain(processors...)
}

func buildProcessor(rule config.ProcessorRule) (engine.Processor, error) {
	id := rule.ID
	if id == "" {
		id = rule.Type
	}

	switch rule.Type {
	case "filter":
		// Params: value
		val := rule.Params["value"]
		if val == "" {
			return nil, fmt.Errorf("filter needs a value")
		}
		return engine.NewFilterProcessor(id, []string{val}), nil

	case "redact":
		// Params: pattern, replacement, regex
		pat := rule.Params["pattern"]
		rep, ok := rule.Params["replacement"]
		if pat == "" || !ok {
			return nil, fmt.Errorf("redact needs a pattern and a replacement")
		}
		if isRegex, _ := strconv.ParseBool(rule.Params["regex"]); isRegex {
			return engine.NewRegexRedactionProcessor(id, pat, rep)
		}
		return engine.NewRedactionProcessor(id, pat, rep), nil

	case "attribute_filter":
		// Params: attribute OR path, operator, value
		return engine.NewAttributeFilterProcessor(engine.AttributeFilterConfig{
			Name:      id,
			Attribute: rule.Params["attribute"],
			Path:      rule.Params["path"],
			Operator:  engine.Operator(rule.Params["operator"]),
			Value:     rule.Params["value"],
		})

	case "level":
		// Params: max
		max, err := model.ParseLevel(rule.Params["max"])
		if err != nil {
			return nil, err
		}
		return engine.NewLevelFilterProcessor(id, max), nil
	}

	return nil, fmt.Errorf("unknown processor type %q", rule.Type)
}
