package engine

import (
	"context"
	"encoding/json"

	"consolefwd/pkg/model"
)

// ProcessingContext holds per-record state while a chain runs.
// It caches the JSON view of the record so several attribute filters
// can query it without re-encoding.
type ProcessingContext struct {
	context.Context

	view []byte
}

// NewProcessingContext wraps ctx for a single chain run.
func NewProcessingContext(ctx context.Context) *ProcessingContext {
	return &ProcessingContext{Context: ctx}
}

// JSONView returns the JSON encoding of rec, reusing the cached copy
// when the record has not changed since the last call.
func (c *ProcessingContext) JSONView(rec model.Record) ([]byte, error) {
	if c == nil {
		return json.Marshal(rec)
	}
	if c.view != nil {
		return c.view, nil
	}
	view, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	c.view = view
	return view, nil
}

// reset prepares the context for the next record.
func (c *ProcessingContext) reset() {
	if c != nil {
		c.view = nil
	}
}

// invalidate drops the cached view after a processor may have changed the record.
func (c *ProcessingContext) invalidate() {
	c.reset()
}
