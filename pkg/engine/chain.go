package engine

import "consolefwd/pkg/model"

// ProcessorChain manages a sequential list of processors.
// The nil chain passes every record through unchanged.
type ProcessorChain struct {
	processors []Processor
}

// NewProcessorChain creates a chain with the given list of processors.
func NewProcessorChain(processors ...Processor) *ProcessorChain {
	return &ProcessorChain{
		processors: processors,
	}
}

// Len returns the number of processors in the chain.
func (c *ProcessorChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.processors)
}

// Names lists the processors in execution order.
func (c *ProcessorChain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.processors))
	for i, p := range c.processors {
		names[i] = p.Name()
	}
	return names
}

// Process runs the record through all processors in the chain.
// It stops if a processor returns drop=true or an error.
func (c *ProcessorChain) Process(ctx *ProcessingContext, rec model.Record) (model.Record, bool, error) {
	if c == nil {
		return rec, false, nil
	}

	var drop bool
	var err error

	for _, p := range c.processors {
		before := rec
		rec, drop, err = p.Process(ctx, rec)
		if err != nil {
			return rec, false, err
		}
		if drop {
			return rec, true, nil
		}
		if changed(before, rec) {
			ctx.invalidate()
		}
	}

	return rec, false, nil
}

// changed reports whether a processor replaced any field of the record.
// Location fields are compared by pointer; processors must not write
// through them.
func changed(a, b model.Record) bool {
	return a.Metadata != b.Metadata ||
		a.Message != b.Message ||
		a.ModulePath != b.ModulePath ||
		a.File != b.File ||
		a.Line != b.Line
}
