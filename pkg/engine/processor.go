package engine

import "consolefwd/pkg/model"

// Processor defines the interface for any component that transforms or filters records.
type Processor interface {
	// Process applies logic to the record.
	// It returns the (potentially modified) record, a bool indicating if the record should be DROPPED, and any error.
	// If drop is true, the pipeline stops processing this record.
	Process(ctx *ProcessingContext, rec model.Record) (model.Record, bool, error)

	// Name returns the identifier of the processor (for logging).
	Name() string
}
