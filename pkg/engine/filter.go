package engine

import (
	"strings"

	"consolefwd/pkg/model"
)

// FilterProcessor drops records whose message contains any of the
// block words.
type FilterProcessor struct {
	name       string
	blockWords []string
}

func NewFilterProcessor(name string, blockWords []string) *FilterProcessor {
	words := make([]string, 0, len(blockWords))
	for _, w := range blockWords {
		if w != "" {
			words = append(words, w)
		}
	}
	return &FilterProcessor{
		name:       name,
		blockWords: words,
	}
}

func (f *FilterProcessor) Name() string {
	return f.name
}

func (f *FilterProcessor) Process(ctx *ProcessingContext, rec model.Record) (model.Record, bool, error) {
	// Naive O(N*M) check.
	for _, word := range f.blockWords {
		if strings.Contains(rec.Message, word) {
			return rec, true, nil // DROP
		}
	}
	return rec, false, nil
}

// LevelFilterProcessor drops records more verbose than a threshold.
type LevelFilterProcessor struct {
	name string
	max  model.Level
}

// NewLevelFilterProcessor keeps records at max or more severe.
func NewLevelFilterProcessor(name string, max model.Level) *LevelFilterProcessor {
	return &LevelFilterProcessor{name: name, max: max}
}

func (f *LevelFilterProcessor) Name() string {
	return f.name
}

func (f *LevelFilterProcessor) Process(ctx *ProcessingContext, rec model.Record) (model.Record, bool, error) {
	return rec, rec.Metadata.Level > f.max, nil
}
