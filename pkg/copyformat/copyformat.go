// Package copyformat defines the contract between a bulk copy driver and a
// pluggable copy format. A format supplies one routine per direction; the
// driver creates a state from the routine for every copy operation and runs
// it through the same callback sequence:
//
//	state := routine.NewState(env)
//	ApplyOptions(state, options)       // ProcessOption per option
//	conv[i] = state.InFunc(columns[i]) // once per column
//	state.Start(...)
//	defer state.End()
//	for { state.OneRow(...) }
//
// End must run on every path, including after errors, and is idempotent.
package copyformat

import (
	"sort"

	"github.com/ajitpratap0/nebula-copy/pkg/coltype"
	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"go.uber.org/zap"
)

// Source produces the raw bytes of a copy. GetData writes up to len(p)
// bytes into p and returns the count; zero with a nil error is end of input.
type Source interface {
	GetData(p []byte) (int, error)
}

// Sink consumes output bytes. p is only valid during the call.
type Sink interface {
	Send(p []byte) error
}

// Column is one entry of the row descriptor.
type Column struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// RowInfo describes the source line a row was decoded from.
type RowInfo struct {
	LineNo int64
	Length int
}

// BufferSizes overrides the capacities of the stream buffers. Zero fields
// select the format defaults.
type BufferSizes struct {
	Input       int
	Raw         int
	OutputChunk int
}

// Env carries the collaborators a state is created with.
type Env struct {
	Logger   *zap.Logger
	Resolver coltype.Resolver
	Buffers  BufferSizes
}

// OptionProcessor accepts format options one at a time. It reports false
// for options it does not recognise.
type OptionProcessor interface {
	ProcessOption(name, value string) (bool, error)
}

// FromStart is the input of FromState.Start.
type FromStart struct {
	// Filename is the source name; formats may derive settings from it.
	Filename   string
	Source     Source
	Columns    []Column
	Converters []coltype.Converter
}

// FromState is the per-copy state of the read direction.
type FromState interface {
	OptionProcessor
	InFunc(col Column) (coltype.Converter, error)
	Start(in FromStart) error
	// OneRow decodes the next row into values and nulls, which have one
	// slot per column. It returns false at end of input.
	OneRow(values []any, nulls []bool) (RowInfo, bool, error)
	End() error
	// BytesProcessed returns the raw bytes read from the source so far.
	BytesProcessed() int64
	// Truncated returns the size of a dangling final record that was
	// discarded at end of input.
	Truncated() int64
}

// ToStart is the input of ToState.Start.
type ToStart struct {
	Sink       Sink
	Columns    []Column
	Converters []coltype.Converter
}

// ToState is the per-copy state of the write direction.
type ToState interface {
	OptionProcessor
	OutFunc(col Column) (coltype.Converter, error)
	Start(out ToStart) error
	OneRow(values []any, nulls []bool) error
	End() error
	// BytesWritten returns the bytes handed to the sink so far.
	BytesWritten() int64
}

// FromRoutine creates read states.
type FromRoutine interface {
	// EstimateStateSpace returns the bytes a state allocates at start.
	EstimateStateSpace(buffers BufferSizes) int
	NewState(env Env) FromState
}

// ToRoutine creates write states.
type ToRoutine interface {
	EstimateStateSpace(buffers BufferSizes) int
	NewState(env Env) ToState
}

// ApplyOptions passes every option to p in name order. An option p does
// not recognise is a configuration error.
func ApplyOptions(p OptionProcessor, options map[string]string) error {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ok, err := p.ProcessOption(name, options[name])
		if err != nil {
			return err
		}
		if !ok {
			return errors.Newf(errors.ErrorTypeConfig, "option %q not recognized", name).
				WithDetail("option", name)
		}
	}
	return nil
}
