// Package flatten denormalizes nested JSON documents into flat records.
//
// Given a PathSpec, every combination of array elements along the declared
// paths yields one record (a cross product per object, a concatenation per
// array). Missing values become NullValue, so all records of a spec share the
// same arity and field order.
package flatten

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"stmtguard/internal/anonymizer/pathspec"
	dErrors "stmtguard/pkg/domain-errors"
)

const defaultMaxRecords = 500_000

// ErrTooManyRecords is returned when the cross product of a document exceeds
// the configured bound.
var ErrTooManyRecords = errors.New("document expands to too many records")

// UnresolvedPathError describes a declared path the document did not satisfy.
// The flattener logs it and substitutes NullValue; it never aborts a flatten.
type UnresolvedPathError struct {
	Spec   string
	Path   string
	Reason string
}

func (e *UnresolvedPathError) Error() string {
	return fmt.Sprintf("unresolved path %s in spec %s: %s", e.Path, e.Spec, e.Reason)
}

// Flattener is safe for concurrent use; its only shared state is the cache.
type Flattener struct {
	cache      *PathMapCache
	logger     *slog.Logger
	maxRecords int
}

type Option func(*Flattener)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Flattener) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMaxRecords bounds the records one document may expand to. Zero or less
// disables the bound.
func WithMaxRecords(n int) Option {
	return func(f *Flattener) {
		f.maxRecords = n
	}
}

func New(cache *PathMapCache, opts ...Option) (*Flattener, error) {
	if cache == nil {
		return nil, fmt.Errorf("path map cache is required")
	}
	f := &Flattener{
		cache:      cache,
		logger:     slog.New(slog.DiscardHandler),
		maxRecords: defaultMaxRecords,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Flatten decodes raw JSON, keeping numeric literals as written, and flattens
// it. Blank input yields no records.
func (f *Flattener) Flatten(raw []byte, spec pathspec.PathSpec) ([]FlatRecord, error) {
	doc, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return f.FlattenValue(doc, spec)
}

// FlattenValue flattens an already decoded document. Numbers should be
// json.Number to keep their literal text. A nil document yields no records.
// A root array is flattened element by element and the results concatenated.
func (f *Flattener) FlattenValue(doc any, spec pathspec.PathSpec) ([]FlatRecord, error) {
	if doc == nil {
		return []FlatRecord{}, nil
	}
	pm, err := f.cache.Get(spec)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "path spec is not flattenable")
	}

	roots, ok := doc.([]any)
	if !ok {
		roots = []any{doc}
	}

	out := make([]FlatRecord, 0)
	for _, root := range roots {
		t := newTree(pm, f.reporter(spec.Name()))
		idx := t.object(pathspec.Root, root)
		if f.maxRecords > 0 && len(out)+t.nodes[idx].count > f.maxRecords {
			return nil, dErrors.Wrap(
				fmt.Errorf("%w: %d > %d", ErrTooManyRecords, len(out)+t.nodes[idx].count, f.maxRecords),
				dErrors.CodeInvalidInput, "statement is too large to flatten")
		}
		out = append(out, t.records(idx)...)
	}
	return out, nil
}

// FlattenLines renders each record as a separator-joined line.
func (f *Flattener) FlattenLines(raw []byte, spec pathspec.PathSpec) ([]string, error) {
	records, err := f.Flatten(raw, spec)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = r.Line(spec.Separator())
	}
	return lines, nil
}

func (f *Flattener) reporter(specName string) func(path, reason string, mismatch bool) {
	return func(path, reason string, mismatch bool) {
		err := &UnresolvedPathError{Spec: specName, Path: path, Reason: reason}
		if mismatch {
			f.logger.Warn("path does not match document shape", "spec", specName, "path", path, "error", err.Error())
			return
		}
		f.logger.Debug("path absent in document", "spec", specName, "path", path)
	}
}

// Decode parses JSON with UseNumber. Blank input decodes to nil.
func Decode(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "document is not valid JSON")
	}
	if dec.More() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document has trailing data")
	}
	return doc, nil
}
