// Package pathspec declares which leaves of a JSON document participate in a
// flat record.
//
// A path is a dot-delimited walk from the document root ($). A component may
// carry an array marker ([*]), a fixed index ([N]) or, in templates, an index
// placeholder ([%d]) bound per account before use.
package pathspec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Root is the document root marker every path starts with.
	Root = "$"
	// DefaultSeparator joins record values into a line.
	DefaultSeparator = '|'

	indexPlaceholder = "%d"
	noIndex          = -1
)

var (
	ErrEmptySpec      = errors.New("path spec has no paths")
	ErrInvalidPath    = errors.New("invalid path expression")
	ErrUnboundSpec    = errors.New("path spec template is not bound to an index")
	ErrNotATemplate   = errors.New("path spec has no index placeholder")
	ErrNegativeIndex  = errors.New("template index must not be negative")
	ErrDuplicateLabel = errors.New("duplicate path in spec")
	ErrLeafConflict   = errors.New("path is both a leaf and a parent")
)

// Component is one step of a path below the root.
type Component struct {
	Name  string
	Array bool
	Index int
}

// HasIndex reports whether the component selects a fixed array element.
func (c Component) HasIndex() bool { return c.Index != noIndex }

func (c Component) String() string {
	switch {
	case c.Array:
		return c.Name + "[*]"
	case c.HasIndex():
		return c.Name + "[" + strconv.Itoa(c.Index) + "]"
	default:
		return c.Name
	}
}

// PathExpr is a parsed path.
type PathExpr struct {
	Raw        string
	Components []Component
}

// Prefixes returns the path of every ancestor including the root, in walk
// order. Prefixes("$.a[*].b") is ["$", "$.a[*]"].
func (p PathExpr) Prefixes() []string {
	out := make([]string, 0, len(p.Components))
	cur := Root
	for _, c := range p.Components[:len(p.Components)-1] {
		out = append(out, cur)
		cur = cur + "." + c.String()
	}
	return append(out, cur)
}

// String renders the canonical form of the path.
func (p PathExpr) String() string {
	var b strings.Builder
	b.WriteString(Root)
	for _, c := range p.Components {
		b.WriteByte('.')
		b.WriteString(c.String())
	}
	return b.String()
}

// ParseExpr parses a concrete path. Templates go through New and Bind.
func ParseExpr(raw string) (PathExpr, error) {
	if strings.Contains(raw, indexPlaceholder) {
		return PathExpr{}, fmt.Errorf("%w: %q", ErrUnboundSpec, raw)
	}
	return parse(raw)
}

func parse(raw string) (PathExpr, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) < 2 || parts[0] != Root {
		return PathExpr{}, fmt.Errorf("%w: %q must start with %q and name a leaf", ErrInvalidPath, raw, Root+".")
	}
	comps := make([]Component, 0, len(parts)-1)
	for _, part := range parts[1:] {
		c, err := parseComponent(part)
		if err != nil {
			return PathExpr{}, fmt.Errorf("%w: %q: %v", ErrInvalidPath, raw, err)
		}
		comps = append(comps, c)
	}
	return PathExpr{Raw: raw, Components: comps}, nil
}

func parseComponent(part string) (Component, error) {
	open := strings.IndexByte(part, '[')
	if open < 0 {
		if err := validName(part); err != nil {
			return Component{}, err
		}
		return Component{Name: part, Index: noIndex}, nil
	}
	if !strings.HasSuffix(part, "]") {
		return Component{}, fmt.Errorf("unterminated selector in %q", part)
	}
	name, sel := part[:open], part[open+1:len(part)-1]
	if err := validName(name); err != nil {
		return Component{}, err
	}
	if sel == "*" {
		return Component{Name: name, Array: true, Index: noIndex}, nil
	}
	idx, err := strconv.Atoi(sel)
	if err != nil || idx < 0 {
		return Component{}, fmt.Errorf("bad selector [%s]", sel)
	}
	return Component{Name: name, Index: idx}, nil
}

func validName(name string) error {
	if name == "" {
		return errors.New("empty component")
	}
	if name == "*" {
		return errors.New("wildcard keys are not supported")
	}
	if strings.ContainsAny(name, "[]$") {
		return fmt.Errorf("reserved character in %q", name)
	}
	return nil
}

// PathSpec is an immutable, named list of leaf paths.
type PathSpec struct {
	name      string
	provider  string
	version   string
	separator rune
	raw       []string
	paths     []PathExpr
	template  bool
}

// Option customizes a PathSpec at construction.
type Option func(*PathSpec)

// WithSeparator overrides the line separator.
func WithSeparator(sep rune) Option {
	return func(s *PathSpec) {
		s.separator = sep
	}
}

// New validates paths and builds a spec. Paths containing [%d] make the spec a
// template that must be bound before flattening.
func New(name, provider, version string, paths []string, opts ...Option) (PathSpec, error) {
	if name == "" {
		return PathSpec{}, fmt.Errorf("%w: name is required", ErrInvalidPath)
	}
	if len(paths) == 0 {
		return PathSpec{}, fmt.Errorf("%w: %s", ErrEmptySpec, name)
	}
	s := PathSpec{
		name:      name,
		provider:  provider,
		version:   version,
		separator: DefaultSeparator,
		raw:       append([]string(nil), paths...),
	}
	for _, opt := range opts {
		opt(&s)
	}

	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if strings.Contains(p, indexPlaceholder) {
			s.template = true
		}
		if _, dup := seen[p]; dup {
			return PathSpec{}, fmt.Errorf("%w: %s in %s", ErrDuplicateLabel, p, name)
		}
		seen[p] = struct{}{}
	}

	if s.template {
		// validate the shape with a placeholder index; concrete paths come from Bind
		for _, p := range paths {
			if _, err := parse(strings.ReplaceAll(p, indexPlaceholder, "0")); err != nil {
				return PathSpec{}, err
			}
		}
		return s, nil
	}

	s.paths = make([]PathExpr, 0, len(paths))
	for _, p := range paths {
		expr, err := parse(p)
		if err != nil {
			return PathSpec{}, err
		}
		s.paths = append(s.paths, expr)
	}
	if err := checkLeafConflicts(s.paths); err != nil {
		return PathSpec{}, err
	}
	return s, nil
}

// checkLeafConflicts rejects specs where a declared leaf is also an ancestor
// of another leaf; the record arity would otherwise depend on the document.
func checkLeafConflicts(paths []PathExpr) error {
	leaves := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		leaves[p.String()] = struct{}{}
	}
	for _, p := range paths {
		for _, prefix := range p.Prefixes() {
			if _, ok := leaves[prefix]; ok {
				return fmt.Errorf("%w: %s", ErrLeafConflict, prefix)
			}
		}
	}
	return nil
}

// MustNew is New for static tables.
func MustNew(name, provider, version string, paths []string, opts ...Option) PathSpec {
	s, err := New(name, provider, version, paths, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Bind substitutes index into every [%d] placeholder. The bound spec is named
// "<name>[index]" so caches keep one entry per account position.
func (s PathSpec) Bind(index int) (PathSpec, error) {
	if !s.template {
		return PathSpec{}, fmt.Errorf("%w: %s", ErrNotATemplate, s.name)
	}
	if index < 0 {
		return PathSpec{}, ErrNegativeIndex
	}
	idx := strconv.Itoa(index)
	bound := make([]string, len(s.raw))
	for i, p := range s.raw {
		bound[i] = strings.ReplaceAll(p, indexPlaceholder, idx)
	}
	return New(s.name+"["+idx+"]", s.provider, s.version, bound, WithSeparator(s.separator))
}

func (s PathSpec) Name() string     { return s.name }
func (s PathSpec) Provider() string { return s.provider }
func (s PathSpec) Version() string  { return s.version }
func (s PathSpec) Separator() rune  { return s.separator }
func (s PathSpec) IsTemplate() bool { return s.template }

// Paths returns the parsed paths in declaration order. Nil for templates.
func (s PathSpec) Paths() []PathExpr {
	return append([]PathExpr(nil), s.paths...)
}

// Raw returns the declared path strings.
func (s PathSpec) Raw() []string {
	return append([]string(nil), s.raw...)
}

// Len is the number of declared leaves, i.e. the arity of every record.
func (s PathSpec) Len() int { return len(s.raw) }
