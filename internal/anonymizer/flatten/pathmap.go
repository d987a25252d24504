package flatten

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"stmtguard/internal/anonymizer/pathspec"
)

// PathMap maps every interior path of a spec to its ordered child components.
// A child appears once, at the position of its first declaration.
type PathMap struct {
	children map[string][]pathspec.Component
}

func buildPathMap(spec pathspec.PathSpec) *PathMap {
	pm := &PathMap{children: make(map[string][]pathspec.Component)}
	seen := make(map[string]struct{})
	for _, expr := range spec.Paths() {
		cur := pathspec.Root
		for _, c := range expr.Components {
			next := cur + "." + c.String()
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				pm.children[cur] = append(pm.children[cur], c)
			}
			cur = next
		}
	}
	return pm
}

// Children returns the child components declared under prefix.
func (m *PathMap) Children(prefix string) []pathspec.Component {
	return m.children[prefix]
}

// IsInterior reports whether prefix has declared children.
func (m *PathMap) IsInterior(prefix string) bool {
	return len(m.children[prefix]) > 0
}

// PathMapCache memoizes path maps by spec name. Entries are never replaced:
// the first map stored for a name wins, and concurrent first builds for the
// same name collapse into one.
type PathMapCache struct {
	mu    sync.RWMutex
	maps  map[string]*PathMap
	group singleflight.Group
}

func NewPathMapCache() *PathMapCache {
	return &PathMapCache{maps: make(map[string]*PathMap)}
}

// Get returns the cached map for spec, building it on first use.
func (c *PathMapCache) Get(spec pathspec.PathSpec) (*PathMap, error) {
	if spec.IsTemplate() {
		return nil, fmt.Errorf("%w: %s", pathspec.ErrUnboundSpec, spec.Name())
	}
	name := spec.Name()

	c.mu.RLock()
	pm, ok := c.maps[name]
	c.mu.RUnlock()
	if ok {
		return pm, nil
	}

	v, _, _ := c.group.Do(name, func() (any, error) {
		built := buildPathMap(spec)
		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.maps[name]; ok {
			return existing, nil
		}
		c.maps[name] = built
		return built, nil
	})
	return v.(*PathMap), nil
}

// Len is the number of cached specs.
func (c *PathMapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.maps)
}
