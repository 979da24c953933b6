package artifact

import (
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Registry maps paths to artifact types. It is built at process start from
// the built-in types plus configured custom types; custom types override
// built-ins of the same name. Detection results are memoized per path and
// the memo is invalidated by Register/Unregister.
//
// Example:
//
//	reg := artifact.NewRegistry(nil)
//	name := reg.Detect("docs/api/index.md") // "docs"
//	ttl := reg.TTLFor("docs/api/index.md", 0)
type Registry struct {
	mu    sync.RWMutex
	types []Type          // registration order
	byIdx map[string]int  // name -> index in types
	memo  map[string]string
}

// NewRegistry builds a registry from the built-in types plus custom types.
// A custom type whose name collides with a built-in replaces it in place,
// keeping the built-in's registration position for tie-breaking.
func NewRegistry(custom []Type) *Registry {
	r := &Registry{
		byIdx: make(map[string]int),
		memo:  make(map[string]string),
	}
	for _, t := range builtins() {
		r.add(t)
	}
	for _, t := range custom {
		r.add(t)
	}
	return r
}

func (r *Registry) add(t Type) {
	if idx, ok := r.byIdx[t.Name]; ok {
		r.types[idx] = t
		return
	}
	r.byIdx[t.Name] = len(r.types)
	r.types = append(r.types, t)
}

// Register adds or replaces a type and invalidates the detection memo.
func (r *Registry) Register(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(t)
	r.memo = make(map[string]string)
}

// Unregister removes a type by name. It returns false if the name is not
// registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byIdx[name]
	if !ok {
		return false
	}
	r.types = append(r.types[:idx], r.types[idx+1:]...)
	delete(r.byIdx, name)
	for i := idx; i < len(r.types); i++ {
		r.byIdx[r.types[i].Name] = i
	}
	r.memo = make(map[string]string)
	return true
}

// Get returns a registered type by name.
func (r *Registry) Get(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byIdx[name]
	if !ok {
		return Type{}, false
	}
	return r.types[idx], true
}

// All returns the registered types in registration order.
func (r *Registry) All() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, len(r.types))
	copy(out, r.types)
	return out
}

// Detect classifies a path into a type name. Among all types whose
// patterns match, the one whose longest matching pattern is longest wins;
// ties resolve to the earliest-registered type. Paths nothing claims fall
// through to the catch-all type.
func (r *Registry) Detect(path string) string {
	norm := normalize(path)

	r.mu.RLock()
	if name, ok := r.memo[norm]; ok {
		r.mu.RUnlock()
		return name
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	best := DefaultTypeName
	bestLen := -1
	for _, t := range r.types {
		if t.Name == DefaultTypeName {
			continue
		}
		if l := longestMatch(norm, t.Patterns); l > bestLen {
			best = t.Name
			bestLen = l
		}
	}
	r.memo[norm] = best
	return best
}

// TTLFor returns the cache TTL for a path. A non-zero override wins over
// the detected type's TTL.
func (r *Registry) TTLFor(path string, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	t, ok := r.Get(r.Detect(path))
	if !ok {
		return Day * time.Second
	}
	return t.TTL()
}

// Policy is an archive policy derived from a type.
type Policy struct {
	AfterDays int
	Storage   string
}

// ArchivePolicy returns the archive policy for a path, or nil when the
// detected type does not archive.
func (r *Registry) ArchivePolicy(path string) *Policy {
	t, ok := r.Get(r.Detect(path))
	if !ok || t.ArchiveAfterDays <= 0 {
		return nil
	}
	return &Policy{AfterDays: t.ArchiveAfterDays, Storage: t.ArchiveStorage}
}

// longestMatch returns the length of the longest pattern in patterns that
// matches path, or -1 when none match. Invalid patterns are skipped.
func longestMatch(path string, patterns []string) int {
	best := -1
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, path)
		if err != nil || !ok {
			continue
		}
		if len(pattern) > best {
			best = len(pattern)
		}
	}
	return best
}

func normalize(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	return strings.TrimPrefix(path, "/")
}
