package transforms

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Func rewrites a rendered page body before it is written to the cache.
type Func func(body string) string

var registry sync.Map

// ErrDuplicate indicates a transform name is already registered.
var ErrDuplicate = errors.New("transform already registered")

// Register stores fn under name. Names are case-insensitive.
func Register(name string, fn Func) error {
	key := normalizeName(name)
	if key == "" {
		return errors.New("transform name required")
	}
	if fn == nil {
		return errors.New("transform func required")
	}
	if _, loaded := registry.LoadOrStore(key, fn); loaded {
		return ErrDuplicate
	}
	return nil
}

// MustRegister panics on registration failure; suitable for init().
func MustRegister(name string, fn Func) {
	if err := Register(name, fn); err != nil {
		panic(err)
	}
}

// Fetch retrieves the transform registered under name.
func Fetch(name string) (Func, bool) {
	key := normalizeName(name)
	if key == "" {
		return nil, false
	}
	if value, ok := registry.Load(key); ok {
		if fn, ok := value.(Func); ok {
			return fn, true
		}
	}
	return nil, false
}

// Status returns "registered" or "missing" for a transform name.
func Status(name string) string {
	if _, ok := Fetch(name); ok {
		return "registered"
	}
	return "missing"
}

// Snapshot returns status for a list of transform names.
func Snapshot(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if normalized := normalizeName(name); normalized != "" {
			out[normalized] = Status(normalized)
		}
	}
	return out
}

// Names lists registered transforms in lexical order.
func Names() []string {
	var names []string
	registry.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
