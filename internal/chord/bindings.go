package chord

import (
	"sort"
	"sync/atomic"
)

// Bindings maps a physical key name to the output symbol it contributes to
// a chord. A key that is absent, or bound to the empty string, contributes
// nothing but still takes part in the burst.
type Bindings map[string]string

// Lookup returns the symbol bound to key.
func (b Bindings) Lookup(key string) (string, bool) {
	sym, ok := b[key]
	if !ok || sym == "" {
		return "", false
	}
	return sym, true
}

// Keys returns the bound keys in sorted order.
func (b Bindings) Keys() []string {
	keys := make([]string, 0, len(b))
	for k, sym := range b {
		if sym != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// BindingSource supplies the bindings in effect for the next decision.
type BindingSource interface {
	Bindings() Bindings
}

// Table is a BindingSource whose bindings can be replaced at any time from
// any goroutine. A replacement takes effect at the engine's next decision.
type Table struct {
	current atomic.Pointer[Bindings]
}

// NewTable creates a table holding b.
func NewTable(b Bindings) *Table {
	t := &Table{}
	t.Swap(b)
	return t
}

// Bindings returns the current bindings. Callers must not modify the result.
func (t *Table) Bindings() Bindings {
	if b := t.current.Load(); b != nil {
		return *b
	}
	return nil
}

// Swap replaces the bindings. The table keeps its own copy of b.
func (t *Table) Swap(b Bindings) {
	cp := make(Bindings, len(b))
	for k, v := range b {
		cp[k] = v
	}
	t.current.Store(&cp)
}
