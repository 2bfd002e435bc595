package chord

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindingsLookup(t *testing.T) {
	b := Bindings{"s": "S-", "x": ""}

	sym, ok := b.Lookup("s")
	assert.True(t, ok)
	assert.Equal(t, "S-", sym)

	_, ok = b.Lookup("x")
	assert.False(t, ok, "empty symbol is a no-op")

	_, ok = b.Lookup("q")
	assert.False(t, ok)

	var nilBindings Bindings
	_, ok = nilBindings.Lookup("s")
	assert.False(t, ok)
}

func TestBindingsKeys(t *testing.T) {
	b := Bindings{"t": "T-", "s": "S-", "x": ""}
	assert.Equal(t, []string{"s", "t"}, b.Keys())
}

func TestTableSwapCopies(t *testing.T) {
	src := Bindings{"s": "S-"}
	table := NewTable(src)

	src["s"] = "-S"
	sym, _ := table.Bindings().Lookup("s")
	assert.Equal(t, "S-", sym, "table must not alias the caller's map")

	table.Swap(Bindings{"t": "T-"})
	_, ok := table.Bindings().Lookup("s")
	assert.False(t, ok)
	sym, ok = table.Bindings().Lookup("t")
	require.True(t, ok)
	assert.Equal(t, "T-", sym)
}

func TestTableConcurrentSwap(t *testing.T) {
	table := NewTable(nil)
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				table.Swap(Bindings{"s": "S-"})
				table.Bindings().Lookup("s")
			}
		}()
	}
	wg.Wait()

	sym, ok := table.Bindings().Lookup("s")
	assert.True(t, ok)
	assert.Equal(t, "S-", sym)
}

func TestSingleKeyStroke(t *testing.T) {
	keys, ok := SingleKeyStroke("a")
	require.True(t, ok)
	assert.Equal(t, []string{"A-", "*"}, keys)

	keys, ok = SingleKeyStroke("BackSpace")
	require.True(t, ok)
	assert.Equal(t, []string{"P-", "W-", "-F", "-P"}, keys)

	keys, ok = SingleKeyStroke("space")
	require.True(t, ok)
	assert.Equal(t, []string{"S-", "-P"}, keys)

	_, ok = SingleKeyStroke("Return")
	assert.False(t, ok)

	for c := 'a'; c <= 'z'; c++ {
		_, ok := SingleKeyStroke(string(c))
		assert.True(t, ok, "letter %c has no stroke", c)
	}
}

func TestSingleKeyStrokeReturnsCopy(t *testing.T) {
	keys, _ := SingleKeyStroke("h")
	keys[0] = "changed"

	again, _ := SingleKeyStroke("h")
	assert.Equal(t, []string{"H-", "*"}, again)
}

func TestStroke(t *testing.T) {
	s := Stroke{Kind: KindChord, Keys: []string{"S-", "T-"}, Sources: []string{"s", "t"}}
	assert.Equal(t, 2, s.Downs())
	assert.Equal(t, "S- T-", s.String())
	assert.Equal(t, "chord", s.Kind.String())
	assert.Equal(t, "single", KindSingle.String())

	assert.Equal(t, []string{"A-", "S-"}, symbolSet([]string{"S-", "A-", "S-"}))
	assert.Nil(t, symbolSet(nil))
}
