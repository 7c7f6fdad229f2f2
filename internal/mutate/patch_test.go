package mutate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func keyOf(it item) string { return it.ID }

func TestRemoveNotOnPageStillDecrements(t *testing.T) {
	p := pageOf(1, 10, 12, "a", "b")
	out := Remove(p, keyOf, "zzz")
	assert.Len(t, out.Items, 2)
	assert.Equal(t, 11, out.Total)
	assert.Equal(t, 2, out.TotalPages)
}

func TestRemoveNeverNegative(t *testing.T) {
	p := pageOf(1, 10, 0)
	out := Remove(p, keyOf, "a")
	assert.Equal(t, 0, out.Total)
	assert.Equal(t, 1, out.TotalPages)
	assert.Equal(t, 1, out.Page)
}

func TestRemoveDoesNotAliasInput(t *testing.T) {
	p := pageOf(1, 10, 3, "a", "b", "c")
	_ = Remove(p, keyOf, "a")
	assert.Equal(t, "a", p.Items[0].ID)
}

func TestReplaceMissingKey(t *testing.T) {
	p := pageOf(1, 10, 1, "a")
	out, ok := Replace(p, keyOf, "b", item{ID: "b"})
	assert.False(t, ok)
	assert.Equal(t, p, out)
}

func TestPrependOnEmptyPage(t *testing.T) {
	p := pageOf(1, 10, 0)
	out := Prepend(p, item{ID: "x"})
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, 1, out.TotalPages)
	assert.Equal(t, []item{{ID: "x"}}, out.Items)
}

func TestGateKeysSorted(t *testing.T) {
	g := NewGate()
	assert.True(t, g.Acquire("b"))
	assert.True(t, g.Acquire("a"))
	assert.False(t, g.Acquire("a"))
	assert.Equal(t, []string{"a", "b"}, g.Keys())
	g.Release("a")
	assert.True(t, g.Acquire("a"))
}
