package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefTableAcquireRelease(t *testing.T) {
	table := NewRefTable[string](0)

	table.Acquire("a")
	table.Acquire("a")
	table.Acquire("b")
	assert.Equal(t, int64(2), table.Count("a"))
	assert.Equal(t, 2, table.Len())

	require.NoError(t, table.Release("a"))
	ok, err := table.IsReferenced("a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, table.Release("a"))
	ok, _ = table.IsReferenced("a")
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())
}

func TestRefTableReleaseUnderflow(t *testing.T) {
	table := NewRefTable[string](2)

	err := table.Release("ghost")
	assert.ErrorIs(t, err, ErrNegativeRefCount)
	assert.Zero(t, table.Count("ghost"))
	assert.Zero(t, table.Len())
}

func TestRefTableChangeCount(t *testing.T) {
	table := NewRefTable[string](2)
	before := table.ChangeCount()

	table.Acquire("a")
	require.NoError(t, table.Release("a"))
	assert.Equal(t, before+2, table.ChangeCount())

	_ = table.Release("a")
	assert.Equal(t, before+2, table.ChangeCount())
}

func TestRefTableCollectIfUnreferenced(t *testing.T) {
	table := NewRefTable[string](2)
	table.Acquire("held")

	ran := false
	ok, err := table.CollectIfUnreferenced("held", func() { ran = true })
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, ran)

	ok, err = table.CollectIfUnreferenced("free", func() { ran = true })
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ran)
}

func TestDependencyProvider(t *testing.T) {
	table := NewRefTable[string](4)
	deps := map[string][]string{"main": {"callee"}}
	p := &DependencyProvider[string]{
		Table:        table,
		Dependencies: func(k string) []string { return deps[k] },
	}

	ok, err := p.IsReferenced("main")
	require.NoError(t, err)
	assert.False(t, ok)

	table.Acquire("callee")
	ok, _ = p.IsReferenced("main")
	assert.True(t, ok)
	ok, _ = p.IsReferenced("callee")
	assert.True(t, ok)

	require.NoError(t, table.Release("callee"))
	ok, _ = p.IsReferenced("main")
	assert.False(t, ok)
}

func TestDependencyProviderGivesUpAsReferenced(t *testing.T) {
	table := NewRefTable[string](1)
	calls := 0
	p := &DependencyProvider[string]{
		Table: table,
		Dependencies: func(string) []string {
			// Every check races with a reference change.
			calls++
			table.Acquire("churn")
			_ = table.Release("churn")
			return nil
		},
		Retries: 3,
	}

	ok, err := p.IsReferenced("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
}

func TestProviderFunc(t *testing.T) {
	p := ProviderFunc[int](func(k int) (bool, error) { return k%2 == 0, nil })

	ok, err := p.IsReferenced(4)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = p.IsReferenced(3)
	assert.False(t, ok)
}
