package tilestore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResidencyFixture(t *testing.T) (*MemoryStore, *Residency) {
	t.Helper()
	m := NewMemoryStore()
	m.Put(Tile{ID: "a", Grid: testGrid(t, 1), Placement: testPlacement(0, 0)})
	m.Put(Tile{ID: "b", Grid: testGrid(t, 2), Placement: testPlacement(100, 0)})
	return m, NewResidency(m)
}

func TestResidency_Store(t *testing.T) {
	_, r := newResidencyFixture(t)
	exerciseStore(t, r, [2]ID{"a", "b"})
}

func TestResidency_AcquireRelease(t *testing.T) {
	_, r := newResidencyFixture(t)

	release1, err := r.Acquire("a")
	require.NoError(t, err)
	release2, err := r.Acquire("a")
	require.NoError(t, err)
	assert.True(t, r.Resident("a"))
	assert.Equal(t, 1, r.Len())

	release1()
	release1() // second call is a no-op
	assert.True(t, r.Resident("a"), "still held by second acquirer")

	release2()
	assert.False(t, r.Resident("a"))
	assert.Equal(t, 0, r.Len())
}

func TestResidency_ServesResidentReads(t *testing.T) {
	_, r := newResidencyFixture(t)

	release, err := r.Acquire("a")
	require.NoError(t, err)
	defer release()

	_, err = r.Elevation("a")
	require.NoError(t, err)
	_, err = r.Elevation("b")
	require.NoError(t, err)

	hits, misses := r.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses, "loading a on Acquire and reading b both hit the backing store")
}

func TestResidency_AcquireCountsLoads(t *testing.T) {
	_, r := newResidencyFixture(t)

	release1, err := r.Acquire("a")
	require.NoError(t, err)
	defer release1()

	hits, misses := r.Stats()
	assert.Equal(t, 0, hits)
	assert.Equal(t, 1, misses)

	release2, err := r.Acquire("a")
	require.NoError(t, err)
	defer release2()

	hits, misses = r.Stats()
	assert.Equal(t, 1, hits, "second acquire is served from memory")
	assert.Equal(t, 1, misses)

	_, err = r.Acquire("missing")
	require.Error(t, err)
	_, misses = r.Stats()
	assert.Equal(t, 2, misses)
}

func TestResidency_WriteThrough(t *testing.T) {
	m, r := newResidencyFixture(t)

	release, err := r.Acquire("a")
	require.NoError(t, err)
	defer release()

	g := testGrid(t, 5)
	require.NoError(t, r.SetElevation("a", g))

	backing, err := m.Elevation("a")
	require.NoError(t, err)
	assert.Equal(t, float32(5), backing.At(0, 0))

	cached, err := r.Elevation("a")
	require.NoError(t, err)
	assert.Equal(t, float32(5), cached.At(0, 0))
}

func TestResidency_AcquireMissing(t *testing.T) {
	_, r := newResidencyFixture(t)

	_, err := r.Acquire("missing")
	assert.True(t, errors.Is(err, ErrTileNotFound))
	assert.False(t, r.Resident("missing"))
}
