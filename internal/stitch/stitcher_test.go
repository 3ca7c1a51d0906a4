package stitch

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-stitch/internal/neighbor"
	"github.com/Faultbox/midgard-stitch/internal/tilestore"
	"github.com/Faultbox/midgard-stitch/pkg/geom"
	"github.com/Faultbox/midgard-stitch/pkg/heightfield"
)

const tileSize = 500

func put(s *tilestore.MemoryStore, id tilestore.ID, col, row int, g *heightfield.Grid) {
	s.Put(tilestore.Tile{
		ID:   id,
		Grid: g,
		Placement: tilestore.Placement{
			Rect: geom.Rect{
				Origin: geom.Vec2{X: float64(col) * tileSize, Y: float64(row) * tileSize},
				Size:   geom.Vec2{X: tileSize, Y: tileSize},
			},
			Vertical: 100,
		},
	})
}

func newStitcher(s tilestore.Store) *Stitcher {
	return New(s, neighbor.NewSpatialResolver(s, 0.01))
}

func elevation(t *testing.T, s tilestore.Store, id tilestore.ID) *heightfield.Grid {
	t.Helper()
	g, err := s.Elevation(id)
	require.NoError(t, err)
	return g
}

// twoTiles places "a" at the origin and "b" directly north of it.
func twoTiles(t *testing.T) *tilestore.MemoryStore {
	t.Helper()
	s := tilestore.NewMemoryStore()
	a := filled(t, 5, 5, 10)
	setRow(a, 4, 12, 12, 12, 12, 12)
	put(s, "a", 0, 0, a)
	put(s, "b", 0, 1, filled(t, 5, 5, 10))
	return s
}

func TestStitchTile_Scenario(t *testing.T) {
	store := twoTiles(t)
	st := newStitcher(store)
	session := NewSession()

	report, err := st.StitchTile(session, "a", MaskAll, Params{SeamWidth: 0, Tolerance: 0})
	require.NoError(t, err)

	require.Len(t, report.Edges, 4)
	assert.Equal(t, StatusBlended, report.Edges[0].Status)
	assert.Equal(t, geom.North, report.Edges[0].Direction)
	assert.Equal(t, tilestore.ID("b"), report.Edges[0].Neighbor)
	assert.Equal(t, 3, report.Count(StatusNoNeighbor))
	assert.Equal(t, 5, report.Adjusted())

	a, b := elevation(t, store, "a"), elevation(t, store, "b")
	assert.Equal(t, []float32{11, 11, 11, 11, 11}, a.Row(4))
	assert.Equal(t, []float32{11, 11, 11, 11, 11}, b.Row(0))
	assert.Equal(t, []float32{10, 10, 10, 10, 10}, a.Row(3))
	assert.Equal(t, []float32{10, 10, 10, 10, 10}, b.Row(1))

	assert.True(t, session.Done("a", geom.North))
	assert.True(t, session.Done("b", geom.South))
	assert.False(t, session.Done("a", geom.East), "edges without neighbour stay unmarked")
}

func TestStitchTile_Idempotent(t *testing.T) {
	store := twoTiles(t)
	st := newStitcher(store)
	session := NewSession()
	params := Params{SeamWidth: 2, Tolerance: 0}

	_, err := st.StitchTile(session, "a", MaskAll, params)
	require.NoError(t, err)
	afterA, afterB := elevation(t, store, "a"), elevation(t, store, "b")

	report, err := st.StitchTile(session, "a", MaskAll, params)
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyDone, report.Edges[0].Status)
	assert.Zero(t, report.Adjusted())

	assert.True(t, afterA.Equal(elevation(t, store, "a")))
	assert.True(t, afterB.Equal(elevation(t, store, "b")))

	// Stitching the neighbour back towards "a" does nothing either.
	report, err = st.StitchTile(session, "b", MaskSouth, params)
	require.NoError(t, err)
	require.Len(t, report.Edges, 1)
	assert.Equal(t, StatusAlreadyDone, report.Edges[0].Status)
	assert.True(t, afterB.Equal(elevation(t, store, "b")))
}

func TestStitchTile_NoNeighbor(t *testing.T) {
	store := tilestore.NewMemoryStore()
	put(store, "solo", 0, 0, filled(t, 5, 5, 3))
	st := newStitcher(store)
	session := NewSession()

	report, err := st.StitchTile(session, "solo", MaskAll, Params{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Count(StatusNoNeighbor))
	for _, e := range report.Edges {
		assert.NoError(t, e.Err)
	}
	assert.False(t, session.Record("solo").North)
	assert.True(t, filled(t, 5, 5, 3).Equal(elevation(t, store, "solo")))
}

func TestStitchTile_IdentifierLookupFailure(t *testing.T) {
	st := newStitcher(twoTiles(t))

	_, err := st.StitchTile(NewSession(), "ghost", MaskAll, Params{})
	assert.True(t, errors.Is(err, ErrIdentifierLookup), "expected ErrIdentifierLookup, got %v", err)
}

func TestStitchTile_InvalidParams(t *testing.T) {
	st := newStitcher(twoTiles(t))

	_, err := st.StitchTile(NewSession(), "a", MaskAll, Params{Tolerance: 2})
	assert.True(t, errors.Is(err, ErrInvalidParams))
}

func TestStitchTile_ReciprocalAlreadyDone(t *testing.T) {
	store := twoTiles(t)
	st := newStitcher(store)
	session := NewSession()
	session.Record("b").South = true
	before := elevation(t, store, "a")

	report, err := st.StitchTile(session, "a", MaskNorth, Params{})
	require.NoError(t, err)
	require.Len(t, report.Edges, 1)
	assert.Equal(t, StatusReconciled, report.Edges[0].Status)
	assert.True(t, session.Done("a", geom.North))
	assert.True(t, before.Equal(elevation(t, store, "a")), "no blend when the pair was reconciled from the other side")
}

func TestStitchTile_SpanMismatch(t *testing.T) {
	store := tilestore.NewMemoryStore()
	put(store, "a", 0, 0, filled(t, 5, 5, 0))
	store.Put(tilestore.Tile{
		ID:   "narrow",
		Grid: filled(t, 5, 5, 50),
		Placement: tilestore.Placement{
			Rect:     geom.Rect{Origin: geom.Vec2{X: 0, Y: tileSize}, Size: geom.Vec2{X: tileSize / 2, Y: tileSize}},
			Vertical: 100,
		},
	})
	st := newStitcher(store)
	session := NewSession()

	report, err := st.StitchTile(session, "a", MaskNorth, Params{})
	require.NoError(t, err)
	require.Len(t, report.Edges, 1)
	assert.Equal(t, StatusMismatch, report.Edges[0].Status)
	assert.True(t, errors.Is(report.Edges[0].Err, ErrResolutionMismatch))
	assert.False(t, session.Done("a", geom.North))
	assert.True(t, filled(t, 5, 5, 0).Equal(elevation(t, store, "a")))
}

func TestStitchTile_ResolutionMismatchResampled(t *testing.T) {
	store := tilestore.NewMemoryStore()
	a := filled(t, 5, 5, 10)
	setRow(a, 4, 12, 12, 12, 12, 12)
	put(store, "a", 0, 0, a)
	put(store, "b", 0, 1, filled(t, 9, 9, 10))

	report, err := newStitcher(store).StitchTile(NewSession(), "a", MaskNorth, Params{})
	require.NoError(t, err)
	require.Equal(t, StatusBlended, report.Edges[0].Status)
	assert.True(t, report.Edges[0].Stats.Resampled())

	assert.Equal(t,
		heightfield.Resample(elevation(t, store, "a").Row(4), 9),
		elevation(t, store, "b").Row(0))
}

type failingResolver struct{}

func (failingResolver) FindNeighbor(tilestore.ID, geom.Direction) (tilestore.ID, bool, error) {
	return "", false, neighbor.ErrResolution
}

func TestStitchTile_NeighborResolutionFailureIsNotFatal(t *testing.T) {
	store := twoTiles(t)
	st := New(store, failingResolver{})

	report, err := st.StitchTile(NewSession(), "a", MaskAll, Params{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Count(StatusNoNeighbor))
	assert.True(t, errors.Is(report.Edges[0].Err, neighbor.ErrResolution))
}

func TestStitchTile_ReleasesResidency(t *testing.T) {
	res := tilestore.NewResidency(twoTiles(t))
	st := New(res, neighbor.NewSpatialResolver(res, 0.01))

	report, err := st.StitchTile(NewSession(), "a", MaskNorth, Params{})
	require.NoError(t, err)
	assert.Equal(t, StatusBlended, report.Edges[0].Status)

	assert.Zero(t, res.Len(), "every acquired tile is released")
	hits, _ := res.Stats()
	assert.Positive(t, hits, "reads during the blend are served from resident tiles")

	// Writes reached the backing store.
	g := elevation(t, res, "b")
	assert.Equal(t, float32(11), g.At(0, 0))
}

// listingStore reports an extra tile that cannot be loaded.
type listingStore struct {
	*tilestore.MemoryStore
	extra tilestore.ID
}

func (l listingStore) IDs() ([]tilestore.ID, error) {
	ids, err := l.MemoryStore.IDs()
	return append(ids, l.extra), err
}

func randomGrid(t *testing.T, rng *rand.Rand, n int) *heightfield.Grid {
	g := filled(t, n, n, 0)
	for i := range g.Samples {
		g.Samples[i] = float32(rng.Intn(100))
	}
	return g
}

// gridTiles fills a cols x rows layout of random n x n tiles named "col,row".
func gridTiles(t *testing.T, mem *tilestore.MemoryStore, seed int64, cols, rows, n int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			put(mem, tileID(col, row), col, row, randomGrid(t, rng, n))
		}
	}
}

func tileID(col, row int) tilestore.ID {
	return tilestore.ID(fmt.Sprintf("%d,%d", col, row))
}

// assertSeamsMatch checks every shared boundary sample by sample, corners included.
func assertSeamsMatch(t *testing.T, s tilestore.Store, cols, rows int) {
	t.Helper()
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			g := elevation(t, s, tileID(col, row))
			if row+1 < rows {
				upper := elevation(t, s, tileID(col, row+1))
				assert.Equal(t, g.Row(g.Height-1), upper.Row(0), "seam %d,%d north", col, row)
			}
			if col+1 < cols {
				right := elevation(t, s, tileID(col+1, row))
				assert.Equal(t, g.Column(g.Width-1), right.Column(0), "seam %d,%d east", col, row)
			}
		}
	}
}

func TestStitchAll_Batch(t *testing.T) {
	mem := tilestore.NewMemoryStore()
	gridTiles(t, mem, 7, 3, 3, 6)
	store := listingStore{MemoryStore: mem, extra: "broken"}
	st := New(store, neighbor.NewSpatialResolver(mem, 0.01))
	session := NewSession()
	params := Params{SeamWidth: 2, Tolerance: 0}

	batch, err := st.StitchAll(session, MaskAll, params, true)
	require.NoError(t, err)

	require.Len(t, batch.Failures, 1)
	assert.Equal(t, tilestore.ID("broken"), batch.Failures[0].Tile)
	assert.True(t, errors.Is(batch.Failures[0].Err, ErrIdentifierLookup))
	assert.Empty(t, batch.Failures[0].Report.Edges)
	assert.Len(t, batch.Tiles, 9)

	// 12 shared edges in a 3x3 layout, each blended once.
	assert.Equal(t, 12, batch.Count(StatusBlended))
	assert.Equal(t, 12, batch.Count(StatusAlreadyDone))
	assert.Equal(t, 12, batch.Count(StatusNoNeighbor))

	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			rec := session.Record(tileID(col, row))
			assert.Equal(t, row < 2, rec.North)
			assert.Equal(t, col < 2, rec.East)
		}
	}
	for _, tr := range batch.Tiles {
		for _, e := range tr.Edges {
			assert.Zero(t, e.Stats.Locked, "tile %s %s", tr.Tile, e.Direction)
		}
	}

	// Later seams never disturb samples on edges reconciled before them.
	assertSeamsMatch(t, mem, 3, 3)

	// A second pass in the same session changes nothing.
	snapshot := map[tilestore.ID]*heightfield.Grid{}
	ids, _ := mem.IDs()
	for _, id := range ids {
		snapshot[id] = elevation(t, mem, id)
	}
	batch, err = st.StitchAll(session, MaskAll, params, true)
	require.NoError(t, err)
	assert.Zero(t, batch.Count(StatusBlended))
	for _, id := range ids {
		assert.True(t, snapshot[id].Equal(elevation(t, mem, id)), "tile %s changed on second pass", id)
	}
}

func TestStitchAll_TaperKeepsCornersShared(t *testing.T) {
	for _, width := range []int{1, 2, 3} {
		for seed := int64(1); seed <= 5; seed++ {
			t.Run(fmt.Sprintf("width=%d/seed=%d", width, seed), func(t *testing.T) {
				mem := tilestore.NewMemoryStore()
				gridTiles(t, mem, seed, 2, 2, 6)

				batch, err := newStitcher(mem).StitchAll(NewSession(), MaskAll, Params{SeamWidth: width, Tolerance: 0}, true)
				require.NoError(t, err)
				require.Empty(t, batch.Failures)
				assert.Equal(t, 4, batch.Count(StatusBlended))

				assertSeamsMatch(t, mem, 2, 2)
			})
		}
	}
}

func TestStitchAll_NotConfirmed(t *testing.T) {
	store := twoTiles(t)
	st := newStitcher(store)
	before := elevation(t, store, "a")

	_, err := st.StitchAll(NewSession(), MaskAll, Params{}, false)
	assert.True(t, errors.Is(err, ErrNotConfirmed))
	assert.True(t, before.Equal(elevation(t, store, "a")))
}

func TestInspect(t *testing.T) {
	store := twoTiles(t)
	st := newStitcher(store)

	seams, err := st.Inspect("a", MaskNorth|MaskEast, 0.01)
	require.NoError(t, err)
	require.Len(t, seams, 2)

	north := seams[0]
	assert.Equal(t, geom.North, north.Direction)
	assert.True(t, north.HasNeighbor)
	assert.Equal(t, tilestore.ID("b"), north.Neighbor)
	assert.Equal(t, 5, north.Stats.Exceeded)
	assert.InDelta(t, 0.02, north.Stats.MaxDiff, 1e-9)

	east := seams[1]
	assert.False(t, east.HasNeighbor)
	assert.NoError(t, east.Err)

	_, err = st.Inspect("ghost", MaskAll, 0)
	assert.True(t, errors.Is(err, ErrIdentifierLookup))
}

var errInjected = errors.New("injected fault")

// faultyStore fails reads or writes of a tile once its allowance is used up.
// Tiles without an allowance never fail.
type faultyStore struct {
	*tilestore.MemoryStore
	reads  map[tilestore.ID]int
	writes map[tilestore.ID]int
}

func newFaultyStore(mem *tilestore.MemoryStore) *faultyStore {
	return &faultyStore{
		MemoryStore: mem,
		reads:       map[tilestore.ID]int{},
		writes:      map[tilestore.ID]int{},
	}
}

func take(allowance map[tilestore.ID]int, id tilestore.ID) error {
	n, ok := allowance[id]
	if !ok {
		return nil
	}
	if n == 0 {
		return errInjected
	}
	allowance[id] = n - 1
	return nil
}

func (f *faultyStore) Elevation(id tilestore.ID) (*heightfield.Grid, error) {
	if err := take(f.reads, id); err != nil {
		return nil, err
	}
	return f.MemoryStore.Elevation(id)
}

func (f *faultyStore) SetElevation(id tilestore.ID, g *heightfield.Grid) error {
	if err := take(f.writes, id); err != nil {
		return err
	}
	return f.MemoryStore.SetElevation(id, g)
}

func TestStitchTile_NeighborWriteFailureRestoresTile(t *testing.T) {
	mem := twoTiles(t)
	store := newFaultyStore(mem)
	store.writes["b"] = 0
	st := New(store, neighbor.NewSpatialResolver(mem, 0.01))
	session := NewSession()
	before := elevation(t, mem, "a")

	report, err := st.StitchTile(session, "a", MaskNorth, Params{SeamWidth: 1})
	require.NoError(t, err)
	require.Len(t, report.Edges, 1)
	assert.Equal(t, StatusFailed, report.Edges[0].Status)
	assert.True(t, errors.Is(report.Edges[0].Err, errInjected))
	assert.Zero(t, report.Adjusted())

	assert.True(t, before.Equal(elevation(t, mem, "a")), "a is restored when b cannot be saved")
	assert.False(t, session.Done("a", geom.North))
	assert.False(t, session.Done("b", geom.South))

	// Once writes succeed the edge is blended exactly once.
	delete(store.writes, "b")
	report, err = st.StitchTile(session, "a", MaskNorth, Params{})
	require.NoError(t, err)
	assert.Equal(t, StatusBlended, report.Edges[0].Status)
	assert.Equal(t, []float32{11, 11, 11, 11, 11}, elevation(t, mem, "a").Row(4))
	assert.Equal(t, []float32{11, 11, 11, 11, 11}, elevation(t, mem, "b").Row(0))
}

func TestStitchTile_FailedRestoreMarksEdge(t *testing.T) {
	mem := twoTiles(t)
	store := newFaultyStore(mem)
	store.writes["a"] = 1
	store.writes["b"] = 0
	st := New(store, neighbor.NewSpatialResolver(mem, 0.01))
	session := NewSession()

	report, err := st.StitchTile(session, "a", MaskNorth, Params{})
	require.NoError(t, err)
	require.Len(t, report.Edges, 1)
	assert.Equal(t, StatusFailed, report.Edges[0].Status)
	assert.ErrorContains(t, report.Edges[0].Err, "restoring a")

	// a kept its blended boundary, so the pair must not be blended again.
	assert.Equal(t, []float32{11, 11, 11, 11, 11}, elevation(t, mem, "a").Row(4))
	assert.True(t, session.Done("a", geom.North))
	assert.True(t, session.Done("b", geom.South))

	report, err = st.StitchTile(session, "a", MaskNorth, Params{})
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyDone, report.Edges[0].Status)
}

func TestStitchAll_FailureKeepsPartialReport(t *testing.T) {
	mem := twoTiles(t)
	put(mem, "c", 1, 0, filled(t, 5, 5, 10))
	store := newFaultyStore(mem)
	// a is readable for its north edge only.
	store.reads["a"] = 1
	st := New(store, neighbor.NewSpatialResolver(mem, 0.01))

	batch, err := st.StitchAll(NewSession(), MaskAll, Params{}, true)
	require.NoError(t, err)

	require.Len(t, batch.Failures, 1)
	failure := batch.Failures[0]
	assert.Equal(t, tilestore.ID("a"), failure.Tile)
	assert.True(t, errors.Is(failure.Err, ErrIdentifierLookup))

	require.NotEmpty(t, failure.Report.Edges)
	north := failure.Report.Edges[0]
	assert.Equal(t, geom.North, north.Direction)
	assert.Equal(t, StatusBlended, north.Status)
	assert.Equal(t, 5, failure.Report.Adjusted())

	assert.Equal(t, 1, batch.Count(StatusBlended), "edges blended before the failure are counted")
	assert.Equal(t, 5, batch.Adjusted())
	assert.Equal(t, []float32{11, 11, 11, 11, 11}, elevation(t, mem, "b").Row(0))
}
