package stitch

import (
	"fmt"

	"github.com/Faultbox/midgard-stitch/internal/tilestore"
	"github.com/Faultbox/midgard-stitch/pkg/geom"
)

// EdgeStatus is the outcome of processing one edge.
type EdgeStatus uint8

// Edge outcomes.
const (
	StatusBlended     EdgeStatus = iota // Compared and, where needed, corrected
	StatusAlreadyDone                   // This tile's edge was already marked in the session
	StatusReconciled                    // Neighbour's reciprocal edge was already marked
	StatusNoNeighbor                    // Nothing adjacent, or the neighbour could not be resolved
	StatusMismatch                      // Boundaries could not be brought to a common resolution
	StatusFailed                        // Writing or reading tile data failed
)

// String returns a human-readable status.
func (s EdgeStatus) String() string {
	switch s {
	case StatusBlended:
		return "blended"
	case StatusAlreadyDone:
		return "already-done"
	case StatusReconciled:
		return "reconciled"
	case StatusNoNeighbor:
		return "no-neighbor"
	case StatusMismatch:
		return "mismatch"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("EdgeStatus(%d)", s)
	}
}

// EdgeResult describes one processed edge.
type EdgeResult struct {
	Direction geom.Direction
	Neighbor  tilestore.ID
	Status    EdgeStatus
	Stats     EdgeStats
	Err       error
}

// TileReport collects the edge results for one tile.
type TileReport struct {
	Tile  tilestore.ID
	Edges []EdgeResult
}

// Count returns how many edges ended with status s.
func (r TileReport) Count(s EdgeStatus) int {
	n := 0
	for _, e := range r.Edges {
		if e.Status == s {
			n++
		}
	}
	return n
}

// Adjusted returns the number of boundary positions corrected across all edges.
func (r TileReport) Adjusted() int {
	n := 0
	for _, e := range r.Edges {
		if e.Status == StatusBlended {
			n += e.Stats.Exceeded
		}
	}
	return n
}

// TileFailure records a tile whose stitching was aborted. Report holds the
// edges processed before the abort; those edges are stored and marked.
type TileFailure struct {
	Tile   tilestore.ID
	Err    error
	Report TileReport
}

// BatchReport collects the results of stitching many tiles.
type BatchReport struct {
	Tiles    []TileReport
	Failures []TileFailure
}

// Count returns how many edges across all tiles ended with status s,
// including edges processed before a tile failed.
func (b BatchReport) Count(s EdgeStatus) int {
	n := 0
	for _, t := range b.Tiles {
		n += t.Count(s)
	}
	for _, f := range b.Failures {
		n += f.Report.Count(s)
	}
	return n
}

// Adjusted returns the number of boundary positions corrected across the batch.
func (b BatchReport) Adjusted() int {
	n := 0
	for _, t := range b.Tiles {
		n += t.Adjusted()
	}
	for _, f := range b.Failures {
		n += f.Report.Adjusted()
	}
	return n
}

// SeamInfo is a read-only view of one tile edge, produced by Inspect.
type SeamInfo struct {
	Direction   geom.Direction
	Neighbor    tilestore.ID
	HasNeighbor bool
	Stats       EdgeStats
	Err         error
}
