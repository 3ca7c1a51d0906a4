// Package stitch reconciles elevation samples along the shared boundaries of
// adjacent terrain tiles so neighbouring heightmaps meet without a step.
package stitch

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-stitch/internal/neighbor"
	"github.com/Faultbox/midgard-stitch/internal/tilestore"
	"github.com/Faultbox/midgard-stitch/pkg/geom"
)

// Stitch errors.
var (
	// ErrIdentifierLookup means a tile's backing data could not be resolved.
	// Stitching of that tile is aborted; a batch continues with the next tile.
	ErrIdentifierLookup = errors.New("tile identifier lookup failed")
	// ErrResolutionMismatch means two boundaries cannot be compared. The edge is skipped.
	ErrResolutionMismatch = errors.New("edge resolution mismatch")
	// ErrNotConfirmed is returned by StitchAll when the caller has not confirmed the batch.
	ErrNotConfirmed = errors.New("batch stitching not confirmed")
	// ErrInvalidParams reports out-of-range blend parameters.
	ErrInvalidParams = errors.New("invalid stitch parameters")
)

// Acquirer makes tile data resident for the duration of a lookup.
type Acquirer interface {
	Acquire(id tilestore.ID) (release func(), err error)
}

type nopAcquirer struct{}

func (nopAcquirer) Acquire(tilestore.ID) (func(), error) { return func() {}, nil }

// Stitcher blends tile boundaries held in a store.
type Stitcher struct {
	store    tilestore.Store
	resolver neighbor.Resolver
	acquirer Acquirer
	epsilon  float64
	log      *zap.Logger
}

// Option configures a Stitcher.
type Option func(*Stitcher)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Stitcher) { s.log = l }
}

// WithAcquirer sets how tiles are made resident around lookups.
// By default the store is used when it implements Acquirer.
func WithAcquirer(a Acquirer) Option {
	return func(s *Stitcher) { s.acquirer = a }
}

// WithEpsilon sets the world-space tolerance used to compare boundary spans.
func WithEpsilon(eps float64) Option {
	return func(s *Stitcher) { s.epsilon = eps }
}

// New creates a Stitcher over a tile store and a neighbour resolver.
func New(store tilestore.Store, resolver neighbor.Resolver, opts ...Option) *Stitcher {
	s := &Stitcher{
		store:    store,
		resolver: resolver,
		acquirer: nopAcquirer{},
		epsilon:  neighbor.DefaultEpsilon,
		log:      zap.NewNop(),
	}
	if a, ok := store.(Acquirer); ok {
		s.acquirer = a
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StitchTile reconciles the requested edges of one tile with its neighbours.
//
// Directions are processed north, south, west, east. An edge already marked
// in the session is skipped; a missing neighbour is not an error. Every
// successfully reconciled edge is marked on both tiles. The returned error is
// non-nil only when the tile itself cannot be resolved (ErrIdentifierLookup)
// or params are invalid; per-edge problems are reported in the TileReport.
// On error the report still lists the edges processed before it.
func (s *Stitcher) StitchTile(session *Session, id tilestore.ID, mask Mask, params Params) (TileReport, error) {
	report := TileReport{Tile: id}
	if err := params.Validate(); err != nil {
		return report, err
	}

	release, err := s.acquirer.Acquire(id)
	if err != nil {
		return report, fmt.Errorf("%w: %s: %v", ErrIdentifierLookup, id, err)
	}
	defer release()

	placement, err := s.store.Placement(id)
	if err != nil {
		return report, fmt.Errorf("%w: %s: %v", ErrIdentifierLookup, id, err)
	}

	log := s.log.With(zap.String("tile", string(id)))
	for _, d := range mask.Directions() {
		if session.Done(id, d) {
			report.Edges = append(report.Edges, EdgeResult{Direction: d, Status: StatusAlreadyDone})
			continue
		}

		res, err := s.stitchEdge(session, id, placement, d, params)
		if err != nil {
			return report, err
		}
		report.Edges = append(report.Edges, res)

		fields := []zap.Field{
			zap.Stringer("dir", d),
			zap.Stringer("status", res.Status),
			zap.String("neighbor", string(res.Neighbor)),
		}
		switch res.Status {
		case StatusBlended:
			log.Debug("edge blended", append(fields,
				zap.Int("adjusted", res.Stats.Exceeded),
				zap.Float64("max_diff", res.Stats.MaxDiff))...)
		case StatusMismatch, StatusFailed:
			log.Warn("edge skipped", append(fields, zap.Error(res.Err))...)
		case StatusNoNeighbor:
			if res.Err != nil {
				log.Warn("neighbor lookup failed", append(fields, zap.Error(res.Err))...)
			} else {
				log.Debug("no neighbor", fields...)
			}
		default:
			log.Debug("edge skipped", fields...)
		}
	}

	log.Info("tile stitched",
		zap.Stringer("mask", mask),
		zap.Int("blended", report.Count(StatusBlended)),
		zap.Int("adjusted", report.Adjusted()))
	return report, nil
}

func (s *Stitcher) stitchEdge(session *Session, id tilestore.ID, placement tilestore.Placement, d geom.Direction, params Params) (EdgeResult, error) {
	res := EdgeResult{Direction: d}

	nb, ok, err := s.resolver.FindNeighbor(id, d)
	if err != nil {
		res.Status, res.Err = StatusNoNeighbor, err
		return res, nil
	}
	if !ok {
		res.Status = StatusNoNeighbor
		return res, nil
	}
	res.Neighbor = nb

	if session.Done(nb, d.Opposite()) {
		session.markOne(id, d)
		res.Status = StatusReconciled
		return res, nil
	}

	release, err := s.acquirer.Acquire(nb)
	if err != nil {
		res.Status = StatusNoNeighbor
		res.Err = fmt.Errorf("%w: acquiring %s: %v", neighbor.ErrResolution, nb, err)
		return res, nil
	}
	defer release()

	a, err := s.surface(id, placement)
	if err != nil {
		return res, fmt.Errorf("%w: %s: %v", ErrIdentifierLookup, id, err)
	}

	nbPlacement, err := s.store.Placement(nb)
	if err != nil {
		res.Status = StatusNoNeighbor
		res.Err = fmt.Errorf("%w: %s: %v", neighbor.ErrResolution, nb, err)
		return res, nil
	}
	b, err := s.surface(nb, nbPlacement)
	if err != nil {
		res.Status = StatusNoNeighbor
		res.Err = fmt.Errorf("%w: %s: %v", neighbor.ErrResolution, nb, err)
		return res, nil
	}

	if !sameSpan(placement, nbPlacement, d, s.epsilon) {
		res.Status = StatusMismatch
		res.Err = fmt.Errorf("%w: boundary spans differ between %s and %s", ErrResolutionMismatch, id, nb)
		return res, nil
	}

	a.Locked = session.Record(id).Mask()
	b.Locked = session.Record(nb).Mask()
	original := a.Grid.Clone()

	stats, err := BlendEdge(a, b, d, params)
	res.Stats = stats
	if err != nil {
		res.Status, res.Err = StatusMismatch, err
		return res, nil
	}

	if stats.Exceeded > 0 {
		if err := s.store.SetElevation(id, a.Grid); err != nil {
			res.Status, res.Err = StatusFailed, fmt.Errorf("saving %s: %w", id, err)
			return res, nil
		}
		if err := s.store.SetElevation(nb, b.Grid); err != nil {
			res.Status, res.Err = StatusFailed, fmt.Errorf("saving %s: %w", nb, err)
			if rerr := s.store.SetElevation(id, original); rerr != nil {
				// id keeps its blended boundary, so the pair must not be blended again.
				session.MarkPair(id, d, nb)
				res.Err = errors.Join(res.Err, fmt.Errorf("restoring %s: %w", id, rerr))
			}
			return res, nil
		}
	}

	session.MarkPair(id, d, nb)
	res.Status = StatusBlended
	return res, nil
}

// StitchAll stitches every tile in the store in ascending ID order.
//
// confirmed is the caller's decision to proceed; without it nothing is
// touched and ErrNotConfirmed is returned. A tile that cannot be resolved
// is recorded in Failures and the batch moves on.
func (s *Stitcher) StitchAll(session *Session, mask Mask, params Params, confirmed bool) (BatchReport, error) {
	if !confirmed {
		return BatchReport{}, ErrNotConfirmed
	}
	if err := params.Validate(); err != nil {
		return BatchReport{}, err
	}

	ids, err := s.store.IDs()
	if err != nil {
		return BatchReport{}, fmt.Errorf("listing tiles: %w", err)
	}
	return s.StitchTiles(session, ids, mask, params), nil
}

// StitchTiles stitches the given tiles sequentially, in the order given.
func (s *Stitcher) StitchTiles(session *Session, ids []tilestore.ID, mask Mask, params Params) BatchReport {
	var batch BatchReport
	for _, id := range ids {
		report, err := s.StitchTile(session, id, mask, params)
		if err != nil {
			s.log.Error("tile stitching aborted", zap.String("tile", string(id)), zap.Error(err))
			batch.Failures = append(batch.Failures, TileFailure{Tile: id, Err: err, Report: report})
			continue
		}
		batch.Tiles = append(batch.Tiles, report)
	}

	s.log.Info("batch stitched",
		zap.Int("tiles", len(batch.Tiles)),
		zap.Int("failed", len(batch.Failures)),
		zap.Int("adjusted", batch.Adjusted()))
	return batch
}

// Inspect measures the seams of one tile without modifying anything.
func (s *Stitcher) Inspect(id tilestore.ID, mask Mask, tolerance float64) ([]SeamInfo, error) {
	release, err := s.acquirer.Acquire(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIdentifierLookup, id, err)
	}
	defer release()

	placement, err := s.store.Placement(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIdentifierLookup, id, err)
	}
	a, err := s.surface(id, placement)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIdentifierLookup, id, err)
	}

	var seams []SeamInfo
	for _, d := range mask.Directions() {
		seams = append(seams, s.inspectEdge(id, a, placement, d, tolerance))
	}
	return seams, nil
}

func (s *Stitcher) inspectEdge(id tilestore.ID, a Surface, placement tilestore.Placement, d geom.Direction, tolerance float64) SeamInfo {
	info := SeamInfo{Direction: d}

	nb, ok, err := s.resolver.FindNeighbor(id, d)
	if err != nil || !ok {
		info.Err = err
		return info
	}
	info.Neighbor, info.HasNeighbor = nb, true

	release, err := s.acquirer.Acquire(nb)
	if err != nil {
		info.Err = fmt.Errorf("%w: acquiring %s: %v", neighbor.ErrResolution, nb, err)
		return info
	}
	defer release()

	nbPlacement, err := s.store.Placement(nb)
	if err != nil {
		info.Err = err
		return info
	}
	if !sameSpan(placement, nbPlacement, d, s.epsilon) {
		info.Err = fmt.Errorf("%w: boundary spans differ between %s and %s", ErrResolutionMismatch, id, nb)
		return info
	}
	b, err := s.surface(nb, nbPlacement)
	if err != nil {
		info.Err = err
		return info
	}

	info.Stats, info.Err = MeasureEdge(a, b, d, tolerance)
	return info
}

func (s *Stitcher) surface(id tilestore.ID, p tilestore.Placement) (Surface, error) {
	g, err := s.store.Elevation(id)
	if err != nil {
		return Surface{}, err
	}
	return Surface{Grid: g, Vertical: p.Vertical}, nil
}

// sameSpan reports whether the shared boundary has the same world length on both tiles.
func sameSpan(a, b tilestore.Placement, d geom.Direction, eps float64) bool {
	if d.Horizontal() {
		return a.Rect.SameWidth(b.Rect, eps)
	}
	return a.Rect.SameHeight(b.Rect, eps)
}
