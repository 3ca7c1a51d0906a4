package stitch

import (
	"github.com/Faultbox/midgard-stitch/internal/tilestore"
	"github.com/Faultbox/midgard-stitch/pkg/geom"
)

// Record marks which edges of one tile have been reconciled with their neighbour.
type Record struct {
	North bool
	South bool
	West  bool
	East  bool
}

// Done reports whether edge d is reconciled.
func (r *Record) Done(d geom.Direction) bool {
	switch d {
	case geom.North:
		return r.North
	case geom.South:
		return r.South
	case geom.West:
		return r.West
	case geom.East:
		return r.East
	}
	return false
}

func (r *Record) mark(d geom.Direction) {
	switch d {
	case geom.North:
		r.North = true
	case geom.South:
		r.South = true
	case geom.West:
		r.West = true
	case geom.East:
		r.East = true
	}
}

// Complete reports whether all four edges are reconciled.
func (r *Record) Complete() bool {
	return r.North && r.South && r.West && r.East
}

// Mask returns the reconciled edges as a mask.
func (r *Record) Mask() Mask {
	var m Mask
	for _, d := range geom.Directions {
		if r.Done(d) {
			m |= MaskOf(d)
		}
	}
	return m
}

// Session holds the stitch records of one stitching batch.
//
// Records are created lazily on first reference and live until Reset or
// until the session is dropped. A Session is not safe for concurrent use.
type Session struct {
	records map[tilestore.ID]*Record
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{records: make(map[tilestore.ID]*Record)}
}

// Record returns the tile's record, creating it if needed.
func (s *Session) Record(id tilestore.ID) *Record {
	r, ok := s.records[id]
	if !ok {
		r = &Record{}
		s.records[id] = r
	}
	return r
}

// Done reports whether edge d of tile id is reconciled.
func (s *Session) Done(id tilestore.ID, d geom.Direction) bool {
	return s.Record(id).Done(d)
}

// MarkPair marks a's edge d and b's reciprocal edge as reconciled.
func (s *Session) MarkPair(a tilestore.ID, d geom.Direction, b tilestore.ID) {
	s.Record(a).mark(d)
	s.Record(b).mark(d.Opposite())
}

// markOne marks a single edge.
func (s *Session) markOne(id tilestore.ID, d geom.Direction) {
	s.Record(id).mark(d)
}

// Len returns the number of tiles with a record.
func (s *Session) Len() int {
	return len(s.records)
}

// Reset drops every record.
func (s *Session) Reset() {
	s.records = make(map[tilestore.ID]*Record)
}
