// Package sandbox stages edits to a property aggregate. A Sandbox holds the
// last-saved source snapshot, the current snapshot being edited and one
// active-edit slot per child collection, and merges child collections back
// into the current snapshot.
package sandbox

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb/encoding/wkt"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/internal/changes"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// Associated carries the child collections handed to SetAssociated. A nil
// field leaves that collection untouched.
type Associated struct {
	LPIs               *types.Collection[types.LPI]
	Provenances        *types.Collection[types.Provenance]
	CrossRefs          *types.Collection[types.CrossRef]
	Classifications    *types.Collection[types.Classification]
	Organisations      *types.Collection[types.Organisation]
	SuccessorCrossRefs *types.Collection[types.SuccessorCrossRef]
	Notes              *types.Collection[types.Note]
}

// Set returns a pointer to v for populating an Associated field inline.
func Set[T any](v T) *T {
	return &v
}

// Sandbox is the staging area for one open property form.
type Sandbox struct {
	mu      sync.Mutex
	source  types.Property
	current types.Property
	active  map[types.CollectionType]any
	maps    types.MapSink
	log     *zap.Logger
}

// New returns a sandbox whose source and current snapshots are both p.
// maps may be nil when no map view is attached.
func New(p types.Property, maps types.MapSink, log *zap.Logger) *Sandbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sandbox{
		source:  p.Clone(),
		current: p.Clone(),
		active:  make(map[types.CollectionType]any),
		maps:    maps,
		log:     log,
	}
}

// Source returns the last-saved snapshot.
func (s *Sandbox) Source() types.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.Clone()
}

// Current returns the snapshot being edited.
func (s *Sandbox) Current() types.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// SetAssociated merges the supplied collections into the current snapshot
// and returns it. Scalar fields and omitted collections are preserved; the
// source snapshot is not touched. Every supplied collection is copied so the
// caller's value never aliases the snapshot.
func (s *Sandbox) SetAssociated(a Associated) (types.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeLocked(a)
}

// SetAssociatedAndClear merges like SetAssociated and then clears the active
// edit slot of cleared. Clearing the provenance slot also pushes the extents
// of every live provenance to the map.
func (s *Sandbox) SetAssociatedAndClear(a Associated, cleared types.CollectionType) (types.Property, error) {
	s.mu.Lock()
	p, err := s.mergeLocked(a)
	if err != nil {
		s.mu.Unlock()
		return types.Property{}, err
	}
	delete(s.active, cleared)
	s.mu.Unlock()

	if cleared == types.CollectionProvenance {
		s.EmitExtents()
	}
	return p, nil
}

func (s *Sandbox) mergeLocked(a Associated) (types.Property, error) {
	next := s.current.Clone()
	scottish := a.Classifications != nil || a.Organisations != nil || a.SuccessorCrossRefs != nil
	if scottish && next.Scottish == nil {
		return types.Property{}, fmt.Errorf("merge: %w", types.ErrWrongVariant)
	}

	if a.LPIs != nil {
		next.LPIs = a.LPIs.Clone()
	}
	if a.Provenances != nil {
		next.Provenances = a.Provenances.Clone()
	}
	if a.CrossRefs != nil {
		next.CrossRefs = a.CrossRefs.Clone()
	}
	if a.Notes != nil {
		next.Notes = a.Notes.Clone()
	}
	if a.Classifications != nil {
		next.Scottish.Classifications = a.Classifications.Clone()
	}
	if a.Organisations != nil {
		next.Scottish.Organisations = a.Organisations.Clone()
	}
	if a.SuccessorCrossRefs != nil {
		next.Scottish.SuccessorCrossRefs = a.SuccessorCrossRefs.Clone()
	}

	s.followLocked(next)
	s.current = next
	return next.Clone(), nil
}

// followLocked moves open edits that carry no changes of their own onto the
// matching records of next, so a merge underneath an open record does not
// read as a pending edit.
func (s *Sandbox) followLocked(next types.Property) {
	for ct, rec := range s.active {
		k, ok := rec.(interface{ Key() int64 })
		if !ok {
			continue
		}
		prev, found := s.current.Record(ct, k.Key())
		if !found || changes.RecordChangedAny(prev, rec) {
			continue
		}
		if merged, ok := next.Record(ct, k.Key()); ok {
			s.active[ct] = merged
		}
	}
}

// Upsert merges records of any child type into their collections of the
// current snapshot, replacing records that share a pkId.
func (s *Sandbox) Upsert(recs ...any) (types.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current
	a := Associated{}
	for _, rec := range recs {
		switch r := rec.(type) {
		case types.LPI:
			a.LPIs = Set(pick(a.LPIs, cur.LPIs).Upsert(r))
		case types.Provenance:
			a.Provenances = Set(pick(a.Provenances, cur.Provenances).Upsert(r))
		case types.CrossRef:
			a.CrossRefs = Set(pick(a.CrossRefs, cur.CrossRefs).Upsert(r))
		case types.Note:
			a.Notes = Set(pick(a.Notes, cur.Notes).Upsert(r))
		case types.Classification, types.Organisation, types.SuccessorCrossRef:
			if cur.Scottish == nil {
				return types.Property{}, fmt.Errorf("upsert: %w", types.ErrWrongVariant)
			}
			switch r := r.(type) {
			case types.Classification:
				a.Classifications = Set(pick(a.Classifications, cur.Scottish.Classifications).Upsert(r))
			case types.Organisation:
				a.Organisations = Set(pick(a.Organisations, cur.Scottish.Organisations).Upsert(r))
			case types.SuccessorCrossRef:
				a.SuccessorCrossRefs = Set(pick(a.SuccessorCrossRefs, cur.Scottish.SuccessorCrossRefs).Upsert(r))
			}
		default:
			return types.Property{}, fmt.Errorf("upsert %T: %w", rec, types.ErrUnknownCollection)
		}
	}
	return s.mergeLocked(a)
}

// UpsertAndClear merges like Upsert and then clears the active edit slot of
// cleared, emitting extents when that is the provenance slot.
func (s *Sandbox) UpsertAndClear(cleared types.CollectionType, recs ...any) (types.Property, error) {
	p, err := s.Upsert(recs...)
	if err != nil {
		return types.Property{}, err
	}
	s.ClearEdit(cleared)
	if cleared == types.CollectionProvenance {
		s.EmitExtents()
	}
	return p, nil
}

func pick[T types.Record[T]](pending *types.Collection[T], cur types.Collection[T]) types.Collection[T] {
	if pending != nil {
		return *pending
	}
	return cur
}

// SetBLPU replaces the scalar header of the current snapshot.
func (s *Sandbox) SetBLPU(b types.BLPU) types.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.BLPU = b
	return s.current.Clone()
}

// Replace swaps the whole current snapshot, used for atomic rewrites such as
// a logical status change.
func (s *Sandbox) Replace(p types.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Variant() != s.current.Variant() {
		return fmt.Errorf("replace: %w", types.ErrWrongVariant)
	}
	next := p.Clone()
	s.followLocked(next)
	s.current = next
	return nil
}

// Revert discards every unsaved edit: current becomes the source again and
// all active edit slots are cleared.
func (s *Sandbox) Revert() types.Property {
	s.mu.Lock()
	s.current = s.source.Clone()
	s.active = make(map[types.CollectionType]any)
	p := s.current.Clone()
	s.mu.Unlock()

	s.EmitExtents()
	return p
}

// Commit installs a saved aggregate as both source and current.
func (s *Sandbox) Commit(saved types.Property) {
	s.mu.Lock()
	s.source = saved.Clone()
	s.current = saved.Clone()
	s.active = make(map[types.CollectionType]any)
	s.mu.Unlock()

	s.EmitExtents()
}

// SetEdit stores rec as the in-progress edit for the collection.
func (s *Sandbox) SetEdit(ct types.CollectionType, rec any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[ct] = rec
}

// ActiveEdit returns the in-progress edit for the collection, if any.
func (s *Sandbox) ActiveEdit(ct types.CollectionType) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.active[ct]
	return rec, ok
}

// ClearEdit empties the active edit slot of the collection.
func (s *Sandbox) ClearEdit(ct types.CollectionType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, ct)
}

// State returns a consistent view of both snapshots and the open edits for
// change detection.
func (s *Sandbox) State() changes.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := make(map[types.CollectionType]any, len(s.active))
	for k, v := range s.active {
		active[k] = v
	}
	return changes.State{Source: s.source.Clone(), Current: s.current.Clone(), Active: active}
}

// Dirty reports whether the current snapshot differs from the source or an
// open edit has not been merged yet.
func (s *Sandbox) Dirty() bool {
	return changes.IsDirty(s.State(), false)
}

// PendingEdits lists the collections whose open edit has not been merged.
func (s *Sandbox) PendingEdits() []types.CollectionType {
	return changes.PendingEdits(s.State())
}

// Active returns the typed in-progress edit for the collection.
func Active[T any](s *Sandbox, ct types.CollectionType) (T, bool) {
	rec, ok := s.ActiveEdit(ct)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := rec.(T)
	return v, ok
}

// Extents decodes the geometry of every live provenance of the current
// snapshot. Records without geometry, or with WKT that does not parse, are
// returned with a nil Geometry.
func (s *Sandbox) Extents() []types.Extent {
	p := s.Current()
	return Extents(p, s.log)
}

// Extents decodes the map extents of the live provenances of p.
func Extents(p types.Property, log *zap.Logger) []types.Extent {
	live := p.Provenances.Live()
	out := make([]types.Extent, 0, len(live))
	for _, prov := range live {
		e := types.Extent{PKID: prov.PKID, UPRN: prov.UPRN, Code: prov.ProvenanceCode}
		if prov.WKTGeometry != "" {
			g, err := wkt.Unmarshal(prov.WKTGeometry)
			if err != nil {
				log.Warn("provenance geometry not decoded",
					zap.Int64("pkId", prov.PKID), zap.Error(err))
			} else {
				e.Geometry = g
				e.Bound = g.Bound()
			}
		}
		out = append(out, e)
	}
	return out
}

// EmitExtents pushes the current provenance extents to the map sink.
func (s *Sandbox) EmitExtents() {
	if s.maps == nil {
		return
	}
	s.maps.SetExtents(s.Extents())
}
