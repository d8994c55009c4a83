// Package changes compares the source and current snapshots of a property to
// decide whether the record is dirty, which child collections changed and
// whether a parent PAO change must cascade to child properties.
//
// Volatile fields (entry date, last update date and user, computed address)
// are ignored everywhere. The ignore list lives in each record type's Stable
// method so the aggregate check and the per-record check cannot drift.
package changes

import (
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// State is the part of a sandbox the detector reads.
type State struct {
	Source  types.Property
	Current types.Property
	// Active holds the in-progress edit per collection, not yet merged.
	Active map[types.CollectionType]any
}

// HasChanged reports whether current differs from source in any field of
// the BLPU or any child collection.
func HasChanged(source, current types.Property) bool {
	if source.BLPU.Stable() != current.BLPU.Stable() {
		return true
	}
	if source.Variant() != current.Variant() {
		return true
	}
	if !source.LPIs.Equal(current.LPIs) ||
		!source.Provenances.Equal(current.Provenances) ||
		!source.CrossRefs.Equal(current.CrossRefs) ||
		!source.Notes.Equal(current.Notes) {
		return true
	}
	if source.Scottish == nil {
		return false
	}
	return !source.Scottish.Classifications.Equal(current.Scottish.Classifications) ||
		!source.Scottish.Organisations.Equal(current.Scottish.Organisations) ||
		!source.Scottish.SuccessorCrossRefs.Equal(current.Scottish.SuccessorCrossRefs)
}

// RecordChanged reports whether two versions of a record differ outside the
// volatile fields.
func RecordChanged[T types.Record[T]](a, b T) bool {
	return a.Stable() != b.Stable()
}

// RecordChangedAny is RecordChanged for untyped records. Records of
// different types always count as changed.
func RecordChangedAny(a, b any) bool {
	switch x := a.(type) {
	case types.LPI:
		y, ok := b.(types.LPI)
		return !ok || RecordChanged(x, y)
	case types.Provenance:
		y, ok := b.(types.Provenance)
		return !ok || RecordChanged(x, y)
	case types.CrossRef:
		y, ok := b.(types.CrossRef)
		return !ok || RecordChanged(x, y)
	case types.Classification:
		y, ok := b.(types.Classification)
		return !ok || RecordChanged(x, y)
	case types.Organisation:
		y, ok := b.(types.Organisation)
		return !ok || RecordChanged(x, y)
	case types.SuccessorCrossRef:
		y, ok := b.(types.SuccessorCrossRef)
		return !ok || RecordChanged(x, y)
	case types.Note:
		y, ok := b.(types.Note)
		return !ok || RecordChanged(x, y)
	}
	return true
}

// ChangedAssociatedRecords returns the labels of the child collections that
// differ from the source, in display order. An open edit that differs from
// its merged record counts as a change. Provenance also counts as changed
// when geometryChanged is set, since map edits bypass the data comparison.
func ChangedAssociatedRecords(st State, geometryChanged bool) []string {
	var out []string
	add := func(ct types.CollectionType, changed bool) {
		if changed {
			out = append(out, ct.Label())
		}
	}

	add(types.CollectionLPI, changedWithEdit(st.Source.LPIs, st.Current.LPIs, st.Active[types.CollectionLPI]))
	add(types.CollectionProvenance, geometryChanged ||
		changedWithEdit(st.Source.Provenances, st.Current.Provenances, st.Active[types.CollectionProvenance]))
	add(types.CollectionCrossRef, changedWithEdit(st.Source.CrossRefs, st.Current.CrossRefs, st.Active[types.CollectionCrossRef]))

	if src, cur := st.Source.Scottish, st.Current.Scottish; src != nil && cur != nil {
		add(types.CollectionClassification,
			changedWithEdit(src.Classifications, cur.Classifications, st.Active[types.CollectionClassification]))
		add(types.CollectionOrganisation,
			changedWithEdit(src.Organisations, cur.Organisations, st.Active[types.CollectionOrganisation]))
		add(types.CollectionSuccessor,
			changedWithEdit(src.SuccessorCrossRefs, cur.SuccessorCrossRefs, st.Active[types.CollectionSuccessor]))
	}

	add(types.CollectionNote, changedWithEdit(st.Source.Notes, st.Current.Notes, st.Active[types.CollectionNote]))
	return out
}

// PendingEdits returns, in display order, the collections whose open edit
// differs from the record merged into the current snapshot. An open edit of
// a record that is no longer in the snapshot is pending too.
func PendingEdits(st State) []types.CollectionType {
	var out []types.CollectionType
	for _, ct := range types.AllCollections {
		rec, ok := st.Active[ct]
		if ok && editPending(st.Current, ct, rec) {
			out = append(out, ct)
		}
	}
	return out
}

// IsDirty reports whether the sandbox holds anything unsaved: a difference
// between the snapshots, a map geometry edit or an open edit not yet merged.
// It agrees with ChangedAssociatedRecords: whenever that lists a collection,
// IsDirty is true.
func IsDirty(st State, geometryChanged bool) bool {
	return geometryChanged || HasChanged(st.Source, st.Current) || len(PendingEdits(st)) > 0
}

func editPending(cur types.Property, ct types.CollectionType, rec any) bool {
	k, ok := rec.(interface{ Key() int64 })
	if !ok {
		return false
	}
	merged, found := cur.Record(ct, k.Key())
	return !found || RecordChangedAny(merged, rec)
}

func changedWithEdit[T types.Record[T]](src, cur types.Collection[T], active any) bool {
	if !src.Equal(cur) {
		return true
	}
	rec, ok := active.(T)
	if !ok {
		return false
	}
	merged, found := cur.Get(rec.Key())
	return !found || RecordChanged(merged, rec)
}

// HasParentPaoChanged reports whether a property with children has had the
// PAO of any of its LPIs changed. LPIs that are new since the source are not
// considered.
func HasParentPaoChanged(childCount int, source, current types.Property) bool {
	if childCount < 1 {
		return false
	}
	for _, lpi := range current.LPIs.Live() {
		prev, ok := source.LPIs.Get(lpi.PKID)
		if !ok {
			continue
		}
		if prev.PAO() != lpi.PAO() {
			return true
		}
	}
	return false
}
