// Package deletion removes and restores child records of the property held in
// a sandbox. Persisted records (positive pkId) are soft deleted: they stay in
// their collection tagged ChangeDelete so the store can delete them on save.
// Drafts (negative pkId) were never saved and are removed outright.
//
// Bilingual LPI pairs are deleted together with the cross-reference that
// links them, so neither half is ever left orphaned.
package deletion

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/internal/bilingual"
	"github.com/mesh-intelligence/gazetteer/internal/sandbox"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// Handler applies deletes to one sandbox.
type Handler struct {
	sb    *sandbox.Sandbox
	links bilingual.Linker
	log   *zap.Logger
}

// New returns a Handler. bilingualSourceID is the cross-reference source id
// that marks a bilingual LPI link.
func New(sb *sandbox.Sandbox, bilingualSourceID string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{sb: sb, links: bilingual.NewLinker(bilingualSourceID), log: log}
}

// plan is the set of pkIds to delete (or restore) per collection.
type plan map[types.CollectionType][]int64

func (pl plan) add(ct types.CollectionType, ids ...int64) {
	for _, id := range ids {
		seen := false
		for _, have := range pl[ct] {
			if have == id {
				seen = true
				break
			}
		}
		if !seen {
			pl[ct] = append(pl[ct], id)
		}
	}
}

// Delete removes one record, cascading across a bilingual pair, and merges
// the result into the sandbox.
func (h *Handler) Delete(ct types.CollectionType, pkID int64) (types.Property, error) {
	return h.DeleteMany(ct, []int64{pkID})
}

// DeleteMany removes a batch of records of one collection in a single pass
// and merges once. Either every id is deleted or nothing changes.
func (h *Handler) DeleteMany(ct types.CollectionType, ids []int64) (types.Property, error) {
	out, pl, err := h.run(ct, ids, false)
	if err != nil {
		return types.Property{}, fmt.Errorf("delete %s: %w", ct, err)
	}
	h.clearOpenEdits(pl)
	h.log.Debug("records deleted",
		zap.String("collection", string(ct)), zap.Int64s("pkIds", ids), zap.Int("collections", len(pl)))
	return out, nil
}

// Restore undoes the soft delete of a record and of its bilingual partners.
// The record takes back the change type it had in the source snapshot, or
// ChangeUpdate if it was not there. A deleted draft no longer exists and
// cannot be restored.
func (h *Handler) Restore(ct types.CollectionType, pkID int64) (types.Property, error) {
	out, _, err := h.run(ct, []int64{pkID}, true)
	if err != nil {
		return types.Property{}, fmt.Errorf("restore %s: %w", ct, err)
	}
	return out, nil
}

func (h *Handler) run(ct types.CollectionType, ids []int64, undo bool) (types.Property, plan, error) {
	cur := h.sb.Current()
	pl, err := h.plan(cur, ct, ids)
	if err != nil {
		return types.Property{}, nil, err
	}
	src := h.sb.Source()

	a := sandbox.Associated{}
	for c, keys := range pl {
		apply(&a, cur, src, c, keys, undo)
	}
	out, err := h.sb.SetAssociated(a)
	if err != nil {
		return types.Property{}, nil, err
	}
	if _, ok := pl[types.CollectionProvenance]; ok {
		h.sb.EmitExtents()
	}
	return out, pl, nil
}

type keyed interface{ Key() int64 }

// plan resolves ids to the full set of records to touch, following
// bilingual links. It fails without side effects on an unknown id or a
// missing bilingual partner.
func (h *Handler) plan(p types.Property, ct types.CollectionType, ids []int64) (plan, error) {
	if ct.ScottishOnly() && p.Scottish == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrWrongVariant, ct)
	}
	pl := plan{}
	for _, id := range ids {
		if id == 0 {
			return nil, fmt.Errorf("%w: zero pkId", types.ErrInvalidKey)
		}
		if _, ok := p.Record(ct, id); !ok {
			return nil, fmt.Errorf("%w: %s %d", types.ErrRecordNotFound, ct, id)
		}
		pl.add(ct, id)

		switch ct {
		case types.CollectionLPI:
			lpi, _ := p.LPIs.Get(id)
			pair, ok, err := h.links.PairOf(p, lpi)
			if err != nil {
				return nil, err
			}
			if ok {
				pl.add(types.CollectionLPI, pair.Partner)
			}
			if pair.Link != 0 {
				pl.add(types.CollectionCrossRef, pair.Link)
			}
		case types.CollectionCrossRef:
			x, _ := p.CrossRefs.Get(id)
			if h.links.IsLink(x) {
				pl.add(types.CollectionLPI, bilingual.Linked(p, x)...)
			}
		}
	}
	return pl, nil
}

func (h *Handler) clearOpenEdits(pl plan) {
	for ct, ids := range pl {
		rec, ok := h.sb.ActiveEdit(ct)
		if !ok {
			continue
		}
		k, ok := rec.(keyed)
		if !ok {
			continue
		}
		for _, id := range ids {
			if k.Key() == id {
				h.sb.ClearEdit(ct)
				break
			}
		}
	}
}

// deleteAll soft deletes persisted records and drops drafts.
func deleteAll[T types.Record[T]](c types.Collection[T], ids []int64) types.Collection[T] {
	target := make(map[int64]bool, len(ids))
	var hard []int64
	for _, id := range ids {
		if id < 0 {
			hard = append(hard, id)
			continue
		}
		target[id] = true
	}
	return c.Map(func(r T) T {
		if target[r.Key()] {
			return r.WithChange(types.ChangeDelete)
		}
		return r
	}).Remove(hard...)
}

// restoreAll clears the soft delete of the given records.
func restoreAll[T types.Record[T]](c, src types.Collection[T], ids []int64) types.Collection[T] {
	target := make(map[int64]bool, len(ids))
	for _, id := range ids {
		target[id] = true
	}
	return c.Map(func(r T) T {
		if !target[r.Key()] || r.Change() != types.ChangeDelete {
			return r
		}
		if prev, ok := src.Get(r.Key()); ok && prev.Change() != types.ChangeDelete {
			return r.WithChange(prev.Change())
		}
		return r.WithChange(types.ChangeUpdate)
	})
}

func op[T types.Record[T]](c, src types.Collection[T], ids []int64, undo bool) types.Collection[T] {
	if undo {
		return restoreAll(c, src, ids)
	}
	return deleteAll(c, ids)
}

// apply writes the transformed collection ct into a.
func apply(a *sandbox.Associated, cur, src types.Property, ct types.CollectionType, ids []int64, undo bool) {
	switch ct {
	case types.CollectionLPI:
		a.LPIs = sandbox.Set(op(cur.LPIs, src.LPIs, ids, undo))
	case types.CollectionProvenance:
		a.Provenances = sandbox.Set(op(cur.Provenances, src.Provenances, ids, undo))
	case types.CollectionCrossRef:
		a.CrossRefs = sandbox.Set(op(cur.CrossRefs, src.CrossRefs, ids, undo))
	case types.CollectionNote:
		a.Notes = sandbox.Set(op(cur.Notes, src.Notes, ids, undo))
	}
	if cur.Scottish == nil {
		return
	}
	s := types.ScottishCollections{}
	if src.Scottish != nil {
		s = *src.Scottish
	}
	switch ct {
	case types.CollectionClassification:
		a.Classifications = sandbox.Set(op(cur.Scottish.Classifications, s.Classifications, ids, undo))
	case types.CollectionOrganisation:
		a.Organisations = sandbox.Set(op(cur.Scottish.Organisations, s.Organisations, ids, undo))
	case types.CollectionSuccessor:
		a.SuccessorCrossRefs = sandbox.Set(op(cur.Scottish.SuccessorCrossRefs, s.SuccessorCrossRefs, ids, undo))
	}
}
