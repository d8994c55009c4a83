package form

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/internal/bilingual"
	"github.com/mesh-intelligence/gazetteer/internal/changes"
	"github.com/mesh-intelligence/gazetteer/internal/sandbox"
	"github.com/mesh-intelligence/gazetteer/internal/search"
	"github.com/mesh-intelligence/gazetteer/internal/status"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// ApplyEdit merges a finished record edit into the current snapshot and
// closes the collection's active edit. The record must already exist in the
// snapshot; drafts are added by OpenRecord.
//
// LPI edits run in two phases: the field changes are taken as given, then
// the display address is recomputed and awaited before anything is merged.
// The language-independent fields of a bilingual partner are kept in step.
func (f *Form) ApplyEdit(ctx context.Context, rec any) (types.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ct, pkID, err := identify(rec)
	if err != nil {
		return types.Property{}, err
	}
	cur := f.sb.Current()
	prev, ok := cur.Record(ct, pkID)
	if !ok {
		return types.Property{}, fmt.Errorf("%w: %s %d", types.ErrRecordNotFound, ct, pkID)
	}
	if !changes.RecordChangedAny(prev, rec) {
		f.sb.ClearEdit(ct)
		return cur, nil
	}
	rec = touch(rec)
	recs := []any{rec}

	if lpi, ok := rec.(types.LPI); ok {
		lpi = f.recompute(ctx, lpi)
		recs[0] = lpi

		pair, paired, err := f.links.PairOf(cur, lpi)
		if err != nil {
			return types.Property{}, err
		}
		if paired {
			partner, _ := cur.LPIs.Get(pair.Partner)
			partner = bilingual.Mirror(lpi, partner)
			recs = append(recs, f.recompute(ctx, partner))
		}
	}

	p, err := f.sb.UpsertAndClear(ct, recs...)
	if err != nil {
		return types.Property{}, err
	}
	f.tabs.Sync()
	f.log.Debug("record updated", zap.String("collection", string(ct)), zap.Int64("pkId", pkID))
	return p, nil
}

func (f *Form) recompute(ctx context.Context, lpi types.LPI) types.LPI {
	if f.cfg.Address == nil {
		return lpi
	}
	return f.cfg.Address.Recompute(ctx, lpi)
}

// Save validates the current snapshot and persists it. Only one save may be
// in flight; a second call fails with ErrSaveInProgress. On failure the
// sandbox is left exactly as it was so the user can retry.
//
// Returns ErrPendingEdit if an open record has edits not yet applied with
// ApplyEdit; they are neither saved nor dropped.
// Returns ErrNoChanges if a saved property has no unsaved changes.
// Returns ErrValidationFailed if the aggregate does not validate.
func (f *Form) Save(ctx context.Context) (types.Property, error) {
	if !f.saving.CompareAndSwap(false, true) {
		return types.Property{}, types.ErrSaveInProgress
	}
	defer f.saving.Store(false)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked(ctx)
}

func (f *Form) saveLocked(ctx context.Context) (types.Property, error) {
	if pending := f.sb.PendingEdits(); len(pending) > 0 {
		f.alert = Alert{Kind: AlertValidation, Err: types.ErrPendingEdit}
		return types.Property{}, fmt.Errorf("%w: %s", types.ErrPendingEdit, pending[0].Label())
	}
	src := f.sb.Source()
	cur := f.sb.Current()
	if !cur.IsNew() && !f.geometryChanged && !changes.HasChanged(src, cur) {
		return cur, types.ErrNoChanges
	}

	if !f.cfg.Validator.Validate(cur) {
		f.alert = Alert{Kind: AlertValidation, Err: types.ErrValidationFailed}
		return types.Property{}, types.ErrValidationFailed
	}

	isNew := cur.IsNew()
	if isNew {
		cur.ChangeType = types.ChangeInsert
	} else {
		cur.ChangeType = cur.ChangeType.Touched()
	}
	cur.LastUpdateDate = f.cfg.Now()
	cur.LastUser = f.cfg.Settings.User

	saved, err := f.cfg.Store.Save(ctx, cur, isNew)
	if err != nil {
		kind := AlertFailedToSave
		if errors.Is(err, types.ErrValidationFailed) {
			kind = AlertFailedToValidate
		}
		f.alert = Alert{Kind: kind, Err: err}
		f.log.Error("save failed", zap.Bool("new", isNew), zap.Error(err))
		return types.Property{}, fmt.Errorf("save property: %w", err)
	}

	f.sb.Commit(saved)
	f.tabs.Reset()
	f.geometryChanged = false
	f.alert = Alert{}
	if f.cfg.Search != nil {
		f.cfg.Search.Upsert(search.Summarize(saved))
	}
	f.log.Info("property saved", zap.Int64("saved", saved.UPRN), zap.Bool("new", isNew))
	return saved, nil
}

// SaveCascade saves and then copies the property's PAO onto the LPIs of its
// child properties. The PAO is taken from the first live English LPI.
func (f *Form) SaveCascade(ctx context.Context) (types.Property, error) {
	if !f.saving.CompareAndSwap(false, true) {
		return types.Property{}, types.ErrSaveInProgress
	}
	defer f.saving.Store(false)

	f.mu.Lock()
	defer f.mu.Unlock()

	saved, err := f.saveLocked(ctx)
	if err != nil {
		return types.Property{}, err
	}
	pao, ok := primaryPAO(saved)
	if !ok {
		return saved, nil
	}

	touched, err := f.cfg.Store.UpdateChildrenPAO(ctx, saved.UPRN, pao)
	if err != nil {
		f.alert = Alert{Kind: AlertFailedToSave, Err: err}
		f.log.Error("child PAO update failed", zap.Error(err))
		return saved, fmt.Errorf("update child PAO: %w", err)
	}
	if f.cfg.Search != nil {
		for _, uprn := range touched {
			child, err := f.cfg.Store.Fetch(ctx, uprn)
			if err != nil {
				f.log.Warn("child not refreshed in search", zap.Int64("child", uprn), zap.Error(err))
				continue
			}
			f.cfg.Search.Upsert(search.Summarize(child))
		}
	}
	f.log.Info("child PAO updated", zap.Int64s("children", touched))
	return saved, nil
}

func primaryPAO(p types.Property) (types.PAO, bool) {
	live := p.LPIs.Live()
	for _, l := range live {
		if l.Language == types.LanguageEnglish {
			return l.PAO(), true
		}
	}
	if len(live) > 0 {
		return live[0].PAO(), true
	}
	return types.PAO{}, false
}

// Cancel discards every unsaved edit and returns the source snapshot.
func (f *Form) Cancel() types.Property {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geometryChanged = false
	f.alert = Alert{}
	f.tabs.Reset()
	return f.sb.Revert()
}

// Leave reports whether the form may be closed. A dirty form asks the
// confirmer to discard, save, or save and cascade a parent PAO change to the
// children; any other answer keeps the form open. Without a confirmer a
// dirty form cannot be left. An open record edit not yet applied counts as
// unsaved.
func (f *Form) Leave(ctx context.Context) (bool, error) {
	f.mu.Lock()
	st := f.sb.State()
	geometry := f.geometryChanged
	f.mu.Unlock()

	if !changes.IsDirty(st, geometry) {
		return true, nil
	}
	if f.cfg.Confirmer == nil {
		return false, nil
	}

	changed := changes.ChangedAssociatedRecords(st, geometry)
	cascade := changes.HasParentPaoChanged(st.Current.ChildCount, st.Source, st.Current)
	outcome, err := f.cfg.Confirmer.ConfirmLeave(ctx, changed, cascade)
	if err != nil {
		return false, fmt.Errorf("confirm leave: %w", err)
	}

	switch outcome {
	case types.OutcomeDiscard:
		f.Cancel()
		return true, nil
	case types.OutcomeSave:
		_, err := f.Save(ctx)
		return err == nil, err
	case types.OutcomeSaveCascade:
		_, err := f.SaveCascade(ctx)
		return err == nil, err
	}
	return false, nil
}

// ApplyStatus moves the property to newStatus. Making a property historic
// is confirmed first; if the confirmer does not answer continue, nothing
// changes and applied is false. Without a confirmer the move to historic is
// refused the same way. Nothing is saved.
func (f *Form) ApplyStatus(ctx context.Context, newStatus int) (p types.Property, applied bool, err error) {
	cur := f.Property()
	if status.RequiresConfirmation(cur.LogicalStatus, newStatus) {
		if f.cfg.Confirmer == nil {
			return cur, false, nil
		}
		outcome, err := f.cfg.Confirmer.ConfirmHistoric(ctx)
		if err != nil {
			return types.Property{}, false, fmt.Errorf("confirm historic: %w", err)
		}
		if outcome != types.OutcomeContinue {
			return cur, false, nil
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := status.Apply(f.sb.Current(), newStatus, f.cfg.Now())
	if err != nil {
		return types.Property{}, false, err
	}
	if err := f.sb.Replace(next); err != nil {
		return types.Property{}, false, err
	}
	f.log.Info("logical status changed",
		zap.Int("from", cur.LogicalStatus), zap.Int("to", newStatus))
	return next, true, nil
}

// ReconcileGeometry applies a polygon drawn on the map to a provenance. It
// reports false and changes nothing when the geometry equals the stored one.
func (f *Form) ReconcileGeometry(pkID int64, wktText string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur := f.sb.Current()
	prov, ok := cur.Provenances.Get(pkID)
	if !ok || prov.ChangeType == types.ChangeDelete {
		return false, fmt.Errorf("%w: provenance %d", types.ErrRecordNotFound, pkID)
	}
	g, err := wkt.Unmarshal(wktText)
	if err != nil {
		return false, fmt.Errorf("decode geometry: %w", err)
	}
	if prov.WKTGeometry != "" {
		if old, err := wkt.Unmarshal(prov.WKTGeometry); err == nil && orb.Equal(old, g) {
			return false, nil
		}
	}

	prov.WKTGeometry = wkt.MarshalString(g)
	prov.ChangeType = prov.ChangeType.Touched()
	if _, err := f.sb.Upsert(prov); err != nil {
		return false, err
	}
	if open, ok := sandbox.Active[types.Provenance](f.sb, types.CollectionProvenance); ok && open.PKID == pkID {
		open.WKTGeometry = prov.WKTGeometry
		open.ChangeType = prov.ChangeType
		f.sb.SetEdit(types.CollectionProvenance, open)
	}
	f.sb.EmitExtents()
	f.geometryChanged = true
	return true, nil
}

// DeleteRecords deletes child records and keeps open detail views in step.
func (f *Form) DeleteRecords(ct types.CollectionType, ids ...int64) (types.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.del.DeleteMany(ct, ids)
	if err != nil {
		return types.Property{}, err
	}
	f.tabs.Sync()
	return p, nil
}

// RestoreRecord undoes the soft delete of a child record.
func (f *Form) RestoreRecord(ct types.CollectionType, pkID int64) (types.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.del.Restore(ct, pkID)
	if err != nil {
		return types.Property{}, err
	}
	f.tabs.Sync()
	return p, nil
}

// DeleteProperty deletes the saved property, and its descendants when
// cascade is set. The search and map caches are only updated once the store
// has confirmed the delete.
// Returns ErrNotFound for a property that was never saved.
func (f *Form) DeleteProperty(ctx context.Context, cascade bool) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	src := f.sb.Source()
	if src.IsNew() {
		return nil, fmt.Errorf("delete: %w", types.ErrNotFound)
	}
	removed, err := f.cfg.Store.Delete(ctx, src.UPRN, cascade)
	if err != nil {
		f.alert = Alert{Kind: AlertFailedToDelete, Err: err}
		f.log.Error("delete failed", zap.Bool("cascade", cascade), zap.Error(err))
		return nil, fmt.Errorf("delete property %d: %w", src.UPRN, err)
	}

	if f.cfg.Search != nil {
		f.cfg.Search.Remove(removed...)
	}
	if f.cfg.Maps != nil {
		f.cfg.Maps.SetExtents(nil)
		f.cfg.Maps.SetEditObject(nil)
	}
	f.log.Info("property deleted", zap.Int64s("removed", removed))
	return removed, nil
}

// identify returns the collection and key of a record value.
func identify(rec any) (types.CollectionType, int64, error) {
	switch r := rec.(type) {
	case types.LPI:
		return types.CollectionLPI, r.PKID, nil
	case types.Provenance:
		return types.CollectionProvenance, r.PKID, nil
	case types.CrossRef:
		return types.CollectionCrossRef, r.PKID, nil
	case types.Classification:
		return types.CollectionClassification, r.PKID, nil
	case types.Organisation:
		return types.CollectionOrganisation, r.PKID, nil
	case types.SuccessorCrossRef:
		return types.CollectionSuccessor, r.PKID, nil
	case types.Note:
		return types.CollectionNote, r.PKID, nil
	}
	return "", 0, fmt.Errorf("%w: %T", types.ErrUnknownCollection, rec)
}

// touch marks an edited record updated. Drafts stay inserts.
func touch(rec any) any {
	switch r := rec.(type) {
	case types.LPI:
		return r.WithChange(r.ChangeType.Touched())
	case types.Provenance:
		return r.WithChange(r.ChangeType.Touched())
	case types.CrossRef:
		return r.WithChange(r.ChangeType.Touched())
	case types.Classification:
		return r.WithChange(r.ChangeType.Touched())
	case types.Organisation:
		return r.WithChange(r.ChangeType.Touched())
	case types.SuccessorCrossRef:
		return r.WithChange(r.ChangeType.Touched())
	case types.Note:
		return r.WithChange(r.ChangeType.Touched())
	}
	return rec
}
