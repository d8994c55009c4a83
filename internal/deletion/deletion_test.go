package deletion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/gazetteer/internal/sandbox"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

type extentRecorder struct {
	calls [][]types.Extent
}

func (r *extentRecorder) SetExtents(e []types.Extent) { r.calls = append(r.calls, e) }
func (r *extentRecorder) SetEditObject(*types.EditObject) {}

func bilingualProperty() types.Property {
	p := types.NewProperty(types.VariantStandard)
	p.UPRN = 77
	p.LPIs = types.NewCollection(
		types.LPI{PKID: 1, UPRN: 77, LPIKey: "A", Language: types.LanguageEnglish, DualLanguageLink: 1},
		types.LPI{PKID: 2, UPRN: 77, LPIKey: "B", Language: types.LanguageWelsh, DualLanguageLink: 1},
		types.LPI{PKID: 3, UPRN: 77, LPIKey: "C", Language: types.LanguageEnglish},
	)
	p.CrossRefs = types.NewCollection(
		types.CrossRef{PKID: 1, UPRN: 77, SourceID: "VOA", CrossReference: "V1"},
		types.CrossRef{PKID: 2, UPRN: 77, SourceID: types.DefaultBilingualSourceID, CrossReference: "AB"},
	)
	p.Provenances = types.NewCollection(
		types.Provenance{PKID: 5, UPRN: 77, ProvenanceCode: "T", WKTGeometry: "POLYGON((0 0,1 0,1 1,0 1,0 0))"},
		types.Provenance{PKID: -3, UPRN: 77, ProvenanceCode: "L", ChangeType: types.ChangeInsert},
	)
	return p
}

func newHandler(p types.Property) (*Handler, *sandbox.Sandbox, *extentRecorder) {
	rec := &extentRecorder{}
	sb := sandbox.New(p, rec, nil)
	return New(sb, "", nil), sb, rec
}

func TestSoftAndHardDelete(t *testing.T) {
	h, sb, rec := newHandler(bilingualProperty())

	got, err := h.Delete(types.CollectionProvenance, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Provenances.Len(), "soft delete keeps the record")
	soft, _ := got.Provenances.Get(5)
	assert.Equal(t, types.ChangeDelete, soft.ChangeType)
	assert.Equal(t, "T", soft.ProvenanceCode, "fields kept for audit")

	got, err = h.Delete(types.CollectionProvenance, -3)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Provenances.Len(), "hard delete removes the draft")
	assert.False(t, got.Provenances.Has(-3))
	assert.Equal(t, 0, got.Provenances.LiveLen())

	require.Len(t, rec.calls, 2, "each provenance delete re-emits extents")
	assert.Empty(t, rec.calls[1])
	assert.Equal(t, 2, sb.Source().Provenances.Len(), "source is untouched")
}

func TestDeleteBilingualLPICascades(t *testing.T) {
	h, _, _ := newHandler(bilingualProperty())

	got, err := h.Delete(types.CollectionLPI, 1)
	require.NoError(t, err)

	english, _ := got.LPIs.Get(1)
	welsh, _ := got.LPIs.Get(2)
	other, _ := got.LPIs.Get(3)
	link, _ := got.CrossRefs.Get(2)
	voa, _ := got.CrossRefs.Get(1)

	assert.Equal(t, types.ChangeDelete, english.ChangeType)
	assert.Equal(t, types.ChangeDelete, welsh.ChangeType)
	assert.Equal(t, types.ChangeDelete, link.ChangeType)
	assert.Equal(t, types.ChangeNone, other.ChangeType)
	assert.Equal(t, types.ChangeNone, voa.ChangeType)
}

func TestDeleteBilingualCrossRefCascadesToBothLPIs(t *testing.T) {
	h, _, _ := newHandler(bilingualProperty())

	got, err := h.Delete(types.CollectionCrossRef, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LPIs.LiveLen())
	assert.Equal(t, 1, got.CrossRefs.LiveLen())
}

func TestDeleteDraftBilingualPairByLink(t *testing.T) {
	p := types.NewProperty(types.VariantStandard)
	p.LPIs = types.NewCollection(
		types.LPI{PKID: -10, Language: types.LanguageEnglish, DualLanguageLink: 1, ChangeType: types.ChangeInsert},
		types.LPI{PKID: -11, Language: types.LanguageWelsh, DualLanguageLink: 1, ChangeType: types.ChangeInsert},
	)
	h, _, _ := newHandler(p)

	got, err := h.Delete(types.CollectionLPI, -11)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LPIs.Len())
}

func TestDeleteMissingBilingualPartnerChangesNothing(t *testing.T) {
	p := bilingualProperty()
	p.LPIs = p.LPIs.Remove(2)
	h, sb, _ := newHandler(p)

	_, err := h.Delete(types.CollectionLPI, 1)
	assert.ErrorIs(t, err, types.ErrMissingPair)
	assert.False(t, sb.Dirty())
}

func TestDeleteManyClassifications(t *testing.T) {
	p := types.NewProperty(types.VariantScottish)
	p.Scottish.Classifications = types.NewCollection(
		types.Classification{PKID: 1, BLPUClass: "RD04"},
		types.Classification{PKID: 2, BLPUClass: "CO01"},
	)
	h, sb, _ := newHandler(p)
	sb.SetEdit(types.CollectionClassification, types.Classification{PKID: 2, BLPUClass: "CO02"})

	got, err := h.DeleteMany(types.CollectionClassification, []int64{1, 2})
	require.NoError(t, err)

	c := got.Scottish.Classifications
	assert.Equal(t, 2, c.Len())
	for _, r := range c.All() {
		assert.Equal(t, types.ChangeDelete, r.ChangeType)
	}
	assert.Empty(t, c.Live(), "list view renders no rows")

	_, open := sb.ActiveEdit(types.CollectionClassification)
	assert.False(t, open, "open edit of a deleted record is closed")
}

func TestDeleteErrors(t *testing.T) {
	h, sb, _ := newHandler(bilingualProperty())

	_, err := h.Delete(types.CollectionNote, 9)
	assert.ErrorIs(t, err, types.ErrRecordNotFound)

	_, err = h.DeleteMany(types.CollectionCrossRef, []int64{1, 0})
	assert.ErrorIs(t, err, types.ErrInvalidKey)

	_, err = h.Delete(types.CollectionOrganisation, 1)
	assert.ErrorIs(t, err, types.ErrWrongVariant)

	assert.False(t, sb.Dirty(), "failed deletes leave the sandbox alone")
}

func TestRestoreUndoesSoftDelete(t *testing.T) {
	p := bilingualProperty()
	p.CrossRefs = p.CrossRefs.Map(func(x types.CrossRef) types.CrossRef {
		if x.PKID == 1 {
			return x.WithChange(types.ChangeUpdate)
		}
		return x
	})
	h, sb, _ := newHandler(p)

	_, err := h.Delete(types.CollectionLPI, 2)
	require.NoError(t, err)
	require.True(t, sb.Dirty())

	got, err := h.Restore(types.CollectionLPI, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got.LPIs.LiveLen())
	assert.Equal(t, 2, got.CrossRefs.LiveLen())
	assert.False(t, sb.Dirty(), "restore returns to the source state")

	_, err = h.Delete(types.CollectionCrossRef, 1)
	require.NoError(t, err)
	got, err = h.Restore(types.CollectionCrossRef, 1)
	require.NoError(t, err)
	x, _ := got.CrossRefs.Get(1)
	assert.Equal(t, types.ChangeUpdate, x.ChangeType)
}
