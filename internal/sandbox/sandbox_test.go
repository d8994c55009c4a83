package sandbox

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

type recordingMap struct {
	extents [][]types.Extent
	objects []*types.EditObject
}

func (m *recordingMap) SetExtents(e []types.Extent) { m.extents = append(m.extents, e) }
func (m *recordingMap) SetEditObject(o *types.EditObject) { m.objects = append(m.objects, o) }

func sampleProperty() types.Property {
	p := types.NewProperty(types.VariantStandard)
	p.UPRN = 1001
	p.LogicalStatus = types.StatusApproved
	p.BLPUState = types.StateInUse
	p.XCoordinate = 326000.5
	p.LPIs = types.NewCollection(types.LPI{PKID: 1, UPRN: 1001, PAOText: "ROSE COTTAGE"})
	p.Provenances = types.NewCollection(
		types.Provenance{PKID: 1, UPRN: 1001, ProvenanceCode: "T",
			WKTGeometry: "POLYGON((0 0,10 0,10 10,0 10,0 0))"},
		types.Provenance{PKID: 2, UPRN: 1001, ProvenanceCode: "L", ChangeType: types.ChangeDelete,
			WKTGeometry: "POLYGON((5 5,6 5,6 6,5 6,5 5))"},
	)
	p.CrossRefs = types.NewCollection(types.CrossRef{PKID: 1, UPRN: 1001, SourceID: "VOA", CrossReference: "X1"})
	p.Notes = types.NewCollection(types.Note{PKID: 1, UPRN: 1001, SeqNo: 1, Note: "surveyed"})
	return p
}

func TestSetAssociatedOnlyNotesLeavesOtherCollectionsUntouched(t *testing.T) {
	p := sampleProperty()
	sb := New(p, nil, nil)

	notes := p.Notes.Upsert(types.Note{PKID: -10, UPRN: 1001, SeqNo: 2, Note: "new", ChangeType: types.ChangeInsert})
	got, err := sb.SetAssociated(Associated{Notes: Set(notes)})
	require.NoError(t, err)

	assert.Equal(t, 2, got.Notes.Len())
	assert.True(t, p.LPIs.Equal(got.LPIs))
	assert.Equal(t, p.LPIs.All(), got.LPIs.All())
	assert.Equal(t, p.Provenances.All(), got.Provenances.All())
	assert.Equal(t, p.CrossRefs.All(), got.CrossRefs.All())
	assert.Equal(t, p.BLPU, got.BLPU, "scalar fields must be preserved")

	assert.Equal(t, 1, sb.Source().Notes.Len(), "source snapshot must not change")
	assert.Equal(t, 2, sb.Current().Notes.Len())
}

func TestSetAssociatedRejectsScottishCollectionsOnStandardAggregate(t *testing.T) {
	sb := New(sampleProperty(), nil, nil)
	_, err := sb.SetAssociated(Associated{
		Organisations: Set(types.NewCollection(types.Organisation{PKID: -10})),
	})
	assert.ErrorIs(t, err, types.ErrWrongVariant)
	assert.Equal(t, 1, sb.Current().Notes.Len())
}

func TestSetAssociatedScottish(t *testing.T) {
	p := types.NewProperty(types.VariantScottish)
	sb := New(p, nil, nil)

	got, err := sb.SetAssociated(Associated{
		Classifications: Set(types.NewCollection(types.Classification{PKID: -10, BLPUClass: "RD02"})),
	})
	require.NoError(t, err)
	require.NotNil(t, got.Scottish)
	assert.Equal(t, 1, got.Scottish.Classifications.Len())
	assert.Equal(t, 0, sb.Source().Scottish.Classifications.Len())
}

func TestSetAssociatedAndClearProvenanceEmitsExtents(t *testing.T) {
	maps := &recordingMap{}
	p := sampleProperty()
	sb := New(p, maps, nil)
	sb.SetEdit(types.CollectionProvenance, p.Provenances.All()[0])

	provs := p.Provenances.Upsert(types.Provenance{
		PKID: -10, UPRN: 1001, ProvenanceCode: "P", ChangeType: types.ChangeInsert,
	})
	_, err := sb.SetAssociatedAndClear(Associated{Provenances: Set(provs)}, types.CollectionProvenance)
	require.NoError(t, err)

	_, open := sb.ActiveEdit(types.CollectionProvenance)
	assert.False(t, open)

	require.Len(t, maps.extents, 1)
	ext := maps.extents[0]
	require.Len(t, ext, 2, "soft-deleted provenance is not sent")
	assert.Equal(t, int64(1), ext[0].PKID)
	assert.Equal(t, "T", ext[0].Code)
	assert.Equal(t, int64(1001), ext[0].UPRN)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}, ext[0].Bound)
	_, isPolygon := ext[0].Geometry.(orb.Polygon)
	assert.True(t, isPolygon)
	assert.Equal(t, int64(-10), ext[1].PKID)
	assert.Nil(t, ext[1].Geometry)
}

func TestSetAssociatedAndClearOtherCollectionDoesNotTouchMap(t *testing.T) {
	maps := &recordingMap{}
	p := sampleProperty()
	sb := New(p, maps, nil)
	sb.SetEdit(types.CollectionNote, p.Notes.All()[0])
	sb.SetEdit(types.CollectionLPI, p.LPIs.All()[0])

	_, err := sb.SetAssociatedAndClear(Associated{Notes: Set(p.Notes)}, types.CollectionNote)
	require.NoError(t, err)

	_, noteOpen := sb.ActiveEdit(types.CollectionNote)
	_, lpiOpen := sb.ActiveEdit(types.CollectionLPI)
	assert.False(t, noteOpen)
	assert.True(t, lpiOpen)
	assert.Empty(t, maps.extents)
}

func TestActiveTypedAccess(t *testing.T) {
	sb := New(sampleProperty(), nil, nil)
	sb.SetEdit(types.CollectionLPI, types.LPI{PKID: 1, PAOText: "EDITED"})

	lpi, ok := Active[types.LPI](sb, types.CollectionLPI)
	require.True(t, ok)
	assert.Equal(t, "EDITED", lpi.PAOText)

	_, ok = Active[types.Note](sb, types.CollectionLPI)
	assert.False(t, ok, "wrong type is reported as absent")
}

func TestRevertRestoresSource(t *testing.T) {
	maps := &recordingMap{}
	p := sampleProperty()
	sb := New(p, maps, nil)

	_, err := sb.SetAssociated(Associated{Notes: Set(types.NewCollection[types.Note]())})
	require.NoError(t, err)
	sb.SetEdit(types.CollectionNote, types.Note{PKID: 1})
	b := sb.Current().BLPU
	b.BLPUState = types.StateUnoccupied
	sb.SetBLPU(b)

	got := sb.Revert()
	assert.Equal(t, 1, got.Notes.Len())
	assert.Equal(t, types.StateInUse, got.BLPUState)
	_, open := sb.ActiveEdit(types.CollectionNote)
	assert.False(t, open)
	assert.Len(t, maps.extents, 1)
}

func TestCommitInstallsSavedSnapshot(t *testing.T) {
	sb := New(types.NewProperty(types.VariantStandard), nil, nil)
	saved := sampleProperty()
	sb.Commit(saved)

	assert.Equal(t, int64(1001), sb.Source().UPRN)
	assert.Equal(t, int64(1001), sb.Current().UPRN)
}

func TestReplaceKeepsVariant(t *testing.T) {
	sb := New(sampleProperty(), nil, nil)
	assert.ErrorIs(t, sb.Replace(types.NewProperty(types.VariantScottish)), types.ErrWrongVariant)
}

func TestUpsertMergesTypedRecords(t *testing.T) {
	sb := New(sampleProperty(), nil, nil)

	got, err := sb.Upsert(
		types.LPI{PKID: 1, UPRN: 1001, PAOText: "ROSE VILLA", ChangeType: types.ChangeUpdate},
		types.Note{PKID: -10, SeqNo: 2, ChangeType: types.ChangeInsert},
		types.Note{PKID: -11, SeqNo: 3, ChangeType: types.ChangeInsert},
	)
	require.NoError(t, err)
	lpi, _ := got.LPIs.Get(1)
	assert.Equal(t, "ROSE VILLA", lpi.PAOText)
	assert.Equal(t, []int64{1, -10, -11}, got.Notes.Keys())

	_, err = sb.Upsert(types.Organisation{PKID: -10})
	assert.ErrorIs(t, err, types.ErrWrongVariant)
	_, err = sb.Upsert("not a record")
	assert.ErrorIs(t, err, types.ErrUnknownCollection)
}

func TestOpenEditFollowsMerges(t *testing.T) {
	p := sampleProperty()
	sb := New(p, nil, nil)
	lpi := p.LPIs.All()[0]
	note := p.Notes.All()[0]
	sb.SetEdit(types.CollectionLPI, lpi)
	edited := note
	edited.Note = "half typed"
	sb.SetEdit(types.CollectionNote, edited)

	moved := lpi
	moved.PAOText = "MIRRORED"
	_, err := sb.Upsert(moved)
	require.NoError(t, err)
	got, ok := Active[types.LPI](sb, types.CollectionLPI)
	require.True(t, ok)
	assert.Equal(t, "MIRRORED", got.PAOText)

	next := sb.Current()
	n := next.Notes.All()[0]
	n.SeqNo = 9
	next.Notes = next.Notes.Upsert(n)
	require.NoError(t, sb.Replace(next))
	kept, ok := Active[types.Note](sb, types.CollectionNote)
	require.True(t, ok)
	assert.Equal(t, "half typed", kept.Note, "edited slot is not overwritten")
	assert.Equal(t, []types.CollectionType{types.CollectionNote}, sb.PendingEdits())
	assert.True(t, sb.Dirty())
}
