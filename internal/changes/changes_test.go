package changes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

var day = time.Date(2023, 11, 2, 0, 0, 0, 0, time.UTC)

func baseProperty() types.Property {
	p := types.NewProperty(types.VariantStandard)
	p.UPRN = 5000
	p.LogicalStatus = types.StatusApproved
	p.LPIs = types.NewCollection(
		types.LPI{PKID: 1, UPRN: 5000, PAOStartNumber: 12, PAOText: "", StartDate: day,
			LastUpdateDate: day, Address: "12 HIGH STREET"},
	)
	p.Provenances = types.NewCollection(types.Provenance{PKID: 1, UPRN: 5000, ProvenanceCode: "T", StartDate: day})
	p.CrossRefs = types.NewCollection(types.CrossRef{PKID: 1, UPRN: 5000, SourceID: "VOA", CrossReference: "A1"})
	p.Notes = types.NewCollection(types.Note{PKID: 1, UPRN: 5000, SeqNo: 1, Note: "n"})
	return p
}

func TestHasChangedIgnoresVolatileFields(t *testing.T) {
	src := baseProperty()

	cur := src.Clone()
	lpi, _ := cur.LPIs.Get(1)
	lpi.LastUpdateDate = day.Add(48 * time.Hour)
	lpi.LastUser = "someone"
	lpi.Address = "12 HIGH ST"
	cur.LPIs = cur.LPIs.Upsert(lpi)
	cur.LastUpdateDate = day.Add(time.Hour)
	assert.False(t, HasChanged(src, cur), "volatile-only edits are not changes")

	lpi.StartDate = day.Add(24 * time.Hour)
	cur.LPIs = cur.LPIs.Upsert(lpi)
	assert.True(t, HasChanged(src, cur), "startDate is a real change")
}

func TestHasChangedDetectsScalarAndCollectionChanges(t *testing.T) {
	src := baseProperty()

	cur := src.Clone()
	cur.BLPUState = types.StateUnoccupied
	assert.True(t, HasChanged(src, cur))

	cur = src.Clone()
	cur.Notes = cur.Notes.Upsert(types.Note{PKID: -10, SeqNo: 2, ChangeType: types.ChangeInsert})
	assert.True(t, HasChanged(src, cur))

	cur = src.Clone()
	cur.CrossRefs = cur.CrossRefs.Map(func(x types.CrossRef) types.CrossRef {
		return x.WithChange(types.ChangeDelete)
	})
	assert.True(t, HasChanged(src, cur), "soft delete is a change")

	assert.False(t, HasChanged(src, src.Clone()))
}

func TestHasChangedScottishCollections(t *testing.T) {
	src := types.NewProperty(types.VariantScottish)
	cur := src.Clone()
	cur.Scottish.Organisations = types.NewCollection(types.Organisation{PKID: -10, Organisation: "X"})
	assert.True(t, HasChanged(src, cur))
	assert.False(t, HasChanged(src, src.Clone()))
}

func TestNewPropertyWithDraftLPIIsChanged(t *testing.T) {
	src := types.NewProperty(types.VariantStandard)
	cur := src.Clone()
	cur.LPIs = types.NewCollection(types.LPI{PKID: -10, ChangeType: types.ChangeInsert})
	assert.True(t, HasChanged(src, cur))
}

func TestRecordChangedAny(t *testing.T) {
	a := types.Note{PKID: 1, Note: "x", LastUser: "a"}
	b := types.Note{PKID: 1, Note: "x", LastUser: "b"}
	assert.False(t, RecordChangedAny(a, b))
	assert.True(t, RecordChangedAny(a, types.Note{PKID: 1, Note: "y"}))
	assert.True(t, RecordChangedAny(a, types.LPI{PKID: 1}))
	assert.True(t, RecordChangedAny("nonsense", a))
}

func TestChangedAssociatedRecords(t *testing.T) {
	src := baseProperty()

	tests := []struct {
		name     string
		mutate   func(st *State)
		geometry bool
		want     []string
	}{
		{
			name:   "nothing changed",
			mutate: func(*State) {},
			want:   nil,
		},
		{
			name: "merged cross reference change",
			mutate: func(st *State) {
				st.Current.CrossRefs = st.Current.CrossRefs.Upsert(
					types.CrossRef{PKID: 1, UPRN: 5000, SourceID: "VOA", CrossReference: "A2", ChangeType: types.ChangeUpdate})
			},
			want: []string{"Cross reference"},
		},
		{
			name: "unmerged note edit",
			mutate: func(st *State) {
				st.Active[types.CollectionNote] = types.Note{PKID: 1, UPRN: 5000, SeqNo: 1, Note: "edited"}
			},
			want: []string{"Note"},
		},
		{
			name: "open but unedited record",
			mutate: func(st *State) {
				n, _ := st.Current.Notes.Get(1)
				st.Active[types.CollectionNote] = n
			},
			want: nil,
		},
		{
			name:     "geometry flag marks provenance",
			mutate:   func(*State) {},
			geometry: true,
			want:     []string{"Provenance"},
		},
		{
			name: "several collections in display order",
			mutate: func(st *State) {
				st.Current.Notes = types.NewCollection[types.Note]()
				st.Current.LPIs = st.Current.LPIs.Map(func(l types.LPI) types.LPI {
					l.PAOText = "MILL"
					return l
				})
			},
			want: []string{"LPI", "Note"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := State{Source: src, Current: src.Clone(), Active: map[types.CollectionType]any{}}
			tt.mutate(&st)
			assert.Equal(t, tt.want, ChangedAssociatedRecords(st, tt.geometry))
		})
	}
}

func TestChangedAssociatedRecordsScottish(t *testing.T) {
	src := types.NewProperty(types.VariantScottish)
	cur := src.Clone()
	cur.Scottish.SuccessorCrossRefs = types.NewCollection(types.SuccessorCrossRef{PKID: -10})

	got := ChangedAssociatedRecords(State{Source: src, Current: cur}, false)
	assert.Equal(t, []string{"Successor cross reference"}, got)
}

func TestHasParentPaoChanged(t *testing.T) {
	src := baseProperty()
	renamed := src.Clone()
	renamed.LPIs = renamed.LPIs.Map(func(l types.LPI) types.LPI {
		return l.WithPAO(types.PAO{StartNumber: 12, StartSuffix: "A"})
	})
	saoOnly := src.Clone()
	saoOnly.LPIs = saoOnly.LPIs.Map(func(l types.LPI) types.LPI {
		l.SAOText = "FLAT 1"
		return l
	})
	added := src.Clone()
	added.LPIs = added.LPIs.Upsert(types.LPI{PKID: -10, PAOText: "NEW"})

	assert.True(t, HasParentPaoChanged(2, src, renamed))
	assert.False(t, HasParentPaoChanged(0, src, renamed), "no children, nothing to cascade")
	assert.False(t, HasParentPaoChanged(2, src, saoOnly))
	assert.False(t, HasParentPaoChanged(2, src, added))
}

func TestPendingEditsAndIsDirty(t *testing.T) {
	src := baseProperty()
	lpi, _ := src.LPIs.Get(1)
	note, _ := src.Notes.Get(1)

	st := State{Source: src, Current: src.Clone(), Active: map[types.CollectionType]any{
		types.CollectionLPI:  lpi,
		types.CollectionNote: note,
	}}
	assert.Empty(t, PendingEdits(st), "open but untouched")
	assert.False(t, IsDirty(st, false))
	assert.True(t, IsDirty(st, true))

	note.Note = "typed"
	st.Active[types.CollectionNote] = note
	lpi.Address = "volatile only"
	st.Active[types.CollectionLPI] = lpi
	assert.Equal(t, []types.CollectionType{types.CollectionNote}, PendingEdits(st))
	assert.True(t, IsDirty(st, false))
	assert.Equal(t, []string{"Note"}, ChangedAssociatedRecords(st, false))

	st.Active = map[types.CollectionType]any{types.CollectionCrossRef: types.CrossRef{PKID: 7}}
	assert.Equal(t, []types.CollectionType{types.CollectionCrossRef}, PendingEdits(st), "record gone from the snapshot")
}
