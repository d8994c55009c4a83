package tabs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/gazetteer/internal/factory"
	"github.com/mesh-intelligence/gazetteer/internal/sandbox"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

type stubValidator struct {
	ok    bool
	calls int
	errs  map[types.CollectionType][]types.FieldError
}

func (v *stubValidator) Validate(types.Property) bool {
	v.calls++
	return v.ok
}

func (v *stubValidator) Errors(ct types.CollectionType, index int) []types.FieldError {
	var out []types.FieldError
	for _, e := range v.errs[ct] {
		if e.Index == index {
			out = append(out, e)
		}
	}
	return out
}

type focusLog struct{ groups []string }

func (f *focusLog) Focus(group string) { f.groups = append(f.groups, group) }

type mapLog struct{ objects []*types.EditObject }

func (m *mapLog) SetExtents([]types.Extent) {}
func (m *mapLog) SetEditObject(o *types.EditObject) { m.objects = append(m.objects, o) }

type fixture struct {
	m     *Machine
	sb    *sandbox.Sandbox
	val   *stubValidator
	focus *focusLog
	maps  *mapLog
}

func newFixture(p types.Property) fixture {
	sb := sandbox.New(p, nil, nil)
	val := &stubValidator{ok: true}
	focus := &focusLog{}
	maps := &mapLog{}
	clock := func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	m := New(Config{
		Variant:   p.Variant(),
		Sandbox:   sb,
		Validator: val,
		Factory:   factory.New(factory.Settings{User: "tester"}, clock),
		Maps:      maps,
		Edit:      focus,
	})
	return fixture{m: m, sb: sb, val: val, focus: focus, maps: maps}
}

func property() types.Property {
	p := types.NewProperty(types.VariantStandard)
	p.UPRN = 31
	p.LPIs = types.NewCollection(
		types.LPI{PKID: 1, UPRN: 31, PAOText: "MILL HOUSE"},
		types.LPI{PKID: 2, UPRN: 31, PAOText: "OLD MILL", ChangeType: types.ChangeDelete},
		types.LPI{PKID: 3, UPRN: 31, PAOText: "MILL BARN"},
	)
	p.Notes = types.NewCollection(types.Note{PKID: 1, UPRN: 31, SeqNo: 1, Note: "first"})
	return p
}

func TestLayout(t *testing.T) {
	std := Layout(types.VariantStandard)
	sco := Layout(types.VariantScottish)

	require.Len(t, std, 6)
	require.Len(t, sco, 9)
	for i, tab := range std[1:] {
		assert.Equal(t, tab, sco[i+4], "scottish tabs shift the standard ones by 3")
	}
	assert.Equal(t, TabClassification, sco[1])

	m := New(Config{Variant: types.VariantScottish, Sandbox: sandbox.New(types.NewProperty(types.VariantScottish), nil, nil)})
	assert.Equal(t, 4, m.IndexOf(types.CollectionProvenance))
	assert.Equal(t, 3, m.IndexOf(types.CollectionSuccessor))

	m = New(Config{Variant: types.VariantStandard, Sandbox: sandbox.New(property(), nil, nil)})
	assert.Equal(t, 1, m.IndexOf(types.CollectionProvenance))
	assert.Equal(t, -1, m.IndexOf(types.CollectionOrganisation))
}

func TestTabChangeWithoutOpenRecordSkipsValidation(t *testing.T) {
	f := newFixture(property())
	f.val.ok = false
	_, err := f.sb.Upsert(types.Note{PKID: 1, UPRN: 31, SeqNo: 1, Note: "changed"})
	require.NoError(t, err)

	require.NoError(t, f.m.RequestTabChange(4))
	assert.Equal(t, TabNotes, f.m.CurrentTab())
	assert.Zero(t, f.val.calls)
}

func TestTabChangeBlockedWhenDirtyAndInvalid(t *testing.T) {
	f := newFixture(property())
	_, err := f.m.RequestRecordOpen(types.CollectionLPI, 1, 0, 2)
	require.NoError(t, err)

	edited := types.LPI{PKID: 1, UPRN: 31, PAOText: ""}
	f.sb.SetEdit(types.CollectionLPI, edited)
	_, err = f.sb.Upsert(edited)
	require.NoError(t, err)

	f.val.ok = false
	err = f.m.RequestTabChange(2)
	assert.ErrorIs(t, err, types.ErrValidationFailed)
	assert.Equal(t, 0, f.m.Current())

	f.val.ok = true
	require.NoError(t, f.m.RequestTabChange(2))
	assert.Equal(t, TabCrossRef, f.m.CurrentTab())
}

func TestTabChangeResumesInProgressEdit(t *testing.T) {
	f := newFixture(property())
	_, err := f.m.RequestRecordOpen(types.CollectionNote, 1, 0, 1)
	require.NoError(t, err)
	f.sb.SetEdit(types.CollectionNote, types.Note{PKID: 1, UPRN: 31, SeqNo: 1, Note: "half typed"})

	require.NoError(t, f.m.RequestTabChange(0))
	rec, err := f.m.RequestRecordOpen(types.CollectionNote, 1, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "half typed", rec.(types.Note).Note)
}

func TestRecordOpenNewDraft(t *testing.T) {
	f := newFixture(property())

	rec, err := f.m.RequestRecordOpen(types.CollectionLPI, 0, 0, 0)
	require.NoError(t, err)
	lpi := rec.(types.LPI)
	assert.Equal(t, int64(-10), lpi.PKID)
	assert.Equal(t, types.ChangeInsert, lpi.ChangeType)

	view, ok := f.m.Detail()
	require.True(t, ok)
	assert.Equal(t, View{Collection: types.CollectionLPI, PKID: -10, Index: 2, Total: 3}, view)
	assert.True(t, f.sb.Dirty())
	assert.Equal(t, "lpi", f.focus.groups[len(f.focus.groups)-1])
}

func TestRecordOpenAndClose(t *testing.T) {
	f := newFixture(property())

	_, err := f.m.RequestRecordOpen(types.CollectionNote, 1, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, TabNotes, f.m.CurrentTab())
	_, open := f.sb.ActiveEdit(types.CollectionNote)
	assert.True(t, open)

	_, err = f.m.RequestRecordOpen(types.CollectionNote, -1, 0, 0)
	require.NoError(t, err)
	_, ok := f.m.Detail()
	assert.False(t, ok)
	_, open = f.sb.ActiveEdit(types.CollectionNote)
	assert.False(t, open)

	_, err = f.m.RequestRecordOpen(types.CollectionNote, 44, 0, 1)
	assert.ErrorIs(t, err, types.ErrRecordNotFound)
	_, err = f.m.RequestRecordOpen(types.CollectionOrganisation, 1, 0, 1)
	assert.ErrorIs(t, err, types.ErrWrongVariant)
}

func TestRecordOpenClearsMismatchedEditObject(t *testing.T) {
	p := property()
	p.Provenances = types.NewCollection(types.Provenance{PKID: 1}, types.Provenance{PKID: 2})
	f := newFixture(p)

	f.m.BindEditObject(types.EditObject{Collection: types.CollectionProvenance, PKID: 1})
	_, err := f.m.RequestRecordOpen(types.CollectionProvenance, 1, 0, 2)
	require.NoError(t, err)
	_, bound := f.m.EditObject()
	assert.True(t, bound, "matching binding survives")

	_, err = f.m.RequestRecordOpen(types.CollectionProvenance, 2, 1, 2)
	require.NoError(t, err)
	_, bound = f.m.EditObject()
	assert.False(t, bound)
	require.Len(t, f.maps.objects, 2)
	assert.Nil(t, f.maps.objects[1])
}

func TestGoToFieldBypassesGate(t *testing.T) {
	f := newFixture(property())
	f.val.ok = false
	f.val.errs = map[types.CollectionType][]types.FieldError{
		types.CollectionLPI: {{Collection: types.CollectionLPI, Index: 1, Field: "paoText", Message: "required"}},
	}
	_, err := f.m.RequestRecordOpen(types.CollectionNote, 1, 0, 1)
	require.NoError(t, err)
	_, err = f.sb.Upsert(types.Note{PKID: 1, UPRN: 31, SeqNo: 1})
	require.NoError(t, err)

	require.NoError(t, f.m.GoToField(types.CollectionLPI, 1, "paoText"))
	assert.Equal(t, TabDetails, f.m.CurrentTab())
	view, ok := f.m.Detail()
	require.True(t, ok)
	assert.Equal(t, int64(3), view.PKID, "index counts live records only")
	assert.Equal(t, "paoText", f.m.FocusField())
	assert.Len(t, f.m.Errors(), 1)

	assert.ErrorIs(t, f.m.GoToField(types.CollectionLPI, 5, "paoText"), types.ErrRecordNotFound)
}

func TestStepWraps(t *testing.T) {
	f := newFixture(property())
	_, err := f.m.RequestRecordOpen(types.CollectionLPI, 3, 1, 2)
	require.NoError(t, err)

	rec, err := f.m.Step(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.(types.LPI).PKID)

	rec, err = f.m.Step(-1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.(types.LPI).PKID)
}

func TestUnknownTab(t *testing.T) {
	f := newFixture(property())
	assert.ErrorIs(t, f.m.RequestTabChange(6), ErrUnknownTab)
}

func TestSyncRecomputesAndClosesDeleted(t *testing.T) {
	fx := newFixture(property())
	_, err := fx.m.RequestRecordOpen(types.CollectionLPI, 3, 1, 2)
	require.NoError(t, err)

	_, err = fx.sb.Upsert(types.LPI{PKID: 1, UPRN: 31, PAOText: "MILL HOUSE", ChangeType: types.ChangeDelete})
	require.NoError(t, err)
	fx.m.Sync()

	v, ok := fx.m.Detail()
	require.True(t, ok)
	assert.Equal(t, View{Collection: types.CollectionLPI, PKID: 3, Index: 0, Total: 1}, v)

	_, err = fx.sb.Upsert(types.LPI{PKID: 3, UPRN: 31, PAOText: "MILL BARN", ChangeType: types.ChangeDelete})
	require.NoError(t, err)
	fx.m.Sync()

	_, ok = fx.m.Detail()
	assert.False(t, ok)
	_, ok = fx.sb.ActiveEdit(types.CollectionLPI)
	assert.False(t, ok)
	_, ok = fx.m.EditObject()
	assert.False(t, ok)
}

func TestResetKeepsTab(t *testing.T) {
	fx := newFixture(property())
	_, err := fx.m.RequestRecordOpen(types.CollectionNote, 1, 0, 1)
	require.NoError(t, err)

	fx.m.Reset()
	assert.Equal(t, TabNotes, fx.m.CurrentTab())
	_, ok := fx.m.Detail()
	assert.False(t, ok)
}

func TestTabChangeGatedByUnappliedEdit(t *testing.T) {
	f := newFixture(property())
	_, err := f.m.RequestRecordOpen(types.CollectionLPI, 1, 0, 2)
	require.NoError(t, err)
	require.False(t, f.sb.Dirty())

	f.sb.SetEdit(types.CollectionLPI, types.LPI{PKID: 1, UPRN: 31, PAOText: "MILL COURT"})
	require.True(t, f.sb.Dirty(), "open edit counts before it is merged")

	f.val.ok = false
	assert.ErrorIs(t, f.m.RequestTabChange(2), types.ErrValidationFailed)
	assert.Equal(t, 1, f.val.calls)
	assert.Equal(t, TabDetails, f.m.CurrentTab())
}

func TestGoToPropertyFieldClosesOpenRecord(t *testing.T) {
	f := newFixture(property())
	_, err := f.m.RequestRecordOpen(types.CollectionLPI, 1, 0, 2)
	require.NoError(t, err)
	f.sb.SetEdit(types.CollectionLPI, types.LPI{PKID: 1, UPRN: 31, PAOText: "MILL COURT"})

	require.NoError(t, f.m.GoToField("", 0, "rpc"))
	assert.Equal(t, TabDetails, f.m.CurrentTab())
	assert.Equal(t, "rpc", f.m.FocusField())
	_, ok := f.m.Detail()
	assert.False(t, ok)
	_, open := f.sb.ActiveEdit(types.CollectionLPI)
	assert.False(t, open)
	assert.False(t, f.sb.Dirty())
}
