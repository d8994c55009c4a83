package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC) }

func TestNextPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		keys []int64
		want int64
	}{
		{"empty collection", nil, -10},
		{"only persisted keys", []int64{4, 9, 2}, -10},
		{"small negative range is skipped", []int64{3, -2, -5}, -10},
		{"minimum at first placeholder", []int64{7, -10}, -11},
		{"decrements below minimum", []int64{-14, 3, -11}, -15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextPlaceholder(tt.keys))
		})
	}
}

func TestCreateDraftKeysAreUniqueAcrossSequence(t *testing.T) {
	f := New(Settings{}, fixedNow)
	p := types.NewProperty(types.VariantStandard)

	seen := map[int64]bool{}
	for i := 0; i < 25; i++ {
		d, err := f.CreateDraft(types.CollectionProvenance, p)
		require.NoError(t, err)
		prov := d.Records[0].(types.Provenance)

		assert.LessOrEqual(t, prov.PKID, int64(-10))
		assert.False(t, seen[prov.PKID], "duplicate placeholder %d", prov.PKID)
		seen[prov.PKID] = true
		p.Provenances = p.Provenances.Upsert(prov)
	}
}

func TestCreateDraftLPIStandardAuthority(t *testing.T) {
	f := New(Settings{User: "editor"}, fixedNow)
	p := types.NewProperty(types.VariantStandard)

	d, err := f.CreateDraft(types.CollectionLPI, p)
	require.NoError(t, err)
	require.Len(t, d.Records, 1)

	lpi := d.Records[0].(types.LPI)
	assert.Equal(t, int64(-10), d.Key)
	assert.Equal(t, int64(-10), lpi.PKID)
	assert.Equal(t, types.ChangeInsert, lpi.ChangeType)
	assert.Equal(t, types.LanguageEnglish, lpi.Language)
	assert.Equal(t, types.StatusProvisional, lpi.LogicalStatus)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), lpi.StartDate)
	assert.Equal(t, "editor", lpi.LastUser)
	assert.Zero(t, lpi.DualLanguageLink)
}

func TestCreateDraftLPIBilingualPair(t *testing.T) {
	f := New(Settings{Bilingual: true, SecondLanguage: types.LanguageWelsh}, fixedNow)
	p := types.NewProperty(types.VariantStandard)
	p.UPRN = 200
	p.LogicalStatus = types.StatusApproved
	p.LPIs = types.NewCollection(
		types.LPI{PKID: 1, DualLanguageLink: 1, Language: types.LanguageEnglish},
		types.LPI{PKID: 2, DualLanguageLink: 1, Language: types.LanguageWelsh},
		types.LPI{PKID: 3, DualLanguageLink: 2, Language: types.LanguageEnglish},
	)

	d, err := f.CreateDraft(types.CollectionLPI, p)
	require.NoError(t, err)
	require.Len(t, d.Records, 2)

	eng := d.Records[0].(types.LPI)
	cym := d.Records[1].(types.LPI)
	assert.Equal(t, int64(-10), eng.PKID)
	assert.Equal(t, int64(-11), cym.PKID)
	assert.Equal(t, types.LanguageEnglish, eng.Language)
	assert.Equal(t, types.LanguageWelsh, cym.Language)
	assert.Equal(t, 3, eng.DualLanguageLink)
	assert.Equal(t, eng.DualLanguageLink, cym.DualLanguageLink)
	assert.Equal(t, int64(200), cym.UPRN)
	assert.Equal(t, types.StatusApproved, cym.LogicalStatus)
}

func TestCreateDraftNoteSequence(t *testing.T) {
	f := New(Settings{}, fixedNow)
	p := types.NewProperty(types.VariantStandard)

	d, err := f.CreateDraft(types.CollectionNote, p)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Records[0].(types.Note).SeqNo)

	p.Notes = types.NewCollection(types.Note{PKID: 4, SeqNo: 7}, types.Note{PKID: 5, SeqNo: 3})
	d, err = f.CreateDraft(types.CollectionNote, p)
	require.NoError(t, err)
	assert.Equal(t, 8, d.Records[0].(types.Note).SeqNo)
}

func TestCreateDraftScottishCollections(t *testing.T) {
	f := New(Settings{}, fixedNow)

	_, err := f.CreateDraft(types.CollectionOrganisation, types.NewProperty(types.VariantStandard))
	assert.ErrorIs(t, err, types.ErrWrongVariant)

	p := types.NewProperty(types.VariantScottish)
	p.UPRN = 77
	for _, ct := range []types.CollectionType{
		types.CollectionClassification,
		types.CollectionOrganisation,
		types.CollectionSuccessor,
	} {
		d, err := f.CreateDraft(ct, p)
		require.NoError(t, err, ct)
		assert.Equal(t, int64(-10), d.Key, ct)
	}

	d, err := f.CreateDraft(types.CollectionSuccessor, p)
	require.NoError(t, err)
	assert.Equal(t, int64(77), d.Records[0].(types.SuccessorCrossRef).Predecessor)
}
