package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPropertyShapesVariant(t *testing.T) {
	std := NewProperty(VariantStandard)
	assert.Nil(t, std.Scottish)
	assert.Equal(t, VariantStandard, std.Variant())
	assert.True(t, std.IsNew())

	sco := NewProperty(VariantScottish)
	require.NotNil(t, sco.Scottish)
	assert.Equal(t, VariantScottish, sco.Variant())
}

func TestPropertyCloneDetachesScottishCollections(t *testing.T) {
	p := NewProperty(VariantScottish)
	p.Scottish.Organisations = NewCollection(Organisation{PKID: 1, Organisation: "Council"})

	c := p.Clone()
	c.Scottish.Organisations = NewCollection[Organisation]()

	assert.Equal(t, 1, p.Scottish.Organisations.Len())
	assert.Equal(t, 0, c.Scottish.Organisations.Len())
}

func TestPropertyRecordLookup(t *testing.T) {
	p := NewProperty(VariantStandard)
	p.LPIs = NewCollection(LPI{PKID: 4, PAOText: "MILL HOUSE"})

	rec, ok := p.Record(CollectionLPI, 4)
	require.True(t, ok)
	assert.Equal(t, "MILL HOUSE", rec.(LPI).PAOText)

	_, ok = p.Record(CollectionOrganisation, 1)
	assert.False(t, ok, "standard aggregates carry no organisations")
	assert.Nil(t, p.Keys(CollectionClassification))
}

func TestPropertyJSONRoundTrip(t *testing.T) {
	p := NewProperty(VariantScottish)
	p.UPRN = 10001
	p.LogicalStatus = StatusApproved
	p.StartDate = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	p.LPIs = NewCollection(LPI{PKID: 1, UPRN: 10001, Language: LanguageEnglish})
	p.Scottish.Classifications = NewCollection(Classification{PKID: 2, BLPUClass: "RD04"})

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 10001, raw["uprn"], "BLPU fields are flattened")

	var back Property
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.BLPU.Stable(), back.BLPU.Stable())
	assert.True(t, p.LPIs.Equal(back.LPIs))
	require.NotNil(t, back.Scottish)
	assert.True(t, p.Scottish.Classifications.Equal(back.Scottish.Classifications))
}

func TestChangeTypeTouched(t *testing.T) {
	assert.Equal(t, ChangeUpdate, ChangeNone.Touched())
	assert.Equal(t, ChangeUpdate, ChangeUpdate.Touched())
	assert.Equal(t, ChangeInsert, ChangeInsert.Touched())
	assert.Equal(t, ChangeDelete, ChangeDelete.Touched())
}

func TestParseCollectionType(t *testing.T) {
	ct, err := ParseCollectionType("crossRef")
	require.NoError(t, err)
	assert.Equal(t, CollectionCrossRef, ct)
	assert.Equal(t, "Cross reference", ct.Label())

	_, err = ParseCollectionType("street")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestEndDating(t *testing.T) {
	assert.True(t, EndDating(StatusHistoric))
	assert.True(t, EndDating(StatusRejected))
	assert.False(t, EndDating(StatusApproved))
	assert.True(t, ValidLogicalStatus(StatusProvisional))
	assert.False(t, ValidLogicalStatus(2))
}
