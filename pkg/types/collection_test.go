package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(pk int64, seq int, text string, ct ChangeType) Note {
	return Note{PKID: pk, UPRN: 100, SeqNo: seq, Note: text, ChangeType: ct}
}

func TestCollectionLiveFiltersSoftDeleted(t *testing.T) {
	c := NewCollection(
		note(1, 1, "first", ChangeNone),
		note(2, 2, "second", ChangeDelete),
		note(-10, 3, "draft", ChangeInsert),
	)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2, c.LiveLen())
	live := c.Live()
	require.Len(t, live, 2)
	assert.Equal(t, int64(1), live[0].PKID)
	assert.Equal(t, int64(-10), live[1].PKID)
	assert.Equal(t, 1, c.LiveIndex(-10))
	assert.Equal(t, -1, c.LiveIndex(2))
}

func TestCollectionUpsertAndRemoveReturnFreshCollections(t *testing.T) {
	orig := NewCollection(note(1, 1, "a", ChangeNone), note(2, 2, "b", ChangeNone))

	updated := orig.Upsert(note(2, 2, "b2", ChangeUpdate), note(-10, 3, "c", ChangeInsert))
	removed := updated.Remove(1)

	got, ok := orig.Get(2)
	require.True(t, ok)
	assert.Equal(t, "b", got.Note, "original must be untouched")
	assert.Equal(t, 2, orig.Len())

	got, ok = updated.Get(2)
	require.True(t, ok)
	assert.Equal(t, "b2", got.Note)
	assert.Equal(t, []int64{1, 2, -10}, updated.Keys())

	assert.Equal(t, []int64{2, -10}, removed.Keys())
	assert.False(t, removed.Has(1))
}

func TestCollectionMinKey(t *testing.T) {
	assert.Equal(t, int64(0), Collection[Note]{}.MinKey())
	c := NewCollection(note(5, 1, "", ChangeNone), note(-12, 2, "", ChangeInsert), note(3, 3, "", ChangeNone))
	assert.Equal(t, int64(-12), c.MinKey())
}

func TestCollectionEqualIgnoresVolatileFields(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := NewCollection(Note{PKID: 1, SeqNo: 1, Note: "x", LastUpdateDate: now, LastUser: "alice"})
	b := NewCollection(Note{PKID: 1, SeqNo: 1, Note: "x", LastUpdateDate: now.Add(time.Hour), LastUser: "bob"})
	c := NewCollection(Note{PKID: 1, SeqNo: 1, Note: "y"})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestCollectionEqualNormalisesTimeZones(t *testing.T) {
	utc := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bst := utc.In(time.FixedZone("BST", 3600))
	a := NewCollection(LPI{PKID: 1, StartDate: utc})
	b := NewCollection(LPI{PKID: 1, StartDate: bst})
	assert.True(t, a.Equal(b))
}

func TestCollectionValidate(t *testing.T) {
	assert.NoError(t, NewCollection(note(1, 1, "", ChangeNone), note(-10, 2, "", ChangeInsert)).Validate())
	assert.ErrorIs(t, NewCollection(note(0, 1, "", ChangeNone)).Validate(), ErrInvalidKey)
}

func TestCollectionJSON(t *testing.T) {
	c := NewCollection(note(1, 1, "hello", ChangeNone))
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var back Collection[Note]
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, c.Equal(back))

	empty, err := json.Marshal(Collection[Note]{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}
