// Package factory synthesizes new draft child records for a property.
// Drafts carry a session-local negative placeholder key, insert change type,
// today's audit stamps and linkage back to the parent aggregate.
package factory

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// FirstPlaceholder is the highest placeholder key ever allocated. Keys
// between -1 and -9 are left free so they cannot collide with keys another
// component hands out before a record is registered.
const FirstPlaceholder int64 = -10

// Settings holds the authority parameters drafts depend on.
type Settings struct {
	Bilingual      bool
	SecondLanguage string
	User           string
}

// Factory creates drafts for one authority. It is a pure function of its
// inputs; callers append the draft and merge it through the sandbox.
type Factory struct {
	settings Settings
	now      func() time.Time
}

// New returns a Factory. now defaults to time.Now when nil.
func New(settings Settings, now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{settings: settings, now: now}
}

// NextPlaceholder returns the key for a new draft given the existing keys:
// one below the current minimum, or FirstPlaceholder when the collection is
// empty or its minimum is above FirstPlaceholder.
func NextPlaceholder(keys []int64) int64 {
	if len(keys) == 0 {
		return FirstPlaceholder
	}
	m := keys[0]
	for _, k := range keys[1:] {
		if k < m {
			m = k
		}
	}
	if m > FirstPlaceholder {
		return FirstPlaceholder
	}
	return m - 1
}

// Draft is the result of CreateDraft: the new records (two for a bilingual
// LPI pair, otherwise one) and the placeholder key of the first.
type Draft struct {
	Collection types.CollectionType
	Records    []any
	Key        int64
}

// CreateDraft builds a new record for the collection of p. It returns
// ErrWrongVariant for a Scottish-only collection on a standard aggregate.
func (f *Factory) CreateDraft(ct types.CollectionType, p types.Property) (Draft, error) {
	if ct.ScottishOnly() && p.Scottish == nil {
		return Draft{}, fmt.Errorf("%w: %s", types.ErrWrongVariant, ct)
	}
	keys := p.Keys(ct)
	key := NextPlaceholder(keys)

	switch ct {
	case types.CollectionLPI:
		lpis := f.NewLPIs(p, key)
		recs := make([]any, len(lpis))
		for i, l := range lpis {
			recs[i] = l
		}
		return Draft{Collection: ct, Records: recs, Key: key}, nil
	case types.CollectionProvenance:
		return single(ct, f.NewProvenance(p, key)), nil
	case types.CollectionCrossRef:
		return single(ct, f.NewCrossRef(p, key)), nil
	case types.CollectionClassification:
		return single(ct, f.NewClassification(p, key)), nil
	case types.CollectionOrganisation:
		return single(ct, f.NewOrganisation(p, key)), nil
	case types.CollectionSuccessor:
		return single(ct, f.NewSuccessor(p, key)), nil
	case types.CollectionNote:
		return single(ct, f.NewNote(p, key)), nil
	}
	return Draft{}, fmt.Errorf("%w: %q", types.ErrUnknownCollection, ct)
}

func single(ct types.CollectionType, rec interface{ Key() int64 }) Draft {
	return Draft{Collection: ct, Records: []any{rec}, Key: rec.Key()}
}

type stamps struct {
	today time.Time
	user  string
}

func (f *Factory) stamps() stamps {
	return stamps{today: types.Today(f.now()), user: f.settings.User}
}

// NewLPIs returns one English draft, or an English and second-language pair
// sharing a new dual language link when the authority is bilingual. key is
// the placeholder of the first draft; the second takes key-1.
func (f *Factory) NewLPIs(p types.Property, key int64) []types.LPI {
	s := f.stamps()
	base := types.LPI{
		PKID:           key,
		UPRN:           p.UPRN,
		Language:       types.LanguageEnglish,
		LogicalStatus:  p.LogicalStatus,
		StartDate:      s.today,
		EntryDate:      s.today,
		LastUpdateDate: s.today,
		LastUser:       s.user,
		ChangeType:     types.ChangeInsert,
	}
	if base.LogicalStatus == 0 {
		base.LogicalStatus = types.StatusProvisional
	}
	if !f.settings.Bilingual {
		return []types.LPI{base}
	}

	link := 1
	for _, l := range p.LPIs.All() {
		if l.DualLanguageLink >= link {
			link = l.DualLanguageLink + 1
		}
	}
	base.DualLanguageLink = link
	second := base
	second.PKID = key - 1
	second.Language = f.settings.SecondLanguage
	return []types.LPI{base, second}
}

// NewProvenance returns a provenance draft without geometry.
func (f *Factory) NewProvenance(p types.Property, key int64) types.Provenance {
	s := f.stamps()
	return types.Provenance{
		PKID:           key,
		UPRN:           p.UPRN,
		StartDate:      s.today,
		EntryDate:      s.today,
		LastUpdateDate: s.today,
		LastUser:       s.user,
		ChangeType:     types.ChangeInsert,
	}
}

// NewCrossRef returns a cross-reference draft.
func (f *Factory) NewCrossRef(p types.Property, key int64) types.CrossRef {
	s := f.stamps()
	return types.CrossRef{
		PKID:           key,
		UPRN:           p.UPRN,
		StartDate:      s.today,
		EntryDate:      s.today,
		LastUpdateDate: s.today,
		LastUser:       s.user,
		ChangeType:     types.ChangeInsert,
	}
}

// NewClassification returns a classification draft (Scottish only).
func (f *Factory) NewClassification(p types.Property, key int64) types.Classification {
	s := f.stamps()
	return types.Classification{
		PKID:           key,
		UPRN:           p.UPRN,
		ClassScheme:    "AddressBase Premium Classification Scheme",
		StartDate:      s.today,
		EntryDate:      s.today,
		LastUpdateDate: s.today,
		LastUser:       s.user,
		ChangeType:     types.ChangeInsert,
	}
}

// NewOrganisation returns an organisation draft (Scottish only).
func (f *Factory) NewOrganisation(p types.Property, key int64) types.Organisation {
	s := f.stamps()
	return types.Organisation{
		PKID:           key,
		UPRN:           p.UPRN,
		StartDate:      s.today,
		EntryDate:      s.today,
		LastUpdateDate: s.today,
		LastUser:       s.user,
		ChangeType:     types.ChangeInsert,
	}
}

// NewSuccessor returns a successor cross-reference draft with the parent as
// predecessor.
func (f *Factory) NewSuccessor(p types.Property, key int64) types.SuccessorCrossRef {
	s := f.stamps()
	return types.SuccessorCrossRef{
		PKID:           key,
		UPRN:           p.UPRN,
		Predecessor:    p.UPRN,
		SuccessorType:  1,
		StartDate:      s.today,
		EntryDate:      s.today,
		LastUpdateDate: s.today,
		LastUser:       s.user,
		ChangeType:     types.ChangeInsert,
	}
}

// NewNote returns a note draft with the next sequence number.
func (f *Factory) NewNote(p types.Property, key int64) types.Note {
	s := f.stamps()
	seq := 0
	for _, n := range p.Notes.All() {
		if n.SeqNo > seq {
			seq = n.SeqNo
		}
	}
	return types.Note{
		PKID:           key,
		UPRN:           p.UPRN,
		SeqNo:          seq + 1,
		EntryDate:      s.today,
		LastUpdateDate: s.today,
		LastUser:       s.user,
		ChangeType:     types.ChangeInsert,
	}
}
