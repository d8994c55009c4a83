package types

import "time"

// Record is the constraint satisfied by every child record type. Records are
// plain values: every With method returns a modified copy and never touches
// the receiver, so the same record can be shared between the source and the
// current snapshot without aliasing.
type Record[T any] interface {
	comparable

	// Key returns the record's pkId: positive when persisted, negative for a
	// session-local placeholder.
	Key() int64

	// Change returns the record's change type.
	Change() ChangeType

	WithChange(ct ChangeType) T
	WithKey(pkID int64) T

	// WithEnd returns a copy end-dated on the given day and marked updated.
	WithEnd(day time.Time) T

	// Stable returns a copy with the volatile fields cleared and times
	// normalised, suitable for == comparison.
	Stable() T
}

// Language codes used on LPIs.
const (
	LanguageEnglish = "ENG"
	LanguageWelsh   = "CYM"
	LanguageGaelic  = "GAE"
)

// LPI is a Land and Property Identifier: one address of a BLPU.
type LPI struct {
	PKID             int64      `json:"pkId"`
	UPRN             int64      `json:"uprn"`
	LPIKey           string     `json:"lpiKey"`
	Language         string     `json:"language"`
	DualLanguageLink int        `json:"dualLanguageLink"`
	LogicalStatus    int        `json:"logicalStatus"`
	USRN             int64      `json:"usrn"`
	SAOStartNumber   int        `json:"saoStartNumber,omitempty"`
	SAOStartSuffix   string     `json:"saoStartSuffix,omitempty"`
	SAOEndNumber     int        `json:"saoEndNumber,omitempty"`
	SAOEndSuffix     string     `json:"saoEndSuffix,omitempty"`
	SAOText          string     `json:"saoText,omitempty"`
	PAOStartNumber   int        `json:"paoStartNumber,omitempty"`
	PAOStartSuffix   string     `json:"paoStartSuffix,omitempty"`
	PAOEndNumber     int        `json:"paoEndNumber,omitempty"`
	PAOEndSuffix     string     `json:"paoEndSuffix,omitempty"`
	PAOText          string     `json:"paoText,omitempty"`
	PostcodeRef      int        `json:"postcodeRef,omitempty"`
	PostTownRef      int        `json:"postTownRef,omitempty"`
	SubLocalityRef   int        `json:"subLocalityRef,omitempty"`
	Level            string     `json:"level,omitempty"`
	OfficialFlag     string     `json:"officialFlag,omitempty"`
	PostalAddress    string     `json:"postalAddress,omitempty"`
	StartDate        time.Time  `json:"startDate"`
	EndDate          time.Time  `json:"endDate"`
	EntryDate        time.Time  `json:"entryDate"`
	LastUpdateDate   time.Time  `json:"lastUpdateDate"`
	LastUser         string     `json:"lastUser,omitempty"`
	Address          string     `json:"address,omitempty"`
	ChangeType       ChangeType `json:"changeType,omitempty"`
}

// PAO holds the primary addressable object fields of an LPI.
type PAO struct {
	StartNumber int
	StartSuffix string
	EndNumber   int
	EndSuffix   string
	Text        string
}

// PAO returns the primary addressable object of the LPI.
func (l LPI) PAO() PAO {
	return PAO{
		StartNumber: l.PAOStartNumber,
		StartSuffix: l.PAOStartSuffix,
		EndNumber:   l.PAOEndNumber,
		EndSuffix:   l.PAOEndSuffix,
		Text:        l.PAOText,
	}
}

// WithPAO returns a copy of the LPI carrying the given PAO.
func (l LPI) WithPAO(p PAO) LPI {
	l.PAOStartNumber = p.StartNumber
	l.PAOStartSuffix = p.StartSuffix
	l.PAOEndNumber = p.EndNumber
	l.PAOEndSuffix = p.EndSuffix
	l.PAOText = p.Text
	l.ChangeType = l.ChangeType.Touched()
	return l
}

// Key returns the pkId.
func (l LPI) Key() int64 { return l.PKID }

// Change returns the change type.
func (l LPI) Change() ChangeType { return l.ChangeType }

// WithChange returns a copy with the given change type.
func (l LPI) WithChange(ct ChangeType) LPI {
	l.ChangeType = ct
	return l
}

// WithKey returns a copy with the given pkId.
func (l LPI) WithKey(pkID int64) LPI {
	l.PKID = pkID
	return l
}

// WithEnd returns a copy end-dated on day and marked updated.
func (l LPI) WithEnd(day time.Time) LPI {
	l.EndDate = day
	l.ChangeType = l.ChangeType.Touched()
	return l
}

// Stable returns a copy with the volatile fields cleared, for comparison.
func (l LPI) Stable() LPI {
	l.EntryDate, l.LastUpdateDate, l.LastUser, l.Address = time.Time{}, time.Time{}, "", ""
	l.StartDate, l.EndDate = normTime(l.StartDate), normTime(l.EndDate)
	return l
}

// Provenance records the source and extent geometry of a BLPU.
type Provenance struct {
	PKID           int64      `json:"pkId"`
	UPRN           int64      `json:"uprn"`
	ProvenanceKey  string     `json:"provenanceKey"`
	ProvenanceCode string     `json:"provenanceCode"`
	Annotation     string     `json:"annotation,omitempty"`
	WKTGeometry    string     `json:"wktGeometry,omitempty"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        time.Time  `json:"endDate"`
	EntryDate      time.Time  `json:"entryDate"`
	LastUpdateDate time.Time  `json:"lastUpdateDate"`
	LastUser       string     `json:"lastUser,omitempty"`
	ChangeType     ChangeType `json:"changeType,omitempty"`
}

// Key returns the pkId.
func (p Provenance) Key() int64 { return p.PKID }

// Change returns the change type.
func (p Provenance) Change() ChangeType { return p.ChangeType }

// WithChange returns a copy with the given change type.
func (p Provenance) WithChange(ct ChangeType) Provenance {
	p.ChangeType = ct
	return p
}

// WithKey returns a copy with the given pkId.
func (p Provenance) WithKey(pkID int64) Provenance {
	p.PKID = pkID
	return p
}

// WithEnd returns a copy end-dated on day and marked updated.
func (p Provenance) WithEnd(day time.Time) Provenance {
	p.EndDate = day
	p.ChangeType = p.ChangeType.Touched()
	return p
}

// Stable returns a copy with the volatile fields cleared, for comparison.
func (p Provenance) Stable() Provenance {
	p.EntryDate, p.LastUpdateDate, p.LastUser = time.Time{}, time.Time{}, ""
	p.StartDate, p.EndDate = normTime(p.StartDate), normTime(p.EndDate)
	return p
}

// CrossRef is an application cross-reference linking the BLPU to an external
// system. The bilingual link source uses CrossReference to concatenate the
// keys of two paired LPIs.
type CrossRef struct {
	PKID           int64      `json:"pkId"`
	UPRN           int64      `json:"uprn"`
	XRefKey        string     `json:"xrefKey"`
	SourceID       string     `json:"sourceId"`
	CrossReference string     `json:"crossReference"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        time.Time  `json:"endDate"`
	EntryDate      time.Time  `json:"entryDate"`
	LastUpdateDate time.Time  `json:"lastUpdateDate"`
	LastUser       string     `json:"lastUser,omitempty"`
	ChangeType     ChangeType `json:"changeType,omitempty"`
}

// Key returns the pkId.
func (x CrossRef) Key() int64 { return x.PKID }

// Change returns the change type.
func (x CrossRef) Change() ChangeType { return x.ChangeType }

// WithChange returns a copy with the given change type.
func (x CrossRef) WithChange(ct ChangeType) CrossRef {
	x.ChangeType = ct
	return x
}

// WithKey returns a copy with the given pkId.
func (x CrossRef) WithKey(pkID int64) CrossRef {
	x.PKID = pkID
	return x
}

// WithEnd returns a copy end-dated on day and marked updated.
func (x CrossRef) WithEnd(day time.Time) CrossRef {
	x.EndDate = day
	x.ChangeType = x.ChangeType.Touched()
	return x
}

// Stable returns a copy with the volatile fields cleared, for comparison.
func (x CrossRef) Stable() CrossRef {
	x.EntryDate, x.LastUpdateDate, x.LastUser = time.Time{}, time.Time{}, ""
	x.StartDate, x.EndDate = normTime(x.StartDate), normTime(x.EndDate)
	return x
}

// Classification is a Scottish-variant BLPU classification record.
type Classification struct {
	PKID           int64      `json:"pkId"`
	UPRN           int64      `json:"uprn"`
	ClassKey       string     `json:"classKey"`
	BLPUClass      string     `json:"blpuClass"`
	ClassScheme    string     `json:"classScheme"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        time.Time  `json:"endDate"`
	EntryDate      time.Time  `json:"entryDate"`
	LastUpdateDate time.Time  `json:"lastUpdateDate"`
	LastUser       string     `json:"lastUser,omitempty"`
	ChangeType     ChangeType `json:"changeType,omitempty"`
}

// Key returns the pkId.
func (c Classification) Key() int64 { return c.PKID }

// Change returns the change type.
func (c Classification) Change() ChangeType { return c.ChangeType }

// WithChange returns a copy with the given change type.
func (c Classification) WithChange(ct ChangeType) Classification {
	c.ChangeType = ct
	return c
}

// WithKey returns a copy with the given pkId.
func (c Classification) WithKey(pkID int64) Classification {
	c.PKID = pkID
	return c
}

// WithEnd returns a copy end-dated on day and marked updated.
func (c Classification) WithEnd(day time.Time) Classification {
	c.EndDate = day
	c.ChangeType = c.ChangeType.Touched()
	return c
}

// Stable returns a copy with the volatile fields cleared, for comparison.
func (c Classification) Stable() Classification {
	c.EntryDate, c.LastUpdateDate, c.LastUser = time.Time{}, time.Time{}, ""
	c.StartDate, c.EndDate = normTime(c.StartDate), normTime(c.EndDate)
	return c
}

// Organisation is a Scottish-variant organisation record.
type Organisation struct {
	PKID           int64      `json:"pkId"`
	UPRN           int64      `json:"uprn"`
	OrgKey         string     `json:"orgKey"`
	Organisation   string     `json:"organisation"`
	LegalName      string     `json:"legalName,omitempty"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        time.Time  `json:"endDate"`
	EntryDate      time.Time  `json:"entryDate"`
	LastUpdateDate time.Time  `json:"lastUpdateDate"`
	LastUser       string     `json:"lastUser,omitempty"`
	ChangeType     ChangeType `json:"changeType,omitempty"`
}

// Key returns the pkId.
func (o Organisation) Key() int64 { return o.PKID }

// Change returns the change type.
func (o Organisation) Change() ChangeType { return o.ChangeType }

// WithChange returns a copy with the given change type.
func (o Organisation) WithChange(ct ChangeType) Organisation {
	o.ChangeType = ct
	return o
}

// WithKey returns a copy with the given pkId.
func (o Organisation) WithKey(pkID int64) Organisation {
	o.PKID = pkID
	return o
}

// WithEnd returns a copy end-dated on day and marked updated.
func (o Organisation) WithEnd(day time.Time) Organisation {
	o.EndDate = day
	o.ChangeType = o.ChangeType.Touched()
	return o
}

// Stable returns a copy with the volatile fields cleared, for comparison.
func (o Organisation) Stable() Organisation {
	o.EntryDate, o.LastUpdateDate, o.LastUser = time.Time{}, time.Time{}, ""
	o.StartDate, o.EndDate = normTime(o.StartDate), normTime(o.EndDate)
	return o
}

// SuccessorCrossRef is a Scottish-variant successor cross-reference.
type SuccessorCrossRef struct {
	PKID           int64      `json:"pkId"`
	UPRN           int64      `json:"uprn"`
	SuccKey        string     `json:"succKey"`
	Predecessor    int64      `json:"predecessor"`
	Successor      int64      `json:"successor"`
	SuccessorType  int        `json:"successorType"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        time.Time  `json:"endDate"`
	EntryDate      time.Time  `json:"entryDate"`
	LastUpdateDate time.Time  `json:"lastUpdateDate"`
	LastUser       string     `json:"lastUser,omitempty"`
	ChangeType     ChangeType `json:"changeType,omitempty"`
}

// Key returns the pkId.
func (s SuccessorCrossRef) Key() int64 { return s.PKID }

// Change returns the change type.
func (s SuccessorCrossRef) Change() ChangeType { return s.ChangeType }

// WithChange returns a copy with the given change type.
func (s SuccessorCrossRef) WithChange(ct ChangeType) SuccessorCrossRef {
	s.ChangeType = ct
	return s
}

// WithKey returns a copy with the given pkId.
func (s SuccessorCrossRef) WithKey(pkID int64) SuccessorCrossRef {
	s.PKID = pkID
	return s
}

// WithEnd returns a copy end-dated on day and marked updated.
func (s SuccessorCrossRef) WithEnd(day time.Time) SuccessorCrossRef {
	s.EndDate = day
	s.ChangeType = s.ChangeType.Touched()
	return s
}

// Stable returns a copy with the volatile fields cleared, for comparison.
func (s SuccessorCrossRef) Stable() SuccessorCrossRef {
	s.EntryDate, s.LastUpdateDate, s.LastUser = time.Time{}, time.Time{}, ""
	s.StartDate, s.EndDate = normTime(s.StartDate), normTime(s.EndDate)
	return s
}

// Note is a free-text annotation ordered by SeqNo. Notes carry no end date;
// WithEnd only marks them updated.
type Note struct {
	PKID           int64      `json:"pkId"`
	UPRN           int64      `json:"uprn"`
	SeqNo          int        `json:"seqNo"`
	Note           string     `json:"note"`
	EntryDate      time.Time  `json:"entryDate"`
	LastUpdateDate time.Time  `json:"lastUpdateDate"`
	LastUser       string     `json:"lastUser,omitempty"`
	ChangeType     ChangeType `json:"changeType,omitempty"`
}

// Key returns the pkId.
func (n Note) Key() int64 { return n.PKID }

// Change returns the change type.
func (n Note) Change() ChangeType { return n.ChangeType }

// WithChange returns a copy with the given change type.
func (n Note) WithChange(ct ChangeType) Note {
	n.ChangeType = ct
	return n
}

// WithKey returns a copy with the given pkId.
func (n Note) WithKey(pkID int64) Note {
	n.PKID = pkID
	return n
}

// WithEnd returns a copy end-dated on day and marked updated.
func (n Note) WithEnd(time.Time) Note {
	n.ChangeType = n.ChangeType.Touched()
	return n
}

// Stable returns a copy with the volatile fields cleared, for comparison.
func (n Note) Stable() Note {
	n.EntryDate, n.LastUpdateDate, n.LastUser = time.Time{}, time.Time{}, ""
	return n
}

// normTime strips the monotonic reading and location so that equal instants
// compare equal with ==.
func normTime(t time.Time) time.Time {
	return t.UTC().Round(0)
}

// Today truncates t to midnight UTC on the same calendar day.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
