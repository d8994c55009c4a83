package types

import "time"

// Logical status codes shared by BLPUs and LPIs.
const (
	StatusApproved    = 1
	StatusAlternative = 3
	StatusProvisional = 6
	StatusHistoric    = 8
	StatusRejected    = 9
)

// BLPU state codes.
const (
	StateUnderConstruction = 1
	StateInUse             = 2
	StateUnoccupied        = 3
	StateNoLongerExisting  = 4
	StatePlanningPermitted = 5
)

var validLogicalStatuses = map[int]bool{
	StatusApproved:    true,
	StatusAlternative: true,
	StatusProvisional: true,
	StatusHistoric:    true,
	StatusRejected:    true,
}

// ValidLogicalStatus reports whether code is a recognised logical status.
func ValidLogicalStatus(code int) bool {
	return validLogicalStatuses[code]
}

// EndDating reports whether moving to the status retires the property and
// its records.
func EndDating(code int) bool {
	return code == StatusHistoric || code == StatusRejected
}

// Variant selects the authority configuration that shapes the aggregate.
type Variant string

// Authority variants.
const (
	VariantStandard Variant = "standard"
	VariantScottish Variant = "scottish"
)

// BLPU holds the scalar fields of a property. It is embedded in Property so
// the scalar header can be compared as one value.
type BLPU struct {
	UPRN               int64      `json:"uprn"`
	LogicalStatus      int        `json:"logicalStatus"`
	BLPUState          int        `json:"blpuState"`
	BLPUStateDate      time.Time  `json:"blpuStateDate"`
	XCoordinate        float64    `json:"xcoordinate"`
	YCoordinate        float64    `json:"ycoordinate"`
	RPC                int        `json:"rpc"`
	LocalCustodianCode int        `json:"localCustodianCode"`
	BLPUClass          string     `json:"blpuClass,omitempty"`
	ParentUPRN         int64      `json:"parentUprn,omitempty"`
	ChildCount         int        `json:"childCount,omitempty"`
	CurrentLevel       int        `json:"currentLevel,omitempty"`
	MaxLevel           int        `json:"maxLevel,omitempty"`
	StartDate          time.Time  `json:"startDate"`
	EndDate            time.Time  `json:"endDate"`
	EntryDate          time.Time  `json:"entryDate"`
	LastUpdateDate     time.Time  `json:"lastUpdateDate"`
	LastUser           string     `json:"lastUser,omitempty"`
	ChangeType         ChangeType `json:"changeType,omitempty"`
}

// Stable returns the header with volatile audit fields cleared.
func (b BLPU) Stable() BLPU {
	b.EntryDate, b.LastUpdateDate, b.LastUser = time.Time{}, time.Time{}, ""
	b.BLPUStateDate = normTime(b.BLPUStateDate)
	b.StartDate, b.EndDate = normTime(b.StartDate), normTime(b.EndDate)
	return b
}

// ScottishCollections holds the collections that exist only under the
// Scottish authority variant.
type ScottishCollections struct {
	Classifications    Collection[Classification]    `json:"classifications"`
	Organisations      Collection[Organisation]      `json:"organisations"`
	SuccessorCrossRefs Collection[SuccessorCrossRef] `json:"successorCrossRefs"`
}

// Property is the root aggregate: a BLPU and the collections it owns.
// Scottish is non-nil exactly when the aggregate belongs to a Scottish
// authority.
type Property struct {
	BLPU
	LPIs        Collection[LPI]        `json:"lpis"`
	Provenances Collection[Provenance] `json:"blpuProvenances"`
	CrossRefs   Collection[CrossRef]   `json:"blpuAppCrossRefs"`
	Notes       Collection[Note]       `json:"blpuNotes"`
	Scottish    *ScottishCollections   `json:"scottish,omitempty"`
}

// NewProperty builds an empty aggregate shaped for the given variant.
func NewProperty(variant Variant) Property {
	p := Property{}
	if variant == VariantScottish {
		p.Scottish = &ScottishCollections{}
	}
	return p
}

// Variant reports which authority variant shaped the aggregate.
func (p Property) Variant() Variant {
	if p.Scottish != nil {
		return VariantScottish
	}
	return VariantStandard
}

// IsNew reports whether the aggregate has never been saved.
func (p Property) IsNew() bool {
	return p.UPRN == 0
}

// Clone returns a copy that shares no mutable state with p. Collections are
// immutable, so only the Scottish pointer needs copying.
func (p Property) Clone() Property {
	if p.Scottish != nil {
		s := *p.Scottish
		p.Scottish = &s
	}
	return p
}

// Keys returns the pkIds of the given collection in order. Scottish-only
// collections yield nil on a standard aggregate.
func (p Property) Keys(ct CollectionType) []int64 {
	switch ct {
	case CollectionLPI:
		return p.LPIs.Keys()
	case CollectionProvenance:
		return p.Provenances.Keys()
	case CollectionCrossRef:
		return p.CrossRefs.Keys()
	case CollectionNote:
		return p.Notes.Keys()
	}
	if p.Scottish == nil {
		return nil
	}
	switch ct {
	case CollectionClassification:
		return p.Scottish.Classifications.Keys()
	case CollectionOrganisation:
		return p.Scottish.Organisations.Keys()
	case CollectionSuccessor:
		return p.Scottish.SuccessorCrossRefs.Keys()
	}
	return nil
}

// LiveCount returns the number of records in the collection that are not
// soft deleted.
func (p Property) LiveCount(ct CollectionType) int {
	switch ct {
	case CollectionLPI:
		return p.LPIs.LiveLen()
	case CollectionProvenance:
		return p.Provenances.LiveLen()
	case CollectionCrossRef:
		return p.CrossRefs.LiveLen()
	case CollectionNote:
		return p.Notes.LiveLen()
	}
	if p.Scottish == nil {
		return 0
	}
	switch ct {
	case CollectionClassification:
		return p.Scottish.Classifications.LiveLen()
	case CollectionOrganisation:
		return p.Scottish.Organisations.LiveLen()
	case CollectionSuccessor:
		return p.Scottish.SuccessorCrossRefs.LiveLen()
	}
	return 0
}

// Record returns the record with the given pkId from a collection as an
// untyped value. The second result is false if no such record exists.
func (p Property) Record(ct CollectionType, pkID int64) (any, bool) {
	switch ct {
	case CollectionLPI:
		return asAny(p.LPIs.Get(pkID))
	case CollectionProvenance:
		return asAny(p.Provenances.Get(pkID))
	case CollectionCrossRef:
		return asAny(p.CrossRefs.Get(pkID))
	case CollectionNote:
		return asAny(p.Notes.Get(pkID))
	}
	if p.Scottish == nil {
		return nil, false
	}
	switch ct {
	case CollectionClassification:
		return asAny(p.Scottish.Classifications.Get(pkID))
	case CollectionOrganisation:
		return asAny(p.Scottish.Organisations.Get(pkID))
	case CollectionSuccessor:
		return asAny(p.Scottish.SuccessorCrossRefs.Get(pkID))
	}
	return nil, false
}

func asAny[T any](v T, ok bool) (any, bool) {
	if !ok {
		return nil, false
	}
	return v, true
}
