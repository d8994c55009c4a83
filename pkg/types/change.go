package types

import "fmt"

// ChangeType tags a record for downstream diff and export. The zero value
// means the record is unchanged since it was fetched.
type ChangeType string

// Change type values mirrored onto the aggregate and every child record.
const (
	ChangeNone   ChangeType = ""
	ChangeInsert ChangeType = "I"
	ChangeUpdate ChangeType = "U"
	ChangeDelete ChangeType = "D"
)

// Touched returns the change type a record carries after an in-place edit.
// Drafts stay inserts and soft-deleted records stay deleted.
func (c ChangeType) Touched() ChangeType {
	switch c {
	case ChangeInsert, ChangeDelete:
		return c
	default:
		return ChangeUpdate
	}
}

// CollectionType names one of the seven child collections of a property.
type CollectionType string

// Child collection identifiers.
const (
	CollectionLPI            CollectionType = "lpi"
	CollectionProvenance     CollectionType = "provenance"
	CollectionCrossRef       CollectionType = "crossRef"
	CollectionClassification CollectionType = "classification"
	CollectionOrganisation   CollectionType = "organisation"
	CollectionSuccessor      CollectionType = "successorCrossRef"
	CollectionNote           CollectionType = "note"
)

// AllCollections lists every collection type in display order.
var AllCollections = []CollectionType{
	CollectionLPI,
	CollectionProvenance,
	CollectionCrossRef,
	CollectionClassification,
	CollectionOrganisation,
	CollectionSuccessor,
	CollectionNote,
}

var collectionLabels = map[CollectionType]string{
	CollectionLPI:            "LPI",
	CollectionProvenance:     "Provenance",
	CollectionCrossRef:       "Cross reference",
	CollectionClassification: "Classification",
	CollectionOrganisation:   "Organisation",
	CollectionSuccessor:      "Successor cross reference",
	CollectionNote:           "Note",
}

// Label returns the human-facing name of the collection.
func (c CollectionType) Label() string {
	if l, ok := collectionLabels[c]; ok {
		return l
	}
	return string(c)
}

// ScottishOnly reports whether the collection exists only under the
// Scottish authority variant.
func (c CollectionType) ScottishOnly() bool {
	switch c {
	case CollectionClassification, CollectionOrganisation, CollectionSuccessor:
		return true
	}
	return false
}

// ParseCollectionType converts a string into a CollectionType.
// Returns ErrUnknownCollection if the name is not recognised.
func ParseCollectionType(s string) (CollectionType, error) {
	ct := CollectionType(s)
	if _, ok := collectionLabels[ct]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, s)
	}
	return ct, nil
}
