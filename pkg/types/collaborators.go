package types

import (
	"context"

	"github.com/paulmach/orb"
)

// PropertyStore fetches and persists aggregates.
type PropertyStore interface {
	// Fetch returns the saved aggregate with the given UPRN.
	// Returns ErrNotFound if no such property exists.
	Fetch(ctx context.Context, uprn int64) (Property, error)

	// Save inserts (isNew) or updates the aggregate and returns the saved
	// form: placeholder keys replaced, soft-deleted records removed and
	// change types cleared.
	Save(ctx context.Context, p Property, isNew bool) (Property, error)

	// Delete removes the property, and its descendants when cascade is set.
	// It returns every UPRN removed.
	Delete(ctx context.Context, uprn int64, cascade bool) ([]int64, error)

	// UpdateChildrenPAO copies the parent's PAO onto every child property's
	// LPIs and returns the UPRNs touched.
	UpdateChildrenPAO(ctx context.Context, parentUPRN int64, pao PAO) ([]int64, error)
}

// FieldError is a validation failure on one field of one record.
type FieldError struct {
	Collection CollectionType `json:"collection,omitempty"`
	Index      int            `json:"index"`
	Field      string         `json:"field"`
	Message    string         `json:"message"`
}

// Validator checks an aggregate before save or before leaving a tab.
type Validator interface {
	// Validate runs every check and reports whether the aggregate is valid.
	Validate(p Property) bool

	// Errors returns the field errors of the last Validate call for one
	// record. An empty collection type selects the BLPU itself.
	Errors(ct CollectionType, index int) []FieldError
}

// Extent is one provenance polygon sent to the map.
type Extent struct {
	PKID     int64        `json:"pkId"`
	UPRN     int64        `json:"uprn"`
	Code     string       `json:"code"`
	Geometry orb.Geometry `json:"-"`
	Bound    orb.Bound    `json:"-"`
}

// EditObject identifies the record the map is editing geometry for.
type EditObject struct {
	Collection CollectionType
	PKID       int64
}

// MapSink receives one-way notifications for the map view.
type MapSink interface {
	SetExtents(extents []Extent)
	// SetEditObject binds the map editor to a record; nil clears it.
	SetEditObject(obj *EditObject)
}

// EditContext is told which logical field group currently has focus.
type EditContext interface {
	Focus(group string)
}

// Confirmation outcomes.
const (
	OutcomeDiscard     = "discard"
	OutcomeSave        = "save"
	OutcomeSaveCascade = "saveCascade"
	OutcomeContinue    = "continue"
	OutcomeCancel      = "cancel"
)

// Confirmer asks the user to choose before an irreversible step.
type Confirmer interface {
	// ConfirmLeave is asked when leaving a dirty record. changed lists the
	// labels of changed collections; cascade offers OutcomeSaveCascade.
	ConfirmLeave(ctx context.Context, changed []string, cascade bool) (string, error)

	// ConfirmHistoric is asked before making a property historic.
	ConfirmHistoric(ctx context.Context) (string, error)
}

// AddressFormatter computes the display address of an LPI.
type AddressFormatter interface {
	Format(ctx context.Context, lpi LPI, language string) (string, error)
}

// Summary is what the search cache holds for one property.
type Summary struct {
	UPRN          int64  `json:"uprn"`
	ParentUPRN    int64  `json:"parentUprn,omitempty"`
	Address       string `json:"address"`
	LogicalStatus int    `json:"logicalStatus"`
}

// SearchSink receives write-only updates for the search cache.
type SearchSink interface {
	Upsert(s Summary)
	Remove(uprns ...int64)
}

// Store is an attachable backend that serves both properties and reference
// tables.
type Store interface {
	PropertyStore
	LookupStore

	// Attach opens the backend for the given configuration.
	// Returns ErrAlreadyAttached if already attached.
	Attach(config Config) error

	// Detach releases the backend. It is safe to call more than once.
	Detach() error

	// ListSummaries returns the search summary of every saved property.
	ListSummaries(ctx context.Context) ([]Summary, error)
}
