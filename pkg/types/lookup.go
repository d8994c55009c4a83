package types

import (
	"context"
	"fmt"
)

// LookupKind names one reference-data table.
type LookupKind string

// Reference tables.
const (
	LookupPostTown       LookupKind = "postTown"
	LookupPostcode       LookupKind = "postcode"
	LookupSubLocality    LookupKind = "subLocality"
	LookupWard           LookupKind = "ward"
	LookupParish         LookupKind = "parish"
	LookupAuthority      LookupKind = "authority"
	LookupCrossRefSource LookupKind = "crossRefSource"
)

// LookupKinds lists every reference table.
var LookupKinds = []LookupKind{
	LookupPostTown,
	LookupPostcode,
	LookupSubLocality,
	LookupWard,
	LookupParish,
	LookupAuthority,
	LookupCrossRefSource,
}

// ParseLookupKind converts a string into a LookupKind.
func ParseLookupKind(s string) (LookupKind, error) {
	for _, k := range LookupKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLookup, s)
}

// LookupEntry is one row of a reference table. Ref is the numeric reference
// LPIs carry (postcodeRef, postTownRef, subLocalityRef); Code is the
// external code of wards, parishes, authorities and cross-reference sources.
type LookupEntry struct {
	ID       string     `json:"id"`
	Kind     LookupKind `json:"kind"`
	Ref      int        `json:"ref"`
	Value    string     `json:"value"`
	Code     string     `json:"code,omitempty"`
	Language string     `json:"language,omitempty"`
	Historic bool       `json:"historic,omitempty"`
}

// LookupStore reads and extends the reference tables.
type LookupStore interface {
	// ListLookups returns every entry of every table.
	ListLookups(ctx context.Context) ([]LookupEntry, error)

	// AddLookup persists a new entry and returns it with ID and Ref set.
	AddLookup(ctx context.Context, e LookupEntry) (LookupEntry, error)
}
