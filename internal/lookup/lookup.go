// Package lookup validates and holds the reference tables (post towns,
// postcodes, sub-localities, wards, parishes, authorities, cross-reference
// sources) that property records point at.
package lookup

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// Field names used as keys of Errors.
const (
	FieldValue    = "value"
	FieldCode     = "code"
	FieldLanguage = "language"
	FieldKind     = "kind"
)

// Errors maps a field of a new entry to what is wrong with it.
type Errors map[string]string

// Error lists the field errors in field order.
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + e[f]
	}
	return "invalid lookup entry: " + strings.Join(parts, "; ")
}

// maxLength bounds Value per table.
var maxLength = map[types.LookupKind]int{
	types.LookupPostTown:       30,
	types.LookupPostcode:       8,
	types.LookupSubLocality:    35,
	types.LookupWard:           100,
	types.LookupParish:         100,
	types.LookupAuthority:      100,
	types.LookupCrossRefSource: 50,
}

var (
	postcodeShape = regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z0-9]? ?[0-9][A-Z]{2}$`)
	numericCode   = regexp.MustCompile(`^[0-9]{1,10}$`)
	authorityCode = regexp.MustCompile(`^[0-9]{4}$`)
	sourceCode    = regexp.MustCompile(`^[A-Z0-9_]{1,20}$`)
)

// languaged tables hold one entry per language.
func languaged(k types.LookupKind) bool {
	return k == types.LookupPostTown || k == types.LookupSubLocality
}

// coded tables require an external code.
func coded(k types.LookupKind) bool {
	switch k {
	case types.LookupWard, types.LookupParish, types.LookupAuthority, types.LookupCrossRefSource:
		return true
	}
	return false
}

// Normalize trims the entry and upper-cases the fields that are stored in
// upper case.
func Normalize(e types.LookupEntry) types.LookupEntry {
	e.Value = strings.TrimSpace(e.Value)
	e.Code = strings.ToUpper(strings.TrimSpace(e.Code))
	e.Language = strings.ToUpper(strings.TrimSpace(e.Language))
	if e.Kind == types.LookupPostcode {
		e.Value = strings.ToUpper(e.Value)
	}
	if languaged(e.Kind) && e.Language == "" {
		e.Language = types.LanguageEnglish
	}
	return e
}

// Validate checks a new entry against the table snapshot t and returns the
// field errors, or nil if the entry may be added. The entry is normalised
// first.
func Validate(e types.LookupEntry, t *Table) Errors {
	e = Normalize(e)
	errs := Errors{}

	limit, ok := maxLength[e.Kind]
	if !ok {
		errs[FieldKind] = fmt.Sprintf("unknown table %q", e.Kind)
		return errs
	}

	switch {
	case e.Value == "":
		errs[FieldValue] = "required"
	case len([]rune(e.Value)) > limit:
		errs[FieldValue] = fmt.Sprintf("must be at most %d characters", limit)
	case e.Kind == types.LookupPostcode && !postcodeShape.MatchString(e.Value):
		errs[FieldValue] = "not a valid postcode"
	case t != nil && t.Contains(e.Kind, e.Value, e.Language):
		errs[FieldValue] = "already exists"
	}

	if coded(e.Kind) {
		var shape *regexp.Regexp
		switch e.Kind {
		case types.LookupAuthority:
			shape = authorityCode
		case types.LookupCrossRefSource:
			shape = sourceCode
		default:
			shape = numericCode
		}
		switch {
		case e.Code == "":
			errs[FieldCode] = "required"
		case !shape.MatchString(e.Code):
			errs[FieldCode] = "invalid format"
		case t != nil && t.HasCode(e.Kind, e.Code):
			errs[FieldCode] = "already exists"
		}
	}

	if languaged(e.Kind) {
		switch e.Language {
		case types.LanguageEnglish, types.LanguageWelsh, types.LanguageGaelic:
		default:
			errs[FieldLanguage] = "unknown language"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Table is a read-only snapshot of the reference tables. Value comparisons
// use Unicode case folding.
type Table struct {
	byKind map[types.LookupKind][]types.LookupEntry
	folded map[types.LookupKind]map[string]bool
	codes  map[types.LookupKind]map[string]bool
	byRef  map[types.LookupKind]map[int]types.LookupEntry
}

// foldKey builds the uniqueness key of a value. A Caser is stateful, so each
// call takes a fresh one.
func foldKey(value, language string) string {
	return language + "\x00" + cases.Fold().String(value)
}

// NewTable builds a snapshot of entries.
func NewTable(entries ...types.LookupEntry) *Table {
	t := &Table{
		byKind: make(map[types.LookupKind][]types.LookupEntry),
		folded: make(map[types.LookupKind]map[string]bool),
		codes:  make(map[types.LookupKind]map[string]bool),
		byRef:  make(map[types.LookupKind]map[int]types.LookupEntry),
	}
	for _, e := range entries {
		t.byKind[e.Kind] = append(t.byKind[e.Kind], e)
		if t.folded[e.Kind] == nil {
			t.folded[e.Kind] = make(map[string]bool)
			t.codes[e.Kind] = make(map[string]bool)
			t.byRef[e.Kind] = make(map[int]types.LookupEntry)
		}
		lang := ""
		if languaged(e.Kind) {
			lang = e.Language
		}
		t.folded[e.Kind][foldKey(e.Value, lang)] = true
		if e.Code != "" {
			t.codes[e.Kind][strings.ToUpper(e.Code)] = true
		}
		if e.Ref != 0 {
			t.byRef[e.Kind][e.Ref] = e
		}
	}
	return t
}

// List returns the entries of one table in insertion order.
func (t *Table) List(kind types.LookupKind) []types.LookupEntry {
	return append([]types.LookupEntry(nil), t.byKind[kind]...)
}

// Contains reports whether value already exists in the table, ignoring case.
// language only matters for post towns and sub-localities.
func (t *Table) Contains(kind types.LookupKind, value, language string) bool {
	if !languaged(kind) {
		language = ""
	}
	return t.folded[kind][foldKey(strings.TrimSpace(value), language)]
}

// HasCode reports whether code is already used in the table.
func (t *Table) HasCode(kind types.LookupKind, code string) bool {
	return t.codes[kind][strings.ToUpper(code)]
}

// ByRef returns the entry with the given numeric reference.
func (t *Table) ByRef(kind types.LookupKind, ref int) (types.LookupEntry, bool) {
	e, ok := t.byRef[kind][ref]
	return e, ok
}

// NextRef returns one more than the highest reference in the table.
func (t *Table) NextRef(kind types.LookupKind) int {
	next := 1
	for _, e := range t.byKind[kind] {
		if e.Ref >= next {
			next = e.Ref + 1
		}
	}
	return next
}
