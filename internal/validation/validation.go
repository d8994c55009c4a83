// Package validation checks a property aggregate before save and before a
// tab with an open record is left. Field errors are indexed by the record's
// position in the live (not soft-deleted) list of its collection, the same
// index the form uses for its detail view.
package validation

import (
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/mesh-intelligence/gazetteer/internal/lookup"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// Options configures a Validator.
type Options struct {
	Bilingual      bool
	SecondLanguage string
	// Tables, when set, is used to check lookup references on LPIs.
	Tables func() *lookup.Table
}

// Validator implements types.Validator. It keeps the errors of the last
// Validate call.
type Validator struct {
	opts Options

	mu   sync.Mutex
	errs []types.FieldError
}

// New returns a Validator.
func New(opts Options) *Validator {
	return &Validator{opts: opts}
}

// Validate checks every field of p and reports whether it is valid.
func (v *Validator) Validate(p types.Property) bool {
	errs := v.Check(p)
	v.mu.Lock()
	v.errs = errs
	v.mu.Unlock()
	return len(errs) == 0
}

// Errors returns the errors of the last Validate call for one record. An
// empty collection type selects the property's own fields.
func (v *Validator) Errors(ct types.CollectionType, index int) []types.FieldError {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []types.FieldError
	for _, e := range v.errs {
		if e.Collection != ct {
			continue
		}
		if ct != "" && e.Index != index {
			continue
		}
		out = append(out, e)
	}
	return out
}

// All returns every error of the last Validate call.
func (v *Validator) All() []types.FieldError {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]types.FieldError(nil), v.errs...)
}

// Check returns every field error of p without recording them.
func (v *Validator) Check(p types.Property) []types.FieldError {
	var c checker
	v.checkBLPU(&c, p)

	lpis := p.LPIs.Live()
	if len(lpis) == 0 {
		c.add(types.CollectionLPI, 0, "lpis", "at least one LPI is required")
	}
	var tables *lookup.Table
	if v.opts.Tables != nil {
		tables = v.opts.Tables()
	}
	for i, l := range lpis {
		v.checkLPI(&c, i, l, tables)
	}
	for i, pr := range p.Provenances.Live() {
		checkProvenance(&c, i, pr)
	}
	for i, x := range p.CrossRefs.Live() {
		c.required(types.CollectionCrossRef, i, "sourceId", x.SourceID)
		c.required(types.CollectionCrossRef, i, "crossReference", x.CrossReference)
		c.dates(types.CollectionCrossRef, i, x.StartDate, x.EndDate)
	}
	if s := p.Scottish; s != nil {
		for i, cl := range s.Classifications.Live() {
			c.required(types.CollectionClassification, i, "blpuClass", cl.BLPUClass)
			c.required(types.CollectionClassification, i, "classScheme", cl.ClassScheme)
			c.dates(types.CollectionClassification, i, cl.StartDate, cl.EndDate)
		}
		for i, o := range s.Organisations.Live() {
			c.required(types.CollectionOrganisation, i, "organisation", o.Organisation)
			c.maxLen(types.CollectionOrganisation, i, "organisation", o.Organisation, 100)
			c.dates(types.CollectionOrganisation, i, o.StartDate, o.EndDate)
		}
		for i, sc := range s.SuccessorCrossRefs.Live() {
			if sc.Successor <= 0 {
				c.add(types.CollectionSuccessor, i, "successor", "required")
			}
			if sc.Successor != 0 && sc.Successor == sc.Predecessor {
				c.add(types.CollectionSuccessor, i, "successor", "cannot succeed itself")
			}
			c.dates(types.CollectionSuccessor, i, sc.StartDate, sc.EndDate)
		}
	}
	for i, n := range p.Notes.Live() {
		c.required(types.CollectionNote, i, "note", n.Note)
	}
	return c.errs
}

func (v *Validator) checkBLPU(c *checker, p types.Property) {
	if !types.ValidLogicalStatus(p.LogicalStatus) {
		c.add("", 0, "logicalStatus", "invalid logical status")
	}
	if p.BLPUState != 0 && (p.BLPUState < types.StateUnderConstruction || p.BLPUState > types.StatePlanningPermitted) {
		c.add("", 0, "blpuState", "invalid BLPU state")
	}
	if p.BLPUState != 0 && p.BLPUStateDate.IsZero() {
		c.add("", 0, "blpuStateDate", "required with a BLPU state")
	}
	if p.XCoordinate <= 0 || p.YCoordinate <= 0 {
		c.add("", 0, "coordinates", "required")
	}
	c.dates("", 0, p.StartDate, p.EndDate)
	if types.EndDating(p.LogicalStatus) && p.EndDate.IsZero() {
		c.add("", 0, "endDate", "required for a historic or rejected property")
	}
}

func (v *Validator) checkLPI(c *checker, i int, l types.LPI, tables *lookup.Table) {
	ct := types.CollectionLPI
	if !types.ValidLogicalStatus(l.LogicalStatus) {
		c.add(ct, i, "logicalStatus", "invalid logical status")
	}
	if l.USRN <= 0 {
		c.add(ct, i, "usrn", "required")
	}
	if l.PAOText == "" && l.PAOStartNumber == 0 {
		c.add(ct, i, "paoText", "a PAO number or text is required")
	}
	c.numberRange(ct, i, "paoEndNumber", l.PAOStartNumber, l.PAOEndNumber)
	c.numberRange(ct, i, "saoEndNumber", l.SAOStartNumber, l.SAOEndNumber)
	c.dates(ct, i, l.StartDate, l.EndDate)
	if types.EndDating(l.LogicalStatus) && l.EndDate.IsZero() {
		c.add(ct, i, "endDate", "required for a historic or rejected LPI")
	}

	switch {
	case l.Language == types.LanguageEnglish:
	case v.opts.Bilingual && l.Language == v.opts.SecondLanguage:
	default:
		c.add(ct, i, "language", "unsupported language")
	}

	if tables == nil {
		return
	}
	refs := []struct {
		field string
		kind  types.LookupKind
		ref   int
	}{
		{"postcodeRef", types.LookupPostcode, l.PostcodeRef},
		{"postTownRef", types.LookupPostTown, l.PostTownRef},
		{"subLocalityRef", types.LookupSubLocality, l.SubLocalityRef},
	}
	for _, r := range refs {
		if r.ref == 0 {
			continue
		}
		if _, ok := tables.ByRef(r.kind, r.ref); !ok {
			c.add(ct, i, r.field, "unknown reference")
		}
	}
}

func checkProvenance(c *checker, i int, pr types.Provenance) {
	ct := types.CollectionProvenance
	c.required(ct, i, "provenanceCode", pr.ProvenanceCode)
	c.dates(ct, i, pr.StartDate, pr.EndDate)
	if pr.WKTGeometry == "" {
		return
	}
	if _, err := wkt.Unmarshal(pr.WKTGeometry); err != nil {
		c.add(ct, i, "wktGeometry", "not a valid geometry")
	}
}

type checker struct {
	errs []types.FieldError
}

func (c *checker) add(ct types.CollectionType, index int, field, msg string) {
	c.errs = append(c.errs, types.FieldError{Collection: ct, Index: index, Field: field, Message: msg})
}

func (c *checker) required(ct types.CollectionType, index int, field, value string) {
	if value == "" {
		c.add(ct, index, field, "required")
	}
}

func (c *checker) maxLen(ct types.CollectionType, index int, field, value string, limit int) {
	if len([]rune(value)) > limit {
		c.add(ct, index, field, fmt.Sprintf("must be at most %d characters", limit))
	}
}

func (c *checker) numberRange(ct types.CollectionType, index int, field string, start, end int) {
	if end != 0 && end < start {
		c.add(ct, index, field, "must not be before the start number")
	}
}

func (c *checker) dates(ct types.CollectionType, index int, start, end time.Time) {
	if start.IsZero() {
		c.add(ct, index, "startDate", "required")
		return
	}
	if !end.IsZero() && end.Before(start) {
		c.add(ct, index, "endDate", "must not be before the start date")
	}
}
