// Package address computes the display address of an LPI.
//
// Address recompute is the second phase of an LPI edit: the edited record is
// formatted, awaited, and only then merged into the sandbox. When the
// formatter returns nothing for the record's language it is retried in
// English, and an empty address is used as a last resort.
package address

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/internal/lookup"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// Recomputer fills in the Address of LPIs.
type Recomputer struct {
	formatter types.AddressFormatter
	primary   string
	log       *zap.Logger
}

// NewRecomputer returns a Recomputer. primary is the language used for LPIs
// that carry none.
func NewRecomputer(f types.AddressFormatter, primary string, log *zap.Logger) *Recomputer {
	if primary == "" {
		primary = types.LanguageEnglish
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recomputer{formatter: f, primary: primary, log: log}
}

// Address returns the display address of lpi: in its own language, else in
// English, else empty. Formatter errors count as an empty result.
func (r *Recomputer) Address(ctx context.Context, lpi types.LPI) string {
	lang := lpi.Language
	if lang == "" {
		lang = r.primary
	}
	if a := r.try(ctx, lpi, lang); a != "" {
		return a
	}
	if lang != types.LanguageEnglish {
		if a := r.try(ctx, lpi, types.LanguageEnglish); a != "" {
			return a
		}
	}
	return ""
}

// Recompute returns lpi with its Address refreshed.
func (r *Recomputer) Recompute(ctx context.Context, lpi types.LPI) types.LPI {
	lpi.Address = r.Address(ctx, lpi)
	return lpi
}

func (r *Recomputer) try(ctx context.Context, lpi types.LPI, lang string) string {
	a, err := r.formatter.Format(ctx, lpi, lang)
	if err != nil {
		r.log.Warn("address format failed",
			zap.Int64("pkId", lpi.PKID), zap.String("language", lang), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(a)
}

// TableFormatter formats addresses from the LPI fields and the reference
// tables. Lookup entries recorded in another language are left out.
type TableFormatter struct {
	tables func() *lookup.Table
}

// NewTableFormatter returns a formatter reading the snapshot returned by
// tables on every call.
func NewTableFormatter(tables func() *lookup.Table) *TableFormatter {
	return &TableFormatter{tables: tables}
}

// Format builds "SAO, PAO, sub-locality, town, postcode". It returns an
// empty string when the LPI has neither a SAO nor a PAO.
func (f *TableFormatter) Format(ctx context.Context, lpi types.LPI, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sao := object(lpi.SAOStartNumber, lpi.SAOStartSuffix, lpi.SAOEndNumber, lpi.SAOEndSuffix, lpi.SAOText)
	pao := object(lpi.PAOStartNumber, lpi.PAOStartSuffix, lpi.PAOEndNumber, lpi.PAOEndSuffix, lpi.PAOText)
	if sao == "" && pao == "" {
		return "", nil
	}

	parts := []string{sao, pao}
	var t *lookup.Table
	if f.tables != nil {
		t = f.tables()
	}
	if t != nil {
		parts = append(parts,
			entry(t, types.LookupSubLocality, lpi.SubLocalityRef, language),
			entry(t, types.LookupPostTown, lpi.PostTownRef, language),
			entry(t, types.LookupPostcode, lpi.PostcodeRef, ""),
		)
	}
	return join(parts), nil
}

func entry(t *lookup.Table, kind types.LookupKind, ref int, language string) string {
	if ref == 0 {
		return ""
	}
	e, ok := t.ByRef(kind, ref)
	if !ok || e.Historic {
		return ""
	}
	if language != "" && e.Language != "" && e.Language != language {
		return ""
	}
	return e.Value
}

// object formats an addressable object: "TEXT 12A-14B".
func object(start int, startSuffix string, end int, endSuffix, text string) string {
	var num string
	if start > 0 {
		num = strconv.Itoa(start) + startSuffix
		if end > 0 {
			num += "-" + strconv.Itoa(end) + endSuffix
		}
	}
	return join([]string{text, num}, " ")
}

func join(parts []string, sep ...string) string {
	s := ", "
	if len(sep) > 0 {
		s = sep[0]
	}
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, s)
}
