// Package bilingual locates the two halves of a bilingual LPI pair.
//
// A saved pair is linked by an application cross-reference with the
// bilingual source id whose value contains both LPI keys. A pair still being
// drafted has no keys yet and is matched on its shared dual language link.
package bilingual

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// Pair is one LPI's partner and the cross-reference linking them. Link is 0
// for a draft pair matched on its dual language link.
type Pair struct {
	Partner int64
	Link    int64
}

// Linker finds pairs using a configured bilingual source id.
type Linker struct {
	source string
}

// NewLinker returns a Linker. An empty sourceID selects the default.
func NewLinker(sourceID string) Linker {
	if sourceID == "" {
		sourceID = types.DefaultBilingualSourceID
	}
	return Linker{source: sourceID}
}

// IsLink reports whether x is a bilingual link cross-reference.
func (k Linker) IsLink(x types.CrossRef) bool {
	return x.SourceID == k.source
}

// PairOf returns the partner of lpi. ok is false when lpi is not part of a
// pair. A link cross-reference naming lpi whose partner cannot be found is
// ErrMissingPair.
func (k Linker) PairOf(p types.Property, lpi types.LPI) (pair Pair, ok bool, err error) {
	if lpi.LPIKey != "" {
		for _, x := range p.CrossRefs.All() {
			if !k.IsLink(x) || !strings.Contains(x.CrossReference, lpi.LPIKey) {
				continue
			}
			for _, other := range Linked(p, x) {
				if other != lpi.PKID {
					return Pair{Partner: other, Link: x.PKID}, true, nil
				}
			}
			return Pair{}, false, fmt.Errorf("%w: lpi %d via cross reference %d",
				types.ErrMissingPair, lpi.PKID, x.PKID)
		}
	}
	if lpi.DualLanguageLink > 0 {
		for _, other := range p.LPIs.All() {
			if other.PKID != lpi.PKID && other.DualLanguageLink == lpi.DualLanguageLink &&
				other.Language != lpi.Language {
				return Pair{Partner: other.PKID}, true, nil
			}
		}
	}
	return Pair{}, false, nil
}

// Linked returns the LPIs whose key appears in the value of x.
func Linked(p types.Property, x types.CrossRef) []int64 {
	var out []int64
	for _, l := range p.LPIs.All() {
		if l.LPIKey != "" && strings.Contains(x.CrossReference, l.LPIKey) {
			out = append(out, l.PKID)
		}
	}
	return out
}

// Mirror copies the language-independent fields of src onto its partner dst
// and marks dst updated. Text fields and the language stay as they are.
func Mirror(src, dst types.LPI) types.LPI {
	dst.USRN = src.USRN
	dst.LogicalStatus = src.LogicalStatus
	dst.SAOStartNumber, dst.SAOStartSuffix = src.SAOStartNumber, src.SAOStartSuffix
	dst.SAOEndNumber, dst.SAOEndSuffix = src.SAOEndNumber, src.SAOEndSuffix
	dst.PAOStartNumber, dst.PAOStartSuffix = src.PAOStartNumber, src.PAOStartSuffix
	dst.PAOEndNumber, dst.PAOEndSuffix = src.PAOEndNumber, src.PAOEndSuffix
	dst.PostcodeRef = src.PostcodeRef
	dst.Level = src.Level
	dst.OfficialFlag = src.OfficialFlag
	dst.PostalAddress = src.PostalAddress
	dst.StartDate, dst.EndDate = src.StartDate, src.EndDate
	dst.ChangeType = dst.ChangeType.Touched()
	return dst
}
