// Package status applies a logical status change across a property and all
// of its child records in one atomic, in-memory rewrite.
package status

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// Apply returns a copy of p moved to newStatus. For an end-dating status
// (historic or rejected) the aggregate and every live LPI, cross-reference,
// provenance and Scottish-variant record is end-dated on today and marked
// updated; LPIs also take the new status. Moving to historic forces the BLPU
// state to no-longer-existing, stamped today, unless it already is. p itself
// is never modified and nothing is persisted.
//
// Returns ErrInvalidStatus if newStatus is not a recognised code.
func Apply(p types.Property, newStatus int, now time.Time) (types.Property, error) {
	if !types.ValidLogicalStatus(newStatus) {
		return types.Property{}, fmt.Errorf("%w: %d", types.ErrInvalidStatus, newStatus)
	}
	today := types.Today(now)
	out := p.Clone()

	out.LogicalStatus = newStatus
	out.ChangeType = out.ChangeType.Touched()

	if newStatus == types.StatusHistoric && out.BLPUState != types.StateNoLongerExisting {
		out.BLPUState = types.StateNoLongerExisting
		out.BLPUStateDate = today
	}

	if !types.EndDating(newStatus) {
		return out, nil
	}

	out.EndDate = today
	out.LPIs = out.LPIs.Map(func(l types.LPI) types.LPI {
		if l.ChangeType == types.ChangeDelete {
			return l
		}
		l.LogicalStatus = newStatus
		return l.WithEnd(today)
	})
	out.CrossRefs = endAll(out.CrossRefs, today)
	out.Provenances = endAll(out.Provenances, today)
	if out.Scottish != nil {
		out.Scottish.Classifications = endAll(out.Scottish.Classifications, today)
		out.Scottish.Organisations = endAll(out.Scottish.Organisations, today)
		out.Scottish.SuccessorCrossRefs = endAll(out.Scottish.SuccessorCrossRefs, today)
	}
	return out, nil
}

// endAll end-dates every record that is not soft deleted.
func endAll[T types.Record[T]](c types.Collection[T], day time.Time) types.Collection[T] {
	return c.Map(func(r T) T {
		if r.Change() == types.ChangeDelete {
			return r
		}
		return r.WithEnd(day)
	})
}

// RequiresConfirmation reports whether moving from current to next needs the
// user to confirm through the historic-record warning.
func RequiresConfirmation(current, next int) bool {
	return next == types.StatusHistoric && current != types.StatusHistoric
}
