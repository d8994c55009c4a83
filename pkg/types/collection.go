package types

import (
	"encoding/json"
	"fmt"
)

// Collection is an ordered set of child records keyed by pkId. A Collection
// is never modified after construction: every mutating method returns a new
// Collection with a fresh backing array and index, so callers can hold on to
// older snapshots safely.
type Collection[T Record[T]] struct {
	items []T
	index map[int64]int
}

// NewCollection builds a collection from records in order. When two records
// share a pkId the later one wins.
func NewCollection[T Record[T]](records ...T) Collection[T] {
	c := Collection[T]{
		items: make([]T, 0, len(records)),
		index: make(map[int64]int, len(records)),
	}
	for _, r := range records {
		if i, ok := c.index[r.Key()]; ok {
			c.items[i] = r
			continue
		}
		c.index[r.Key()] = len(c.items)
		c.items = append(c.items, r)
	}
	return c
}

// Len returns the number of records, soft-deleted ones included.
func (c Collection[T]) Len() int { return len(c.items) }

// LiveLen returns the number of records that are not soft deleted.
func (c Collection[T]) LiveLen() int {
	n := 0
	for _, r := range c.items {
		if r.Change() != ChangeDelete {
			n++
		}
	}
	return n
}

// All returns a copy of every record in order.
func (c Collection[T]) All() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Live returns the records a list view shows: those whose change type is
// not ChangeDelete.
func (c Collection[T]) Live() []T {
	out := make([]T, 0, len(c.items))
	for _, r := range c.items {
		if r.Change() != ChangeDelete {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns an equal collection with its own backing array.
func (c Collection[T]) Clone() Collection[T] {
	return NewCollection(c.items...)
}

// Keys returns every pkId in order.
func (c Collection[T]) Keys() []int64 {
	out := make([]int64, len(c.items))
	for i, r := range c.items {
		out[i] = r.Key()
	}
	return out
}

// Get returns the record with the given pkId.
func (c Collection[T]) Get(pkID int64) (T, bool) {
	i, ok := c.index[pkID]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// Has reports whether a record with the given pkId exists.
func (c Collection[T]) Has(pkID int64) bool {
	_, ok := c.index[pkID]
	return ok
}

// LiveIndex returns the position of pkId within Live(), or -1 if the record
// is missing or soft deleted.
func (c Collection[T]) LiveIndex(pkID int64) int {
	n := 0
	for _, r := range c.items {
		if r.Change() == ChangeDelete {
			continue
		}
		if r.Key() == pkID {
			return n
		}
		n++
	}
	return -1
}

// MinKey returns the smallest pkId, or 0 for an empty collection.
func (c Collection[T]) MinKey() int64 {
	var m int64
	for i, r := range c.items {
		if i == 0 || r.Key() < m {
			m = r.Key()
		}
	}
	return m
}

// Upsert returns a collection where each of recs replaces the record sharing
// its pkId, or is appended when no such record exists.
func (c Collection[T]) Upsert(recs ...T) Collection[T] {
	items := c.All()
	items = append(items, recs...)
	return NewCollection(items...)
}

// Remove returns a collection without the records with the given pkIds.
// Unknown ids are ignored.
func (c Collection[T]) Remove(pkIDs ...int64) Collection[T] {
	drop := make(map[int64]bool, len(pkIDs))
	for _, id := range pkIDs {
		drop[id] = true
	}
	kept := make([]T, 0, len(c.items))
	for _, r := range c.items {
		if !drop[r.Key()] {
			kept = append(kept, r)
		}
	}
	return NewCollection(kept...)
}

// Map returns a collection with fn applied to every record. fn must not
// change pkIds.
func (c Collection[T]) Map(fn func(T) T) Collection[T] {
	out := make([]T, len(c.items))
	for i, r := range c.items {
		out[i] = fn(r)
	}
	return NewCollection(out...)
}

// Equal reports whether both collections hold the same records in the same
// order, ignoring volatile fields.
func (c Collection[T]) Equal(o Collection[T]) bool {
	if len(c.items) != len(o.items) {
		return false
	}
	for i := range c.items {
		if c.items[i].Stable() != o.items[i].Stable() {
			return false
		}
	}
	return true
}

// Validate checks the pkId invariants: no zero keys and no duplicates.
func (c Collection[T]) Validate() error {
	seen := make(map[int64]bool, len(c.items))
	for _, r := range c.items {
		if r.Key() == 0 {
			return fmt.Errorf("%w: zero pkId", ErrInvalidKey)
		}
		if seen[r.Key()] {
			return fmt.Errorf("%w: duplicate pkId %d", ErrInvalidKey, r.Key())
		}
		seen[r.Key()] = true
	}
	return nil
}

// MarshalJSON encodes the collection as a JSON array.
func (c Collection[T]) MarshalJSON() ([]byte, error) {
	if c.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.items)
}

// UnmarshalJSON decodes a JSON array into the collection.
func (c *Collection[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*c = NewCollection(items...)
	return nil
}
