// Package search holds the in-memory property search cache the form keeps
// up to date after saves and deletes.
package search

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// Cache is a concurrency-safe set of property summaries keyed by UPRN. It
// implements types.SearchSink.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]types.Summary
}

// New returns a cache holding summaries.
func New(summaries ...types.Summary) *Cache {
	c := &Cache{entries: make(map[int64]types.Summary, len(summaries))}
	for _, s := range summaries {
		c.entries[s.UPRN] = s
	}
	return c
}

// Upsert adds or replaces the summary of one property.
func (c *Cache) Upsert(s types.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.UPRN] = s
}

// Remove drops the given properties. Unknown UPRNs are ignored.
func (c *Cache) Remove(uprns ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range uprns {
		delete(c.entries, u)
	}
}

// Get returns the summary of one property.
func (c *Cache) Get(uprn int64) (types.Summary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[uprn]
	return s, ok
}

// Len returns the number of cached properties.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Descendants returns the UPRNs of every child, grandchild and so on of
// uprn, in breadth-first order.
func (c *Cache) Descendants(uprn int64) []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	children := make(map[int64][]int64)
	for _, s := range c.entries {
		if s.ParentUPRN != 0 {
			children[s.ParentUPRN] = append(children[s.ParentUPRN], s.UPRN)
		}
	}
	for _, kids := range children {
		sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
	}

	var out []int64
	seen := map[int64]bool{uprn: true}
	queue := []int64{uprn}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, k := range children[next] {
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
			queue = append(queue, k)
		}
	}
	return out
}

// Search returns up to limit summaries whose address contains every word of
// query, ignoring case, ordered by address then UPRN. limit <= 0 means no
// limit.
func (c *Cache) Search(query string, limit int) []types.Summary {
	words := strings.Fields(cases.Fold().String(query))

	c.mu.RLock()
	var out []types.Summary
	for _, s := range c.entries {
		addr := cases.Fold().String(s.Address)
		match := true
		for _, w := range words {
			if !strings.Contains(addr, w) {
				match = false
				break
			}
		}
		if match {
			out = append(out, s)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Address != out[j].Address {
			return out[i].Address < out[j].Address
		}
		return out[i].UPRN < out[j].UPRN
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Summarize builds the search summary of a property. The address is that of
// the first live English LPI, or of the first live LPI when none is English.
func Summarize(p types.Property) types.Summary {
	s := types.Summary{UPRN: p.UPRN, ParentUPRN: p.ParentUPRN, LogicalStatus: p.LogicalStatus}
	live := p.LPIs.Live()
	for _, l := range live {
		if l.Language == types.LanguageEnglish {
			s.Address = l.Address
			return s
		}
	}
	if len(live) > 0 {
		s.Address = live[0].Address
	}
	return s
}
