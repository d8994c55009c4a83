package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/internal/bilingual"
	"github.com/mesh-intelligence/gazetteer/internal/factory"
	"github.com/mesh-intelligence/gazetteer/internal/search"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Fetch returns the saved aggregate with the given UPRN. ChildCount is
// derived from the stored parent links.
// Returns ErrNotFound if no such property exists.
func (b *Backend) Fetch(ctx context.Context, uprn int64) (types.Property, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(ctx); err != nil {
		return types.Property{}, err
	}
	return fetch(ctx, b.db, uprn)
}

func fetch(ctx context.Context, q queryer, uprn int64) (types.Property, error) {
	var body string
	err := q.QueryRowContext(ctx, "SELECT body FROM properties WHERE uprn = ?", uprn).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Property{}, fmt.Errorf("%w: %d", types.ErrNotFound, uprn)
	}
	if err != nil {
		return types.Property{}, fmt.Errorf("reading property %d: %w", uprn, err)
	}

	var p types.Property
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return types.Property{}, fmt.Errorf("decoding property %d: %w", uprn, err)
	}
	if err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM properties WHERE parent_uprn = ?", uprn).Scan(&p.ChildCount); err != nil {
		return types.Property{}, fmt.Errorf("counting children of %d: %w", uprn, err)
	}
	return p, nil
}

// Save inserts or updates an aggregate. Placeholder pkIds are replaced with
// keys allocated per collection, soft-deleted records are dropped, touched
// records are stamped and every change type is cleared. A bilingual pair
// drafted in this session gets the cross-reference that links its halves.
//
// Returns ErrValidationFailed if the aggregate has no live LPI or names a
// parent that does not exist. Returns ErrNotFound when updating a property
// that was never saved.
func (b *Backend) Save(ctx context.Context, p types.Property, isNew bool) (types.Property, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(ctx); err != nil {
		return types.Property{}, err
	}
	if p.LPIs.LiveLen() == 0 {
		return types.Property{}, fmt.Errorf("%w: property has no LPI", types.ErrValidationFailed)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Property{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := b.now().UTC()
	if isNew {
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(uprn), 0) + 1 FROM properties").Scan(&p.UPRN); err != nil {
			return types.Property{}, fmt.Errorf("allocating uprn: %w", err)
		}
		p.EntryDate = now
	} else if ok, err := exists(ctx, tx, p.UPRN); err != nil {
		return types.Property{}, err
	} else if !ok {
		return types.Property{}, fmt.Errorf("%w: %d", types.ErrNotFound, p.UPRN)
	}

	if p.ParentUPRN != 0 {
		ok, err := exists(ctx, tx, p.ParentUPRN)
		if err != nil {
			return types.Property{}, err
		}
		if !ok || p.ParentUPRN == p.UPRN {
			return types.Property{}, fmt.Errorf("%w: parent %d not found", types.ErrValidationFailed, p.ParentUPRN)
		}
	}

	p.LastUpdateDate = now
	p.ChangeType = types.ChangeNone
	g := &keyGen{ctx: ctx, tx: tx, next: map[types.CollectionType]int64{}}
	if err := b.settleAll(&p, g, now); err != nil {
		return types.Property{}, err
	}
	if err := writeProperty(tx, p, now); err != nil {
		return types.Property{}, err
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM properties WHERE parent_uprn = ?", p.UPRN).Scan(&p.ChildCount); err != nil {
		return types.Property{}, fmt.Errorf("counting children: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return types.Property{}, fmt.Errorf("committing property: %w", err)
	}

	if err := b.persistProperties(ctx); err != nil {
		return types.Property{}, err
	}
	b.log.Info("property stored", zap.Int64("uprn", p.UPRN), zap.Bool("new", isNew))
	return p, nil
}

// Delete removes a property, and its descendants when cascade is set. It
// returns every UPRN removed, the property itself first.
// Returns ErrHasChildren if the property has children and cascade is unset.
func (b *Backend) Delete(ctx context.Context, uprn int64, cascade bool) ([]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(ctx); err != nil {
		return nil, err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if ok, err := exists(ctx, tx, uprn); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrNotFound, uprn)
	}

	desc, err := uprns(ctx, tx, `WITH RECURSIVE descendants(uprn) AS (
    SELECT uprn FROM properties WHERE parent_uprn = ?
    UNION
    SELECT p.uprn FROM properties p JOIN descendants d ON p.parent_uprn = d.uprn
) SELECT uprn FROM descendants ORDER BY uprn`, uprn)
	if err != nil {
		return nil, err
	}
	if len(desc) > 0 && !cascade {
		return nil, fmt.Errorf("%w: %d has %d", types.ErrHasChildren, uprn, len(desc))
	}

	removed := append([]int64{uprn}, desc...)
	for _, u := range removed {
		if _, err := tx.ExecContext(ctx, "DELETE FROM record_keys WHERE uprn = ?", u); err != nil {
			return nil, fmt.Errorf("deleting record keys of %d: %w", u, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM properties WHERE uprn = ?", u); err != nil {
			return nil, fmt.Errorf("deleting property %d: %w", u, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}

	if err := b.persistProperties(ctx); err != nil {
		return nil, err
	}
	b.log.Info("property removed", zap.Int64("uprn", uprn), zap.Int64s("descendants", desc))
	return removed, nil
}

// UpdateChildrenPAO copies pao onto the LPIs of every direct child of the
// parent and returns the UPRNs of the children that changed.
func (b *Backend) UpdateChildrenPAO(ctx context.Context, parentUPRN int64, pao types.PAO) ([]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(ctx); err != nil {
		return nil, err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if ok, err := exists(ctx, tx, parentUPRN); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: %d", types.ErrNotFound, parentUPRN)
	}
	children, err := uprns(ctx, tx, "SELECT uprn FROM properties WHERE parent_uprn = ? ORDER BY uprn", parentUPRN)
	if err != nil {
		return nil, err
	}

	now := b.now().UTC()
	var touched []int64
	for _, c := range children {
		child, err := fetch(ctx, tx, c)
		if err != nil {
			return nil, err
		}
		changed := false
		child.LPIs = child.LPIs.Map(func(l types.LPI) types.LPI {
			if l.PAO() == pao {
				return l
			}
			changed = true
			l = l.WithPAO(pao)
			l.ChangeType = types.ChangeNone
			l.LastUpdateDate, l.LastUser = now, b.config.User
			return l
		})
		if !changed {
			continue
		}
		child.LastUpdateDate = now
		if err := writeProperty(tx, child, now); err != nil {
			return nil, err
		}
		touched = append(touched, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing child PAO update: %w", err)
	}

	if len(touched) > 0 {
		if err := b.persistProperties(ctx); err != nil {
			return nil, err
		}
	}
	return touched, nil
}

// ListSummaries returns the search summary of every stored property.
func (b *Backend) ListSummaries(ctx context.Context) ([]types.Summary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT uprn, COALESCE(parent_uprn, 0), address, logical_status FROM properties ORDER BY uprn")
	if err != nil {
		return nil, fmt.Errorf("listing properties: %w", err)
	}
	defer rows.Close()

	var out []types.Summary
	for rows.Next() {
		var s types.Summary
		if err := rows.Scan(&s.UPRN, &s.ParentUPRN, &s.Address, &s.LogicalStatus); err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// writeProperty upserts the property row and rebuilds its record keys.
// ChildCount is derived on read and never stored.
func writeProperty(tx *sql.Tx, p types.Property, at time.Time) error {
	p.ChildCount = 0
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding property %d: %w", p.UPRN, err)
	}
	var parent any
	if p.ParentUPRN > 0 {
		parent = p.ParentUPRN
	}

	_, err = tx.Exec(`INSERT INTO properties (uprn, parent_uprn, logical_status, address, body, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(uprn) DO UPDATE SET
    parent_uprn = excluded.parent_uprn,
    logical_status = excluded.logical_status,
    address = excluded.address,
    body = excluded.body,
    updated_at = excluded.updated_at`,
		p.UPRN, parent, p.LogicalStatus, search.Summarize(p).Address, string(body), at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing property %d: %w", p.UPRN, err)
	}

	if _, err := tx.Exec("DELETE FROM record_keys WHERE uprn = ?", p.UPRN); err != nil {
		return fmt.Errorf("clearing record keys of %d: %w", p.UPRN, err)
	}
	stmt, err := tx.Prepare("INSERT INTO record_keys (collection, pk_id, uprn) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing record keys: %w", err)
	}
	defer stmt.Close()
	for _, ct := range types.AllCollections {
		for _, k := range p.Keys(ct) {
			if _, err := stmt.Exec(string(ct), k, p.UPRN); err != nil {
				return fmt.Errorf("indexing %s %d: %w", ct, k, err)
			}
		}
	}
	return nil
}

// persistProperties rewrites properties.jsonl from the database.
func (b *Backend) persistProperties(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx, "SELECT body FROM properties ORDER BY uprn")
	if err != nil {
		return fmt.Errorf("reading properties for JSONL: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return fmt.Errorf("scanning property for JSONL: %w", err)
		}
		records = append(records, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(b.dataDir, propertiesJSONL), records); err != nil {
		return fmt.Errorf("persisting %s: %w", propertiesJSONL, err)
	}
	return nil
}

func exists(ctx context.Context, q queryer, uprn int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties WHERE uprn = ?", uprn).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking property %d: %w", uprn, err)
	}
	return n > 0, nil
}

func uprns(ctx context.Context, q queryer, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying properties: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var u int64
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning uprn: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// keyGen allocates pkIds per collection, continuing from the highest key
// already stored.
type keyGen struct {
	ctx  context.Context
	tx   *sql.Tx
	next map[types.CollectionType]int64
}

func (g *keyGen) take(ct types.CollectionType) (int64, error) {
	n, ok := g.next[ct]
	if !ok {
		err := g.tx.QueryRowContext(g.ctx,
			"SELECT COALESCE(MAX(pk_id), 0) FROM record_keys WHERE collection = ?", string(ct)).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("allocating %s key: %w", ct, err)
		}
	}
	n++
	g.next[ct] = n
	return n, nil
}

// settle drops soft-deleted records, gives drafts a persistent key and
// stamps every record that changed.
func settle[T types.Record[T]](c types.Collection[T], ct types.CollectionType, g *keyGen,
	stamp func(r T, isNew bool) T) (types.Collection[T], error) {
	var out []T
	for _, r := range c.All() {
		if r.Change() == types.ChangeDelete {
			continue
		}
		isNew := r.Key() < 0
		if isNew {
			k, err := g.take(ct)
			if err != nil {
				return types.Collection[T]{}, err
			}
			r = r.WithKey(k)
		}
		if isNew || r.Change() != types.ChangeNone {
			r = stamp(r, isNew)
		}
		out = append(out, r.WithChange(types.ChangeNone))
	}
	return types.NewCollection(out...), nil
}

// recordKey builds the external key of a record: the authority code, a
// letter for the record type and the pkId.
func recordKey(authority int, kind byte, pkID int64) string {
	return fmt.Sprintf("%04d%c%09d", authority, kind, pkID)
}

type audit struct {
	uprn int64
	now  time.Time
	user string
}

func (a audit) dates(isNew bool, entry, update *time.Time) {
	if isNew {
		*entry = a.now
	}
	*update = a.now
}

func (b *Backend) settleAll(p *types.Property, g *keyGen, now time.Time) error {
	a := audit{uprn: p.UPRN, now: now, user: p.LastUser}
	au := b.config.Authority.Code
	var err error

	if p.LPIs, err = settle(p.LPIs, types.CollectionLPI, g, func(r types.LPI, isNew bool) types.LPI {
		r.UPRN, r.LastUser = a.uprn, a.user
		a.dates(isNew, &r.EntryDate, &r.LastUpdateDate)
		if r.LPIKey == "" {
			r.LPIKey = recordKey(au, 'L', r.PKID)
		}
		return r
	}); err != nil {
		return err
	}

	b.linkDraftPairs(p, now)

	if p.CrossRefs, err = settle(p.CrossRefs, types.CollectionCrossRef, g, func(r types.CrossRef, isNew bool) types.CrossRef {
		r.UPRN, r.LastUser = a.uprn, a.user
		a.dates(isNew, &r.EntryDate, &r.LastUpdateDate)
		if r.XRefKey == "" {
			r.XRefKey = recordKey(au, 'X', r.PKID)
		}
		return r
	}); err != nil {
		return err
	}
	if p.Provenances, err = settle(p.Provenances, types.CollectionProvenance, g, func(r types.Provenance, isNew bool) types.Provenance {
		r.UPRN, r.LastUser = a.uprn, a.user
		a.dates(isNew, &r.EntryDate, &r.LastUpdateDate)
		if r.ProvenanceKey == "" {
			r.ProvenanceKey = recordKey(au, 'P', r.PKID)
		}
		return r
	}); err != nil {
		return err
	}
	if p.Notes, err = settle(p.Notes, types.CollectionNote, g, func(r types.Note, isNew bool) types.Note {
		r.UPRN, r.LastUser = a.uprn, a.user
		a.dates(isNew, &r.EntryDate, &r.LastUpdateDate)
		return r
	}); err != nil {
		return err
	}

	s := p.Scottish
	if s == nil {
		return nil
	}
	if s.Classifications, err = settle(s.Classifications, types.CollectionClassification, g, func(r types.Classification, isNew bool) types.Classification {
		r.UPRN, r.LastUser = a.uprn, a.user
		a.dates(isNew, &r.EntryDate, &r.LastUpdateDate)
		if r.ClassKey == "" {
			r.ClassKey = recordKey(au, 'C', r.PKID)
		}
		return r
	}); err != nil {
		return err
	}
	if s.Organisations, err = settle(s.Organisations, types.CollectionOrganisation, g, func(r types.Organisation, isNew bool) types.Organisation {
		r.UPRN, r.LastUser = a.uprn, a.user
		a.dates(isNew, &r.EntryDate, &r.LastUpdateDate)
		if r.OrgKey == "" {
			r.OrgKey = recordKey(au, 'O', r.PKID)
		}
		return r
	}); err != nil {
		return err
	}
	if s.SuccessorCrossRefs, err = settle(s.SuccessorCrossRefs, types.CollectionSuccessor, g, func(r types.SuccessorCrossRef, isNew bool) types.SuccessorCrossRef {
		r.UPRN, r.LastUser = a.uprn, a.user
		a.dates(isNew, &r.EntryDate, &r.LastUpdateDate)
		if r.SuccKey == "" {
			r.SuccKey = recordKey(au, 'S', r.PKID)
		}
		return r
	}); err != nil {
		return err
	}
	return nil
}

// linkDraftPairs adds a link cross-reference for every bilingual pair that
// shares a dual language link but is not yet linked. The English key comes
// first in the link value.
func (b *Backend) linkDraftPairs(p *types.Property, now time.Time) {
	links := bilingual.NewLinker(b.config.EffectiveBilingualSourceID())
	groups := map[int][]types.LPI{}
	for _, l := range p.LPIs.All() {
		if l.DualLanguageLink > 0 {
			groups[l.DualLanguageLink] = append(groups[l.DualLanguageLink], l)
		}
	}
	dll := make([]int, 0, len(groups))
	for k := range groups {
		dll = append(dll, k)
	}
	sort.Ints(dll)

	for _, k := range dll {
		pair := groups[k]
		if len(pair) != 2 || pair[0].Language == pair[1].Language {
			continue
		}
		if pr, _, err := links.PairOf(*p, pair[0]); err != nil || pr.Link != 0 {
			continue
		}
		if pair[1].Language == types.LanguageEnglish {
			pair[0], pair[1] = pair[1], pair[0]
		}
		x := types.CrossRef{
			PKID:           factory.NextPlaceholder(p.CrossRefs.Keys()),
			UPRN:           p.UPRN,
			SourceID:       b.config.EffectiveBilingualSourceID(),
			CrossReference: pair[0].LPIKey + pair[1].LPIKey,
			StartDate:      types.Today(now),
			ChangeType:     types.ChangeInsert,
		}
		p.CrossRefs = p.CrossRefs.Upsert(x)
		b.log.Debug("bilingual pair linked", zap.String("link", x.CrossReference))
	}
}
