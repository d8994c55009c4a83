package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// ListLookups returns every reference entry ordered by table and ref.
func (b *Backend) ListLookups(ctx context.Context) ([]types.LookupEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ready(ctx); err != nil {
		return nil, err
	}
	return listLookups(ctx, b.db)
}

// AddLookup stores a new reference entry. A zero Ref is allocated as one
// past the highest ref of the entry's table.
// Returns ErrUnknownLookup for an unknown table.
func (b *Backend) AddLookup(ctx context.Context, e types.LookupEntry) (types.LookupEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ready(ctx); err != nil {
		return types.LookupEntry{}, err
	}
	if _, err := types.ParseLookupKind(string(e.Kind)); err != nil {
		return types.LookupEntry{}, err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.LookupEntry{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if e.Ref == 0 {
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(ref), 0) + 1 FROM lookups WHERE kind = ?", string(e.Kind)).Scan(&e.Ref); err != nil {
			return types.LookupEntry{}, fmt.Errorf("allocating %s ref: %w", e.Kind, err)
		}
	}
	e.ID = generateUUID()
	if err := insertLookup(tx, e); err != nil {
		return types.LookupEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.LookupEntry{}, fmt.Errorf("committing lookup: %w", err)
	}

	if err := persistLookups(ctx, b.db, b.dataDir); err != nil {
		return types.LookupEntry{}, err
	}
	b.log.Info("lookup stored", zap.String("kind", string(e.Kind)), zap.Int("ref", e.Ref))
	return e, nil
}

func insertLookup(tx *sql.Tx, e types.LookupEntry) error {
	_, err := tx.Exec(
		"INSERT INTO lookups (lookup_id, kind, ref, value, code, language, historic) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, string(e.Kind), e.Ref, e.Value, e.Code, e.Language, e.Historic,
	)
	if err != nil {
		return fmt.Errorf("inserting %s %d: %w", e.Kind, e.Ref, err)
	}
	return nil
}

func listLookups(ctx context.Context, q queryer) ([]types.LookupEntry, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT lookup_id, kind, ref, value, COALESCE(code, ''), COALESCE(language, ''), historic FROM lookups ORDER BY kind, ref")
	if err != nil {
		return nil, fmt.Errorf("listing lookups: %w", err)
	}
	defer rows.Close()

	var out []types.LookupEntry
	for rows.Next() {
		var e types.LookupEntry
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.Ref, &e.Value, &e.Code, &e.Language, &e.Historic); err != nil {
			return nil, fmt.Errorf("scanning lookup: %w", err)
		}
		e.Kind = types.LookupKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// persistLookups rewrites lookups.jsonl from the database.
func persistLookups(ctx context.Context, db *sql.DB, dataDir string) error {
	entries, err := listLookups(ctx, db)
	if err != nil {
		return err
	}
	records := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding lookup %s: %w", e.ID, err)
		}
		records = append(records, data)
	}
	if err := writeJSONL(filepath.Join(dataDir, lookupsJSONL), records); err != nil {
		return fmt.Errorf("persisting %s: %w", lookupsJSONL, err)
	}
	return nil
}
