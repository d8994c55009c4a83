package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// builtInLookups are the reference entries every gazetteer starts with. The
// bilingual link source is added separately because its code is configured.
var builtInLookups = []types.LookupEntry{
	{Kind: types.LookupCrossRefSource, Code: "VOA", Value: "Valuation Office Agency"},
	{Kind: types.LookupCrossRefSource, Code: "CTAX", Value: "Council Tax"},
	{Kind: types.LookupCrossRefSource, Code: "NDR", Value: "Non-domestic rates"},
}

// seedLookups fills an empty lookups table on first run and writes the
// result to lookups.jsonl. It does nothing once any entry exists.
func seedLookups(db *sql.DB, dataDir string, config types.Config) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM lookups").Scan(&count); err != nil {
		return fmt.Errorf("counting lookups: %w", err)
	}
	if count > 0 {
		return nil
	}

	seeds := append([]types.LookupEntry{{
		Kind:  types.LookupCrossRefSource,
		Code:  config.EffectiveBilingualSourceID(),
		Value: "Bilingual LPI link",
	}}, builtInLookups...)
	if config.Authority.Code > 0 {
		code := fmt.Sprintf("%04d", config.Authority.Code)
		seeds = append(seeds, types.LookupEntry{
			Kind:  types.LookupAuthority,
			Code:  code,
			Value: "Authority " + code,
		})
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	refs := map[types.LookupKind]int{}
	for _, e := range seeds {
		refs[e.Kind]++
		e.Ref = refs[e.Kind]
		e.ID = generateUUID()
		if err := insertLookup(tx, e); err != nil {
			return fmt.Errorf("seeding %s: %w", e.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}
	return persistLookups(context.Background(), db, dataDir)
}
