package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// loadAllJSONL reads the JSONL files into the database in one transaction:
// either everything loads or the database stays empty. Lines that do not
// decode, or that collide with an earlier record, are skipped and logged.
func loadAllJSONL(db *sql.DB, dataDir string, log *zap.Logger) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	props, err := readJSONL(filepath.Join(dataDir, propertiesJSONL))
	if err != nil {
		return err
	}
	loaded := 0
	for i, raw := range props {
		var p types.Property
		if err := json.Unmarshal(raw, &p); err != nil || p.UPRN <= 0 {
			log.Warn("skipping property record", zap.Int("line", i+1), zap.Error(err))
			continue
		}
		if _, err := tx.Exec("SAVEPOINT load_property"); err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		if err := writeProperty(tx, p, p.LastUpdateDate); err != nil {
			if _, rerr := tx.Exec("ROLLBACK TO load_property"); rerr != nil {
				return fmt.Errorf("rollback to savepoint: %w", rerr)
			}
			log.Warn("skipping property record", zap.Int("line", i+1), zap.Int64("uprn", p.UPRN), zap.Error(err))
		} else {
			loaded++
		}
		if _, err := tx.Exec("RELEASE load_property"); err != nil {
			return fmt.Errorf("release savepoint: %w", err)
		}
	}

	lookups, err := readJSONL(filepath.Join(dataDir, lookupsJSONL))
	if err != nil {
		return err
	}
	for i, raw := range lookups {
		var e types.LookupEntry
		if err := json.Unmarshal(raw, &e); err != nil || e.ID == "" {
			log.Warn("skipping lookup record", zap.Int("line", i+1), zap.Error(err))
			continue
		}
		if err := insertLookup(tx, e); err != nil {
			log.Warn("skipping lookup record", zap.Int("line", i+1), zap.String("id", e.ID), zap.Error(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	log.Debug("JSONL loaded", zap.Int("properties", loaded), zap.Int("lookups", len(lookups)))
	return nil
}
