// Package sqlite stores property aggregates and reference tables. JSONL files
// in the data directory are the source of truth; SQLite is the query engine,
// rebuilt from the files on every Attach.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

const dbFile = "gazetteer.db"

var (
	_ types.PropertyStore = (*Backend)(nil)
	_ types.LookupStore   = (*Backend)(nil)
	_ types.Store         = (*Backend)(nil)
)

// Backend implements PropertyStore and LookupStore.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	dataDir  string
	db       *sql.DB
	log      *zap.Logger
	now      func() time.Time
}

// NewBackend returns a detached backend; call Attach before use.
func NewBackend(log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{log: log, now: time.Now}
}

// Attach creates the data directory and any missing JSONL files, builds a
// fresh database from the files and seeds the reference tables on first run.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	_ = os.Remove(dbPath)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return err
	}
	if err := initJSONLFiles(dataDir); err != nil {
		db.Close()
		return err
	}
	if err := loadAllJSONL(db, dataDir, b.log); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}
	if err := seedLookups(db, dataDir, config); err != nil {
		db.Close()
		return fmt.Errorf("seed lookups: %w", err)
	}

	b.db = db
	b.config = config
	b.dataDir = dataDir
	b.attached = true
	b.log.Debug("store attached", zap.String("dataDir", dataDir))
	return nil
}

// Detach closes the database. It is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return err
	}
	b.db = nil
	b.attached = false
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := append([]string{"PRAGMA foreign_keys = ON"}, schemaDDL...)
	stmts = append(stmts, indexDDL...)
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// ready returns ErrStoreDetached when the backend is not attached, or the
// context error when ctx is done. The caller must hold b.mu.
func (b *Backend) ready(ctx context.Context) error {
	if !b.attached {
		return types.ErrStoreDetached
	}
	return ctx.Err()
}

// generateUUID generates a UUID v7, falling back to v4.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
