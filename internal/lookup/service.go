package lookup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// Service keeps the current table snapshot and adds new entries through a
// store.
type Service struct {
	store types.LookupStore
	log   *zap.Logger

	mu    sync.RWMutex
	table *Table
}

// NewService loads the reference tables from store.
func NewService(ctx context.Context, store types.LookupStore, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{store: store, log: log}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Table returns the current snapshot. The snapshot is never modified; Add
// and Refresh replace it.
func (s *Service) Table() *Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Refresh reloads the snapshot from the store.
func (s *Service) Refresh(ctx context.Context) error {
	entries, err := s.store.ListLookups(ctx)
	if err != nil {
		return fmt.Errorf("load lookups: %w", err)
	}
	t := NewTable(entries...)
	s.mu.Lock()
	s.table = t
	s.mu.Unlock()
	return nil
}

// Add validates e against the snapshot, persists it and refreshes the
// snapshot. A rejected entry is returned as Errors; the snapshot and the
// store are left untouched.
func (s *Service) Add(ctx context.Context, e types.LookupEntry) (types.LookupEntry, error) {
	e = Normalize(e)
	if errs := Validate(e, s.Table()); errs != nil {
		return types.LookupEntry{}, errs
	}
	if e.Ref == 0 {
		e.Ref = s.Table().NextRef(e.Kind)
	}

	saved, err := s.store.AddLookup(ctx, e)
	if err != nil {
		return types.LookupEntry{}, fmt.Errorf("add %s lookup: %w", e.Kind, err)
	}
	if err := s.Refresh(ctx); err != nil {
		return types.LookupEntry{}, err
	}
	s.log.Info("lookup added",
		zap.String("kind", string(saved.Kind)), zap.String("value", saved.Value), zap.Int("ref", saved.Ref))
	return saved, nil
}

// FieldErrors extracts the field errors from an Add error.
func FieldErrors(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}
