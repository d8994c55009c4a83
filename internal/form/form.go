// Package form orchestrates one open property form: it owns the sandbox,
// the tab machine and the delete handler, and turns user actions (edit,
// save, cancel, leave, status change, delete, map geometry edits) into
// sandbox updates and collaborator calls.
//
// Actions are serialised: each one is applied completely before the next
// starts. Collaborator failures never escape as panics; they are returned as
// errors and recorded as the form's dismissible Alert.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/gazetteer/internal/address"
	"github.com/mesh-intelligence/gazetteer/internal/bilingual"
	"github.com/mesh-intelligence/gazetteer/internal/changes"
	"github.com/mesh-intelligence/gazetteer/internal/deletion"
	"github.com/mesh-intelligence/gazetteer/internal/factory"
	"github.com/mesh-intelligence/gazetteer/internal/sandbox"
	"github.com/mesh-intelligence/gazetteer/internal/tabs"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// AlertKind classifies the dismissible alert a form may be showing.
type AlertKind string

// Alert kinds.
const (
	AlertNone             AlertKind = ""
	AlertValidation       AlertKind = "validation"
	AlertFailedToValidate AlertKind = "failedToValidate"
	AlertFailedToSave     AlertKind = "failedToSave"
	AlertFailedToDelete   AlertKind = "failedToDelete"
)

// Alert is a user-visible failure. Err is the underlying cause.
type Alert struct {
	Kind AlertKind
	Err  error
}

// Config wires a form to its collaborators. Store and Validator are
// required; the rest may be nil.
type Config struct {
	Variant           types.Variant
	Settings          factory.Settings
	BilingualSourceID string

	Store     types.PropertyStore
	Validator types.Validator
	Address   *address.Recomputer
	Confirmer types.Confirmer
	Maps      types.MapSink
	Edit      types.EditContext
	Search    types.SearchSink

	Now func() time.Time
	Log *zap.Logger
}

func (c *Config) defaults() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
}

// Form is one open property form.
type Form struct {
	id  string
	cfg Config
	log *zap.Logger

	mu              sync.Mutex
	saving          atomic.Bool
	geometryChanged bool
	alert           Alert

	sb      *sandbox.Sandbox
	tabs    *tabs.Machine
	del     *deletion.Handler
	factory *factory.Factory
	links   bilingual.Linker
}

// New opens a form on p.
func New(cfg Config, p types.Property) *Form {
	cfg.defaults()
	id := sessionID()
	log := cfg.Log.With(zap.String("session", id), zap.Int64("uprn", p.UPRN))

	f := &Form{id: id, cfg: cfg, log: log}
	f.sb = sandbox.New(p, cfg.Maps, log)
	f.factory = factory.New(cfg.Settings, cfg.Now)
	f.del = deletion.New(f.sb, cfg.BilingualSourceID, log)
	f.links = bilingual.NewLinker(cfg.BilingualSourceID)
	f.tabs = tabs.New(tabs.Config{
		Variant:   cfg.Variant,
		Sandbox:   f.sb,
		Validator: cfg.Validator,
		Factory:   f.factory,
		Maps:      cfg.Maps,
		Edit:      cfg.Edit,
	})
	f.sb.EmitExtents()
	return f
}

// Open fetches the property with the given UPRN and opens a form on it. A
// zero UPRN opens a blank new property.
// Returns ErrNotFound if the store has no such property.
func Open(ctx context.Context, cfg Config, uprn int64) (*Form, error) {
	cfg.defaults()
	if uprn == 0 {
		return New(cfg, Blank(cfg.Variant, cfg.Settings.User, cfg.Now())), nil
	}
	p, err := cfg.Store.Fetch(ctx, uprn)
	if err != nil {
		return nil, fmt.Errorf("open property %d: %w", uprn, err)
	}
	if p.Variant() != cfg.Variant {
		return nil, fmt.Errorf("open property %d: %w", uprn, types.ErrWrongVariant)
	}
	return New(cfg, p), nil
}

// Blank returns an unsaved property of the given variant.
func Blank(v types.Variant, user string, now time.Time) types.Property {
	today := types.Today(now)
	p := types.NewProperty(v)
	p.LogicalStatus = types.StatusProvisional
	p.StartDate = today
	p.EntryDate = today
	p.LastUpdateDate = today
	p.LastUser = user
	p.ChangeType = types.ChangeInsert
	return p
}

func sessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// ID returns the session id of the form.
func (f *Form) ID() string { return f.id }

// Sandbox returns the form's sandbox.
func (f *Form) Sandbox() *sandbox.Sandbox { return f.sb }

// Tabs returns the form's tab machine.
func (f *Form) Tabs() *tabs.Machine { return f.tabs }

// Property returns the current snapshot.
func (f *Form) Property() types.Property { return f.sb.Current() }

// Dirty reports whether there are unsaved changes, including map geometry
// edits.
func (f *Form) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.geometryChanged || f.sb.Dirty()
}

// Saving reports whether a save is in flight.
func (f *Form) Saving() bool { return f.saving.Load() }

// Alert returns the alert being shown.
func (f *Form) Alert() Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alert
}

// DismissAlert clears the alert.
func (f *Form) DismissAlert() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alert = Alert{}
}

// ChangedRecords lists the labels of the child collections with unsaved
// changes.
func (f *Form) ChangedRecords() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return changes.ChangedAssociatedRecords(f.sb.State(), f.geometryChanged)
}

// ChangeTab switches tabs through the validation gate.
func (f *Form) ChangeTab(target int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.tabs.RequestTabChange(target); err != nil {
		if errors.Is(err, types.ErrValidationFailed) {
			f.alert = Alert{Kind: AlertValidation, Err: err}
		}
		return err
	}
	return nil
}

// OpenRecord opens, creates (pkID 0) or closes (pkID -1) a child record.
func (f *Form) OpenRecord(ct types.CollectionType, pkID int64, index, total int) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs.RequestRecordOpen(ct, pkID, index, total)
}

// GoToField jumps to a field named by a validation error.
func (f *Form) GoToField(fe types.FieldError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs.GoToField(fe.Collection, fe.Index, fe.Field)
}

// SetBLPU applies edit to the property's own fields.
func (f *Form) SetBLPU(edit func(b *types.BLPU)) types.Property {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.sb.Current().BLPU
	edit(&b)
	b.ChangeType = b.ChangeType.Touched()
	return f.sb.SetBLPU(b)
}

// Edit stores rec as the in-progress edit of its collection without merging
// it.
func (f *Form) Edit(ct types.CollectionType, rec any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sb.SetEdit(ct, rec)
}
