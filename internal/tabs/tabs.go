// Package tabs implements the tab and focus state machine of a property form.
//
// The machine tracks which tab is visible and, per tab, whether a child
// record is open in detail view. Leaving a tab while the property is dirty
// and a record is open is gated on aggregate validation. Focus jumps from a
// validation summary bypass the gate.
package tabs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/gazetteer/internal/factory"
	"github.com/mesh-intelligence/gazetteer/internal/sandbox"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

// ErrUnknownTab is returned for a tab index outside the visible set.
var ErrUnknownTab = errors.New("unknown tab")

// Tab names one page of the form.
type Tab string

// Tabs of the property form.
const (
	TabDetails        Tab = "details"
	TabClassification Tab = "classification"
	TabOrganisation   Tab = "organisation"
	TabSuccessor      Tab = "successor"
	TabProvenance     Tab = "provenance"
	TabCrossRef       Tab = "crossRef"
	TabRelated        Tab = "related"
	TabNotes          Tab = "notes"
	TabHistory        Tab = "history"
)

var standardTabs = []Tab{TabDetails, TabProvenance, TabCrossRef, TabRelated, TabNotes, TabHistory}

var scottishTabs = []Tab{
	TabDetails, TabClassification, TabOrganisation, TabSuccessor,
	TabProvenance, TabCrossRef, TabRelated, TabNotes, TabHistory,
}

// tabCollections maps each tab to the child collection listed on it. The
// details tab lists LPIs.
var tabCollections = map[Tab]types.CollectionType{
	TabDetails:        types.CollectionLPI,
	TabClassification: types.CollectionClassification,
	TabOrganisation:   types.CollectionOrganisation,
	TabSuccessor:      types.CollectionSuccessor,
	TabProvenance:     types.CollectionProvenance,
	TabCrossRef:       types.CollectionCrossRef,
	TabNotes:          types.CollectionNote,
}

// Layout returns the visible tabs for a variant, in index order.
func Layout(v types.Variant) []Tab {
	if v == types.VariantScottish {
		return append([]Tab(nil), scottishTabs...)
	}
	return append([]Tab(nil), standardTabs...)
}

// Collection returns the child collection a tab lists, if any.
func (t Tab) Collection() (types.CollectionType, bool) {
	ct, ok := tabCollections[t]
	return ct, ok
}

// View is the detail sub-state of a tab: one record open for edit.
type View struct {
	Collection types.CollectionType
	PKID       int64
	Index      int
	Total      int
}

// Config holds the collaborators of a Machine. Maps and Edit may be nil.
type Config struct {
	Variant   types.Variant
	Sandbox   *sandbox.Sandbox
	Validator types.Validator
	Factory   *factory.Factory
	Maps      types.MapSink
	Edit      types.EditContext
}

// Machine is the tab and focus state of one open form. It lives as long as
// the form.
type Machine struct {
	mu         sync.Mutex
	tabs       []Tab
	current    int
	views      map[int]View
	resume     map[types.CollectionType]any
	focusField string
	editObject *types.EditObject

	sb        *sandbox.Sandbox
	validator types.Validator
	factory   *factory.Factory
	maps      types.MapSink
	edit      types.EditContext
}

// New returns a machine showing the details tab in list view.
func New(cfg Config) *Machine {
	return &Machine{
		tabs:      Layout(cfg.Variant),
		views:     make(map[int]View),
		resume:    make(map[types.CollectionType]any),
		sb:        cfg.Sandbox,
		validator: cfg.Validator,
		factory:   cfg.Factory,
		maps:      cfg.Maps,
		edit:      cfg.Edit,
	}
}

// Tabs returns the visible tabs.
func (m *Machine) Tabs() []Tab {
	return append([]Tab(nil), m.tabs...)
}

// Current returns the index of the visible tab.
func (m *Machine) Current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentTab returns the visible tab.
func (m *Machine) CurrentTab() Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tabs[m.current]
}

// Detail returns the open record of the visible tab, if any.
func (m *Machine) Detail() (View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.views[m.current]
	return v, ok
}

// FocusField returns the field that should take input focus, set by the
// last GoToField.
func (m *Machine) FocusField() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focusField
}

// IndexOf returns the index of the tab listing ct, or -1.
func (m *Machine) IndexOf(ct types.CollectionType) int {
	for i, t := range m.tabs {
		if c, ok := t.Collection(); ok && c == ct {
			return i
		}
	}
	return -1
}

// RequestTabChange switches to target. When the property is dirty and the
// tab being left has a record open, the aggregate must validate first;
// otherwise ErrValidationFailed is returned and the tab does not change. The
// in-progress edit of the tab being left is kept so reopening the record
// resumes it.
func (m *Machine) RequestTabChange(target int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if target < 0 || target >= len(m.tabs) {
		return fmt.Errorf("%w: %d", ErrUnknownTab, target)
	}
	if target == m.current {
		return nil
	}

	view, open := m.views[m.current]
	if open && m.sb.Dirty() && m.validator != nil && !m.validator.Validate(m.sb.Current()) {
		return types.ErrValidationFailed
	}
	if open {
		if rec, ok := m.sb.ActiveEdit(view.Collection); ok {
			m.resume[view.Collection] = rec
		}
	}

	m.current = target
	m.focusField = ""
	m.notify(string(m.tabs[target]))
	return nil
}

// RequestRecordOpen changes the detail sub-state of the tab listing ct and
// makes that tab visible. pkID -1 closes the open record and returns to the
// list. pkID 0 creates a draft through the factory, merges it and opens it.
// Any other pkID opens that record. index and total are the position of the
// record in the list for previous/next navigation; for a new draft they are
// computed. It returns the record now open, or nil after a close.
func (m *Machine) RequestRecordOpen(ct types.CollectionType, pkID int64, index, total int) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openLocked(ct, pkID, index, total)
}

func (m *Machine) openLocked(ct types.CollectionType, pkID int64, index, total int) (any, error) {
	tab := m.IndexOf(ct)
	if tab < 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrWrongVariant, ct)
	}

	switch pkID {
	case -1:
		delete(m.views, tab)
		m.sb.ClearEdit(ct)
		m.current = tab
		m.unbindMap(nil)
		m.notify(string(ct))
		return nil, nil

	case 0:
		if m.factory == nil {
			return nil, fmt.Errorf("create %s: no record factory", ct)
		}
		draft, err := m.factory.CreateDraft(ct, m.sb.Current())
		if err != nil {
			return nil, err
		}
		p, err := m.sb.Upsert(draft.Records...)
		if err != nil {
			return nil, err
		}
		pkID = draft.Key
		index = liveIndex(p, ct, pkID)
		total = p.LiveCount(ct)
	}

	p := m.sb.Current()
	rec, ok := p.Record(ct, pkID)
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", types.ErrRecordNotFound, ct, pkID)
	}
	if prev, ok := m.resume[ct]; ok && keyOf(prev) == pkID {
		rec = prev
	}
	delete(m.resume, ct)

	m.sb.SetEdit(ct, rec)
	m.views[tab] = View{Collection: ct, PKID: pkID, Index: index, Total: total}
	m.current = tab
	m.unbindMap(&types.EditObject{Collection: ct, PKID: pkID})
	m.notify(string(ct))
	return rec, nil
}

// Step opens the previous (delta -1) or next (delta 1) live record of the
// open record's collection, wrapping at either end.
func (m *Machine) Step(delta int) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	view, ok := m.views[m.current]
	if !ok {
		return nil, fmt.Errorf("step: %w", types.ErrRecordNotFound)
	}
	p := m.sb.Current()
	keys := liveKeys(p, view.Collection)
	if len(keys) == 0 {
		return m.openLocked(view.Collection, -1, 0, 0)
	}
	i := liveIndex(p, view.Collection, view.PKID)
	i = ((i+delta)%len(keys) + len(keys)) % len(keys)
	return m.openLocked(view.Collection, keys[i], i, len(keys))
}

// GoToField jumps to the record at index of the live list of ct and sets
// which field takes focus. An empty ct targets the property's own fields on
// the details tab. The validation gate does not apply.
func (m *Machine) GoToField(ct types.CollectionType, index int, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ct == "" {
		if v, ok := m.views[0]; ok {
			m.sb.ClearEdit(v.Collection)
			delete(m.views, 0)
			m.unbindMap(nil)
		}
		m.current = 0
		m.focusField = field
		m.notify(string(TabDetails))
		return nil
	}

	p := m.sb.Current()
	keys := liveKeys(p, ct)
	if index < 0 || index >= len(keys) {
		return fmt.Errorf("%w: %s index %d", types.ErrRecordNotFound, ct, index)
	}
	if _, err := m.openLocked(ct, keys[index], index, len(keys)); err != nil {
		return err
	}
	m.focusField = field
	return nil
}

// Errors returns the validation errors of the open record, or of the
// property itself when no record is open.
func (m *Machine) Errors() []types.FieldError {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.validator == nil {
		return nil
	}
	if v, ok := m.views[m.current]; ok {
		return m.validator.Errors(v.Collection, v.Index)
	}
	return m.validator.Errors("", 0)
}

// BindEditObject points the map editor at a record for geometry editing.
func (m *Machine) BindEditObject(obj types.EditObject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editObject = &obj
	if m.maps != nil {
		m.maps.SetEditObject(&obj)
	}
}

// EditObject returns the record bound to the map editor, if any.
func (m *Machine) EditObject() (types.EditObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editObject == nil {
		return types.EditObject{}, false
	}
	return *m.editObject, true
}

// unbindMap clears the map edit object unless it matches target.
func (m *Machine) unbindMap(target *types.EditObject) {
	if m.editObject == nil {
		return
	}
	if target != nil && *m.editObject == *target {
		return
	}
	m.editObject = nil
	if m.maps != nil {
		m.maps.SetEditObject(nil)
	}
}

func (m *Machine) notify(group string) {
	if m.edit != nil {
		m.edit.Focus(group)
	}
}

func keyOf(rec any) int64 {
	if k, ok := rec.(interface{ Key() int64 }); ok {
		return k.Key()
	}
	return 0
}

func liveKeys(p types.Property, ct types.CollectionType) []int64 {
	switch ct {
	case types.CollectionLPI:
		return keys(p.LPIs.Live())
	case types.CollectionProvenance:
		return keys(p.Provenances.Live())
	case types.CollectionCrossRef:
		return keys(p.CrossRefs.Live())
	case types.CollectionNote:
		return keys(p.Notes.Live())
	}
	if p.Scottish == nil {
		return nil
	}
	switch ct {
	case types.CollectionClassification:
		return keys(p.Scottish.Classifications.Live())
	case types.CollectionOrganisation:
		return keys(p.Scottish.Organisations.Live())
	case types.CollectionSuccessor:
		return keys(p.Scottish.SuccessorCrossRefs.Live())
	}
	return nil
}

func keys[T types.Record[T]](recs []T) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.Key()
	}
	return out
}

// liveIndex is the position of pkID in the live list of ct, or -1.
func liveIndex(p types.Property, ct types.CollectionType, pkID int64) int {
	for i, k := range liveKeys(p, ct) {
		if k == pkID {
			return i
		}
	}
	return -1
}

// Sync recomputes the position of every open record after the collections
// changed underneath the machine. A record that is no longer live is closed.
func (m *Machine) Sync() {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.sb.Current()
	for tab, v := range m.views {
		i := liveIndex(p, v.Collection, v.PKID)
		if i < 0 {
			delete(m.views, tab)
			m.sb.ClearEdit(v.Collection)
			if m.editObject != nil && m.editObject.Collection == v.Collection && m.editObject.PKID == v.PKID {
				m.unbindMap(nil)
			}
			continue
		}
		v.Index, v.Total = i, p.LiveCount(v.Collection)
		m.views[tab] = v
	}
}

// Reset closes every open record and forgets resumable edits. The visible
// tab is kept.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views = make(map[int]View)
	m.resume = make(map[types.CollectionType]any)
	m.focusField = ""
	m.unbindMap(nil)
}
