package groups

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

type memGroups struct {
	mu      sync.Mutex
	rows    map[string]store.Group
	listErr error
	ensures int
}

func newMemGroups(rows ...store.Group) *memGroups {
	m := &memGroups{rows: make(map[string]store.Group)}
	for _, g := range rows {
		m.rows[g.ID] = g
	}
	return m
}

func (m *memGroups) Get(_ context.Context, id string) (*store.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &g, nil
}

func (m *memGroups) List(context.Context) ([]store.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []store.Group
	for _, g := range m.rows {
		out = append(out, g)
	}
	return out, nil
}

func (m *memGroups) Ensure(_ context.Context, id, name string, mode store.GroupMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensures++
	if _, ok := m.rows[id]; !ok {
		m.rows[id] = store.Group{ID: id, Name: name, Mode: mode}
	}
	return nil
}

func (m *memGroups) SetMode(_ context.Context, id string, mode store.GroupMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	g.Mode = mode
	m.rows[id] = g
	return nil
}

type memSettings struct {
	rows map[string]store.GroupSettings
	err  error
}

func (m *memSettings) Get(_ context.Context, id string) (*store.GroupSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *memSettings) Upsert(_ context.Context, s store.GroupSettings) error {
	m.rows[s.GroupID] = s
	return nil
}

func TestModeAndControl(t *testing.T) {
	gs := newMemGroups(
		store.Group{ID: "g1", Mode: store.GroupModeActive},
		store.Group{ID: "g2", Mode: store.GroupModePaused},
		store.Group{ID: "ops", Mode: store.GroupModeActive, IsControl: true},
	)
	d := NewDirectory(gs, &memSettings{}, Options{ControlGroups: []string{"cfg-ctl"}})
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	modes := map[string]store.GroupMode{
		"g1":      store.GroupModeActive,
		"g2":      store.GroupModePaused,
		"unknown": store.GroupModeLearning,
	}
	for id, want := range modes {
		if got := d.Mode(id); got != want {
			t.Errorf("Mode(%q) = %q, want %q", id, got, want)
		}
	}
	controls := map[string]bool{"ops": true, "cfg-ctl": true, "g1": false, "unknown": false}
	for id, want := range controls {
		if got := d.IsControl(id); got != want {
			t.Errorf("IsControl(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestRefreshErrorKeepsCache(t *testing.T) {
	gs := newMemGroups(store.Group{ID: "g1", Mode: store.GroupModeActive})
	d := NewDirectory(gs, &memSettings{}, Options{})
	d.Refresh(context.Background())

	gs.listErr = errors.New("db down")
	if err := d.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if got := d.Mode("g1"); got != store.GroupModeActive {
		t.Errorf("Mode after failed refresh = %q, want active", got)
	}
}

func TestEnsureRegistersOnce(t *testing.T) {
	gs := newMemGroups()
	d := NewDirectory(gs, &memSettings{}, Options{DefaultMode: store.GroupModeAssisted})
	ctx := context.Background()

	if err := d.Ensure(ctx, "g9", "Mesa Nova"); err != nil {
		t.Fatal(err)
	}
	if err := d.Ensure(ctx, "g9", "Mesa Nova"); err != nil {
		t.Fatal(err)
	}
	if gs.ensures != 1 {
		t.Errorf("store ensures = %d, want 1", gs.ensures)
	}
	if got := d.Mode("g9"); got != store.GroupModeAssisted {
		t.Errorf("Mode(g9) = %q, want assisted", got)
	}
}

func TestSetModeAndInvalidate(t *testing.T) {
	gs := newMemGroups(store.Group{ID: "g1", Mode: store.GroupModeLearning})
	d := NewDirectory(gs, &memSettings{}, Options{})
	ctx := context.Background()
	d.Refresh(ctx)

	if err := d.SetMode(ctx, "g1", store.GroupModeActive); err != nil {
		t.Fatal(err)
	}
	if got := d.Mode("g1"); got != store.GroupModeActive {
		t.Errorf("Mode after SetMode = %q", got)
	}
	if err := d.SetMode(ctx, "g1", "bogus"); err == nil {
		t.Error("expected error for invalid mode")
	}

	// Out-of-band change picked up by Invalidate.
	gs.SetMode(ctx, "g1", store.GroupModePaused)
	if err := d.Invalidate(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if got := d.Mode("g1"); got != store.GroupModePaused {
		t.Errorf("Mode after Invalidate = %q, want paused", got)
	}

	// Deleted rows fall back to the default.
	delete(gs.rows, "g1")
	d.Invalidate(ctx, "g1")
	if got := d.Mode("g1"); got != store.GroupModeLearning {
		t.Errorf("Mode after delete = %q, want learning", got)
	}
}

func TestDealFlowMode(t *testing.T) {
	settings := &memSettings{rows: map[string]store.GroupSettings{
		"simple": {GroupID: "simple", DealFlowMode: store.DealFlowSimple},
		"blank":  {GroupID: "blank"},
	}}
	d := NewDirectory(newMemGroups(), settings, Options{})
	ctx := context.Background()

	tests := []struct {
		group string
		want  store.DealFlowMode
	}{
		{"simple", store.DealFlowSimple},
		{"blank", store.DealFlowClassic},
		{"missing", store.DealFlowClassic},
	}
	for _, tt := range tests {
		got, err := d.DealFlowMode(ctx, tt.group)
		if err != nil {
			t.Fatalf("DealFlowMode(%q): %v", tt.group, err)
		}
		if got != tt.want {
			t.Errorf("DealFlowMode(%q) = %q, want %q", tt.group, got, tt.want)
		}
	}

	settings.err = errors.New("timeout")
	if _, err := d.DealFlowMode(ctx, "simple"); err == nil {
		t.Error("expected backend error to propagate")
	}
}
