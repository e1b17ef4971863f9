package bootstrap

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/otcdesk/internal/store"
)

type memTriggers struct {
	list []store.Trigger
}

func (m *memTriggers) ListForGroup(_ context.Context, _ string) ([]store.Trigger, error) {
	return m.list, nil
}

func (m *memTriggers) Upsert(_ context.Context, t *store.Trigger) error {
	m.list = append(m.list, *t)
	return nil
}

func TestDefaultTriggers(t *testing.T) {
	defs, err := DefaultTriggers()
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) == 0 {
		t.Fatal("DefaultTriggers() is empty")
	}
	for _, d := range defs {
		if d.Phrase == "" || d.ActionType == "" {
			t.Errorf("incomplete trigger %+v", d)
		}
		if d.Scope != store.TriggerScopeSystem || !d.IsActive {
			t.Errorf("trigger %q: scope=%q active=%v, want active system", d.Phrase, d.Scope, d.IsActive)
		}
	}
}

func TestSeedTriggersOnlyOnce(t *testing.T) {
	ts := &memTriggers{}
	n, err := SeedTriggers(context.Background(), ts)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 || len(ts.list) != n {
		t.Fatalf("first seed wrote %d, store has %d", n, len(ts.list))
	}

	n, err = SeedTriggers(context.Background(), ts)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second seed wrote %d, want 0", n)
	}
}

func TestSeedTriggersKeepsOperatorSet(t *testing.T) {
	ts := &memTriggers{list: []store.Trigger{{Phrase: "px", ActionType: store.ActionPriceQuote, Scope: store.TriggerScopeSystem, IsActive: true}}}
	n, err := SeedTriggers(context.Background(), ts)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || len(ts.list) != 1 {
		t.Errorf("seeded %d over an existing system set, store has %d", n, len(ts.list))
	}
}
