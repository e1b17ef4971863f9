package keywords

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

type fakePatterns struct {
	lists map[string][]string
	err   error
}

func (f *fakePatterns) ListPatterns(context.Context) (map[string][]string, error) {
	return f.lists, f.err
}

func (f *fakePatterns) SetPattern(_ context.Context, key string, keywords []string) error {
	f.lists[key] = keywords
	return nil
}

func TestDirectoryDefaults(t *testing.T) {
	d := NewDirectory("", nil, nil)
	if got := d.Keywords("price_lock"); !slices.Contains(got, "trava") {
		t.Errorf("Keywords(price_lock) = %v, want default list", got)
	}
	if got := d.Keywords("unknown"); len(got) != 0 {
		t.Errorf("Keywords(unknown) = %v, want empty", got)
	}
}

func TestDirectoryLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.json5")
	writeFile(t, path, `{
		// operators edit this file
		price_lock: ["bora", "trava"],
		deal_rejection: ["off"],
	}`)

	patterns := &fakePatterns{lists: map[string][]string{"deal_rejection": {"sem interesse"}}}
	d := NewDirectory(path, patterns, nil)
	if err := d.LoadFile(); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := d.Keywords("price_lock"); !slices.Equal(got, []string{"bora", "trava"}) {
		t.Errorf("price_lock = %v, want file list", got)
	}

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := d.Keywords("deal_rejection"); !slices.Equal(got, []string{"sem interesse"}) {
		t.Errorf("deal_rejection = %v, want database list", got)
	}
	if got := d.Keywords("deal_cancellation"); !slices.Contains(got, "cancela") {
		t.Errorf("deal_cancellation = %v, want defaults kept", got)
	}
}

func TestDirectoryRefreshErrorKeepsLists(t *testing.T) {
	patterns := &fakePatterns{err: errors.New("db down")}
	d := NewDirectory("", patterns, nil)
	if err := d.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh succeeded, want error")
	}
	if got := d.Keywords("price_lock"); len(got) == 0 {
		t.Error("lists lost after failed refresh")
	}
}

func TestDirectoryBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.json5")
	writeFile(t, path, `{price_lock: [`)
	d := NewDirectory(path, nil, nil)
	if err := d.LoadFile(); err == nil {
		t.Error("LoadFile succeeded on malformed file")
	}
}

func TestDirectoryKeywordsReturnsCopy(t *testing.T) {
	d := NewDirectory("", nil, nil)
	got := d.Keywords("price_lock")
	got[0] = "mutated"
	if d.Keywords("price_lock")[0] == "mutated" {
		t.Error("Keywords exposed internal slice")
	}
}

func TestDirectoryWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.json5")
	writeFile(t, path, `{price_lock: ["trava"]}`)

	d := NewDirectory(path, nil, nil)
	if err := d.LoadFile(); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, `{price_lock: ["fechou"]}`)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if slices.Equal(d.Keywords("price_lock"), []string{"fechou"}) {
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned %v", err)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("price_lock = %v after file change, want [fechou]", d.Keywords("price_lock"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
