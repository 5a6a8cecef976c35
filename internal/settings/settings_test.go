package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "settings.json")
	store := &FileStore{Path: path}
	ctx := context.Background()

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected nothing stored, got ok=%v err=%v", ok, err)
	}

	want := Preferences{SlippageBps: 100, DeadlineSeconds: 600}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file should be renamed away")
	}
	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("preferences mismatch: %+v != %+v", got, want)
	}
}

func TestLoadOrDefault(t *testing.T) {
	ctx := context.Background()
	prefs, err := LoadOrDefault(ctx, nil, nil)
	if err != nil || prefs != Defaults() {
		t.Fatalf("expected defaults, got %+v %v", prefs, err)
	}
	if prefs.SlippageBps != 50 || prefs.DeadlineSeconds != 1200 {
		t.Fatalf("unexpected defaults: %+v", prefs)
	}
	if prefs.Policy().Deadline != 20*time.Minute {
		t.Fatalf("unexpected policy deadline: %s", prefs.Policy().Deadline)
	}

	store := &FileStore{Path: filepath.Join(t.TempDir(), "settings.json")}
	if err := store.Save(ctx, Preferences{SlippageBps: 6000, DeadlineSeconds: 60}); err != nil {
		t.Fatalf("save: %v", err)
	}
	prefs, err = LoadOrDefault(ctx, store, nil)
	if err != nil || prefs != Defaults() {
		t.Fatalf("invalid stored settings should fall back, got %+v %v", prefs, err)
	}

	if err := store.Save(ctx, Preferences{SlippageBps: 10, DeadlineSeconds: 60}); err != nil {
		t.Fatalf("save: %v", err)
	}
	prefs, err = LoadOrDefault(ctx, store, nil)
	if err != nil || prefs.SlippageBps != 10 || prefs.DeadlineSeconds != 60 {
		t.Fatalf("expected stored settings, got %+v %v", prefs, err)
	}
}

type memBackend struct {
	rows map[string]Preferences
}

func (m *memBackend) LoadSettings(_ context.Context, account string) (int, int64, bool, error) {
	p, ok := m.rows[account]
	return p.SlippageBps, p.DeadlineSeconds, ok, nil
}

func (m *memBackend) SaveSettings(_ context.Context, account string, bps int, deadline int64) error {
	m.rows[account] = Preferences{SlippageBps: bps, DeadlineSeconds: deadline}
	return nil
}

func TestDBStoreKeyedByAccount(t *testing.T) {
	backend := &memBackend{rows: map[string]Preferences{}}
	alice := &DBStore{Backend: backend, Account: "0xaa"}
	bob := &DBStore{Backend: backend, Account: "0xbb"}
	ctx := context.Background()

	if err := alice.Save(ctx, Preferences{SlippageBps: 30, DeadlineSeconds: 300}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := bob.Load(ctx); ok {
		t.Fatalf("bob should have no settings")
	}
	got, ok, err := alice.Load(ctx)
	if err != nil || !ok || got.SlippageBps != 30 {
		t.Fatalf("unexpected alice settings: %+v ok=%v err=%v", got, ok, err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		prefs Preferences
		ok    bool
	}{
		{Preferences{SlippageBps: 0, DeadlineSeconds: 1}, true},
		{Preferences{SlippageBps: 4999, DeadlineSeconds: 1}, true},
		{Preferences{SlippageBps: 5000, DeadlineSeconds: 1}, false},
		{Preferences{SlippageBps: -1, DeadlineSeconds: 1}, false},
		{Preferences{SlippageBps: 50, DeadlineSeconds: 0}, false},
	}
	for _, tc := range cases {
		if err := tc.prefs.Validate(); (err == nil) != tc.ok {
			t.Fatalf("validate %+v: %v", tc.prefs, err)
		}
	}
}
