package main

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	resultsx "github.com/tanpawarit/parcel-scout/agent/results"
	statex "github.com/tanpawarit/parcel-scout/agent/state"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	var names []string
	for _, cmd := range newRootCmd().Commands() {
		names = append(names, cmd.Name())
	}
	sort.Strings(names)

	want := []string{"datasource", "scout", "serve"}
	if len(names) != len(want) {
		t.Fatalf("expected commands %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected commands %v, got %v", want, names)
		}
	}
}

func TestDatasourceCommandRejectsUnknownService(t *testing.T) {
	t.Parallel()

	cmd := newDatasourceCmd()
	if err := cmd.Args(cmd, []string{"weather"}); err == nil {
		t.Fatalf("expected unknown service to be rejected")
	}
	if err := cmd.Args(cmd, []string{"listing"}); err != nil {
		t.Fatalf("expected listing to be accepted: %v", err)
	}
	if err := cmd.Args(cmd, nil); err == nil {
		t.Fatalf("expected missing argument to be rejected")
	}
}

func TestScoutDestination(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                           "",
		"   ":                        "",
		"https://scout.example.com":  "https://scout.example.com/scout/run",
		"https://scout.example.com/": "https://scout.example.com/scout/run",
	}
	for publicURL, want := range tests {
		got := AppConfig{PublicURL: publicURL}.scoutDestination()
		if got != want {
			t.Errorf("scoutDestination(%q) = %q, want %q", publicURL, got, want)
		}
	}
}

func TestSessionStoreBackends(t *testing.T) {
	t.Parallel()

	a := &app{cfg: AppConfig{SessionBackend: "Memory"}}
	store, err := a.sessionStore()
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := store.(*statex.MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore, got %T", store)
	}

	a = &app{cfg: AppConfig{SessionBackend: "etcd"}}
	if _, err := a.sessionStore(); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestResultsStoreBackends(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "evaluations")
	a := &app{cfg: AppConfig{ResultsBackend: "file", ResultsDir: dir}}
	store, err := a.resultsStore(context.Background())
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	if _, ok := store.(*resultsx.FileStore); !ok {
		t.Fatalf("expected *FileStore, got %T", store)
	}

	a = &app{cfg: AppConfig{ResultsBackend: "s3"}}
	if _, err := a.resultsStore(context.Background()); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestAppCloseRunsClosersInReverse(t *testing.T) {
	t.Parallel()

	var order []int
	a := &app{}
	for i := 0; i < 3; i++ {
		i := i
		a.closers = append(a.closers, func() error {
			order = append(order, i)
			return nil
		})
	}
	a.Close()

	if len(order) != 3 || order[0] != 2 || order[2] != 0 {
		t.Fatalf("unexpected close order %v", order)
	}
}
