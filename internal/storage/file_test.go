package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "herald/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q) error: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) = %v, want nil store", driver, st)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreAppendAndPrune(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	entries := []AuditEntry{
		{At: old, Action: ActionBroadcast, OK: 3, Fail: 1, TookMS: 120},
		{At: now, Action: ActionRegister, ChatID: 42, OK: 1},
		{At: now, Action: ActionBroadcast, OK: 2},
	}
	for _, e := range entries {
		if err := st.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	got, err := readAll(path)
	if err != nil {
		t.Fatalf("readAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3", len(got))
	}
	if got[1].Action != ActionRegister || got[1].ChatID != 42 {
		t.Fatalf("register entry = %+v", got[1])
	}

	dropped, err := st.PruneAudit(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneAudit: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}

	got, err = readAll(path)
	if err != nil {
		t.Fatalf("readAll after prune: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries after prune = %d, want 2", len(got))
	}

	// The appender must keep working after the prune rewrite.
	if err := st.AppendAudit(ctx, AuditEntry{At: now, Action: ActionBroadcast, OK: 1}); err != nil {
		t.Fatalf("AppendAudit after prune: %v", err)
	}
	got, err = readAll(path)
	if err != nil {
		t.Fatalf("readAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries after post-prune append = %d, want 3", len(got))
	}
}
