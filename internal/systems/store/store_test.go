package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/modforge/container/internal/logging"
	"github.com/modforge/container/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"), logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestJournalRoundTrip(t *testing.T) {
	s := openTestStore(t)
	cb := s.Notifier()

	cb(types.EventDeploying, []string{"shop"})
	cb(types.EventDeployed, []string{"shop", "/mods/shop.toml"})
	cb(types.EventDeploying, []string{"billing"})
	s.Sync()

	recs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Module != "billing" {
		t.Errorf("expected newest first, got %+v", recs[0])
	}
	if recs[1].Kind != "deployed" || len(recs[1].Args) != 1 || recs[1].Args[0] != "/mods/shop.toml" {
		t.Errorf("args lost: %+v", recs[1])
	}
}

func TestJournalFilters(t *testing.T) {
	s := openTestStore(t)
	cb := s.Notifier()

	cb(types.EventDeploying, []string{"shop"})
	cb(types.EventDeployed, []string{"shop"})
	cb(types.EventDeploying, []string{"billing"})
	cb(types.EventFailed, []string{"billing"})
	s.Sync()

	ctx := context.Background()
	byMod, err := s.ByModule(ctx, "billing", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byMod) != 2 {
		t.Fatalf("expected 2 billing records, got %d", len(byMod))
	}

	byKind, err := s.ByKind(ctx, "failed", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byKind) != 1 || byKind[0].Module != "billing" {
		t.Fatalf("unexpected kind filter result %+v", byKind)
	}
}

func TestJournalSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")

	s, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	s.Notifier()(types.EventDeployed, []string{"shop"})
	s.Sync()
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Stop()

	recs, err := s2.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Module != "shop" {
		t.Fatalf("journal not persisted: %+v", recs)
	}
}

func TestNotifierDropsAfterStop(t *testing.T) {
	s := openTestStore(t)
	cb := s.Notifier()
	s.Stop()

	// Must not block or panic.
	cb(types.EventDeploying, []string{"shop"})
}
