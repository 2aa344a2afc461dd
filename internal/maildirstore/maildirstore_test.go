package maildirstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mdsync/mdsync/internal/syncflags"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "acct", "INBOX")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSaveMessageUnseenGoesToNew(t *testing.T) {
	s := newTestStore(t)
	id, err := s.SaveMessage(strings.NewReader("hello"), syncflags.Set{})
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.newDir(), id)); err != nil {
		t.Fatalf("expected %s in new/: %v", id, err)
	}
}

func TestSaveMessageSeenGoesToCur(t *testing.T) {
	s := newTestStore(t)
	flags := syncflags.FromMaildirString("S")
	id, err := s.SaveMessage(strings.NewReader("hello"), flags)
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	entry, err := s.GetID(id)
	if err != nil {
		t.Fatalf("GetID: %v", err)
	}
	if filepath.Dir(entry.Path) != s.curDir() {
		t.Fatalf("expected %s in cur/, got %s", id, entry.Path)
	}
	if !entry.Flags.Contains(syncflags.Seen) {
		t.Fatal("expected Seen flag preserved")
	}
}

func TestMoveMessageToCur(t *testing.T) {
	s := newTestStore(t)
	id, err := s.SaveMessage(strings.NewReader("hi"), syncflags.Set{})
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := s.MoveMessageToCur(id, syncflags.FromMaildirString("S")); err != nil {
		t.Fatalf("MoveMessageToCur: %v", err)
	}
	inNew, err := s.MessageIsInNew(id)
	if err != nil {
		t.Fatalf("MessageIsInNew: %v", err)
	}
	if inNew {
		t.Fatal("expected message moved out of new/")
	}
}

func TestDeleteMessageIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	id, err := s.SaveMessage(strings.NewReader("hi"), syncflags.Set{})
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if err := s.DeleteMessage(id); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.DeleteMessage(id); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if err := s.DeleteMessage("never-existed"); err != nil {
		t.Fatalf("delete of unknown id should be a no-op: %v", err)
	}
}

func TestGetUpdatesClassifiesNewChangedAndMissing(t *testing.T) {
	s := newTestStore(t)

	unchangedID, err := s.SaveMessage(strings.NewReader("aaaa"), syncflags.Set{})
	if err != nil {
		t.Fatalf("SaveMessage unchanged: %v", err)
	}
	changedID, err := s.SaveMessage(strings.NewReader("b"), syncflags.Set{})
	if err != nil {
		t.Fatalf("SaveMessage changed: %v", err)
	}
	newID, err := s.SaveMessage(strings.NewReader("cccc"), syncflags.Set{})
	if err != nil {
		t.Fatalf("SaveMessage new: %v", err)
	}

	cache := map[string]CachedMeta{
		unchangedID:  {Size: 4, Flags: syncflags.Set{}},
		changedID:    {Size: 999, Flags: syncflags.Set{}},
		"gone-local": {Size: 10, Flags: syncflags.Set{}},
	}

	newIDs, changedIDs, err := s.GetUpdates(cache)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}

	if len(newIDs) != 1 || newIDs[0] != newID {
		t.Fatalf("newIDs = %v, want [%s]", newIDs, newID)
	}
	if len(changedIDs) != 1 || changedIDs[0] != changedID {
		t.Fatalf("changedIDs = %v, want [%s]", changedIDs, changedID)
	}
	if _, stillThere := cache[unchangedID]; stillThere {
		t.Fatal("unchanged ID should have been removed from cache map")
	}
	if _, stillThere := cache[changedID]; stillThere {
		t.Fatal("changed ID should have been removed from cache map")
	}
	if _, stillThere := cache["gone-local"]; !stillThere {
		t.Fatal("locally-deleted ID should remain in cache map")
	}
}
