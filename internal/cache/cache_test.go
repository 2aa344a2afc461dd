package cache

import (
	"path/filepath"
	"testing"

	"github.com/mdsync/mdsync/internal/messagemeta"
	"github.com/mdsync/mdsync/internal/syncflags"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAddGetUID(t *testing.T) {
	c := openTestCache(t)
	m := messagemeta.Meta{UID: 1, ID: "abc", Size: 100, InternalDateMillis: 1000, Flags: syncflags.FromMaildirString("S")}
	if err := c.Add(m); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := c.GetUID(1)
	if err != nil {
		t.Fatalf("GetUID: %v", err)
	}
	if got != m {
		t.Fatalf("GetUID = %+v, want %+v", got, m)
	}

	if _, err := c.GetID("abc"); err != nil {
		t.Fatalf("GetID: %v", err)
	}
}

func TestAddDuplicateUIDFails(t *testing.T) {
	c := openTestCache(t)
	m := messagemeta.Meta{UID: 1, ID: "abc", Size: 100, InternalDateMillis: 1000}
	if err := c.Add(m); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.Add(m); err == nil {
		t.Fatal("expected error re-adding same UID")
	}
}

func TestDeleteUIDIdempotent(t *testing.T) {
	c := openTestCache(t)
	m := messagemeta.Meta{UID: 1, ID: "abc", Size: 100}
	if err := c.Add(m); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.DeleteUID(1); err != nil {
		t.Fatalf("first DeleteUID: %v", err)
	}
	if err := c.DeleteUID(1); err != nil {
		t.Fatalf("second DeleteUID should be a no-op, got: %v", err)
	}
	if _, err := c.GetUID(1); err != ErrNotFound {
		t.Fatalf("GetUID after delete = %v, want ErrNotFound", err)
	}
}

func TestUpdateMissingRowFails(t *testing.T) {
	c := openTestCache(t)
	err := c.Update(messagemeta.Meta{UID: 99, ID: "x"})
	if err != ErrNotFound {
		t.Fatalf("Update on missing row = %v, want ErrNotFound", err)
	}
}

func TestGetKnownUIDsAndIDs(t *testing.T) {
	c := openTestCache(t)
	for i, id := range []string{"a", "b", "c"} {
		if err := c.Add(messagemeta.Meta{UID: uint32(i + 1), ID: id}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	uids, err := c.GetKnownUIDs()
	if err != nil {
		t.Fatalf("GetKnownUIDs: %v", err)
	}
	if len(uids) != 3 {
		t.Fatalf("len(uids) = %d, want 3", len(uids))
	}

	ids, err := c.GetKnownIDs()
	if err != nil {
		t.Fatalf("GetKnownIDs: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("len(ids) = %d, want 3", len(ids))
	}

	n, err := c.NumEntries()
	if err != nil {
		t.Fatalf("NumEntries: %v", err)
	}
	if n != 3 {
		t.Fatalf("NumEntries = %d, want 3", n)
	}
}

func TestStateRoundTripsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := c.UpdateImapState(5, 10, 42, true); err != nil {
		t.Fatalf("UpdateImapState: %v", err)
	}
	if err := c.SetLastSeenUID(9); err != nil {
		t.Fatalf("SetLastSeenUID: %v", err)
	}
	c.Close()

	c2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	if !c2.IsValid(5) {
		t.Fatal("IsValid(5) = false, want true")
	}
	if c2.IsValid(6) {
		t.Fatal("IsValid(6) = true, want false")
	}
	if c2.GetLastSeenUID() != 9 {
		t.Fatalf("GetLastSeenUID = %d, want 9", c2.GetLastSeenUID())
	}
	if c2.GetHighestModSeq() != 42 {
		t.Fatalf("GetHighestModSeq = %d, want 42", c2.GetHighestModSeq())
	}
}

func TestUpdateImapStateSkipsModSeqWhenNotAdvancing(t *testing.T) {
	c := openTestCache(t)
	if err := c.UpdateImapState(1, 1, 100, true); err != nil {
		t.Fatalf("UpdateImapState: %v", err)
	}
	if err := c.UpdateImapState(1, 2, 200, false); err != nil {
		t.Fatalf("UpdateImapState: %v", err)
	}
	if c.GetHighestModSeq() != 100 {
		t.Fatalf("GetHighestModSeq = %d, want 100 (unchanged)", c.GetHighestModSeq())
	}
}

func TestDeleteAllResetsStateAndRows(t *testing.T) {
	c := openTestCache(t)
	if err := c.Add(messagemeta.Meta{UID: 1, ID: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := c.UpdateImapState(5, 10, 1, true); err != nil {
		t.Fatalf("UpdateImapState: %v", err)
	}

	if err := c.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	n, _ := c.NumEntries()
	if n != 0 {
		t.Fatalf("NumEntries after DeleteAll = %d, want 0", n)
	}
	if c.GetUIDValidity() != 0 {
		t.Fatalf("GetUIDValidity after DeleteAll = %d, want 0", c.GetUIDValidity())
	}
}

func TestDirCreatesNestedPath(t *testing.T) {
	base := t.TempDir()
	dir, err := Dir(base, "acct", "INBOX")
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	want := filepath.Join(base, "cache", "acct", "INBOX")
	if dir != want {
		t.Fatalf("Dir = %s, want %s", dir, want)
	}
}
