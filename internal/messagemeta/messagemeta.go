// Package messagemeta holds the per-message cached record (spec §3).
package messagemeta

import "github.com/mdsync/mdsync/internal/syncflags"

// Meta is the per-message cached tuple (UID, Maildir ID, size,
// internal-date-millis, flags).
type Meta struct {
	UID                uint32
	ID                 string
	Size               uint32
	InternalDateMillis int64
	Flags              syncflags.Set
}

// FetchedMeta is the subset of a server FETCH response needed to compare
// against a cached Meta: UID, size, internal date, and flags.
type FetchedMeta struct {
	UID                uint32
	Size               uint32
	InternalDateMillis int64
	Flags              syncflags.Set
}

// Equal reports whether m matches everything a fresh FETCH reported: UID,
// size, internal date, and flags.
func (m Meta) Equal(f FetchedMeta) bool {
	return m.UID == f.UID &&
		m.Size == f.Size &&
		m.InternalDateMillis == f.InternalDateMillis &&
		m.Flags.Equal(f.Flags)
}

// NeedsRefetch reports whether the body attributes changed, meaning the
// local copy must be dropped and re-downloaded rather than patched in
// place.
func (m Meta) NeedsRefetch(f FetchedMeta) bool {
	return m.Size != f.Size || m.InternalDateMillis != f.InternalDateMillis
}

// NeedsMoveToCur reports whether this message just gained the Seen flag,
// meaning it must be moved into cur/ if it still sits in new/. It compares
// flags only; whether the file is in new/ is for the caller to check.
func (m Meta) NeedsMoveToCur(f FetchedMeta) bool {
	return !m.Flags.Contains(syncflags.Seen) && f.Flags.Contains(syncflags.Seen)
}

// WithFetched returns a copy of m updated from a fresh FETCH result.
func (m Meta) WithFetched(f FetchedMeta) Meta {
	m.UID = f.UID
	m.Size = f.Size
	m.InternalDateMillis = f.InternalDateMillis
	m.Flags = f.Flags
	return m
}
