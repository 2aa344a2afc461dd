// Package maildirstore implements the Maildir-side adapter: storing,
// moving, flag-setting, deleting, and diffing on-disk messages against the
// cache's id->meta map (spec §4.4).
package maildirstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mdsync/mdsync/internal/errkind"
	"github.com/mdsync/mdsync/internal/syncflags"
)

// Store owns one mailbox's new/cur/tmp directory tree.
type Store struct {
	root string // <maildir_root>/<account>/<mailbox>
}

// Entry describes a file found on disk: its flags, size, and path.
type Entry struct {
	Flags syncflags.Set
	Size  int64
	Path  string
}

// New creates (if needed) <root>/<account>/<mailbox>/{new,cur,tmp}.
func New(root, account, mailbox string) (*Store, error) {
	dir := filepath.Join(root, account, mailbox)
	for _, sub := range []string{"tmp", "cur", "new"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0700); err != nil {
			return nil, errkind.Wrap(errkind.Maildir, fmt.Errorf("create %s: %w", sub, err))
		}
	}
	return &Store{root: dir}, nil
}

// Path returns the root of this mailbox's directory tree, used as the
// filesystem-watch root.
func (s *Store) Path() string {
	return s.root
}

func (s *Store) newDir() string { return filepath.Join(s.root, "new") }
func (s *Store) curDir() string { return filepath.Join(s.root, "cur") }
func (s *Store) tmpDir() string { return filepath.Join(s.root, "tmp") }

// newUniqueName builds a "<pid>.<uuid>.<hostname>" name, adapting the
// teacher's time-pid-host uniquifier: a UUID takes the place of both the
// timestamp and the teacher's sequence-number channel.
func newUniqueName() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%d.%s.%s", os.Getpid(), uuid.NewString(), hostname)
}

// SaveMessage writes body to disk and returns its new opaque ID. Messages
// carrying the Seen flag are stored directly into cur/ with a flags
// suffix; everything else goes into new/ with no suffix, per Maildir
// convention (spec §4.4).
func (s *Store) SaveMessage(body io.Reader, flags syncflags.Set) (string, error) {
	id := newUniqueName()
	tmpPath := filepath.Join(s.tmpDir(), id)

	fd, err := os.Create(tmpPath)
	if err != nil {
		return "", errkind.Wrap(errkind.Maildir, fmt.Errorf("create tmp file: %w", err))
	}
	if _, err := io.Copy(fd, body); err != nil {
		fd.Close()
		os.Remove(tmpPath)
		return "", errkind.Wrap(errkind.Maildir, fmt.Errorf("write tmp file: %w", err))
	}
	if err := fd.Close(); err != nil {
		os.Remove(tmpPath)
		return "", errkind.Wrap(errkind.Maildir, fmt.Errorf("close tmp file: %w", err))
	}

	destDir := s.newDir()
	name := id
	if flags.Contains(syncflags.Seen) {
		destDir = s.curDir()
		name = id + ":2," + flags.ToMaildirString()
	}
	destPath := filepath.Join(destDir, name)
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", errkind.Wrap(errkind.Maildir, fmt.Errorf("rename into place: %w", err))
	}
	return id, nil
}

// MessageIsInNew reports whether id currently sits in new/.
func (s *Store) MessageIsInNew(id string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.newDir(), id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errkind.Wrap(errkind.Maildir, err)
}

// MoveMessageToCur moves id from new/ to cur/, appending the flags suffix.
func (s *Store) MoveMessageToCur(id string, flags syncflags.Set) error {
	oldPath := filepath.Join(s.newDir(), id)
	newPath := filepath.Join(s.curDir(), id+":2,"+flags.ToMaildirString())
	if err := os.Rename(oldPath, newPath); err != nil {
		return errkind.Wrap(errkind.Maildir, fmt.Errorf("move %s to cur: %w", id, err))
	}
	return nil
}

// SetFlagsForMessage rewrites the flags suffix of id's file in place, in
// whichever of new/ or cur/ it sits; it does not move the file between them.
func (s *Store) SetFlagsForMessage(id string, flags syncflags.Set) error {
	entry, dir, err := s.findEntry(id)
	if err != nil {
		return err
	}
	newPath := filepath.Join(dir, id+":2,"+flags.ToMaildirString())
	if entry == newPath {
		return nil
	}
	if err := os.Rename(entry, newPath); err != nil {
		return errkind.Wrap(errkind.Maildir, fmt.Errorf("set flags for %s: %w", id, err))
	}
	return nil
}

// DeleteMessage removes id's file. A missing file is not an error (spec
// §4.5's "errors tolerated" rule for Maildir deletes).
func (s *Store) DeleteMessage(id string) error {
	entry, _, err := s.findEntry(id)
	if err == errNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if rmErr := os.Remove(entry); rmErr != nil && !os.IsNotExist(rmErr) {
		return errkind.Wrap(errkind.Maildir, fmt.Errorf("delete %s: %w", id, rmErr))
	}
	return nil
}

// GetID returns the on-disk Entry for id.
func (s *Store) GetID(id string) (Entry, error) {
	path, _, err := s.findEntry(id)
	if err != nil {
		return Entry{}, err
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		return Entry{}, errkind.Wrap(errkind.Maildir, statErr)
	}
	return Entry{
		Flags: flagsFromFilename(filepath.Base(path)),
		Size:  info.Size(),
		Path:  path,
	}, nil
}

var errNotFound = errkind.Wrapf(errkind.Maildir, "entry not found")

// findEntry locates id's file in new/ or cur/ by filename prefix (the part
// before any ":2," flags suffix), returning its full path and containing
// directory.
func (s *Store) findEntry(id string) (path string, dir string, err error) {
	for _, d := range []string{s.newDir(), s.curDir()} {
		entries, readErr := os.ReadDir(d)
		if readErr != nil {
			return "", "", errkind.Wrap(errkind.Maildir, readErr)
		}
		for _, e := range entries {
			if idFromFilename(e.Name()) == id {
				return filepath.Join(d, e.Name()), d, nil
			}
		}
	}
	return "", "", errNotFound
}

func idFromFilename(name string) string {
	if i := strings.Index(name, ":2,"); i >= 0 {
		return name[:i]
	}
	return name
}

func flagsFromFilename(name string) syncflags.Set {
	if i := strings.Index(name, ":2,"); i >= 0 {
		return syncflags.FromMaildirString(name[i+3:])
	}
	return syncflags.Set{}
}

// GetUpdates scans new/ then cur/, comparing each entry against cache,
// a map of Maildir ID -> cached (size, flags). Entries with no cache row
// are returned in newIDs. Entries whose on-disk size or flags differ from
// the cached row are returned in changedIDs; either way their ID is
// removed from cache. After the call, cache contains only IDs the cache
// still has but the filesystem no longer does (locally deleted) — spec
// §4.4.
func (s *Store) GetUpdates(cache map[string]CachedMeta) (newIDs, changedIDs []string, err error) {
	for _, dir := range []string{s.newDir(), s.curDir()} {
		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			return nil, nil, errkind.Wrap(errkind.Maildir, readErr)
		}
		for _, e := range entries {
			id := idFromFilename(e.Name())
			info, infoErr := e.Info()
			if infoErr != nil {
				return nil, nil, errkind.Wrap(errkind.Maildir, infoErr)
			}
			diskFlags := flagsFromFilename(e.Name())

			cached, ok := cache[id]
			if !ok {
				newIDs = append(newIDs, id)
				continue
			}
			delete(cache, id)
			if cached.Size != info.Size() || !cached.Flags.Equal(diskFlags) {
				changedIDs = append(changedIDs, id)
			}
		}
	}
	return newIDs, changedIDs, nil
}

// CachedMeta is the subset of a cache row GetUpdates needs to detect
// changes: on-disk size and flags.
type CachedMeta struct {
	Size  int64
	Flags syncflags.Set
}
