package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mdsync/mdsync/internal/errkind"
)

// State is the per-mailbox state record: mailbox identity (UIDVALIDITY),
// sync cursors (UIDNEXT, last seen UID, HIGHESTMODSEQ), and the two-sided
// "last synchronized" markers, recorded as Unix milliseconds (spec §6).
type State struct {
	UIDValidity   uint32 `json:"uid_validity"`
	UIDNext       uint32 `json:"uid_next"`
	LastSeenUID   uint32 `json:"last_seen_uid"`
	HighestModSeq uint64 `json:"highest_mod_seq"`
	ImapLast      int64  `json:"imap_last"`
	MaildirLast   int64  `json:"maildir_last"`
}

func loadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, errkind.Wrap(errkind.Db, fmt.Errorf("read state: %w", err))
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, errkind.Wrap(errkind.Db, fmt.Errorf("parse state: %w", err))
	}
	return s, nil
}

func (c *Cache) saveState() error {
	data, err := json.MarshalIndent(c.state, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.Db, err)
	}
	tmp := c.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errkind.Wrap(errkind.Db, fmt.Errorf("write state: %w", err))
	}
	if err := os.Rename(tmp, c.statePath); err != nil {
		return errkind.Wrap(errkind.Db, fmt.Errorf("rename state: %w", err))
	}
	return nil
}

// IsValid reports whether uidValidity matches the cached UIDVALIDITY. A
// zero cached UIDVALIDITY means no mailbox has been seen yet, which is
// always considered valid (first sync).
func (c *Cache) IsValid(uidValidity uint32) bool {
	return c.state.UIDValidity == 0 || c.state.UIDValidity == uidValidity
}

// GetLastSeenUID returns the UID watermark up to which a slow sync has
// already confirmed every message is cached.
func (c *Cache) GetLastSeenUID() uint32 {
	return c.state.LastSeenUID
}

// GetHighestModSeq returns the HIGHESTMODSEQ recorded as of the last
// successful QRESYNC-enabled cycle.
func (c *Cache) GetHighestModSeq() uint64 {
	return c.state.HighestModSeq
}

// GetUIDValidity returns the cached UIDVALIDITY.
func (c *Cache) GetUIDValidity() uint32 {
	return c.state.UIDValidity
}

// SetLastSeenUID raises the slow-sync watermark and persists it.
func (c *Cache) SetLastSeenUID(uid uint32) error {
	if uid <= c.state.LastSeenUID {
		return nil
	}
	c.state.LastSeenUID = uid
	return c.saveState()
}

// UpdateImapState records a newly observed UIDVALIDITY/UIDNEXT pair and,
// when advanceModSeq is true, the HIGHESTMODSEQ reported for that cycle.
// advanceModSeq is false whenever the cycle could not complete a full
// QRESYNC-consistent pass (e.g. it fell back to a slow sync), so a stale
// HIGHESTMODSEQ is never advanced past data that was not actually
// reconciled (spec §9 Open Question 3).
func (c *Cache) UpdateImapState(uidValidity, uidNext uint32, highestModSeq uint64, advanceModSeq bool) error {
	c.state.UIDValidity = uidValidity
	c.state.UIDNext = uidNext
	if advanceModSeq {
		c.state.HighestModSeq = highestModSeq
	}
	c.state.ImapLast = time.Now().UnixMilli()
	return c.saveState()
}

// UpdateMaildirState records the timestamp of a successful Local→Server
// reconciliation pass.
func (c *Cache) UpdateMaildirState() error {
	c.state.MaildirLast = time.Now().UnixMilli()
	return c.saveState()
}

// Reset clears UIDVALIDITY, UIDNEXT, last seen UID, and HIGHESTMODSEQ
// without touching
// cached rows. Use DeleteAll when the rows themselves need purging too
// (a UIDVALIDITY change invalidates the whole mapping).
func (c *Cache) Reset() error {
	c.state.UIDValidity = 0
	c.state.UIDNext = 0
	c.state.LastSeenUID = 0
	c.state.HighestModSeq = 0
	return c.saveState()
}

// DeleteAll removes every cached row, used when UIDVALIDITY changes and the
// entire mapping between local and remote messages is invalidated.
func (c *Cache) DeleteAll() error {
	if _, err := c.db.Exec(`DELETE FROM v1`); err != nil {
		return errkind.Wrap(errkind.Db, err)
	}
	return c.Reset()
}
