// Package cache implements the durable per-mailbox cache database and state
// record described in spec §3, §4.2, and §6.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mdsync/mdsync/internal/errkind"
	"github.com/mdsync/mdsync/internal/messagemeta"
	"github.com/mdsync/mdsync/internal/syncflags"
)

// ErrNotFound is returned by GetUID, GetID and Update when no row
// matches. Callers treat this as a benign "no" rather than a fatal
// error, per spec §7.
var ErrNotFound = errors.New("cache: no such row")

// Cache holds the sqlite handle and state record for one mailbox.
type Cache struct {
	db        *sql.DB
	statePath string
	state     State
}

// Dir returns the cache directory for an account/mailbox pair, creating it
// if necessary.
func Dir(configDir, account, mailbox string) (string, error) {
	dir := filepath.Join(configDir, "cache", account, mailbox)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errkind.Wrap(errkind.Db, fmt.Errorf("create cache dir: %w", err))
	}
	return dir, nil
}

// Open opens (creating if necessary) the cache database and state file
// under dir.
func Open(dir string) (*Cache, error) {
	dbPath := filepath.Join(dir, "db.sqlite")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errkind.Wrap(errkind.Db, fmt.Errorf("open %s: %w", dbPath, err))
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS v1 (
		uid INTEGER PRIMARY KEY,
		size INTEGER,
		internal_date_millis INTEGER,
		flags TEXT,
		id TEXT
	)`); err != nil {
		db.Close()
		return nil, errkind.Wrap(errkind.Db, fmt.Errorf("migrate: %w", err))
	}
	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS v1_id_idx ON v1 (id)`); err != nil {
		db.Close()
		return nil, errkind.Wrap(errkind.Db, fmt.Errorf("migrate: %w", err))
	}

	statePath := filepath.Join(dir, "state")
	state, err := loadState(statePath)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db, statePath: statePath, state: state}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Add inserts a new row, failing on UID collision.
func (c *Cache) Add(m messagemeta.Meta) error {
	_, err := c.db.Exec(
		`INSERT INTO v1 (uid, size, internal_date_millis, flags, id) VALUES (?, ?, ?, ?, ?)`,
		m.UID, m.Size, m.InternalDateMillis, m.Flags.ToMaildirString(), m.ID,
	)
	if err != nil {
		return errkind.Wrap(errkind.Db, fmt.Errorf("add uid %d: %w", m.UID, err))
	}
	return nil
}

// Update overwrites the row matching m.UID, failing if absent.
func (c *Cache) Update(m messagemeta.Meta) error {
	res, err := c.db.Exec(
		`UPDATE v1 SET size = ?, internal_date_millis = ?, flags = ?, id = ? WHERE uid = ?`,
		m.Size, m.InternalDateMillis, m.Flags.ToMaildirString(), m.ID, m.UID,
	)
	if err != nil {
		return errkind.Wrap(errkind.Db, fmt.Errorf("update uid %d: %w", m.UID, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errkind.Wrap(errkind.Db, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUID removes the row for uid. Idempotent: a missing row is not an
// error (spec §7).
func (c *Cache) DeleteUID(uid uint32) error {
	if _, err := c.db.Exec(`DELETE FROM v1 WHERE uid = ?`, uid); err != nil {
		return errkind.Wrap(errkind.Db, fmt.Errorf("delete uid %d: %w", uid, err))
	}
	return nil
}

// GetUID returns the row for uid, or ErrNotFound.
func (c *Cache) GetUID(uid uint32) (messagemeta.Meta, error) {
	return c.scanRow(`SELECT uid, size, internal_date_millis, flags, id FROM v1 WHERE uid = ?`, uid)
}

// GetID returns the row for a Maildir ID, or ErrNotFound.
func (c *Cache) GetID(id string) (messagemeta.Meta, error) {
	return c.scanRow(`SELECT uid, size, internal_date_millis, flags, id FROM v1 WHERE id = ?`, id)
}

func (c *Cache) scanRow(query string, arg interface{}) (messagemeta.Meta, error) {
	var (
		m     messagemeta.Meta
		flags string
	)
	err := c.db.QueryRow(query, arg).Scan(&m.UID, &m.Size, &m.InternalDateMillis, &flags, &m.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return messagemeta.Meta{}, ErrNotFound
	}
	if err != nil {
		return messagemeta.Meta{}, errkind.Wrap(errkind.Db, err)
	}
	m.Flags = syncflags.FromMaildirString(flags)
	return m, nil
}

// GetKnownUIDs returns the set of all cached UIDs.
func (c *Cache) GetKnownUIDs() (map[uint32]struct{}, error) {
	rows, err := c.db.Query(`SELECT uid FROM v1`)
	if err != nil {
		return nil, errkind.Wrap(errkind.Db, err)
	}
	defer rows.Close()

	set := make(map[uint32]struct{})
	for rows.Next() {
		var uid uint32
		if err := rows.Scan(&uid); err != nil {
			return nil, errkind.Wrap(errkind.Db, err)
		}
		set[uid] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errkind.Wrap(errkind.Db, err)
	}
	return set, nil
}

// GetKnownIDs returns a map of Maildir ID -> Meta for every cached row.
func (c *Cache) GetKnownIDs() (map[string]messagemeta.Meta, error) {
	rows, err := c.db.Query(`SELECT uid, size, internal_date_millis, flags, id FROM v1`)
	if err != nil {
		return nil, errkind.Wrap(errkind.Db, err)
	}
	defer rows.Close()

	out := make(map[string]messagemeta.Meta)
	for rows.Next() {
		var (
			m     messagemeta.Meta
			flags string
		)
		if err := rows.Scan(&m.UID, &m.Size, &m.InternalDateMillis, &flags, &m.ID); err != nil {
			return nil, errkind.Wrap(errkind.Db, err)
		}
		m.Flags = syncflags.FromMaildirString(flags)
		out[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, errkind.Wrap(errkind.Db, err)
	}
	return out, nil
}

// NumEntries returns the number of cached rows.
func (c *Cache) NumEntries() (int64, error) {
	var n int64
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM v1`).Scan(&n); err != nil {
		return 0, errkind.Wrap(errkind.Db, err)
	}
	return n, nil
}
