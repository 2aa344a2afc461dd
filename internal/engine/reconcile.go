package engine

import (
	"github.com/mdsync/mdsync/internal/cache"
	"github.com/mdsync/mdsync/internal/imapadapter"
	"github.com/mdsync/mdsync/internal/messagemeta"
	"github.com/mdsync/mdsync/internal/syncflags"
)

func fetchedMeta(it imapadapter.FetchedItem) messagemeta.FetchedMeta {
	return messagemeta.FetchedMeta{
		UID:                it.UID,
		Size:               it.Size,
		InternalDateMillis: it.InternalDateMillis,
		Flags:              syncflags.FromIMAP(it.Flags),
	}
}

// cacheOrUpdate implements spec §4.5.2: bring the cache (and, when
// needed, the Maildir) in line with a single server FETCH result.
func (e *Engine) cacheOrUpdate(client *imapadapter.Client, it imapadapter.FetchedItem) error {
	fetched := fetchedMeta(it)

	meta, err := e.cache.GetUID(it.UID)
	if err == cache.ErrNotFound {
		return e.cacheMessageForUID(client, it.UID)
	}
	if err != nil {
		return err
	}

	if meta.Equal(fetched) {
		return nil
	}

	if meta.NeedsRefetch(fetched) {
		e.deleteMessageFromMaildir(it.UID)
		return e.cacheMessageForUID(client, it.UID)
	}

	e.log.Infof("updating uid %d flags", it.UID)
	updated := meta.WithFetched(fetched)
	if err := e.cache.Update(updated); err != nil {
		return err
	}

	if meta.NeedsMoveToCur(fetched) {
		inNew, err := e.maildir.MessageIsInNew(meta.ID)
		if err != nil {
			return err
		}
		if inNew {
			return e.maildir.MoveMessageToCur(meta.ID, updated.Flags)
		}
	}
	return e.maildir.SetFlagsForMessage(updated.ID, updated.Flags)
}

// cacheMessageForUID downloads uid's body, writes it into the Maildir, and
// inserts a fresh cache row, advancing last_seen_uid only once the row is
// safely committed (spec §4.5.2, "new UID" branch).
func (e *Engine) cacheMessageForUID(client *imapadapter.Client, uid uint32) error {
	body, it, err := client.FetchBody(uid)
	if err != nil {
		return err
	}
	e.log.Infof("fetching uid %d", uid)

	flags := syncflags.FromIMAP(it.Flags)
	id, err := e.maildir.SaveMessage(body, flags)
	if err != nil {
		return err
	}

	meta := messagemeta.Meta{
		UID:                it.UID,
		ID:                 id,
		Size:               it.Size,
		InternalDateMillis: it.InternalDateMillis,
		Flags:              flags,
	}
	if err := e.cache.Add(meta); err != nil {
		return err
	}
	return e.cache.SetLastSeenUID(it.UID)
}

// deleteMessageFromMaildir removes uid's Maildir file (errors tolerated —
// the most common cause is the file already being gone) and then its
// cache row. A missing cache row is a silent no-op.
func (e *Engine) deleteMessageFromMaildir(uid uint32) {
	meta, err := e.cache.GetUID(uid)
	if err == cache.ErrNotFound {
		return
	}
	if err != nil {
		e.log.Err("looking up uid for delete", err)
		return
	}

	e.log.Infof("deleting uid %d from maildir", uid)
	if err := e.maildir.DeleteMessage(meta.ID); err != nil {
		e.log.Err("deleting from maildir", err)
	}
	if err := e.cache.DeleteUID(uid); err != nil {
		e.log.Err("deleting cache row", err)
	}
}
