package engine

import (
	"os"
	"time"

	"github.com/mdsync/mdsync/internal/imapadapter"
	"github.com/mdsync/mdsync/internal/maildirstore"
	"github.com/mdsync/mdsync/internal/messagemeta"
)

// localToServer pushes whatever changed in the Maildir since the last
// cycle up to the server: deletions, flag/body changes, and brand-new
// messages (spec §4.5 step 3).
func (e *Engine) localToServer(client *imapadapter.Client) error {
	known, err := e.cache.GetKnownIDs()
	if err != nil {
		return err
	}

	cacheMap := make(map[string]maildirstore.CachedMeta, len(known))
	for id, meta := range known {
		cacheMap[id] = maildirstore.CachedMeta{Size: int64(meta.Size), Flags: meta.Flags}
	}

	newIDs, changedIDs, err := e.maildir.GetUpdates(cacheMap)
	if err != nil {
		return err
	}

	// Whatever remains in cacheMap is in the cache but no longer on disk:
	// deleted locally, so it must be deleted from the server too.
	for id := range cacheMap {
		full := known[id]
		e.log.Infof("deleting uid %d from server", full.UID)
		if err := client.DeleteUID(full.UID); err != nil {
			return err
		}
		if err := e.cache.DeleteUID(full.UID); err != nil {
			return err
		}
	}

	refetch := make(map[uint32]struct{})
	for _, id := range changedIDs {
		if err := e.pushChanged(client, known[id], id, refetch); err != nil {
			return err
		}
	}

	for _, id := range newIDs {
		if err := e.pushNew(client, id); err != nil {
			return err
		}
	}

	for uid := range refetch {
		item, found, err := client.FetchMeta(uid)
		if err != nil {
			return err
		}
		if found {
			if err := e.cacheOrUpdate(client, item); err != nil {
				return err
			}
		}
	}

	return e.cache.UpdateMaildirState()
}

// pushChanged reconciles a single Maildir ID whose on-disk flags or size
// diverged from the cache: flag diffs are STOREd directly and queued for
// refetch; a size change means the body itself changed, which is handled
// by replace-then-delete-local rather than a partial update.
func (e *Engine) pushChanged(client *imapadapter.Client, cached messagemeta.Meta, id string, refetch map[uint32]struct{}) error {
	diskEntry, err := e.maildir.GetID(id)
	if err != nil {
		return err
	}

	diff := cached.Flags.Diff(diskEntry.Flags)
	if add := diff.Add.ToIMAPFlags(); len(add) > 0 {
		if err := client.AddFlags(cached.UID, add); err != nil {
			return err
		}
		refetch[cached.UID] = struct{}{}
	}
	if sub := diff.Sub.ToIMAPFlags(); len(sub) > 0 {
		if err := client.RemoveFlags(cached.UID, sub); err != nil {
			return err
		}
		refetch[cached.UID] = struct{}{}
	}

	if int64(cached.Size) != diskEntry.Size {
		body, err := os.ReadFile(diskEntry.Path)
		if err != nil {
			return err
		}
		if _, err := client.ReplaceUID(cached.UID, body); err != nil {
			return err
		}
		if err := e.maildir.DeleteMessage(id); err != nil {
			return err
		}
		if err := e.cache.DeleteUID(cached.UID); err != nil {
			return err
		}
		delete(refetch, cached.UID)
	}
	return nil
}

// pushNew uploads a Maildir entry that has no cache row at all, then
// removes the local file: the message re-enters the Maildir on the next
// Server→Local sweep carrying a server-assigned UID (spec §4.5 step 3).
func (e *Engine) pushNew(client *imapadapter.Client, id string) error {
	diskEntry, err := e.maildir.GetID(id)
	if err != nil {
		return err
	}
	body, err := os.ReadFile(diskEntry.Path)
	if err != nil {
		return err
	}
	if _, err := client.Append(body, diskEntry.Flags.ToIMAPFlags(), time.Now()); err != nil {
		return err
	}
	return e.maildir.DeleteMessage(id)
}
