package engine

import (
	"github.com/schollz/progressbar/v3"

	"github.com/mdsync/mdsync/internal/imapadapter"
)

// serverToLocal reconciles the cache (and Maildir) against whatever the
// server currently reports, via QRESYNC when available and a full scan
// otherwise (spec §4.5 step 2).
func (e *Engine) serverToLocal(client *imapadapter.Client) error {
	status, err := client.Select(e.mailbox)
	if err != nil {
		return err
	}

	if client.CanQresync() {
		return e.quickSync(client, status)
	}
	return e.slowSync(client, status)
}

func (e *Engine) quickSync(client *imapadapter.Client, status imapadapter.MailboxStatus) error {
	var changedSince uint64
	if e.cache.IsValid(status.UIDValidity) {
		changedSince = e.cache.GetHighestModSeq()
	} else {
		if err := e.purgeCache(); err != nil {
			return err
		}
	}

	items, vanished, maxModSeq, err := client.FetchUIDsSince(1, changedSince)
	if err != nil {
		return err
	}
	if err := e.cacheItems(client, items); err != nil {
		return err
	}
	for _, uid := range vanished {
		e.deleteMessageFromMaildir(uid)
	}

	// An empty/absent MODSEQ in this response (nothing changed) must never
	// regress the stored watermark back to 0 — keep whichever is higher.
	if newModSeq := e.cache.GetHighestModSeq(); newModSeq > maxModSeq {
		maxModSeq = newModSeq
	}
	return e.cache.UpdateImapState(status.UIDValidity, status.UIDNext, maxModSeq, true)
}

func (e *Engine) slowSync(client *imapadapter.Client, status imapadapter.MailboxStatus) error {
	if !e.cache.IsValid(status.UIDValidity) {
		if err := e.purgeCache(); err != nil {
			return err
		}
	}

	lastSeen := e.cache.GetLastSeenUID()
	end := lastSeen
	if end == 0 {
		end = imapadapter.MaxUID
	}

	items, err := client.FetchUIDs(1, end)
	if err != nil {
		return err
	}
	if err := e.cacheItems(client, items); err != nil {
		return err
	}
	if err := e.removeImapDeletedMessages(items); err != nil {
		return err
	}

	newItems, err := client.FetchUIDs(lastSeen+1, imapadapter.MaxUID)
	if err != nil {
		return err
	}
	if err := e.cacheItems(client, newItems); err != nil {
		return err
	}

	return e.cache.UpdateImapState(status.UIDValidity, status.UIDNext, 0, false)
}

// cacheItems runs cache-or-update over a batch of FETCH results, showing a
// progress bar when the batch is large enough to matter (a full initial
// slow sync of a big mailbox).
func (e *Engine) cacheItems(client *imapadapter.Client, items []imapadapter.FetchedItem) error {
	var bar *progressbar.ProgressBar
	if len(items) > 100 {
		bar = progressbar.NewOptions(len(items), progressbar.OptionSetDescription(e.mailbox))
	}

	for _, it := range items {
		if bar != nil {
			bar.Add(1)
		}
		if err := e.cacheOrUpdate(client, it); err != nil {
			return err
		}
	}
	return nil
}

// removeImapDeletedMessages diffs the cached UID set against a batch of
// fresh FETCH results; whatever remains only in the cache was deleted on
// the server and must be removed locally (spec §4.5 step 2, slow path).
func (e *Engine) removeImapDeletedMessages(items []imapadapter.FetchedItem) error {
	cachedUIDs, err := e.cache.GetKnownUIDs()
	if err != nil {
		return err
	}
	for _, it := range items {
		delete(cachedUIDs, it.UID)
	}
	for uid := range cachedUIDs {
		e.deleteMessageFromMaildir(uid)
	}
	return nil
}

// purgeCache drops every cached row (and its Maildir file) and resets the
// state record, used when UIDVALIDITY changes (spec §4.5.1).
func (e *Engine) purgeCache() error {
	e.log.Info("deleting cache of all imap messages")
	uids, err := e.cache.GetKnownUIDs()
	if err != nil {
		return err
	}
	for uid := range uids {
		e.deleteMessageFromMaildir(uid)
	}
	// DeleteAll rather than Reset: deleteMessageFromMaildir only logs (does
	// not return) a failed per-row DeleteUID, so this also sweeps up any
	// row left behind by such a failure instead of resetting state fields
	// over a cache that isn't actually empty.
	return e.cache.DeleteAll()
}
