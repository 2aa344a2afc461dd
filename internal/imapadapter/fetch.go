package imapadapter

import (
	"fmt"
	"io"

	"github.com/emersion/go-imap"

	"github.com/mdsync/mdsync/internal/errkind"
)

// FetchedItem is one UID FETCH result: everything the engine needs to
// decide whether a cached row is stale (spec §4.1/§4.2).
type FetchedItem struct {
	UID                uint32
	Size               uint32
	InternalDateMillis int64
	Flags              []string
	ModSeq             uint64
}

func metaFetchItems() []imap.FetchItem {
	return []imap.FetchItem{imap.FetchUid, imap.FetchRFC822Size, imap.FetchInternalDate, imap.FetchFlags}
}

func itemFromMessage(msg *imap.Message) FetchedItem {
	return FetchedItem{
		UID:                msg.Uid,
		Size:               msg.Size,
		InternalDateMillis: msg.InternalDate.UnixMilli(),
		Flags:              msg.Flags,
	}
}

// uidRange builds the inclusive range "first:last". An open-ended range is
// requested with last == MaxUID, which is sent as an explicit number rather
// than "*": UidFetch, like the original's, should not use "*" here, since
// "first:*" always matches the last message even when no UID >= first
// exists, yielding one spurious entry instead of zero results.
func uidRange(first, last uint32) *imap.SeqSet {
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(first, last)
	return seqSet
}

// FetchUIDs fetches UID/size/date/flags for every message in [first, last]
// (inclusive), used for the slow, full-range sync path.
func (c *Client) FetchUIDs(first, last uint32) ([]FetchedItem, error) {
	seqSet := uidRange(first, last)
	messages := make(chan *imap.Message, 64)
	done := make(chan error, 1)
	go func() {
		done <- c.Client.UidFetch(seqSet, metaFetchItems(), messages)
	}()

	var items []FetchedItem
	for msg := range messages {
		items = append(items, itemFromMessage(msg))
	}
	if err := <-done; err != nil {
		return nil, errkind.Wrap(errkind.Network, fmt.Errorf("uid fetch %d:%d: %w", first, last, err))
	}
	return items, nil
}

// FetchUIDsSince performs a QRESYNC-style UID FETCH with CHANGEDSINCE and
// VANISHED, returning the items whose MODSEQ advanced past changedSince,
// the UIDs the server reports as VANISHED (expunged since changedSince),
// and the highest MODSEQ observed in this response (spec §4.3, §9 Open
// Question 3). changedSince of 0 means no baseline yet, in which case the
// CHANGEDSINCE/VANISHED modifier is omitted and every message in range is
// returned (maxModSeq is then whatever the server reports, or 0 if it
// reports none). Only usable once EnableQresync has succeeded.
func (c *Client) FetchUIDsSince(first uint32, changedSince uint64) (items []FetchedItem, vanished []uint32, maxModSeq uint64, err error) {
	seqSet := uidRange(first, MaxUID)
	res, err := fetchChangedSince(c.Client, seqSet, changedSince)
	if err != nil {
		return nil, nil, 0, errkind.Wrap(errkind.Network, fmt.Errorf("qresync fetch: %w", err))
	}
	for _, msg := range res.messages {
		fi := itemFromMessage(msg.message)
		fi.ModSeq = msg.modSeq
		if fi.ModSeq > maxModSeq {
			maxModSeq = fi.ModSeq
		}
		items = append(items, fi)
	}
	return items, res.vanished, maxModSeq, nil
}

// FetchBody downloads the full RFC822 body for uid without marking it
// Seen (BODY.PEEK[]), returning the reader alongside the fetched metadata.
func (c *Client) FetchBody(uid uint32) (io.Reader, FetchedItem, error) {
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid, imap.FetchRFC822Size, imap.FetchInternalDate, imap.FetchFlags}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Client.UidFetch(seqSet, items, messages)
	}()

	msg := <-messages
	if msg == nil {
		<-done
		return nil, FetchedItem{}, errkind.Wrapf(errkind.Protocol, "uid %d not returned by server", uid)
	}
	r := msg.GetBody(section)
	if r == nil {
		<-done
		return nil, FetchedItem{}, errkind.Wrapf(errkind.Protocol, "uid %d: no body in response", uid)
	}
	if err := <-done; err != nil {
		return nil, FetchedItem{}, errkind.Wrap(errkind.Network, fmt.Errorf("uid fetch body %d: %w", uid, err))
	}
	return r, itemFromMessage(msg), nil
}

// FetchMeta fetches only UID/size/date/flags for a single UID, used by
// ReplaceUID to recover the current flags before re-appending.
func (c *Client) FetchMeta(uid uint32) (FetchedItem, bool, error) {
	items, err := c.FetchUIDs(uid, uid)
	if err != nil {
		return FetchedItem{}, false, err
	}
	for _, it := range items {
		if it.UID == uid {
			return it, true, nil
		}
	}
	return FetchedItem{}, false, nil
}
