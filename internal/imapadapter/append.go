package imapadapter

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-imap"

	"github.com/mdsync/mdsync/internal/errkind"
)

// Append uploads body into the currently selected mailbox with flags,
// returning the new UID via the UIDPLUS APPENDUID response code.
func (c *Client) Append(body []byte, flags []string, date time.Time) (uint32, error) {
	if c.mailbox == "" {
		return 0, errkind.Wrapf(errkind.Protocol, "append: no mailbox selected")
	}

	literal := bytes.NewReader(body)
	_, uid, err := c.uidplus.Append(c.mailbox, flags, date, literal)
	if err != nil {
		return 0, errkind.Wrap(errkind.Network, fmt.Errorf("append: %w", err))
	}
	return uid, nil
}

// DeleteUID marks uid \Deleted and expunges it with UID EXPUNGE, leaving
// every other message's UID untouched (spec §4.3).
func (c *Client) DeleteUID(uid uint32) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Client.UidStore(seqSet, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return errkind.Wrap(errkind.Network, fmt.Errorf("store +deleted uid %d: %w", uid, err))
	}
	if err := c.uidplus.UidExpunge(seqSet, nil); err != nil {
		return errkind.Wrap(errkind.Network, fmt.Errorf("uid expunge %d: %w", uid, err))
	}
	return nil
}

// ReplaceUID uploads body as a new message carrying uid's current flags,
// then deletes uid. If the append fails, the original message is left in
// place and no delete is attempted — an intentional duplicate-on-failure
// trade favoring never losing mail over never duplicating it (spec §9 Open
// Question 2).
func (c *Client) ReplaceUID(uid uint32, body []byte) (uint32, error) {
	meta, found, err := c.FetchMeta(uid)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errkind.Wrapf(errkind.Protocol, "replace: uid %d not found on server", uid)
	}

	newUID, err := c.Append(body, meta.Flags, time.UnixMilli(meta.InternalDateMillis))
	if err != nil {
		return 0, err
	}
	if err := c.DeleteUID(uid); err != nil {
		return newUID, err
	}
	return newUID, nil
}
