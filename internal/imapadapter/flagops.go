package imapadapter

import (
	"fmt"

	"github.com/emersion/go-imap"

	"github.com/mdsync/mdsync/internal/errkind"
)

// AddFlags issues a STORE +FLAGS for uid.
func (c *Client) AddFlags(uid uint32, flags []string) error {
	return c.storeFlags(uid, imap.AddFlags, flags)
}

// RemoveFlags issues a STORE -FLAGS for uid.
func (c *Client) RemoveFlags(uid uint32, flags []string) error {
	return c.storeFlags(uid, imap.RemoveFlags, flags)
}

func (c *Client) storeFlags(uid uint32, op imap.FlagsOp, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	args := make([]interface{}, len(flags))
	for i, f := range flags {
		args[i] = f
	}

	item := imap.FormatFlagsOp(op, true)
	if err := c.Client.UidStore(seqSet, item, args, nil); err != nil {
		return errkind.Wrap(errkind.Network, fmt.Errorf("store %s uid %d: %w", item, uid, err))
	}
	return nil
}
