package imapadapter

import (
	"time"

	"github.com/emersion/go-imap/client"

	"github.com/mdsync/mdsync/internal/errkind"
)

// idleLogoutTimeout is how often the underlying client restarts the IDLE
// command, so the server does not drop an idle connection.
const idleLogoutTimeout = 10 * time.Minute

// idlePollInterval is the polling interval the underlying client falls
// back to when the server lacks IDLE; Connect rejects such servers.
const idlePollInterval = 10 * time.Second

// Idle blocks in IMAP IDLE until either the server pushes an update (new
// mail, flag change, expunge) or stop is closed. It returns nil when IDLE
// ended for either reason; the caller distinguishes "server pushed
// something" from "we were asked to stop" using the stop channel itself.
func (c *Client) Idle(stop <-chan struct{}) error {
	updates := make(chan client.Update, 16)
	c.Client.Updates = updates
	defer func() { c.Client.Updates = nil }()

	done := make(chan struct{})
	internalStop := make(chan struct{})
	go func() {
		select {
		case <-stop:
		case <-updates:
		case <-done:
			return
		}
		close(internalStop)
	}()
	defer close(done)

	err := c.Client.Idle(internalStop, &client.IdleOptions{
		LogoutTimeout: idleLogoutTimeout,
		PollInterval:  idlePollInterval,
	})
	if err != nil {
		return errkind.Wrap(errkind.Network, err)
	}
	return nil
}
