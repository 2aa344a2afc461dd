// Package imapadapter wraps an IMAP session behind the narrow verb set the
// engine needs: connect/select, fetch by UID range (with an optional
// QRESYNC CHANGEDSINCE/VANISHED fast path), append/replace/delete, flag
// STORE, and IDLE (spec §4.3).
package imapadapter

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"os"

	"github.com/emersion/go-imap"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"

	"github.com/mdsync/mdsync/internal/errkind"
)

// MaxUID is used as the open end of a "from here to the end" UID range, in
// place of the IMAP "*" token (which, via UidFetch, always returns at least
// one message even when the mailbox is otherwise exhausted).
const MaxUID = math.MaxUint32

// Dialer describes the connection parameters needed to reach an account's
// IMAP server.
type Dialer struct {
	Server       string
	Port         int
	UseTLS       bool
	ServerCAPath string
	Username     string
	Password     string
}

// Client wraps a go-imap client with the UIDPLUS extension and tracks
// whether the server advertised QRESYNC.
type Client struct {
	*client.Client
	uidplus    *uidplus.UidPlusClient
	mailbox    string
	canQresync bool
}

// Connect dials, optionally over TLS, logs in, and verifies the mandatory
// capability set (ENABLE, UIDPLUS, IDLE). A server missing any of these
// fails the cycle with a Protocol error, which the engine retries after its
// backoff like any other non-Cancelled error.
func Connect(d Dialer) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", d.Server, d.Port)

	var (
		c   *client.Client
		err error
	)
	if d.UseTLS {
		tlsConfig := &tls.Config{ServerName: d.Server}
		if d.ServerCAPath != "" {
			pool, poolErr := loadCAPool(d.ServerCAPath)
			if poolErr != nil {
				return nil, errkind.Wrap(errkind.Network, poolErr)
			}
			tlsConfig.RootCAs = pool
		}
		c, err = client.DialTLS(addr, tlsConfig)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, errkind.Wrap(errkind.Network, fmt.Errorf("dial %s: %w", addr, err))
	}

	if err := c.Login(d.Username, d.Password); err != nil {
		c.Logout()
		return nil, errkind.Wrap(errkind.Network, fmt.Errorf("login: %w", err))
	}

	caps, err := c.Capability()
	if err != nil {
		c.Logout()
		return nil, errkind.Wrap(errkind.Protocol, fmt.Errorf("capability: %w", err))
	}

	var missing []string
	for _, want := range []string{"ENABLE", "UIDPLUS", "IDLE"} {
		if !caps[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		c.Logout()
		return nil, errkind.Wrapf(errkind.Protocol, "server missing required capabilities: %v", missing)
	}

	ic := &Client{
		Client:     c,
		uidplus:    uidplus.NewClient(c),
		canQresync: caps["QRESYNC"],
	}
	return ic, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read server_ca_path %s: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates parsed from %s", path)
	}
	return pool, nil
}

// CanQresync reports whether the server advertised the QRESYNC capability
// at login.
func (c *Client) CanQresync() bool {
	return c.canQresync
}

// EnableQresync sends ENABLE QRESYNC. Must be called before Select.
func (c *Client) EnableQresync() error {
	if err := sendEnable(c.Client, "QRESYNC"); err != nil {
		return errkind.Wrap(errkind.Protocol, fmt.Errorf("enable qresync: %w", err))
	}
	return nil
}

// List returns every mailbox name under the root, honoring neither
// exclude nor idle filtering — the caller applies those (spec §5).
func (c *Client) List() ([]string, error) {
	mboxChan := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Client.List("", "*", mboxChan)
	}()

	var names []string
	for mb := range mboxChan {
		names = append(names, mb.Name)
	}
	if err := <-done; err != nil {
		return nil, errkind.Wrap(errkind.Network, fmt.Errorf("list: %w", err))
	}
	return names, nil
}

// MailboxStatus is the subset of SELECT response fields the engine cares
// about. HighestModSeq is not populated here: the server reports it via an
// untagged response code this client does not parse, so the engine instead
// tracks it as the maximum per-message MODSEQ observed across
// FetchUIDsSince results (see fetch.go).
type MailboxStatus struct {
	Name        string
	UIDValidity uint32
	UIDNext     uint32
	Messages    uint32
}

// Select opens mailbox read-write and records it as the active mailbox for
// subsequent Append calls.
func (c *Client) Select(mailbox string) (MailboxStatus, error) {
	mbox, err := c.Client.Select(mailbox, false)
	if err != nil {
		return MailboxStatus{}, errkind.Wrap(errkind.Network, fmt.Errorf("select %s: %w", mailbox, err))
	}
	c.mailbox = mailbox
	return MailboxStatus{
		Name:        mbox.Name,
		UIDValidity: mbox.UidValidity,
		UIDNext:     mbox.UidNext,
		Messages:    mbox.Messages,
	}, nil
}

// Logout closes the session gracefully.
func (c *Client) Logout() error {
	if err := c.Client.Logout(); err != nil {
		return errkind.Wrap(errkind.Network, err)
	}
	return nil
}
