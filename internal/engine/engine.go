// Package engine implements the per-mailbox reconciliation state machine:
// connect and select, Server→Local and Local→Server reconciliation passes,
// arming IDLE and filesystem-watch helpers, and the retry-with-backoff
// outer loop (spec §4.5).
package engine

import (
	"time"

	"github.com/mdsync/mdsync/internal/cache"
	"github.com/mdsync/mdsync/internal/config"
	"github.com/mdsync/mdsync/internal/errkind"
	"github.com/mdsync/mdsync/internal/imapadapter"
	"github.com/mdsync/mdsync/internal/logging"
	"github.com/mdsync/mdsync/internal/maildirstore"
	"github.com/mdsync/mdsync/internal/watch"
)

// retryDelay is how long the outer loop waits after a failed cycle before
// retrying, matching the original's fixed 10s backoff.
const retryDelay = 10 * time.Second

// Engine owns one mailbox's cache database and Maildir adapter for its
// entire lifetime; the main IMAP connection is opened and logged out once
// per cycle, while the IDLE and filesystem-watch helpers each own an
// independent connection/watcher of their own (spec §4.5 Ownership).
type Engine struct {
	account config.Account
	mailbox string

	cache    *cache.Cache
	maildir  *maildirstore.Store
	log      *logging.Mailbox
	messages chan Message

	idleStop  chan struct{}
	idleArmed bool
	watcher   *watch.Watcher
}

// New opens the cache and Maildir for account/mailbox and returns a ready
// Engine. Call Run to start its sync loop.
func New(account config.Account, mailbox, configDir string) (*Engine, error) {
	cacheDir, err := cache.Dir(configDir, account.Account, mailbox)
	if err != nil {
		return nil, err
	}
	c, err := cache.Open(cacheDir)
	if err != nil {
		return nil, err
	}

	m, err := maildirstore.New(account.Maildir, account.Account, mailbox)
	if err != nil {
		c.Close()
		return nil, err
	}

	return &Engine{
		account:  account,
		mailbox:  mailbox,
		cache:    c,
		maildir:  m,
		log:      logging.ForMailbox(account.Account, mailbox),
		messages: make(chan Message, 8),
	}, nil
}

// Close releases the cache database and any armed watchers.
func (e *Engine) Close() error {
	e.stopWatchers()
	return e.cache.Close()
}

// Exit asks a running Run loop to stop after its current cycle.
func (e *Engine) Exit() {
	e.messages <- Message{Kind: Exit}
}

// Run executes the resilient outer loop: on cycle failure, log and sleep
// retryDelay before restarting; on clean exit or an Exit message, return
// (spec §4.5).
func (e *Engine) Run() error {
	for {
		err := e.doSync()
		if err == nil {
			return nil
		}
		if !errkind.Retryable(err) {
			return err
		}
		e.log.Err("sync exited with error, retrying", err)
		time.Sleep(retryDelay)
	}
}

// doSync runs one full pass: connect, reconcile both directions, then
// either return (sync-once) or arm watchers and block for the next signal.
func (e *Engine) doSync() error {
	for {
		client, err := e.connectAndSelect()
		if err != nil {
			return err
		}

		mode := "slow"
		if client.CanQresync() {
			mode = "quick"
		}
		e.log.Infof("synchronizing (%s)", mode)

		syncErr := e.serverToLocal(client)
		if syncErr == nil {
			syncErr = e.localToServer(client)
		}
		client.Logout()

		if syncErr != nil {
			return syncErr
		}
		e.log.Info("done")

		if !e.account.IsMailboxIdled(e.mailbox) {
			return nil
		}

		e.armWatchers()

		msg, ok := <-e.messages
		if !ok {
			return errkind.Wrapf(errkind.Cancelled, "message channel closed")
		}
		if exit, err := e.drain(msg); exit {
			return err
		}
	}
}

// connectAndSelect opens a fresh short-lived IMAP connection, enables
// QRESYNC when available, and selects the mailbox.
func (e *Engine) connectAndSelect() (*imapadapter.Client, error) {
	client, err := imapadapter.Connect(imapadapter.Dialer{
		Server:       e.account.Server,
		Port:         e.account.Port,
		UseTLS:       true,
		ServerCAPath: e.account.ServerCAPath,
		Username:     e.account.Username,
		Password:     e.account.Password,
	})
	if err != nil {
		return nil, err
	}
	if client.CanQresync() {
		if err := client.EnableQresync(); err != nil {
			client.Logout()
			return nil, err
		}
	}
	if _, err := client.Select(e.mailbox); err != nil {
		client.Logout()
		return nil, err
	}
	return client, nil
}

// drain processes msg and every message already queued behind it,
// coalescing bursts into a single wakeup (spec §4.5 step 6). It reports
// whether the loop should exit and, if so, with what error.
func (e *Engine) drain(msg Message) (exit bool, err error) {
	for {
		switch msg.Kind {
		case Exit:
			return true, nil
		case ImapChanged:
			e.log.Info("imap changed")
			e.idleArmed = false
		case MaildirChanged:
			e.log.Info("maildir changed")
		case ImapError:
			e.log.Err("idle thread error", msg.Err)
		case MaildirError:
			e.log.Err("watcher error", msg.Err)
		}

		select {
		case next := <-e.messages:
			msg = next
		default:
			return false, nil
		}
	}
}
