package engine

import (
	"github.com/mdsync/mdsync/internal/imapadapter"
	"github.com/mdsync/mdsync/internal/watch"
)

// armWatchers ensures an IDLE thread and a filesystem-watch thread are
// running, starting whichever is missing (spec §4.5 step 5). Both are
// long-lived relative to a single cycle and persist across cycles until
// something invalidates them.
func (e *Engine) armWatchers() {
	if !e.idleArmed {
		e.startIdle()
	}
	if e.watcher == nil {
		e.startFsWatch()
	}
}

func (e *Engine) startIdle() {
	stop := make(chan struct{})
	e.idleStop = stop
	e.idleArmed = true

	go func() {
		client, err := imapadapter.Connect(imapadapter.Dialer{
			Server:       e.account.Server,
			Port:         e.account.Port,
			UseTLS:       true,
			ServerCAPath: e.account.ServerCAPath,
			Username:     e.account.Username,
			Password:     e.account.Password,
		})
		if err != nil {
			e.messages <- Message{Kind: ImapError, Err: err}
			e.messages <- Message{Kind: ImapChanged}
			return
		}
		if _, err := client.Select(e.mailbox); err != nil {
			client.Logout()
			e.messages <- Message{Kind: ImapError, Err: err}
			e.messages <- Message{Kind: ImapChanged}
			return
		}

		if err := client.Idle(stop); err != nil {
			e.messages <- Message{Kind: ImapError, Err: err}
		}
		client.Logout()
		e.messages <- Message{Kind: ImapChanged}
	}()
}

func (e *Engine) startFsWatch() {
	w, err := watch.Start(e.maildir.Path(),
		func() { e.messages <- Message{Kind: MaildirChanged} },
		func(err error) { e.messages <- Message{Kind: MaildirError, Err: err} },
	)
	if err != nil {
		e.messages <- Message{Kind: MaildirError, Err: err}
		return
	}
	e.watcher = w
}

func (e *Engine) stopWatchers() {
	if e.idleStop != nil {
		close(e.idleStop)
		e.idleStop = nil
	}
	e.idleArmed = false
	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
}
