package engine

import (
	"testing"

	"github.com/mdsync/mdsync/internal/imapadapter"
	"github.com/mdsync/mdsync/internal/logging"
)

func newTestEngine() *Engine {
	return &Engine{
		log:       logging.ForMailbox("acct", "INBOX"),
		messages:  make(chan Message, 8),
		idleArmed: true,
	}
}

func TestFetchedMetaConvertsFlags(t *testing.T) {
	it := imapadapter.FetchedItem{
		UID:                42,
		Size:               100,
		InternalDateMillis: 1000,
		Flags:              []string{"\\Seen", "\\Flagged"},
	}
	meta := fetchedMeta(it)
	if meta.UID != 42 || meta.Size != 100 || meta.InternalDateMillis != 1000 {
		t.Fatalf("unexpected conversion: %+v", meta)
	}
	flags := meta.Flags.ToIMAPFlags()
	if len(flags) != 2 {
		t.Fatalf("expected 2 flags, got %v", flags)
	}
}

func TestDrainReturnsExitWhenQueued(t *testing.T) {
	e := newTestEngine()
	e.messages <- Message{Kind: MaildirChanged}
	e.messages <- Message{Kind: Exit}

	exit, err := e.drain(Message{Kind: ImapChanged})
	if !exit {
		t.Fatalf("expected drain to report exit once Exit is queued")
	}
	if err != nil {
		t.Fatalf("expected nil error on clean exit, got %v", err)
	}
}

func TestDrainDisarmsIdleOnImapChanged(t *testing.T) {
	e := newTestEngine()
	e.idleArmed = true

	exit, err := e.drain(Message{Kind: ImapChanged})
	if exit || err != nil {
		t.Fatalf("unexpected exit/err: %v %v", exit, err)
	}
	if e.idleArmed {
		t.Fatalf("expected idleArmed to be cleared after ImapChanged")
	}
}

func TestDrainCoalescesWithoutBlocking(t *testing.T) {
	e := newTestEngine()
	// No further messages queued: drain must return promptly rather than
	// blocking for more input.
	exit, err := e.drain(Message{Kind: MaildirChanged})
	if exit || err != nil {
		t.Fatalf("unexpected exit/err: %v %v", exit, err)
	}
}
