package imapadapter

import (
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/responses"
)

// enableCommand sends a bare ENABLE, following the same Commander +
// Execute pattern go-imap-uidplus and go-imap-move use to add verbs the
// core client package does not implement.
type enableCommand struct {
	Capabilities []string
}

func (cmd *enableCommand) Command() *imap.Command {
	args := make([]interface{}, len(cmd.Capabilities))
	for i, c := range cmd.Capabilities {
		args[i] = imap.RawString(c)
	}
	return &imap.Command{Name: "ENABLE", Arguments: args}
}

func sendEnable(c *client.Client, capabilities ...string) error {
	cmd := &enableCommand{Capabilities: capabilities}
	status, err := c.Execute(cmd, nil)
	if err != nil {
		return err
	}
	return status.Err()
}

// fetchChangedSinceCommand issues a UID FETCH with the QRESYNC CHANGEDSINCE
// and VANISHED modifiers, which go-imap's core FetchItem list has no way
// to express. A ChangedSince of 0 means "no baseline yet" (a fresh
// mailbox, or one whose cache was just purged): mod-sequence values are
// 1-based per RFC 7162, so CHANGEDSINCE 0 is not a valid "everything"
// request and the modifier is omitted entirely, falling back to a plain
// UID FETCH of the range.
type fetchChangedSinceCommand struct {
	SeqSet       *imap.SeqSet
	ChangedSince uint64
}

func (cmd *fetchChangedSinceCommand) Command() *imap.Command {
	args := []interface{}{
		cmd.SeqSet,
		imap.RawString("(UID RFC822.SIZE INTERNALDATE FLAGS MODSEQ)"),
	}
	if cmd.ChangedSince > 0 {
		args = append(args, imap.RawString(fmt.Sprintf("(CHANGEDSINCE %d VANISHED)", cmd.ChangedSince)))
	}
	return &imap.Command{Name: "UID FETCH", Arguments: args}
}

type qresyncMessage struct {
	message *imap.Message
	modSeq  uint64
}

type qresyncResult struct {
	messages []qresyncMessage
	vanished []uint32
}

// qresyncResponse collects the FETCH responses like responses.Fetch does,
// plus the VANISHED (EARLIER) untagged response QRESYNC adds, which the
// stock client has no handler for.
type qresyncResponse struct {
	result *qresyncResult
}

func (r *qresyncResponse) Handle(resp imap.Resp) error {
	fields, ok := resp.([]interface{})
	if !ok || len(fields) < 2 {
		return responses.ErrUnhandled
	}

	name, ok := fields[1].(string)
	if !ok {
		return responses.ErrUnhandled
	}

	switch name {
	case "FETCH":
		msg := &imap.Message{}
		seqNum, _ := imap.ParseNumber(fields[0])
		msg.SeqNum = seqNum
		fieldsMap, ok := fields[2].([]interface{})
		if !ok {
			return responses.ErrUnhandled
		}
		if err := msg.Parse(fieldsMap); err != nil {
			return err
		}
		var modSeq uint64
		for i := 0; i+1 < len(fieldsMap); i += 2 {
			key, _ := fieldsMap[i].(string)
			if key == "MODSEQ" {
				if inner, ok := fieldsMap[i+1].([]interface{}); ok && len(inner) == 1 {
					modSeq, _ = imap.ParseNumber(inner[0])
				}
			}
		}
		r.result.messages = append(r.result.messages, qresyncMessage{message: msg, modSeq: modSeq})
		return nil
	case "VANISHED":
		uidSet, ok := fields[2].(string)
		if !ok {
			return responses.ErrUnhandled
		}
		var seqSet imap.SeqSet
		if err := seqSet.Parse(uidSet); err != nil {
			return err
		}
		for _, set := range seqSet.Set {
			start := set.Start
			stop := set.Stop
			if stop == 0 {
				stop = start
			}
			for uid := start; uid <= stop; uid++ {
				r.result.vanished = append(r.result.vanished, uid)
			}
		}
		return nil
	default:
		return responses.ErrUnhandled
	}
}

func fetchChangedSince(c *client.Client, seqSet *imap.SeqSet, changedSince uint64) (*qresyncResult, error) {
	result := &qresyncResult{}
	cmd := &fetchChangedSinceCommand{SeqSet: seqSet, ChangedSince: changedSince}
	res := &qresyncResponse{result: result}

	status, err := c.Execute(cmd, res)
	if err != nil {
		return nil, err
	}
	if err := status.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
