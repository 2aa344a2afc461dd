// Package syncflags implements the five-slot flag set shared between IMAP
// flags and Maildir flag-letter suffixes (spec §4.1).
package syncflags

import (
	"strings"

	"github.com/emersion/go-imap"
)

// slot indexes, fixed canonical DFRST order.
const (
	slotDraft = iota
	slotFlagged
	slotReplied
	slotSeen
	slotTrashed
	numSlots
)

// Flag names one of the five recognized flags.
type Flag int

const (
	Draft Flag = iota
	Flagged
	Replied
	Seen
	Trashed
)

// Set is a fixed five-slot flag set drawn from {Draft, Flagged, Replied,
// Seen, Trashed}.
type Set struct {
	bits [numSlots]bool
}

// Diff is the result of diffing an older set against a newer one, such that
// adding every flag in Add to older and then removing every flag in Sub
// yields newer.
type Diff struct {
	Add Set
	Sub Set
}

// FromMaildirString parses a canonical (or arbitrarily ordered) subset of
// "DFRST" into a Set. Unrecognized characters are ignored.
func FromMaildirString(s string) Set {
	var set Set
	for _, b := range s {
		switch b {
		case 'D':
			set.bits[slotDraft] = true
		case 'F':
			set.bits[slotFlagged] = true
		case 'R':
			set.bits[slotReplied] = true
		case 'S':
			set.bits[slotSeen] = true
		case 'T':
			set.bits[slotTrashed] = true
		}
	}
	return set
}

// FromIMAP converts an IMAP flag list to a Set. Flags outside the five
// recognized ones (Recent, custom keywords, ...) are dropped silently.
func FromIMAP(flags []string) Set {
	var set Set
	for _, f := range flags {
		switch f {
		case imap.DraftFlag:
			set.bits[slotDraft] = true
		case imap.FlaggedFlag:
			set.bits[slotFlagged] = true
		case imap.AnsweredFlag:
			set.bits[slotReplied] = true
		case imap.SeenFlag:
			set.bits[slotSeen] = true
		case imap.DeletedFlag:
			set.bits[slotTrashed] = true
		}
	}
	return set
}

// ToMaildirString renders the set as a canonical DFRST-ordered subset.
func (s Set) ToMaildirString() string {
	var b strings.Builder
	if s.bits[slotDraft] {
		b.WriteByte('D')
	}
	if s.bits[slotFlagged] {
		b.WriteByte('F')
	}
	if s.bits[slotReplied] {
		b.WriteByte('R')
	}
	if s.bits[slotSeen] {
		b.WriteByte('S')
	}
	if s.bits[slotTrashed] {
		b.WriteByte('T')
	}
	return b.String()
}

// ToIMAPFlags converts the set to an IMAP flag list. Recent is never
// appended. Returns nil (not an empty, non-nil slice) when the set is empty,
// matching the original's Option<Vec<Flag>> semantics.
func (s Set) ToIMAPFlags() []string {
	if s.Empty() {
		return nil
	}
	flags := make([]string, 0, numSlots)
	if s.bits[slotDraft] {
		flags = append(flags, imap.DraftFlag)
	}
	if s.bits[slotFlagged] {
		flags = append(flags, imap.FlaggedFlag)
	}
	if s.bits[slotReplied] {
		flags = append(flags, imap.AnsweredFlag)
	}
	if s.bits[slotSeen] {
		flags = append(flags, imap.SeenFlag)
	}
	if s.bits[slotTrashed] {
		flags = append(flags, imap.DeletedFlag)
	}
	return flags
}

// Contains reports whether f is set.
func (s Set) Contains(f Flag) bool {
	switch f {
	case Draft:
		return s.bits[slotDraft]
	case Flagged:
		return s.bits[slotFlagged]
	case Replied:
		return s.bits[slotReplied]
	case Seen:
		return s.bits[slotSeen]
	case Trashed:
		return s.bits[slotTrashed]
	default:
		return false
	}
}

// Empty reports whether no flag is set.
func (s Set) Empty() bool {
	return s == Set{}
}

// Equal reports whether s and other represent the same flags.
func (s Set) Equal(other Set) bool {
	return s == other
}

// Diff computes the per-slot difference needed to turn s into other:
// (NoFlag, X) -> add X; (X, NoFlag) -> sub X; otherwise unchanged.
func (s Set) Diff(other Set) Diff {
	var d Diff
	for i := 0; i < numSlots; i++ {
		switch {
		case !s.bits[i] && !other.bits[i]:
			// neither set, nothing to do
		case !s.bits[i] && other.bits[i]:
			d.Add.bits[i] = true
		case s.bits[i] && !other.bits[i]:
			d.Sub.bits[i] = true
		}
	}
	return d
}
