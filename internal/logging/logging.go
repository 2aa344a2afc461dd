// Package logging sets up the two time-prefixed output streams the engine
// writes to: informational lines to stdout, error lines to stderr, both
// shaped as "<ts> <account>/<mailbox>: msg".
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const timeFormat = "2006-01-02 15:04:05"

var (
	infoLogger zerolog.Logger
	errLogger  zerolog.Logger
)

func init() {
	zerolog.TimeFieldFormat = timeFormat

	infoLogger = zerolog.New(consoleWriter(os.Stdout)).With().Timestamp().Logger()
	errLogger = zerolog.New(consoleWriter(os.Stderr)).With().Timestamp().Logger()
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat, NoColor: true}
	cw.PartsOrder = []string{
		zerolog.TimestampFieldName,
		zerolog.MessageFieldName,
	}
	cw.FormatFieldName = func(i interface{}) string { return "" }
	cw.FormatFieldValue = func(i interface{}) string { return "" }
	return cw
}

// Mailbox is a logger tagged for a single account/mailbox pair. Its
// Info/Infof calls go to stdout, Error/Errorf/Err calls go to stderr,
// matching the split the engine's retry/backoff reporting needs.
type Mailbox struct {
	account string
	mailbox string
}

// ForMailbox creates a tagged logger for one engine instance.
func ForMailbox(account, mailbox string) *Mailbox {
	return &Mailbox{account: account, mailbox: mailbox}
}

func (m *Mailbox) prefix(msg string) string {
	return m.account + "/" + m.mailbox + ": " + msg
}

// Info logs an informational message to stdout.
func (m *Mailbox) Info(msg string) {
	infoLogger.Info().Msg(m.prefix(msg))
}

// Infof logs a formatted informational message to stdout.
func (m *Mailbox) Infof(format string, args ...interface{}) {
	infoLogger.Info().Msgf(m.prefix(format), args...)
}

// Error logs an error message to stderr.
func (m *Mailbox) Error(msg string) {
	errLogger.Error().Msg(m.prefix(msg))
}

// Errorf logs a formatted error message to stderr.
func (m *Mailbox) Errorf(format string, args ...interface{}) {
	errLogger.Error().Msgf(m.prefix(format), args...)
}

// Err logs err under msg to stderr.
func (m *Mailbox) Err(msg string, err error) {
	errLogger.Error().Err(err).Msg(m.prefix(msg))
}
