// Package sdlog adapts capnslog to the systemd journal, the way
// cmd/pullflate's -journal flag selects logging when run as a unit
// instead of interactively.
package sdlog

import (
	"strings"

	"github.com/coreos/go-systemd/v22/journal"

	"github.com/pullflate/pullflate/capnslog"
)

// JournalFormatter is a capnslog.Formatter that forwards entries to the
// local systemd journal via sd_journal_send, tagging each with a
// SYSLOG_IDENTIFIER field so `journalctl -t pullflate` finds them.
type JournalFormatter struct {
	Identifier string
}

// NewJournalFormatter returns a JournalFormatter tagging entries under
// identifier. If identifier is empty, "pullflate" is used.
func NewJournalFormatter(identifier string) *JournalFormatter {
	if identifier == "" {
		identifier = "pullflate"
	}
	return &JournalFormatter{Identifier: identifier}
}

// Enabled reports whether the local systemd journal is reachable, so
// callers can fall back to a StringFormatter when it isn't (e.g. when
// not running under systemd at all).
func Enabled() bool {
	return journal.Enabled()
}

// Format implements capnslog.Formatter. pkg is carried in a journal
// field rather than the message text, since the journal already
// timestamps and indexes entries separately from the line; depth is
// not used.
func (j *JournalFormatter) Format(pkg string, level capnslog.LogLevel, _ int, entries ...capnslog.LogEntry) {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.LogString())
	}
	msg := strings.TrimRight(b.String(), "\n")

	vars := map[string]string{
		"SYSLOG_IDENTIFIER": j.Identifier,
		"PULLFLATE_PACKAGE": pkg,
	}
	// journal.Send's error is deliberately swallowed: a logging sink
	// failing must never take down the decoder it's reporting on.
	_ = journal.Send(msg, levelToPriority(level), vars)
}

// levelToPriority maps a capnslog.LogLevel to the nearest syslog
// priority the journal API expects. capnslog's NOTICE and INFO are
// distinct levels with no syslog equivalent collision; journal.Pri*
// already has a NOTICE slot so the mapping is direct except for
// capnslog's TRACE, which has no syslog priority below DEBUG.
func levelToPriority(level capnslog.LogLevel) journal.Priority {
	switch level {
	case capnslog.CRITICAL:
		return journal.PriCrit
	case capnslog.ERROR:
		return journal.PriErr
	case capnslog.WARNING:
		return journal.PriWarning
	case capnslog.NOTICE:
		return journal.PriNotice
	case capnslog.INFO:
		return journal.PriInfo
	case capnslog.DEBUG, capnslog.TRACE:
		return journal.PriDebug
	default:
		return journal.PriInfo
	}
}
