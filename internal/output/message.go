package output

import (
	"fmt"
	"io"
	"time"

	"github.com/mrz1836/anchor/internal/notify"
)

// Severity prefixes for text rendering.
const (
	prefixInfo    = "ℹ️  "
	prefixWarning = "⚠️  "
	prefixError   = "❌ "
	prefixSuccess = "✅ "
)

// Prefix returns the text marker for a severity.
func Prefix(sev notify.Severity) string {
	switch sev {
	case notify.SeverityWarning:
		return prefixWarning
	case notify.SeverityError:
		return prefixError
	case notify.SeveritySuccess:
		return prefixSuccess
	default:
		return prefixInfo
	}
}

// Message writes msg with the marker for sev.
func Message(w io.Writer, sev notify.Severity, msg string) {
	_, _ = fmt.Fprintln(w, Prefix(sev)+msg)
}

// Messagef writes a formatted message with the marker for sev.
func Messagef(w io.Writer, sev notify.Severity, format string, args ...any) {
	Message(w, sev, fmt.Sprintf(format, args...))
}

// Notification writes n as one JSON object or one prefixed text line.
func Notification(w io.Writer, n notify.Notification, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, n)
	}
	_, err := fmt.Fprintf(w, "%s %s%s\n", n.CreatedAt.Format(time.TimeOnly), Prefix(n.Severity), n.Message)
	return err
}

// NotificationWriter returns a bus subscriber that renders every notification to w.
func NotificationWriter(w io.Writer, format Format) func(notify.Notification) {
	return func(n notify.Notification) {
		_ = Notification(w, n, format)
	}
}
