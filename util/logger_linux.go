//go:build linux
// +build linux

package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// journaldWriter implements io.Writer for journald logging
type journaldWriter struct{}

func (w *journaldWriter) Write(p []byte) (n int, err error) {
	// journald adds its own newline
	msg := strings.TrimSuffix(string(p), "\n")

	err = journal.Send(msg, LogPriority(msg), map[string]string{
		"SYSLOG_IDENTIFIER": Name,
	})
	if err != nil {
		return fmt.Fprintf(os.Stderr, "%s", p)
	}
	return len(p), nil
}

// LogPriority maps a log line to a journald priority based on the markers used across the codebase
func LogPriority(msg string) journal.Priority {
	switch {
	case strings.HasPrefix(msg, "Warning:"), strings.Contains(msg, "unauthorized"):
		return journal.PriWarning
	case strings.Contains(msg, "Failed"), strings.Contains(msg, "failed"):
		return journal.PriErr
	default:
		return journal.PriInfo
	}
}

var logWriter io.Writer = os.Stderr

// GetLogWriter returns the current log writer (for use by other packages)
func GetLogWriter() io.Writer {
	return logWriter
}

// SetupLogging configures the logging system based on the journald flag
func SetupLogging(withJournald bool) {
	if !withJournald {
		return
	}

	if !journal.Enabled() {
		log.Println("Warning: Journald not available on this system; using standard logging")
		return
	}

	writer := &journaldWriter{}
	logWriter = writer
	log.SetOutput(writer)
	log.SetFlags(0)
	log.Println("Logging initialized with journald support")
}
