// Package diagnostics renders the severity-token diagnostics of §7 through
// a structured, leveled logger, so downstream tooling can key off either
// the token field or the log level.
package diagnostics

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
)

// Severity tokens, matching the taxonomy the bootstrap pipeline has always
// used for its diagnostics.
const (
	Abort   = "ABORT"
	Error   = "!! APFS ERROR !!"
	Warning = "!! APFS WARNING !!"
	End     = "END"
)

func init() {
	log.SetHandler(text.New(os.Stderr))
	log.SetLevel(log.InfoLevel)
}

// SetVerbose raises or lowers the package-level logger's level, used by the
// --verbose CLI flag.
func SetVerbose(verbose bool) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// Warnf emits a warn-only diagnostic carrying the given severity token,
// matching spec.md §7's rule that descriptor-slot and block-0 mismatches
// are reported but do not abort the bootstrap attempt.
func Warnf(token, format string, args ...interface{}) {
	log.WithField("severity", token).Warnf(format, args...)
}

// Errorf emits a structural-error diagnostic that does not by itself abort
// the attempt; the caller decides whether to rewind or terminate.
func Errorf(token, format string, args ...interface{}) {
	log.WithField("severity", token).Errorf(format, args...)
}

// Fatalf emits an ABORT-level diagnostic for an unrecoverable condition
// (argument, I/O, or allocation failure).
func Fatalf(format string, args ...interface{}) {
	log.WithField("severity", Abort).Errorf(format, args...)
}

// Infof emits a normal progress diagnostic.
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Endf emits the terminal-state diagnostic (success or graceful
// "unimplemented" termination).
func Endf(format string, args ...interface{}) {
	log.WithField("severity", End).Infof(format, args...)
}
