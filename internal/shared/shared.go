// package shared defines shared helpers
package shared

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// pairingCodeChars is the alphabet for human-enterable pairing codes.
const pairingCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] appending to the file at path,
// creating parent directories as needed. Used when stderr belongs to the
// TUI.
func NewFileLogger(path string) (*log.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return NewLogger(f), nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateUniqueKey generates a new screen identity key.
//
// The key is a v4 [uuid.UUID] rendered without dashes, matching what the
// backend stores as unique_key. Collisions are improbable enough that a key
// regenerated after deactivation never consults the server first.
func GenerateUniqueKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// GeneratePairingCode generates a short alphanumeric code of the given
// length for display during activation. Lengths outside 4-6 are clamped.
func GeneratePairingCode(length int) string {
	if length < 4 {
		length = 4
	}
	if length > 6 {
		length = 6
	}

	code := make([]byte, length)
	max := big.NewInt(int64(len(pairingCodeChars)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is
			// unavailable; use a fixed character rather than panic.
			code[i] = pairingCodeChars[0]
			continue
		}
		code[i] = pairingCodeChars[n.Int64()]
	}
	return string(code)
}
