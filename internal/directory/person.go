package directory

import (
	"crypto/sha256"
	"fmt"

	"github.com/calorbit/birthday-sync/internal/config"
	"github.com/calorbit/birthday-sync/internal/engine"
)

// Person is an immutable snapshot of one directory entry for a sync pass.
// The directory owns the data; the core only ever reads it.
type Person struct {
	// Key is the stable external identity (vCard UID when present,
	// otherwise a deterministic hash of name and birth date).
	Key string

	// Name is the display name used for event titles and store matching.
	Name string

	// Birthday is nil for people without a known birth date.
	Birthday *engine.BirthDate

	// ReminderMinutes overrides the default reminder template when
	// non-nil (vCard X-BIRTHDAY-REMINDERS extension).
	ReminderMinutes []int
}

// HasBirthday reports whether the person carries a birth date.
func (p Person) HasBirthday() bool {
	return p.Birthday != nil
}

// derivedKey builds a deterministic identity for cards without a UID,
// stable across refreshes so event linkage survives re-reads.
func derivedKey(name string, birthday engine.BirthDate) string {
	input := fmt.Sprintf(config.FormatHashInput, name, birthday.String(), config.UIDSalt)
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash[:config.UIDHashLength])
}
