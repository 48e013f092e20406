// Package storeerrors defines the error kinds SEREBO's core
// distinguishes. Call sites wrap these with fmt.Errorf("%w: ...") for
// context and callers check them with errors.Is.
package storeerrors

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicateRecord is returned when an insertion collides with the
	// unique (dtstamp, hash) index on datalog. The whole insertion is
	// aborted; nothing is written.
	ErrDuplicateRecord = errors.New("serebo: duplicate record (dtstamp, hash already present)")

	// ErrStoreIO covers underlying file/database errors. The triggering
	// transaction is rolled back.
	ErrStoreIO = errors.New("serebo: store I/O error")

	// ErrAlreadyRegistered is returned by the notary when a blackboxID is
	// registered a second time.
	ErrAlreadyRegistered = errors.New("serebo: blackbox already registered with notary")

	// ErrNotRegistered is returned when a notarize call references a
	// (blackboxID, notaryAuthorization) pair the notary does not know.
	ErrNotRegistered = errors.New("serebo: blackbox not registered with notary")

	// ErrRemoteUnavailable covers network/protocol failures talking to
	// the notary. The local store is left untouched.
	ErrRemoteUnavailable = errors.New("serebo: notary unavailable")

	// ErrNotFound covers query-path lookups (unknown alias, unknown URL)
	// that found nothing. No writes occur.
	ErrNotFound = errors.New("serebo: not found")

	// ErrCorruption is raised only by audit procedures, recorded per
	// record rather than aborting the audit.
	ErrCorruption = errors.New("serebo: corruption detected")
)

// IsUniqueViolation reports whether err came from a SQL unique/primary-key
// constraint, without depending on driver-specific error types. Used to
// translate a raw insert failure into ErrDuplicateRecord.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique")
}
