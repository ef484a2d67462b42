package parking

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownClass is returned when a class value is outside its closed enumeration.
	ErrUnknownClass = errors.New("unknown class")

	// ErrInternal marks invariant violations. These are programming defects, never user input.
	ErrInternal = errors.New("internal invariant violation")

	ErrNoSlotAvailable = errors.New("no suitable slot available")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrEntryRejected   = errors.New("entry rejected")
)

func internalError(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrInternal)
}

// IsInternal reports whether err signals a broken invariant rather than a runtime condition.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// EntryRejectedError carries the user-facing reason an entry failed validation.
type EntryRejectedError struct {
	Reason string
}

func (e *EntryRejectedError) Error() string {
	return e.Reason
}

func (e *EntryRejectedError) Is(target error) bool {
	return target == ErrEntryRejected
}
