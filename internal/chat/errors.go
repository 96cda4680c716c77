package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated covers missing, malformed and expired credentials as
	// well as structurally valid credentials for unknown or unverified
	// accounts. Always fatal for the connection.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden: authenticated, but not a participant of the target
	// conversation. Non-fatal, reported as an error event.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound: the target user or conversation does not exist.
	// Non-fatal, reported as an error event.
	ErrNotFound = errors.New("not found")
)

// InvalidParticipantError is returned by group creation when a requested
// participant does not exist in the user directory.
type InvalidParticipantError struct {
	UserID string
}

func (e *InvalidParticipantError) Error() string {
	return fmt.Sprintf("invalid participant: user %q does not exist", e.UserID)
}

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }
