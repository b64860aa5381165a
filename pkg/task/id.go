package task

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ID identifies a task within an organization. It is a sum of two
// shapes: an internal UUID assigned at creation, or a caller-chosen
// user id (non-empty, no whitespace). User ids must be unique among the
// organization's non-archived tasks; archived tasks may leave theirs
// behind for reuse.
type ID struct {
	internal uuid.UUID
	user     string
}

// NewID returns a fresh internal task id
func NewID() ID {
	return ID{internal: uuid.New()}
}

// InternalID wraps an existing UUID as a task id
func InternalID(id uuid.UUID) ID {
	return ID{internal: id}
}

// ParseUserID validates and wraps a user-chosen task id
func ParseUserID(s string) (ID, error) {
	if s == "" {
		return ID{}, fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return ID{}, fmt.Errorf("%w: %q contains whitespace", ErrInvalidUserID, s)
	}
	return ID{user: s}, nil
}

// ParseID reconstructs an id from its persisted string form: UUIDs load
// as internal ids, anything else as a user id.
func ParseID(s string) (ID, error) {
	if u, err := uuid.Parse(s); err == nil {
		return ID{internal: u}, nil
	}
	return ParseUserID(s)
}

// IsUser reports whether the id was chosen by the caller
func (id ID) IsUser() bool {
	return id.user != ""
}

// String returns the persisted form of the id
func (id ID) String() string {
	if id.user != "" {
		return id.user
	}
	return id.internal.String()
}

// IsZero reports whether the id is unset
func (id ID) IsZero() bool {
	return id.user == "" && id.internal == uuid.Nil
}
