package domain

import "errors"

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")

	// Membership errors. Leave-style operations report "not present"
	// as a plain false instead of an error.
	ErrAccessDenied  = errors.New("access denied")
	ErrAlreadyInRoom = errors.New("already in room")
	ErrRoomClosed    = errors.New("room closed")
	ErrGroupNotFound = errors.New("group not found")
	ErrGroupClosed   = errors.New("group closed")
	ErrNotInRoom     = errors.New("not in a room")
	ErrDefaultGroup  = errors.New("default group cannot be closed")

	// ErrPermissionDenied is surfaced by the media collaborator when
	// the peer refuses source enumeration.
	ErrPermissionDenied = errors.New("permission denied")
)
