package domain

import "errors"

var (
	// ErrNotReady is returned when the platform session has not completed its handshake.
	ErrNotReady = errors.New("bot is not ready yet")
	// ErrNotAMember indicates the user has no membership record in the guild.
	ErrNotAMember = errors.New("user is not a member of the server")
	// ErrRoleNotFound indicates the role does not exist in the guild.
	ErrRoleNotFound = errors.New("role not found")
	// ErrAlreadyMember indicates the user joined the guild before the add call landed.
	ErrAlreadyMember = errors.New("user is already a member of the server")
	// ErrMissingAccessToken is returned when no delegated access token was supplied.
	ErrMissingAccessToken = errors.New("access token is required")
)
