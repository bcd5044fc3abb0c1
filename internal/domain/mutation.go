package domain

import "time"

// MutationAction identifies the kind of change requested on the platform.
type MutationAction string

const (
	ActionAssign MutationAction = "assign"
	ActionRemove MutationAction = "remove"
	ActionJoin   MutationAction = "join"
)

// MutationOutcome is the result of a mutation attempt.
type MutationOutcome string

const (
	OutcomeOK    MutationOutcome = "ok"
	OutcomeError MutationOutcome = "error"
)

// Mutation is an audit record of one attempted membership or role change.
// It records what was asked for, never tokens or resulting member state.
type Mutation struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	RoleID    string          `json:"role_id,omitempty"`
	RoleName  string          `json:"role_name,omitempty"`
	Action    MutationAction  `json:"action"`
	Outcome   MutationOutcome `json:"outcome"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
