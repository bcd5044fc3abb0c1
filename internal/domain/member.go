package domain

// Member is a user's membership record within the configured guild.
// It is looked up on demand and never persisted.
type Member struct {
	UserID   string   `json:"id"`
	Username string   `json:"username"`
	RoleIDs  []string `json:"-"`
}

// HasRole returns true if the member currently holds roleID.
func (m *Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}
