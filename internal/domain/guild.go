// Package domain contains core domain types for the role portal.
package domain

import "fmt"

// DefaultRoleName is the display name of the implicit role every member holds.
const DefaultRoleName = "@everyone"

// Guild is the community container the bot is configured for.
type Guild struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Roles []Role `json:"roles"`
}

// Role is a named, colored, ranked permission group within a guild.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    int    `json:"-"`
	Position int    `json:"position"`
	Managed  bool   `json:"-"`
}

// HexColor renders the role color as "#rrggbb".
func (r Role) HexColor() string {
	return fmt.Sprintf("#%06x", r.Color&0xffffff)
}

// IsDefault reports whether r is the guild's implicit @everyone role.
// On the platform that role shares its ID with the guild.
func (r Role) IsDefault(guildID string) bool {
	return r.ID == guildID || r.Name == DefaultRoleName
}

// FindRole returns the role with the given ID.
func (g *Guild) FindRole(roleID string) (Role, bool) {
	for _, role := range g.Roles {
		if role.ID == roleID {
			return role, true
		}
	}
	return Role{}, false
}

// HighestPosition returns the highest position among the given role IDs.
// A member without roles only holds the default role, whose position is 0.
func (g *Guild) HighestPosition(roleIDs []string) int {
	highest := 0
	for _, id := range roleIDs {
		if role, ok := g.FindRole(id); ok && role.Position > highest {
			highest = role.Position
		}
	}
	return highest
}
