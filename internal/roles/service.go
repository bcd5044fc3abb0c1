// Package roles lets members self-assign and remove guild roles through the bot.
package roles

import (
	"context"
	"fmt"
	"sort"

	"github.com/ashureev/roleportal/internal/domain"
)

// Session is the platform session the service acts through.
// *session.Manager implements it.
type Session interface {
	GuildID() string
	Guild(ctx context.Context) (*domain.Guild, error)
	Member(ctx context.Context, userID string) (*domain.Member, error)
	SelfMember(ctx context.Context) (*domain.Member, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}

// Result confirms a role mutation.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Role    domain.Role `json:"-"`
}

// Service synchronizes role assignments with the platform.
type Service struct {
	session Session
}

// NewService constructs a Service.
func NewService(session Session) *Service {
	return &Service{session: session}
}

// ListMemberRoles returns the roles held by userID in platform order,
// without the default role. A nil slice with a nil error means the user is
// not a member.
func (s *Service) ListMemberRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	member, err := s.session.Member(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch member: %w", err)
	}
	if member == nil {
		return nil, nil
	}

	guild, err := s.session.Guild(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch guild: %w", err)
	}

	roles := make([]domain.Role, 0, len(member.RoleIDs))
	for _, id := range member.RoleIDs {
		role, ok := guild.FindRole(id)
		if !ok || role.IsDefault(guild.ID) {
			continue
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// ListAssignableRoles returns the roles the bot may grant, most senior first.
// The default role, integration-managed roles and any role ranked at or
// above the bot's own highest role are excluded.
func (s *Service) ListAssignableRoles(ctx context.Context) ([]domain.Role, error) {
	guild, err := s.session.Guild(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch guild: %w", err)
	}
	self, err := s.session.SelfMember(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch bot member: %w", err)
	}

	return Assignable(guild, guild.HighestPosition(self.RoleIDs)), nil
}

// Assignable filters guild roles to those strictly below botHighest and
// sorts them by descending position.
func Assignable(guild *domain.Guild, botHighest int) []domain.Role {
	roles := make([]domain.Role, 0, len(guild.Roles))
	for _, role := range guild.Roles {
		if role.IsDefault(guild.ID) || role.Managed || role.Position >= botHighest {
			continue
		}
		roles = append(roles, role)
	}
	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].Position > roles[j].Position
	})
	return roles
}

// AssignRole grants roleID to userID. Granting a held role succeeds.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string) (Result, error) {
	role, err := s.resolve(ctx, userID, roleID)
	if err != nil {
		return Result{}, err
	}
	if err := s.session.AddRole(ctx, userID, role.ID); err != nil {
		return Result{Role: role}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Role %s assigned successfully", role.Name),
		Role:    role,
	}, nil
}

// RemoveRole revokes roleID from userID. Removing an unheld role succeeds.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID string) (Result, error) {
	role, err := s.resolve(ctx, userID, roleID)
	if err != nil {
		return Result{}, err
	}
	if err := s.session.RemoveRole(ctx, userID, role.ID); err != nil {
		return Result{Role: role}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Role %s removed successfully", role.Name),
		Role:    role,
	}, nil
}

// resolve checks the mutation preconditions: the user is a member and the
// role exists in the guild.
func (s *Service) resolve(ctx context.Context, userID, roleID string) (domain.Role, error) {
	member, err := s.session.Member(ctx, userID)
	if err != nil {
		return domain.Role{}, err
	}
	if member == nil {
		return domain.Role{}, domain.ErrNotAMember
	}

	guild, err := s.session.Guild(ctx)
	if err != nil {
		return domain.Role{}, err
	}
	role, ok := guild.FindRole(roleID)
	if !ok {
		return domain.Role{}, domain.ErrRoleNotFound
	}
	return role, nil
}
