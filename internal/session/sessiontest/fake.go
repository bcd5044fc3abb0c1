// Package sessiontest provides an in-memory session.Platform for tests.
package sessiontest

import (
	"context"
	"sync"

	"github.com/ashureev/roleportal/internal/domain"
)

// Platform is an in-memory guild. Role mutations take effect immediately
// so tests can check read-after-write behavior.
type Platform struct {
	mu      sync.Mutex
	guild   domain.Guild
	members map[string]*domain.Member
	tokens  map[string]string
	onReady func(selfID string)

	// SelfID is the bot's user ID passed to onReady by Handshake.
	SelfID string

	// Err* force the matching call to fail.
	OpenErr   error
	GuildErr  error
	MemberErr error
	MutateErr error
	AddErr    error

	Calls []string
}

// New creates a fake guild with the given roles. The bot is registered as
// a member holding botRoleIDs.
func New(guildID string, roles []domain.Role, botRoleIDs ...string) *Platform {
	p := &Platform{
		guild:   domain.Guild{ID: guildID, Name: "Test Guild", Roles: roles},
		members: make(map[string]*domain.Member),
		tokens:  make(map[string]string),
		SelfID:  "bot",
	}
	p.members["bot"] = &domain.Member{UserID: "bot", Username: "portal-bot", RoleIDs: botRoleIDs}
	return p
}

// AddMemberRecord registers userID as a guild member holding roleIDs.
func (p *Platform) AddMemberRecord(userID string, roleIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[userID] = &domain.Member{UserID: userID, Username: "user-" + userID, RoleIDs: roleIDs}
}

// MemberRoleIDs returns a copy of the role IDs held by userID.
func (p *Platform) MemberRoleIDs(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.members[userID]
	if m == nil {
		return nil
	}
	return append([]string(nil), m.RoleIDs...)
}

// TokenFor returns the access token used to add userID.
func (p *Platform) TokenFor(userID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens[userID]
}

// CallCount returns how many times op was called.
func (p *Platform) CallCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Calls {
		if c == op {
			n++
		}
	}
	return n
}

// Handshake simulates the platform's ready event.
func (p *Platform) Handshake() {
	p.mu.Lock()
	onReady := p.onReady
	selfID := p.SelfID
	p.mu.Unlock()
	if onReady != nil {
		onReady(selfID)
	}
}

func (p *Platform) record(op string) {
	p.Calls = append(p.Calls, op)
}

func (p *Platform) Open(onReady func(selfID string)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("open")
	if p.OpenErr != nil {
		return p.OpenErr
	}
	p.onReady = onReady
	return nil
}

func (p *Platform) Guild(_ context.Context, guildID string) (*domain.Guild, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("guild")
	if p.GuildErr != nil {
		return nil, p.GuildErr
	}
	g := p.guild
	g.ID = guildID
	g.Roles = append([]domain.Role(nil), p.guild.Roles...)
	return &g, nil
}

func (p *Platform) GuildMember(_ context.Context, _, userID string) (*domain.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("guild_member")
	if p.MemberErr != nil {
		return nil, p.MemberErr
	}
	m := p.members[userID]
	if m == nil {
		return nil, domain.ErrNotAMember
	}
	out := *m
	out.RoleIDs = append([]string(nil), m.RoleIDs...)
	return &out, nil
}

func (p *Platform) AddMemberRole(_ context.Context, _, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("member_role_add")
	if p.MutateErr != nil {
		return p.MutateErr
	}
	m := p.members[userID]
	if m == nil {
		return domain.ErrNotAMember
	}
	if !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	return nil
}

func (p *Platform) RemoveMemberRole(_ context.Context, _, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("member_role_remove")
	if p.MutateErr != nil {
		return p.MutateErr
	}
	m := p.members[userID]
	if m == nil {
		return domain.ErrNotAMember
	}
	kept := m.RoleIDs[:0]
	for _, id := range m.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	m.RoleIDs = kept
	return nil
}

func (p *Platform) AddMember(_ context.Context, _, userID, accessToken string) (*domain.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("member_add")
	if p.AddErr != nil {
		return nil, p.AddErr
	}
	if _, ok := p.members[userID]; ok {
		return nil, domain.ErrAlreadyMember
	}
	m := &domain.Member{UserID: userID, Username: "user-" + userID}
	p.members[userID] = m
	p.tokens[userID] = accessToken
	out := *m
	return &out, nil
}

func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("close")
	return nil
}
