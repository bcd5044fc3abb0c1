// Package session owns the bot's single long-lived platform session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/roleportal/internal/domain"
)

// Platform is the subset of the chat platform API the portal relies on.
// *discord.Client implements it.
type Platform interface {
	// Open starts the authenticated connection. onReady fires once with the
	// bot's own user ID when the handshake completes.
	Open(onReady func(selfID string)) error

	// Guild returns the guild with its roles.
	Guild(ctx context.Context, guildID string) (*domain.Guild, error)

	// GuildMember returns a member, or domain.ErrNotAMember if the user has
	// no membership record.
	GuildMember(ctx context.Context, guildID, userID string) (*domain.Member, error)

	// AddMemberRole grants a role. Granting a held role is not an error.
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error

	// RemoveMemberRole revokes a role. Revoking an unheld role is not an error.
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error

	// AddMember adds a user with their delegated access token, or returns
	// domain.ErrAlreadyMember.
	AddMember(ctx context.Context, guildID, userID, accessToken string) (*domain.Member, error)

	// Close tears down the connection.
	Close() error
}

// Manager holds the one platform session shared by every request.
// Readiness moves from false to true exactly once and never reverts.
type Manager struct {
	platform Platform
	guildID  string
	logger   *slog.Logger

	ready     atomic.Bool
	readyCh   chan struct{}
	readyOnce sync.Once
	selfID    atomic.Pointer[string]
}

// NewManager creates a manager for guildID. No connection is made until Start.
func NewManager(platform Platform, guildID string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		platform: platform,
		guildID:  guildID,
		logger:   logger,
		readyCh:  make(chan struct{}),
	}
}

// Start opens the platform connection. A returned error means the backend
// cannot authenticate and the process should exit.
func (m *Manager) Start() error {
	m.logger.Info("Connecting to platform", "guild_id", m.guildID)
	if err := m.platform.Open(m.markReady); err != nil {
		m.logger.Error("Failed to log in bot", "error", err)
		return err
	}
	return nil
}

func (m *Manager) markReady(selfID string) {
	m.readyOnce.Do(func() {
		m.selfID.Store(&selfID)
		m.ready.Store(true)
		close(m.readyCh)
		m.logger.Info("Bot ready", "self_id", selfID, "guild_id", m.guildID)
	})
}

// IsReady reports whether the platform handshake has completed.
func (m *Manager) IsReady() bool {
	return m.ready.Load()
}

// Ready returns a channel that is closed once the session is ready.
func (m *Manager) Ready() <-chan struct{} {
	return m.readyCh
}

// WaitReady polls IsReady every interval until it holds or ctx ends.
func (m *Manager) WaitReady(ctx context.Context, interval time.Duration) error {
	if m.IsReady() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.logger.Info("Waiting for bot to be ready")
		select {
		case <-ticker.C:
			if m.IsReady() {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("wait for bot ready: %w", ctx.Err())
		}
	}
}

// GuildID returns the configured guild.
func (m *Manager) GuildID() string {
	return m.guildID
}

// SelfID returns the bot's own user ID, or "" before readiness.
func (m *Manager) SelfID() string {
	if id := m.selfID.Load(); id != nil {
		return *id
	}
	return ""
}

// Guild resolves the configured guild.
func (m *Manager) Guild(ctx context.Context) (*domain.Guild, error) {
	if !m.IsReady() {
		return nil, domain.ErrNotReady
	}
	return m.platform.Guild(ctx, m.guildID)
}

// Member returns the user's membership record, or nil (with a nil error)
// when the user is not in the guild.
func (m *Manager) Member(ctx context.Context, userID string) (*domain.Member, error) {
	if !m.IsReady() {
		return nil, domain.ErrNotReady
	}
	member, err := m.platform.GuildMember(ctx, m.guildID, userID)
	if errors.Is(err, domain.ErrNotAMember) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

// SelfMember returns the bot's own membership record.
func (m *Manager) SelfMember(ctx context.Context) (*domain.Member, error) {
	if !m.IsReady() {
		return nil, domain.ErrNotReady
	}
	member, err := m.Member(ctx, m.SelfID())
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("bot %s is not a member of guild %s", m.SelfID(), m.guildID)
	}
	return member, nil
}

// AddRole grants roleID to userID.
func (m *Manager) AddRole(ctx context.Context, userID, roleID string) error {
	if !m.IsReady() {
		return domain.ErrNotReady
	}
	return m.platform.AddMemberRole(ctx, m.guildID, userID, roleID)
}

// RemoveRole revokes roleID from userID.
func (m *Manager) RemoveRole(ctx context.Context, userID, roleID string) error {
	if !m.IsReady() {
		return domain.ErrNotReady
	}
	return m.platform.RemoveMemberRole(ctx, m.guildID, userID, roleID)
}

// AddMember adds userID to the guild with a delegated access token.
func (m *Manager) AddMember(ctx context.Context, userID, accessToken string) (*domain.Member, error) {
	if !m.IsReady() {
		return nil, domain.ErrNotReady
	}
	return m.platform.AddMember(ctx, m.guildID, userID, accessToken)
}

// Close closes the platform connection.
func (m *Manager) Close() error {
	return m.platform.Close()
}
