// Package discord is the bot's connection to the Discord platform: one
// gateway session for the readiness handshake plus the REST calls used for
// guild, member and role lookups and mutations.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ashureev/roleportal/internal/domain"
	"github.com/ashureev/roleportal/internal/shared"
	"github.com/ashureev/roleportal/internal/telemetry"
)

// Config holds configuration for creating a Client.
type Config struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string

	// MaxRetries bounds attempts per REST call, including the first.
	MaxRetries int

	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration

	// HTTPClient is used for REST calls. Defaults to discordgo's client.
	HTTPClient *http.Client

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client wraps a discordgo session with retries and tracing.
type Client struct {
	session *discordgo.Session
	retry   shared.RetryPolicy
	logger  *slog.Logger
}

// NewClient builds a bot session. No network I/O happens until Open.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: bot token is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	// Lookups always go to the API; nothing is answered from a local cache.
	s.StateEnabled = false
	// Rate limits are retried by Client so waits honor request contexts.
	s.ShouldRetryOnRateLimit = false
	s.LogLevel = discordgo.LogWarning
	if cfg.HTTPClient != nil {
		s.Client = cfg.HTTPClient
	}
	routeLogs(logger)

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}

	return &Client{
		session: s,
		retry: shared.RetryPolicy{
			MaxAttempts: maxRetries,
			BaseDelay:   baseDelay,
			Retryable:   IsRetryable,
			Hint:        RetryAfter,
		},
		logger: logger,
	}, nil
}

// Open connects to the gateway. onReady is called once, with the bot's own
// user ID, when the platform completes the handshake.
func (c *Client) Open(onReady func(selfID string)) error {
	c.session.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		c.logger.Info("Bot logged in", "user", r.User.Username, "user_id", r.User.ID)
		onReady(r.User.ID)
	})
	c.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		c.logger.Warn("Gateway connection lost")
	})
	c.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		c.logger.Info("Gateway connection resumed")
	})

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	return nil
}

// Close closes the gateway connection.
func (c *Client) Close() error {
	return c.session.Close()
}

// Guild fetches the guild and its roles.
func (c *Client) Guild(ctx context.Context, guildID string) (g *domain.Guild, err error) {
	ctx, span := telemetry.StartPlatformSpan(ctx, "guild", attribute.String("guild_id", guildID))
	defer func() { telemetry.End(span, err) }()

	var raw *discordgo.Guild
	err = shared.Retry(ctx, c.retry, "guild", func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.session.Guild(guildID, discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch guild %s: %w", guildID, err)
	}
	return toGuild(raw), nil
}

// GuildMember fetches one member. Unknown members yield domain.ErrNotAMember.
func (c *Client) GuildMember(ctx context.Context, guildID, userID string) (m *domain.Member, err error) {
	ctx, span := telemetry.StartPlatformSpan(ctx, "guild_member", attribute.String("user_id", userID))
	defer func() { telemetry.End(span, err) }()

	var raw *discordgo.Member
	err = shared.Retry(ctx, c.retry, "guild_member", func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		if IsUnknownMember(err) {
			return nil, domain.ErrNotAMember
		}
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	return toMember(raw), nil
}

// AddMemberRole grants roleID to userID. Granting a held role is a no-op on the platform.
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) (err error) {
	ctx, span := telemetry.StartPlatformSpan(ctx, "member_role_add",
		attribute.String("user_id", userID), attribute.String("role_id", roleID))
	defer func() { telemetry.End(span, err) }()

	err = shared.Retry(ctx, c.retry, "member_role_add", func(ctx context.Context) error {
		return c.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("add role %s to %s: %w", roleID, userID, err)
	}
	return nil
}

// RemoveMemberRole revokes roleID from userID. Revoking an unheld role is a no-op on the platform.
func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) (err error) {
	ctx, span := telemetry.StartPlatformSpan(ctx, "member_role_remove",
		attribute.String("user_id", userID), attribute.String("role_id", roleID))
	defer func() { telemetry.End(span, err) }()

	err = shared.Retry(ctx, c.retry, "member_role_remove", func(ctx context.Context) error {
		return c.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("remove role %s from %s: %w", roleID, userID, err)
	}
	return nil
}

// AddMember adds userID to the guild using the user's delegated OAuth2
// access token (guilds.join scope). The platform answers 201 with the new
// member, or 204 with an empty body when the user is already a member; the
// latter yields domain.ErrAlreadyMember.
func (c *Client) AddMember(ctx context.Context, guildID, userID, accessToken string) (m *domain.Member, err error) {
	ctx, span := telemetry.StartPlatformSpan(ctx, "member_add", attribute.String("user_id", userID))
	defer func() { telemetry.End(span, err) }()

	endpoint := discordgo.EndpointGuildMember(guildID, userID)
	bucket := discordgo.EndpointGuildMember(guildID, "")
	params := &discordgo.GuildMemberAddParams{AccessToken: accessToken}

	var body []byte
	err = shared.Retry(ctx, c.retry, "member_add", func(ctx context.Context) error {
		var callErr error
		body, callErr = c.session.RequestWithBucketID(http.MethodPut, endpoint, params, bucket, discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("add member %s: %w", userID, err)
	}
	return decodeAddedMember(body)
}

func decodeAddedMember(body []byte) (*domain.Member, error) {
	if len(body) == 0 {
		return nil, domain.ErrAlreadyMember
	}
	var raw discordgo.Member
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode added member: %w", err)
	}
	return toMember(&raw), nil
}

func toGuild(g *discordgo.Guild) *domain.Guild {
	out := &domain.Guild{ID: g.ID, Name: g.Name, Roles: make([]domain.Role, 0, len(g.Roles))}
	for _, r := range g.Roles {
		if r == nil {
			continue
		}
		out.Roles = append(out.Roles, domain.Role{
			ID:       r.ID,
			Name:     r.Name,
			Color:    r.Color,
			Position: r.Position,
			Managed:  r.Managed,
		})
	}
	return out
}

func toMember(m *discordgo.Member) *domain.Member {
	out := &domain.Member{RoleIDs: append([]string(nil), m.Roles...)}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Username = m.User.Username
	}
	return out
}
