// Package membership admits users into the configured guild using their
// delegated OAuth2 access token.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/roleportal/internal/domain"
)

// Session is the platform session the service acts through.
// *session.Manager implements it.
type Session interface {
	AddMember(ctx context.Context, userID, accessToken string) (*domain.Member, error)
}

// MemberView is the public shape of a newly added member.
type MemberView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Result confirms a successful join.
type Result struct {
	Success bool       `json:"success"`
	Member  MemberView `json:"member"`
}

// Service adds users to the guild.
type Service struct {
	session Session
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(session Session, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{session: session, logger: logger}
}

// AddMemberToGuild adds userID to the guild. A user who is already a member
// yields domain.ErrAlreadyMember; an empty token yields
// domain.ErrMissingAccessToken without contacting the platform.
func (s *Service) AddMemberToGuild(ctx context.Context, userID, accessToken string) (Result, error) {
	if accessToken == "" {
		return Result{}, domain.ErrMissingAccessToken
	}

	member, err := s.session.AddMember(ctx, userID, accessToken)
	if errors.Is(err, domain.ErrAlreadyMember) {
		s.logger.Info("User already in guild", "user_id", userID)
		return Result{}, err
	}
	if err != nil {
		return Result{}, fmt.Errorf("add member: %w", err)
	}

	view := MemberView{ID: member.UserID, Username: member.Username}
	if view.ID == "" {
		view.ID = userID
	}
	s.logger.Info("User added to guild", "user_id", view.ID, "username", view.Username)
	return Result{Success: true, Member: view}, nil
}
