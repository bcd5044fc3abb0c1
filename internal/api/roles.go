package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/roleportal/internal/domain"
	"github.com/ashureev/roleportal/internal/feed"
	"github.com/ashureev/roleportal/internal/identity"
	"github.com/ashureev/roleportal/internal/membership"
	"github.com/ashureev/roleportal/internal/roles"
	"github.com/ashureev/roleportal/internal/store"
)

// RoleService is the role synchronization surface the handlers use.
type RoleService interface {
	ListMemberRoles(ctx context.Context, userID string) ([]domain.Role, error)
	ListAssignableRoles(ctx context.Context) ([]domain.Role, error)
	AssignRole(ctx context.Context, userID, roleID string) (roles.Result, error)
	RemoveRole(ctx context.Context, userID, roleID string) (roles.Result, error)
}

// MembershipService admits users into the guild.
type MembershipService interface {
	AddMemberToGuild(ctx context.Context, userID, accessToken string) (membership.Result, error)
}

// Publisher receives change events for connected clients.
type Publisher interface {
	Publish(ev feed.Event)
}

// RoleView is the public shape of a role.
type RoleView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Position int    `json:"position"`
}

func toRoleViews(rs []domain.Role) []RoleView {
	views := make([]RoleView, 0, len(rs))
	for _, r := range rs {
		views = append(views, RoleView{ID: r.ID, Name: r.Name, Color: r.HexColor(), Position: r.Position})
	}
	return views
}

type joinRequest struct {
	AccessToken string `json:"accessToken"`
}

// RolesHandler serves the role and membership endpoints.
type RolesHandler struct {
	roles   RoleService
	members MembershipService
	audit   store.Repository
	events  Publisher
	limiter func(http.Handler) http.Handler
	logger  *slog.Logger

	pending sync.WaitGroup
}

// RolesHandlerConfig holds the RolesHandler dependencies. Audit, Events and
// Limiter are optional.
type RolesHandlerConfig struct {
	Roles      RoleService
	Membership MembershipService
	Audit      store.Repository
	Events     Publisher
	Limiter    func(http.Handler) http.Handler
	Logger     *slog.Logger
}

// NewRolesHandler creates the role and membership handler.
func NewRolesHandler(cfg RolesHandlerConfig) *RolesHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = func(next http.Handler) http.Handler { return next }
	}
	return &RolesHandler{
		roles:   cfg.Roles,
		members: cfg.Membership,
		audit:   cfg.Audit,
		events:  cfg.Events,
		limiter: limiter,
		logger:  logger,
	}
}

// RegisterRoutes registers role and membership routes. Mutations go through
// the rate limiter.
func (h *RolesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/roles", h.ListAssignableRoles)

	user := r.With(identity.Middleware)
	user.Get("/api/user/{userID}/roles", h.ListMemberRoles)

	mutate := user.With(h.limiter)
	mutate.Post("/api/user/{userID}/roles/{roleID}", h.AssignRole)
	mutate.Delete("/api/user/{userID}/roles/{roleID}", h.RemoveRole)
	mutate.Post("/api/user/{userID}/join", h.Join)
}

// ListMemberRoles returns the roles the user currently holds.
func (h *RolesHandler) ListMemberRoles(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	held, err := h.roles.ListMemberRoles(r.Context(), userID)
	if err != nil {
		h.logFailure("Failed to fetch user roles", err, "user_id", userID)
		respondError(w, err, "Failed to fetch user roles")
		return
	}
	if held == nil {
		respondError(w, domain.ErrNotAMember, "")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"roles": toRoleViews(held)})
}

// ListAssignableRoles returns the roles users may self-assign.
func (h *RolesHandler) ListAssignableRoles(w http.ResponseWriter, r *http.Request) {
	available, err := h.roles.ListAssignableRoles(r.Context())
	if err != nil {
		h.logFailure("Failed to fetch available roles", err)
		respondError(w, err, "Failed to fetch available roles")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"roles": toRoleViews(available)})
}

// AssignRole grants a role to the user.
func (h *RolesHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	h.mutateRole(w, r, domain.ActionAssign)
}

// RemoveRole revokes a role from the user.
func (h *RolesHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	h.mutateRole(w, r, domain.ActionRemove)
}

func (h *RolesHandler) mutateRole(w http.ResponseWriter, r *http.Request, action domain.MutationAction) {
	userID := identity.UserIDFromContext(r.Context())
	roleID := chi.URLParam(r, "roleID")

	var (
		res     roles.Result
		err     error
		summary string
		evType  feed.EventType
	)
	if action == domain.ActionAssign {
		res, err = h.roles.AssignRole(r.Context(), userID, roleID)
		summary, evType = "Failed to assign role", feed.EventRoleAssigned
	} else {
		res, err = h.roles.RemoveRole(r.Context(), userID, roleID)
		summary, evType = "Failed to remove role", feed.EventRoleRemoved
	}

	h.record(&domain.Mutation{
		UserID:   userID,
		RoleID:   roleID,
		RoleName: res.Role.Name,
		Action:   action,
	}, err)

	if err != nil {
		h.logFailure(summary, err, "user_id", userID, "role_id", roleID)
		respondError(w, err, summary)
		return
	}

	h.logger.Info("Role mutation applied", "action", action, "user_id", userID, "role_id", roleID)
	h.publish(feed.Event{Type: evType, UserID: userID, RoleID: roleID, RoleName: res.Role.Name})
	JSON(w, http.StatusOK, res)
}

// Join adds the user to the guild with their delegated access token.
func (h *RolesHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.members.AddMemberToGuild(r.Context(), userID, req.AccessToken)
	if errors.Is(err, domain.ErrMissingAccessToken) {
		respondError(w, err, "")
		return
	}

	h.record(&domain.Mutation{UserID: userID, Action: domain.ActionJoin}, err)

	if err != nil {
		h.logFailure("Failed to add user to guild", err, "user_id", userID)
		respondError(w, err, "Failed to add user to guild")
		return
	}

	h.publish(feed.Event{Type: feed.EventMemberJoined, UserID: userID})
	JSON(w, http.StatusOK, res)
}

// logFailure logs expected conditions at Info and transient ones at Error.
func (h *RolesHandler) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error(msg, args...)
		return
	}
	h.logger.Info(msg, args...)
}

// record writes the audit entry asynchronously so the platform response is
// never delayed by the database.
func (h *RolesHandler) record(m *domain.Mutation, err error) {
	if h.audit == nil {
		return
	}
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now().UTC()
	m.Outcome = domain.OutcomeOK
	if err != nil {
		m.Outcome = domain.OutcomeError
		m.Error = err.Error()
	}

	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.audit.RecordMutation(ctx, m); err != nil {
			h.logger.Warn("Failed to record mutation", "error", err, "user_id", m.UserID, "action", m.Action)
		}
	}()
}

func (h *RolesHandler) publish(ev feed.Event) {
	if h.events != nil {
		h.events.Publish(ev)
	}
}

// Wait blocks until pending audit writes finish.
func (h *RolesHandler) Wait() {
	h.pending.Wait()
}
