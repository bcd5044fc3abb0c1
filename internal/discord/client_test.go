package discord

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/ashureev/roleportal/internal/domain"
)

func TestDecodeAddedMemberEmptyBodyMeansAlreadyMember(t *testing.T) {
	_, err := decodeAddedMember(nil)
	if !errors.Is(err, domain.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestDecodeAddedMember(t *testing.T) {
	body := []byte(`{"user":{"id":"42","username":"ferris"},"roles":["r1","r2"]}`)

	m, err := decodeAddedMember(body)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if m.UserID != "42" || m.Username != "ferris" {
		t.Errorf("unexpected member %+v", m)
	}
	if len(m.RoleIDs) != 2 {
		t.Errorf("expected 2 roles, got %v", m.RoleIDs)
	}
}

func TestToGuildCopiesRoleAttributes(t *testing.T) {
	g := toGuild(&discordgo.Guild{
		ID:   "g1",
		Name: "Portal",
		Roles: []*discordgo.Role{
			{ID: "g1", Name: "@everyone"},
			{ID: "r1", Name: "Bots", Color: 0x5865f2, Position: 7, Managed: true},
			nil,
		},
	})

	if len(g.Roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(g.Roles))
	}
	bots := g.Roles[1]
	if bots.Position != 7 || !bots.Managed || bots.HexColor() != "#5865f2" {
		t.Errorf("unexpected role %+v", bots)
	}
}

func TestToMemberWithoutUser(t *testing.T) {
	m := toMember(&discordgo.Member{Roles: []string{"r1"}})
	if m.UserID != "" || len(m.RoleIDs) != 1 {
		t.Errorf("unexpected member %+v", m)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}
