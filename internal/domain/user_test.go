package domain_test

import (
	"testing"

	"github.com/dkeye/RoomChat/internal/domain"
)

func TestNewUser_DefaultsBlankNames(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		u := domain.NewUser(in)
		if u.Username != domain.AnonymousName {
			t.Errorf("NewUser(%q).Username = %q, want %q", in, u.Username, domain.AnonymousName)
		}
	}
}

func TestNewUser_KeepsNameVerbatim(t *testing.T) {
	u := domain.NewUser(" alice ")
	if u.Username != " alice " {
		t.Errorf("Username = %q, want %q", u.Username, " alice ")
	}
	if u.ID == "" {
		t.Error("expected a generated ID")
	}
}

func TestNewUser_IDsAreUnique(t *testing.T) {
	a, b := domain.NewUser("bob"), domain.NewUser("bob")
	if a.ID == b.ID {
		t.Errorf("two users share ID %q", a.ID)
	}
}

func TestMember_UsernameNilSafe(t *testing.T) {
	var m domain.Member
	if got := m.Username(); got != "" {
		t.Errorf("zero Member.Username() = %q, want empty", got)
	}
	m = domain.NewMember(domain.NewUser("carol"), "lobby")
	if got := m.Username(); got != "carol" {
		t.Errorf("Username() = %q, want carol", got)
	}
}
