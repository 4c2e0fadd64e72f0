package access

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/repository"
	"github.com/hitoshi/teamcal/internal/repository/memory"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

var testTeam = &model.Team{ID: "t1", OrgID: "o1", Name: "Team", OwnerID: "owner", OwnerTime: testNow}

// newTestStore はowner(オーナー), admin(管理者), member(一般), outsider(組織のみ), stranger(未所属)を持つストアを返す。
func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx repository.Tx) error {
		for _, id := range []string{"owner", "admin", "member", "outsider", "stranger"} {
			if err := tx.Users().Create(ctx, &model.User{ID: id, Username: id, PasswordDigest: "d", RegistrationTime: testNow}); err != nil {
				return err
			}
		}
		if err := tx.Orgs().Create(ctx, &model.Org{ID: "o1", Name: "Org", OwnerID: "owner", OwnerTime: testNow}); err != nil {
			return err
		}
		for _, id := range []string{"owner", "admin", "member", "outsider"} {
			if err := tx.Orgs().AddMember(ctx, model.OrgMembership{UserID: id, OrgID: "o1", EntryTime: testNow}); err != nil {
				return err
			}
		}
		if err := tx.Teams().Create(ctx, testTeam); err != nil {
			return err
		}
		for _, m := range []model.TeamMembership{
			{UserID: "owner", TeamID: "t1", IsAdmin: true},
			{UserID: "admin", TeamID: "t1", IsAdmin: true},
			{UserID: "member", TeamID: "t1"},
		} {
			if err := tx.Teams().AddMember(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	return s
}

func withGraph(t *testing.T, s *memory.Store, fn func(g *Graph)) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx repository.Tx) error {
		fn(NewGraph(tx))
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGraph_RoleOf(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		userID string
		want   model.Role
	}{
		{"owner", model.RoleOwner},
		{"admin", model.RoleAdmin},
		{"member", model.RoleMember},
		{"outsider", model.RoleNonMember},
		{"stranger", model.RoleNonMember},
	}

	withGraph(t, s, func(g *Graph) {
		for _, tt := range tests {
			got, err := g.RoleOf(ctx, tt.userID, testTeam)
			if err != nil {
				t.Fatalf("RoleOf(%s): unexpected error: %v", tt.userID, err)
			}
			if got != tt.want {
				t.Errorf("RoleOf(%s) = %s, want %s", tt.userID, got, tt.want)
			}
		}
	})
}

func TestDeriveRole_OwnerWithoutAdminFlag(t *testing.T) {
	m := &model.TeamMembership{UserID: "owner", TeamID: "t1", IsAdmin: false}
	if got := DeriveRole(testTeam, "owner", m); got != model.RoleOwner {
		t.Errorf("DeriveRole = %s, want owner", got)
	}
	if got := DeriveRole(testTeam, "owner", nil); got != model.RoleNonMember {
		t.Errorf("DeriveRole without membership = %s, want none", got)
	}
}

func TestGraph_Membership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	withGraph(t, s, func(g *Graph) {
		if ok, _ := g.IsOrgMember(ctx, "outsider", "o1"); !ok {
			t.Error("outsider should be an org member")
		}
		if ok, _ := g.IsOrgMember(ctx, "stranger", "o1"); ok {
			t.Error("stranger should not be an org member")
		}
		if ok, _ := g.IsTeamMember(ctx, "member", "t1"); !ok {
			t.Error("member should be a team member")
		}
		if ok, _ := g.IsTeamMember(ctx, "outsider", "t1"); ok {
			t.Error("outsider should not be a team member")
		}
	})
}
