package access

import (
	"context"
	"testing"

	"github.com/hitoshi/teamcal/internal/model"
)

func assertKind(t *testing.T, name string, err error, want model.ErrorKind) {
	t.Helper()
	if want == "" {
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
		}
		return
	}
	if !model.IsKind(err, want) {
		t.Errorf("%s: expected %s, got %v", name, want, err)
	}
}

func TestAuthorizeDeleteOrg(t *testing.T) {
	org := &model.Org{ID: "o1", OwnerID: "owner"}
	assertKind(t, "owner", AuthorizeDeleteOrg(org, "owner"), "")
	assertKind(t, "member", AuthorizeDeleteOrg(org, "member"), model.KindForbidden)
}

func TestAuthorizeRemoveFromOrg(t *testing.T) {
	org := &model.Org{ID: "o1", OwnerID: "owner"}

	tests := []struct {
		name     string
		callerID string
		targetID string
		want     model.ErrorKind
	}{
		{"owner removes member", "owner", "member", ""},
		{"member leaves", "member", "member", ""},
		{"member removes other", "member", "admin", model.KindForbidden},
		{"owner removes self", "owner", "owner", model.KindForbidden},
		{"member removes owner", "member", "owner", model.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertKind(t, tt.name, AuthorizeRemoveFromOrg(org, tt.callerID, tt.targetID), tt.want)
		})
	}
}

func TestAuthorizeDeleteTeam(t *testing.T) {
	assertKind(t, "owner", AuthorizeDeleteTeam(testTeam, "owner"), "")
	assertKind(t, "admin", AuthorizeDeleteTeam(testTeam, "admin"), model.KindForbidden)
}

func TestAuthorizeModifyUserEvents(t *testing.T) {
	assertKind(t, "self", AuthorizeModifyUserEvents("u1", "u1"), "")
	assertKind(t, "other", AuthorizeModifyUserEvents("u1", "u2"), model.KindForbidden)
}

func TestGraph_AuthorizeAddTeamMember(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		callerID string
		targetID string
		want     model.ErrorKind
	}{
		{"owner adds org member", "owner", "outsider", ""},
		{"admin adds org member", "admin", "outsider", ""},
		{"member cannot add", "member", "outsider", model.KindForbidden},
		{"target outside org", "owner", "stranger", model.KindForbidden},
		{"caller outside team", "outsider", "outsider", model.KindForbidden},
		{"owner adds unknown user", "owner", "ghost", model.KindNotFound},
		{"member adds unknown user", "member", "ghost", model.KindForbidden},
		{"non-member adds unknown user", "stranger", "ghost", model.KindForbidden},
	}
	withGraph(t, s, func(g *Graph) {
		for _, tt := range tests {
			assertKind(t, tt.name, g.AuthorizeAddTeamMember(ctx, testTeam, tt.callerID, tt.targetID), tt.want)
		}
	})
}

func TestGraph_AuthorizeRemoveTeamMember(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		callerID string
		targetID string
		want     model.ErrorKind
	}{
		{"admin removes member", "admin", "member", ""},
		{"member leaves", "member", "member", ""},
		{"member removes admin", "member", "admin", model.KindForbidden},
		{"admin removes owner", "admin", "owner", model.KindForbidden},
		{"owner removes self", "owner", "owner", model.KindForbidden},
	}
	withGraph(t, s, func(g *Graph) {
		for _, tt := range tests {
			assertKind(t, tt.name, g.AuthorizeRemoveTeamMember(ctx, testTeam, tt.callerID, tt.targetID), tt.want)
		}
	})
}

func TestGraph_AuthorizeChangeRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		callerID string
		targetID string
		want     model.ErrorKind
	}{
		{"owner promotes member", "owner", "member", ""},
		{"admin demotes admin", "admin", "admin", model.KindForbidden},
		{"admin changes member", "admin", "member", ""},
		{"member changes admin", "member", "admin", model.KindForbidden},
		{"target is owner", "admin", "owner", model.KindForbidden},
		{"target not a member", "owner", "outsider", model.KindNotFound},
		{"member targets non-member", "member", "outsider", model.KindForbidden},
		{"non-member targets unknown user", "stranger", "ghost", model.KindForbidden},
	}
	withGraph(t, s, func(g *Graph) {
		for _, tt := range tests {
			assertKind(t, tt.name, g.AuthorizeChangeRole(ctx, testTeam, tt.callerID, tt.targetID), tt.want)
		}
	})
}

func TestGraph_TeamReadAndInvite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	withGraph(t, s, func(g *Graph) {
		assertKind(t, "member reads", g.AuthorizeReadTeam(ctx, testTeam, "member"), "")
		assertKind(t, "outsider reads", g.AuthorizeReadTeam(ctx, testTeam, "outsider"), model.KindForbidden)
		assertKind(t, "member invites", g.AuthorizeGenerateInvite(ctx, testTeam, "member"), "")
		assertKind(t, "outsider invites", g.AuthorizeGenerateInvite(ctx, testTeam, "outsider"), model.KindForbidden)
		assertKind(t, "admin edits events", g.AuthorizeModifyTeamEvents(ctx, testTeam, "admin"), "")
		assertKind(t, "member edits events", g.AuthorizeModifyTeamEvents(ctx, testTeam, "member"), model.KindForbidden)
	})
}

func TestGraph_AuthorizeRedeemInvite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	withGraph(t, s, func(g *Graph) {
		assertKind(t, "org member", g.AuthorizeRedeemInvite(ctx, testTeam, "outsider"), "")
		assertKind(t, "not org member", g.AuthorizeRedeemInvite(ctx, testTeam, "stranger"), model.KindForbidden)
		assertKind(t, "already team member", g.AuthorizeRedeemInvite(ctx, testTeam, "member"), model.KindConflict)
	})
}

func TestGraph_AuthorizeModifyLinkedEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		callerID string
		links    []model.AssignmentTarget
		except   model.AssignmentTarget
		want     model.ErrorKind
	}{
		{"unlinked event", "member", nil, model.UserTarget("member"), ""},
		{"own calendar only", "member", []model.AssignmentTarget{model.UserTarget("member")}, model.UserTarget("member"), ""},
		{"member links team event", "member", []model.AssignmentTarget{model.TeamTarget("t1")}, model.UserTarget("member"), model.KindForbidden},
		{"admin links team event", "admin", []model.AssignmentTarget{model.TeamTarget("t1")}, model.UserTarget("admin"), ""},
		{"admin edits shared event", "admin", []model.AssignmentTarget{model.UserTarget("admin"), model.TeamTarget("t1")}, model.TeamTarget("t1"), ""},
		{"other user's calendar", "admin", []model.AssignmentTarget{model.UserTarget("member"), model.TeamTarget("t1")}, model.TeamTarget("t1"), model.KindForbidden},
		{"deleted team", "owner", []model.AssignmentTarget{model.TeamTarget("gone")}, model.UserTarget("owner"), model.KindForbidden},
	}
	withGraph(t, s, func(g *Graph) {
		for _, tt := range tests {
			assertKind(t, tt.name, g.AuthorizeModifyLinkedEvent(ctx, tt.callerID, tt.links, tt.except), tt.want)
		}
	})
}
