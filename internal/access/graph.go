// Package access はメンバーシップグラフからの役割の導出と権限判定を提供する。
// 判定は呼び出し側のトランザクション内で現在のストア状態から都度行い、キャッシュしない。
package access

import (
	"context"
	"fmt"

	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/repository"
)

// Graph はトランザクション内のメンバーシップグラフの参照。
type Graph struct {
	tx repository.Tx
}

// NewGraph はtxの状態を参照するGraphを生成する。
func NewGraph(tx repository.Tx) *Graph {
	return &Graph{tx: tx}
}

// IsOrgMember はユーザーが組織に所属しているかどうかを返す。
func (g *Graph) IsOrgMember(ctx context.Context, userID, orgID string) (bool, error) {
	ok, err := g.tx.Orgs().IsMember(ctx, userID, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to check org membership: %w", err)
	}
	return ok, nil
}

// IsTeamMember はユーザーがチームに所属しているかどうかを返す。
func (g *Graph) IsTeamMember(ctx context.Context, userID, teamID string) (bool, error) {
	m, err := g.tx.Teams().FindMembership(ctx, userID, teamID)
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return m != nil, nil
}

// RoleOf はチームにおけるユーザーの役割を返す。
// オーナーはteam.OwnerIDから先に判定し、次にメンバーシップの管理者フラグを見る。
func (g *Graph) RoleOf(ctx context.Context, userID string, team *model.Team) (model.Role, error) {
	m, err := g.tx.Teams().FindMembership(ctx, userID, team.ID)
	if err != nil {
		return model.RoleNonMember, fmt.Errorf("failed to find team membership: %w", err)
	}
	return DeriveRole(team, userID, m), nil
}

// DeriveRole はチームとメンバーシップから役割を導出する。
// membershipがnilの場合は非メンバー。
func DeriveRole(team *model.Team, userID string, membership *model.TeamMembership) model.Role {
	switch {
	case membership == nil:
		return model.RoleNonMember
	case team.OwnerID == userID:
		return model.RoleOwner
	case membership.IsAdmin:
		return model.RoleAdmin
	default:
		return model.RoleMember
	}
}
