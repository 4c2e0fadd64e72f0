package access

import (
	"context"
	"fmt"

	"github.com/hitoshi/teamcal/internal/model"
)

// AuthorizeDeleteOrg は組織の削除権限を判定する。オーナーのみ削除できる。
func AuthorizeDeleteOrg(org *model.Org, callerID string) error {
	if org.OwnerID != callerID {
		return model.NewForbiddenError("組織を削除できるのはオーナーのみです。")
	}
	return nil
}

// AuthorizeRemoveFromOrg は組織からのユーザー除外の権限を判定する。
// オーナーまたは本人のみが実行でき、オーナー自身は除外できない。
func AuthorizeRemoveFromOrg(org *model.Org, callerID, targetID string) error {
	if targetID == org.OwnerID {
		return model.NewForbiddenError("組織のオーナーは除外できません。")
	}
	if callerID != org.OwnerID && callerID != targetID {
		return model.NewForbiddenError("組織からユーザーを除外できるのはオーナーまたは本人のみです。")
	}
	return nil
}

// RequireOrgMember はユーザーが組織のメンバーであることを要求する。
func (g *Graph) RequireOrgMember(ctx context.Context, userID, orgID string) error {
	ok, err := g.IsOrgMember(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewForbiddenError("組織のメンバーではありません。")
	}
	return nil
}

// AuthorizeDeleteTeam はチームの削除権限を判定する。オーナーのみ削除できる。
func AuthorizeDeleteTeam(team *model.Team, callerID string) error {
	if team.OwnerID != callerID {
		return model.NewForbiddenError("チームを削除できるのはオーナーのみです。")
	}
	return nil
}

// RequireTeamMember はロールがチームメンバーであることを要求する。
func RequireTeamMember(role model.Role) error {
	if !role.IsMember() {
		return model.NewForbiddenError("チームのメンバーではありません。")
	}
	return nil
}

// RequireTeamManager はロールがオーナーまたは管理者であることを要求する。
func RequireTeamManager(role model.Role) error {
	if !role.CanManage() {
		return model.NewForbiddenError("この操作にはチームのオーナーまたは管理者の権限が必要です。")
	}
	return nil
}

// AuthorizeAddTeamMember はチームへのメンバー追加の権限を判定する。
// 呼び出し元はオーナーまたは管理者かつ組織メンバーであり、対象も組織メンバーであること。
// 対象ユーザーの存在は呼び出し元の権限を確認した後にのみ判定する。
func (g *Graph) AuthorizeAddTeamMember(ctx context.Context, team *model.Team, callerID, targetID string) error {
	role, err := g.RoleOf(ctx, callerID, team)
	if err != nil {
		return err
	}
	if err := RequireTeamManager(role); err != nil {
		return err
	}
	if err := g.RequireOrgMember(ctx, callerID, team.OrgID); err != nil {
		return err
	}

	exists, err := g.tx.Users().IDExists(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return model.NewUserNotFoundError()
	}

	ok, err := g.IsOrgMember(ctx, targetID, team.OrgID)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewForbiddenError("追加するユーザーが組織のメンバーではありません。")
	}
	return nil
}

// AuthorizeRemoveTeamMember はチームからのメンバー除外の権限を判定する。
// オーナー・管理者または本人が実行でき、チームのオーナーは除外できない。
func (g *Graph) AuthorizeRemoveTeamMember(ctx context.Context, team *model.Team, callerID, targetID string) error {
	if targetID == team.OwnerID {
		return model.NewForbiddenError("チームのオーナーは除外できません。")
	}
	if callerID == targetID {
		return nil
	}
	role, err := g.RoleOf(ctx, callerID, team)
	if err != nil {
		return err
	}
	return RequireTeamManager(role)
}

// AuthorizeChangeRole はメンバーの役割変更の権限を判定する。
// 自分自身は変更できず、呼び出し元はオーナーまたは管理者であること。
// 対象は現在のメンバーかつオーナー以外であること。
func (g *Graph) AuthorizeChangeRole(ctx context.Context, team *model.Team, callerID, targetID string) error {
	if callerID == targetID {
		return model.NewForbiddenError("自分自身の役割は変更できません。")
	}

	callerRole, err := g.RoleOf(ctx, callerID, team)
	if err != nil {
		return err
	}
	if err := RequireTeamManager(callerRole); err != nil {
		return err
	}

	targetRole, err := g.RoleOf(ctx, targetID, team)
	if err != nil {
		return err
	}
	if !targetRole.IsMember() {
		return model.NewMemberNotFoundError(targetID)
	}
	if targetRole == model.RoleOwner {
		return model.NewForbiddenError("チームのオーナーの役割は変更できません。")
	}
	return nil
}

// AuthorizeModifyTeamEvents はチームの予定を更新する権限を判定する。
func (g *Graph) AuthorizeModifyTeamEvents(ctx context.Context, team *model.Team, callerID string) error {
	role, err := g.RoleOf(ctx, callerID, team)
	if err != nil {
		return err
	}
	return RequireTeamManager(role)
}

// AuthorizeModifyUserEvents は個人カレンダーを更新する権限を判定する。本人のみ更新できる。
func AuthorizeModifyUserEvents(callerID, targetUserID string) error {
	if callerID != targetUserID {
		return model.NewForbiddenError("他のユーザーのカレンダーは更新できません。")
	}
	return nil
}

// AuthorizeModifyLinkedEvent は既存の予定を上書きまたは割り当てる権限を判定する。
// except以外の割り当て先すべてについて、ユーザーは本人、チームはオーナーまたは管理者であること。
func (g *Graph) AuthorizeModifyLinkedEvent(ctx context.Context, callerID string, links []model.AssignmentTarget, except model.AssignmentTarget) error {
	for _, link := range links {
		if link == except {
			continue
		}
		switch link.Kind {
		case model.TargetUser:
			if link.ID != callerID {
				return linkedEventForbidden()
			}
		case model.TargetTeam:
			team, err := g.tx.Teams().FindByID(ctx, link.ID)
			if err != nil {
				return fmt.Errorf("failed to find team: %w", err)
			}
			if team == nil {
				return linkedEventForbidden()
			}
			if err := g.AuthorizeModifyTeamEvents(ctx, team, callerID); err != nil {
				if model.IsKind(err, model.KindForbidden) {
					return linkedEventForbidden()
				}
				return err
			}
		default:
			return linkedEventForbidden()
		}
	}
	return nil
}

func linkedEventForbidden() error {
	return model.NewForbiddenError("他のカレンダーに割り当てられた予定は変更できません。")
}

// AuthorizeGenerateInvite は招待発行の権限を判定する。チームの全メンバーが発行できる。
func (g *Graph) AuthorizeGenerateInvite(ctx context.Context, team *model.Team, callerID string) error {
	role, err := g.RoleOf(ctx, callerID, team)
	if err != nil {
		return err
	}
	return RequireTeamMember(role)
}

// AuthorizeReadTeam はチームのメンバー・予定を参照する権限を判定する。
func (g *Graph) AuthorizeReadTeam(ctx context.Context, team *model.Team, callerID string) error {
	role, err := g.RoleOf(ctx, callerID, team)
	if err != nil {
		return err
	}
	return RequireTeamMember(role)
}

// AuthorizeRedeemInvite は招待の償還可否を判定する。
// 償還者は組織メンバーであり、まだチームメンバーでないこと。
func (g *Graph) AuthorizeRedeemInvite(ctx context.Context, team *model.Team, userID string) error {
	if err := g.RequireOrgMember(ctx, userID, team.OrgID); err != nil {
		return err
	}
	ok, err := g.IsTeamMember(ctx, userID, team.ID)
	if err != nil {
		return err
	}
	if ok {
		return model.NewAlreadyMemberError(userID)
	}
	return nil
}
