package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/teamcal/internal/access"
	"github.com/hitoshi/teamcal/internal/idgen"
	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/repository"
)

// GenerateInvite はチームへの一回限りの招待を発行し、招待IDを返す。
// チームの全メンバーが発行できる。
func (s *Service) GenerateInvite(ctx context.Context, callerID, teamID string) (string, error) {
	var inviteID string
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		team, err := findTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if err := access.NewGraph(tx).AuthorizeGenerateInvite(ctx, team, callerID); err != nil {
			return err
		}

		id, err := idgen.Unique(ctx, tx.Invites().IDExists)
		if err != nil {
			return fmt.Errorf("招待IDの採番に失敗しました: %w", err)
		}
		if err := tx.Invites().Create(ctx, &model.TeamInvite{
			ID:         id,
			TeamID:     teamID,
			CreateTime: s.now(),
		}); err != nil {
			return fmt.Errorf("招待の作成に失敗しました: %w", err)
		}
		inviteID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.Info("invite generated",
		slog.String("team_id", teamID),
		slog.String("caller_id", callerID),
	)
	return inviteID, nil
}

// RedeemInvite は招待を使用してユーザーをチームに追加し、組織IDとチームIDを返す。
// 招待行をロックした上で使用済みにし、メンバーシップの作成と同じトランザクションでコミットする。
func (s *Service) RedeemInvite(ctx context.Context, userID, inviteID string) (orgID, teamID string, err error) {
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		invite, err := tx.Invites().FindByIDForUpdate(ctx, inviteID)
		if err != nil {
			return fmt.Errorf("招待の取得に失敗しました: %w", err)
		}
		if invite == nil {
			return model.NewInviteNotFoundError(inviteID)
		}
		if !invite.IsRedeemableAt(s.now(), s.inviteTTL) {
			return model.NewInviteGoneError()
		}

		team, err := findTeam(ctx, tx, invite.TeamID)
		if err != nil {
			return err
		}
		if err := access.NewGraph(tx).AuthorizeRedeemInvite(ctx, team, userID); err != nil {
			return err
		}

		if err := tx.Invites().MarkUsed(ctx, inviteID); err != nil {
			return fmt.Errorf("招待の更新に失敗しました: %w", err)
		}
		if err := tx.Teams().AddMember(ctx, model.TeamMembership{UserID: userID, TeamID: team.ID}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.NewAlreadyMemberError(userID)
			}
			return fmt.Errorf("チームメンバーの登録に失敗しました: %w", err)
		}
		orgID, teamID = team.OrgID, team.ID
		return nil
	})
	if err != nil {
		s.metrics.RecordInviteRedeem(string(model.KindOf(err)))
		return "", "", err
	}

	s.metrics.RecordInviteRedeem(InviteRedeemSuccess)
	slog.Info("invite redeemed",
		slog.String("team_id", teamID),
		slog.String("user_id", userID),
	)
	return orgID, teamID, nil
}
