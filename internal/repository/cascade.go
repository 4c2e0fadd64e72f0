package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/teamcal/internal/model"
)

// DeleteTeamCascade はチームと配下の行を明示的な順序で削除する。
// 削除順序: team_events → team_invites → team_memberships → team
// 予定の行自体は削除せず、割り当てが外れた予定IDをGC候補として返す。
func DeleteTeamCascade(ctx context.Context, tx Tx, teamID string) ([]string, error) {
	unlinked, err := tx.Events().UnassignAll(ctx, model.TeamTarget(teamID))
	if err != nil {
		return nil, fmt.Errorf("failed to unlink team events: %w", err)
	}
	if err := tx.Invites().DeleteByTeamID(ctx, teamID); err != nil {
		return nil, fmt.Errorf("failed to delete team invites: %w", err)
	}
	if err := tx.Teams().RemoveAllMembers(ctx, teamID); err != nil {
		return nil, fmt.Errorf("failed to delete team memberships: %w", err)
	}
	if err := tx.Teams().Delete(ctx, teamID); err != nil {
		return nil, fmt.Errorf("failed to delete team: %w", err)
	}
	return unlinked, nil
}

// DeleteOrgCascade は組織と配下の行を明示的な順序で削除する。
// 削除順序: 各チーム（DeleteTeamCascade） → org_memberships → org
// 配下チームから外れた予定IDをGC候補として返す。
func DeleteOrgCascade(ctx context.Context, tx Tx, orgID string) ([]string, error) {
	teams, err := tx.Teams().ListByOrgID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list org teams: %w", err)
	}

	var unlinked []string
	for _, team := range teams {
		ids, err := DeleteTeamCascade(ctx, tx, team.ID)
		if err != nil {
			return nil, err
		}
		unlinked = append(unlinked, ids...)
	}

	if err := tx.Orgs().RemoveAllMembers(ctx, orgID); err != nil {
		return nil, fmt.Errorf("failed to delete org memberships: %w", err)
	}
	if err := tx.Orgs().Delete(ctx, orgID); err != nil {
		return nil, fmt.Errorf("failed to delete org: %w", err)
	}
	return unlinked, nil
}
