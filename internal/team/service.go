// Package team はチームのライフサイクル、メンバー管理、招待のドメインロジックを提供する。
package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/teamcal/internal/access"
	"github.com/hitoshi/teamcal/internal/idgen"
	"github.com/hitoshi/teamcal/internal/metrics"
	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/org"
	"github.com/hitoshi/teamcal/internal/repository"
)

// DefaultInviteTTL は招待の有効期間。
const DefaultInviteTTL = 24 * time.Hour

// InviteRedeemSuccess は招待償還成功時のメトリクスラベル。
const InviteRedeemSuccess = "success"

// ServiceConfig はチームサービスの設定。
type ServiceConfig struct {
	InviteTTL time.Duration    // 招待の有効期間。0の場合はDefaultInviteTTL
	Now       func() time.Time // 現在時刻。nilの場合はtime.Now
}

// Service はチーム管理のサービス層。
type Service struct {
	store     repository.Store
	collector org.OrphanCollector
	metrics   metrics.MetricsCollector
	inviteTTL time.Duration
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	store repository.Store,
	collector org.OrphanCollector,
	metricsCollector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if metricsCollector == nil {
		metricsCollector = metrics.Nop()
	}
	if config.InviteTTL <= 0 {
		config.InviteTTL = DefaultInviteTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{
		store:     store,
		collector: collector,
		metrics:   metricsCollector,
		inviteTTL: config.InviteTTL,
		now:       config.Now,
	}
}

// findTeam はチームを取得し、存在しない場合はNotFoundを返す。
func findTeam(ctx context.Context, tx repository.Tx, teamID string) (*model.Team, error) {
	team, err := tx.Teams().FindByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	if team == nil {
		return nil, model.NewTeamNotFoundError(teamID)
	}
	return team, nil
}

// CreateTeam は組織配下にチームを作成し、作成者をオーナー兼管理者として登録する。
func (s *Service) CreateTeam(ctx context.Context, userID, orgID, name string) (string, error) {
	name, err := org.ValidateName(name)
	if err != nil {
		return "", err
	}

	var teamID string
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		exists, err := tx.Orgs().IDExists(ctx, orgID)
		if err != nil {
			return fmt.Errorf("組織の確認に失敗しました: %w", err)
		}
		if !exists {
			return model.NewOrgNotFoundError(orgID)
		}
		if err := access.NewGraph(tx).RequireOrgMember(ctx, userID, orgID); err != nil {
			return err
		}

		id, err := idgen.Unique(ctx, tx.Teams().IDExists)
		if err != nil {
			return fmt.Errorf("チームIDの採番に失敗しました: %w", err)
		}

		if err := tx.Teams().Create(ctx, &model.Team{
			ID:        id,
			OrgID:     orgID,
			Name:      name,
			OwnerID:   userID,
			OwnerTime: s.now(),
		}); err != nil {
			return fmt.Errorf("チームの作成に失敗しました: %w", err)
		}
		if err := tx.Teams().AddMember(ctx, model.TeamMembership{
			UserID:  userID,
			TeamID:  id,
			IsAdmin: true,
		}); err != nil {
			return fmt.Errorf("チームメンバーの登録に失敗しました: %w", err)
		}
		teamID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.Info("team created",
		slog.String("team_id", teamID),
		slog.String("org_id", orgID),
		slog.String("owner_id", userID),
	)
	return teamID, nil
}

// ListTeams は組織配下のチーム一覧を返す。組織メンバーのみ参照できる。
func (s *Service) ListTeams(ctx context.Context, userID, orgID string) ([]*model.Team, error) {
	var teams []*model.Team
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		exists, err := tx.Orgs().IDExists(ctx, orgID)
		if err != nil {
			return fmt.Errorf("組織の確認に失敗しました: %w", err)
		}
		if !exists {
			return model.NewOrgNotFoundError(orgID)
		}
		if err := access.NewGraph(tx).RequireOrgMember(ctx, userID, orgID); err != nil {
			return err
		}

		list, err := tx.Teams().ListByOrgID(ctx, orgID)
		if err != nil {
			return fmt.Errorf("チーム一覧の取得に失敗しました: %w", err)
		}
		teams = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	return teams, nil
}

// DeleteTeam はチームと配下のメンバーシップ・招待・予定の割り当てを削除する。
// 割り当てが外れた予定IDを返す。コミット後に孤立した予定を回収する。
func (s *Service) DeleteTeam(ctx context.Context, callerID, teamID string) ([]string, error) {
	var candidates []string
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		team, err := findTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if err := access.AuthorizeDeleteTeam(team, callerID); err != nil {
			return err
		}

		ids, err := repository.DeleteTeamCascade(ctx, tx, teamID)
		if err != nil {
			return err
		}
		candidates = ids
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("team deleted",
		slog.String("team_id", teamID),
		slog.Int("gc_candidates", len(candidates)),
	)
	if s.collector != nil && len(candidates) > 0 {
		if _, err := s.collector.CollectOrphanEvents(ctx, candidates); err != nil {
			slog.Warn("failed to collect orphan events",
				slog.String("team_id", teamID),
				slog.String("error", err.Error()),
			)
		}
	}
	return candidates, nil
}

// AddUserToTeam は組織メンバーをチームに追加する。
func (s *Service) AddUserToTeam(ctx context.Context, callerID, teamID, targetID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		team, err := findTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		graph := access.NewGraph(tx)
		if err := graph.AuthorizeAddTeamMember(ctx, team, callerID, targetID); err != nil {
			return err
		}
		member, err := graph.IsTeamMember(ctx, targetID, teamID)
		if err != nil {
			return err
		}
		if member {
			return model.NewAlreadyMemberError(targetID)
		}

		if err := tx.Teams().AddMember(ctx, model.TeamMembership{UserID: targetID, TeamID: teamID}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.NewAlreadyMemberError(targetID)
			}
			return fmt.Errorf("チームメンバーの登録に失敗しました: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("user added to team",
		slog.String("team_id", teamID),
		slog.String("user_id", targetID),
		slog.String("caller_id", callerID),
	)
	return nil
}

// RemoveUserFromTeam はチームからメンバーを除外する。
func (s *Service) RemoveUserFromTeam(ctx context.Context, callerID, teamID, targetID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		team, err := findTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if err := access.NewGraph(tx).AuthorizeRemoveTeamMember(ctx, team, callerID, targetID); err != nil {
			return err
		}

		removed, err := tx.Teams().RemoveMember(ctx, targetID, teamID)
		if err != nil {
			return fmt.Errorf("チームメンバーシップの削除に失敗しました: %w", err)
		}
		if !removed {
			return model.NewMemberNotFoundError(targetID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("user removed from team",
		slog.String("team_id", teamID),
		slog.String("user_id", targetID),
		slog.String("caller_id", callerID),
	)
	return nil
}

// ChangeRole はメンバーの管理者フラグを変更する。
func (s *Service) ChangeRole(ctx context.Context, callerID, teamID, targetID string, isAdmin bool) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		team, err := findTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if err := access.NewGraph(tx).AuthorizeChangeRole(ctx, team, callerID, targetID); err != nil {
			return err
		}
		if err := tx.Teams().UpdateMemberRole(ctx, targetID, teamID, isAdmin); err != nil {
			return fmt.Errorf("役割の更新に失敗しました: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("team role changed",
		slog.String("team_id", teamID),
		slog.String("user_id", targetID),
		slog.Bool("is_admin", isAdmin),
	)
	return nil
}

// ListTeamMembers はチームメンバーを役割付きで返す。チームメンバーのみ参照できる。
func (s *Service) ListTeamMembers(ctx context.Context, callerID, teamID string) ([]model.TeamMember, error) {
	var members []model.TeamMember
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		team, err := findTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if err := access.NewGraph(tx).AuthorizeReadTeam(ctx, team, callerID); err != nil {
			return err
		}

		rows, err := tx.Teams().ListMembers(ctx, teamID)
		if err != nil {
			return fmt.Errorf("チームメンバーの取得に失敗しました: %w", err)
		}
		members = make([]model.TeamMember, len(rows))
		for i, row := range rows {
			membership := row.TeamMembership
			members[i] = model.TeamMember{
				UserID:   row.UserID,
				Username: row.Username,
				Role:     access.DeriveRole(team, row.UserID, &membership),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}
