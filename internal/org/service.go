// Package org は組織のライフサイクル管理のドメインロジックを提供する。
package org

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/teamcal/internal/access"
	"github.com/hitoshi/teamcal/internal/idgen"
	"github.com/hitoshi/teamcal/internal/model"
	"github.com/hitoshi/teamcal/internal/repository"
)

// MaxNameLength は組織名の最大文字数。
const MaxNameLength = 100

// OrphanCollector は割り当てのなくなった予定を回収する。
type OrphanCollector interface {
	CollectOrphanEvents(ctx context.Context, candidates []string) ([]string, error)
}

// Detail は組織の詳細情報。
type Detail struct {
	Org     *model.Org
	Members []model.OrgMember
	Teams   []*model.Team
}

// Service は組織管理のサービス層。
type Service struct {
	store     repository.Store
	collector OrphanCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// nowがnilの場合はtime.Nowを使用する。
func NewService(store repository.Store, collector OrphanCollector, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:     store,
		collector: collector,
		now:       now,
	}
}

// ValidateName は組織名・チーム名を検証し、前後の空白を除いた名前を返す。
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxNameLength {
		return "", model.NewInvalidRequestError(fmt.Sprintf("名前は1〜%d文字で指定してください。", MaxNameLength))
	}
	return name, nil
}

// CreateOrg は組織を作成し、作成者をオーナー兼メンバーとして登録する。
func (s *Service) CreateOrg(ctx context.Context, ownerID, name string) (string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return "", err
	}

	var orgID string
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		owner, err := tx.Users().FindByID(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if owner == nil {
			return model.NewUserNotFoundError()
		}

		id, err := idgen.Unique(ctx, tx.Orgs().IDExists)
		if err != nil {
			return fmt.Errorf("組織IDの採番に失敗しました: %w", err)
		}

		now := s.now()
		if err := tx.Orgs().Create(ctx, &model.Org{
			ID:        id,
			Name:      name,
			OwnerID:   ownerID,
			OwnerTime: now,
		}); err != nil {
			return fmt.Errorf("組織の作成に失敗しました: %w", err)
		}
		if err := tx.Orgs().AddMember(ctx, model.OrgMembership{
			UserID:    ownerID,
			OrgID:     id,
			EntryTime: now,
		}); err != nil {
			return fmt.Errorf("組織メンバーの登録に失敗しました: %w", err)
		}
		orgID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.Info("org created",
		slog.String("org_id", orgID),
		slog.String("owner_id", ownerID),
	)
	return orgID, nil
}

// JoinOrg はユーザーを組織のメンバーとして登録する。
func (s *Service) JoinOrg(ctx context.Context, userID, orgID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		org, err := tx.Orgs().FindByID(ctx, orgID)
		if err != nil {
			return fmt.Errorf("組織の取得に失敗しました: %w", err)
		}
		if org == nil {
			return model.NewOrgNotFoundError(orgID)
		}

		member, err := tx.Orgs().IsMember(ctx, userID, orgID)
		if err != nil {
			return fmt.Errorf("組織メンバーの確認に失敗しました: %w", err)
		}
		if member {
			return model.NewAlreadyMemberError(userID)
		}

		if err := tx.Orgs().AddMember(ctx, model.OrgMembership{
			UserID:    userID,
			OrgID:     orgID,
			EntryTime: s.now(),
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.NewAlreadyMemberError(userID)
			}
			return fmt.Errorf("組織メンバーの登録に失敗しました: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("user joined org",
		slog.String("org_id", orgID),
		slog.String("user_id", userID),
	)
	return nil
}

// DeleteOrg は組織と配下のチーム・メンバーシップ・招待・予定の割り当てを削除する。
// 割り当てが外れた予定IDを返す。コミット後に孤立した予定を回収する。
func (s *Service) DeleteOrg(ctx context.Context, callerID, orgID string) ([]string, error) {
	var candidates []string
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		org, err := tx.Orgs().FindByID(ctx, orgID)
		if err != nil {
			return fmt.Errorf("組織の取得に失敗しました: %w", err)
		}
		if org == nil {
			return model.NewOrgNotFoundError(orgID)
		}
		if err := access.AuthorizeDeleteOrg(org, callerID); err != nil {
			return err
		}

		ids, err := repository.DeleteOrgCascade(ctx, tx, orgID)
		if err != nil {
			return err
		}
		candidates = ids
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("org deleted",
		slog.String("org_id", orgID),
		slog.Int("gc_candidates", len(candidates)),
	)
	s.collect(ctx, candidates)
	return candidates, nil
}

// RemoveUserFromOrg は組織からユーザーを除外する。
// 組織配下のチームメンバーシップも同じトランザクションで削除する。
// 対象が組織配下のチームのオーナーである場合は除外できない。
func (s *Service) RemoveUserFromOrg(ctx context.Context, callerID, orgID, targetID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		org, err := tx.Orgs().FindByID(ctx, orgID)
		if err != nil {
			return fmt.Errorf("組織の取得に失敗しました: %w", err)
		}
		if org == nil {
			return model.NewOrgNotFoundError(orgID)
		}
		if err := access.AuthorizeRemoveFromOrg(org, callerID, targetID); err != nil {
			return err
		}

		member, err := tx.Orgs().IsMember(ctx, targetID, orgID)
		if err != nil {
			return fmt.Errorf("組織メンバーの確認に失敗しました: %w", err)
		}
		if !member {
			return model.NewMemberNotFoundError(targetID)
		}

		teams, err := tx.Teams().ListByOrgID(ctx, orgID)
		if err != nil {
			return fmt.Errorf("チーム一覧の取得に失敗しました: %w", err)
		}
		for _, team := range teams {
			if team.OwnerID == targetID {
				return model.NewForbiddenError("チームのオーナーは組織から除外できません。先にチームを削除してください。")
			}
		}

		if err := tx.Teams().RemoveMemberFromOrgTeams(ctx, targetID, orgID); err != nil {
			return fmt.Errorf("チームメンバーシップの削除に失敗しました: %w", err)
		}
		if _, err := tx.Orgs().RemoveMember(ctx, targetID, orgID); err != nil {
			return fmt.Errorf("組織メンバーシップの削除に失敗しました: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("user removed from org",
		slog.String("org_id", orgID),
		slog.String("user_id", targetID),
		slog.String("caller_id", callerID),
	)
	return nil
}

// ListOrgs はユーザーが所属する組織の一覧を返す。
func (s *Service) ListOrgs(ctx context.Context, userID string) ([]*model.Org, error) {
	var orgs []*model.Org
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		list, err := tx.Orgs().ListByUserID(ctx, userID)
		orgs = list
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("組織一覧の取得に失敗しました: %w", err)
	}
	return orgs, nil
}

// GetOrg は組織の詳細をメンバーとチームの一覧付きで返す。組織メンバーのみ参照できる。
func (s *Service) GetOrg(ctx context.Context, callerID, orgID string) (*Detail, error) {
	var detail *Detail
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		org, err := tx.Orgs().FindByID(ctx, orgID)
		if err != nil {
			return fmt.Errorf("組織の取得に失敗しました: %w", err)
		}
		if org == nil {
			return model.NewOrgNotFoundError(orgID)
		}
		if err := access.NewGraph(tx).RequireOrgMember(ctx, callerID, orgID); err != nil {
			return err
		}

		members, err := tx.Orgs().ListMembers(ctx, orgID)
		if err != nil {
			return fmt.Errorf("組織メンバーの取得に失敗しました: %w", err)
		}
		teams, err := tx.Teams().ListByOrgID(ctx, orgID)
		if err != nil {
			return fmt.Errorf("チーム一覧の取得に失敗しました: %w", err)
		}
		detail = &Detail{Org: org, Members: members, Teams: teams}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// collect はGC候補の予定を回収する。削除自体はコミット済みのため失敗はログのみ。
func (s *Service) collect(ctx context.Context, candidates []string) {
	if s.collector == nil || len(candidates) == 0 {
		return
	}
	if _, err := s.collector.CollectOrphanEvents(ctx, candidates); err != nil {
		slog.Warn("failed to collect orphan events",
			slog.Int("candidates", len(candidates)),
			slog.String("error", err.Error()),
		)
	}
}
