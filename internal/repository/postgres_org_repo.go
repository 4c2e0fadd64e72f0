package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/teamcal/internal/model"
)

// PostgresOrgRepo はPostgreSQLを使用した組織リポジトリ。
type PostgresOrgRepo struct {
	db Querier
}

// NewPostgresOrgRepo はPostgresOrgRepoを生成する。
func NewPostgresOrgRepo(db Querier) *PostgresOrgRepo {
	return &PostgresOrgRepo{db: db}
}

// IDExists は指定IDの組織が存在するかどうかを返す。
func (r *PostgresOrgRepo) IDExists(ctx context.Context, id string) (bool, error) {
	return idExists(ctx, r.db, "orgs", id)
}

// FindByID は指定IDの組織を取得する。見つからない場合はnilを返す。
func (r *PostgresOrgRepo) FindByID(ctx context.Context, id string) (*model.Org, error) {
	org := &model.Org{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, owner_time FROM orgs WHERE id = $1`,
		id,
	).Scan(&org.ID, &org.Name, &org.OwnerID, &org.OwnerTime)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find org: %w", err)
	}
	return org, nil
}

// ListByUserID はユーザーが所属する組織の一覧を名前順で返す。
func (r *PostgresOrgRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Org, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT o.id, o.name, o.owner_id, o.owner_time
		 FROM orgs o
		 INNER JOIN org_memberships m ON m.org_id = o.id
		 WHERE m.user_id = $1
		 ORDER BY o.name ASC, o.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orgs: %w", err)
	}
	defer rows.Close()

	var orgs []*model.Org
	for rows.Next() {
		org := &model.Org{}
		if err := rows.Scan(&org.ID, &org.Name, &org.OwnerID, &org.OwnerTime); err != nil {
			return nil, fmt.Errorf("failed to scan org: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orgs: %w", err)
	}
	return orgs, nil
}

// Create は組織を作成する。
func (r *PostgresOrgRepo) Create(ctx context.Context, org *model.Org) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orgs (id, name, owner_id, owner_time) VALUES ($1, $2, $3, $4)`,
		org.ID, org.Name, org.OwnerID, org.OwnerTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create org: %w", translateError(err))
	}
	return nil
}

// Delete は組織の行のみを削除する。
func (r *PostgresOrgRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM orgs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete org: %w", err)
	}
	return nil
}

// AddMember は組織メンバーシップを作成する。既に所属している場合はErrDuplicateを返す。
func (r *PostgresOrgRepo) AddMember(ctx context.Context, membership model.OrgMembership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO org_memberships (user_id, org_id, entry_time) VALUES ($1, $2, $3)`,
		membership.UserID, membership.OrgID, membership.EntryTime,
	)
	if err != nil {
		return fmt.Errorf("failed to add org member: %w", translateError(err))
	}
	return nil
}

// IsMember はユーザーが組織に所属しているかどうかを返す。
func (r *PostgresOrgRepo) IsMember(ctx context.Context, userID, orgID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM org_memberships WHERE user_id = $1 AND org_id = $2)`,
		userID, orgID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check org membership: %w", err)
	}
	return exists, nil
}

// RemoveMember は組織メンバーシップを削除する。削除した場合はtrueを返す。
func (r *PostgresOrgRepo) RemoveMember(ctx context.Context, userID, orgID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM org_memberships WHERE user_id = $1 AND org_id = $2`,
		userID, orgID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove org member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// RemoveAllMembers は組織の全メンバーシップを削除する。
func (r *PostgresOrgRepo) RemoveAllMembers(ctx context.Context, orgID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM org_memberships WHERE org_id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to remove org members: %w", err)
	}
	return nil
}

// ListMembers は組織メンバーの一覧を参加日時順で返す。
func (r *PostgresOrgRepo) ListMembers(ctx context.Context, orgID string) ([]model.OrgMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.user_id, u.username, m.entry_time, (o.owner_id = m.user_id)
		 FROM org_memberships m
		 INNER JOIN users u ON u.id = m.user_id
		 INNER JOIN orgs o ON o.id = m.org_id
		 WHERE m.org_id = $1
		 ORDER BY m.entry_time ASC, u.username ASC`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list org members: %w", err)
	}
	defer rows.Close()

	var members []model.OrgMember
	for rows.Next() {
		var m model.OrgMember
		if err := rows.Scan(&m.UserID, &m.Username, &m.EntryTime, &m.IsOwner); err != nil {
			return nil, fmt.Errorf("failed to scan org member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate org members: %w", err)
	}
	return members, nil
}

// compile-time interface check
var _ OrgRepository = (*PostgresOrgRepo)(nil)
