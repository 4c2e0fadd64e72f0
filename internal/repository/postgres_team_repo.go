package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/teamcal/internal/model"
)

// PostgresTeamRepo はPostgreSQLを使用したチームリポジトリ。
type PostgresTeamRepo struct {
	db Querier
}

// NewPostgresTeamRepo はPostgresTeamRepoを生成する。
func NewPostgresTeamRepo(db Querier) *PostgresTeamRepo {
	return &PostgresTeamRepo{db: db}
}

// IDExists は指定IDのチームが存在するかどうかを返す。
func (r *PostgresTeamRepo) IDExists(ctx context.Context, id string) (bool, error) {
	return idExists(ctx, r.db, "teams", id)
}

// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindByID(ctx context.Context, id string) (*model.Team, error) {
	team := &model.Team{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, name, owner_id, owner_time FROM teams WHERE id = $1`,
		id,
	).Scan(&team.ID, &team.OrgID, &team.Name, &team.OwnerID, &team.OwnerTime)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return team, nil
}

// ListByOrgID は組織配下のチーム一覧を名前順で返す。
func (r *PostgresTeamRepo) ListByOrgID(ctx context.Context, orgID string) ([]*model.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, name, owner_id, owner_time
		 FROM teams
		 WHERE org_id = $1
		 ORDER BY name ASC, id ASC`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*model.Team
	for rows.Next() {
		team := &model.Team{}
		if err := rows.Scan(&team.ID, &team.OrgID, &team.Name, &team.OwnerID, &team.OwnerTime); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate teams: %w", err)
	}
	return teams, nil
}

// Create はチームを作成する。
func (r *PostgresTeamRepo) Create(ctx context.Context, team *model.Team) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO teams (id, org_id, name, owner_id, owner_time) VALUES ($1, $2, $3, $4, $5)`,
		team.ID, team.OrgID, team.Name, team.OwnerID, team.OwnerTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", translateError(err))
	}
	return nil
}

// Delete はチームの行のみを削除する。
func (r *PostgresTeamRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return nil
}

// AddMember はチームメンバーシップを作成する。既に所属している場合はErrDuplicateを返す。
func (r *PostgresTeamRepo) AddMember(ctx context.Context, membership model.TeamMembership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO team_memberships (user_id, team_id, is_admin) VALUES ($1, $2, $3)`,
		membership.UserID, membership.TeamID, membership.IsAdmin,
	)
	if err != nil {
		return fmt.Errorf("failed to add team member: %w", translateError(err))
	}
	return nil
}

// FindMembership はチームメンバーシップを取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindMembership(ctx context.Context, userID, teamID string) (*model.TeamMembership, error) {
	m := &model.TeamMembership{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, team_id, is_admin FROM team_memberships WHERE user_id = $1 AND team_id = $2`,
		userID, teamID,
	).Scan(&m.UserID, &m.TeamID, &m.IsAdmin)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find team membership: %w", err)
	}
	return m, nil
}

// UpdateMemberRole はメンバーの管理者フラグを更新する。
func (r *PostgresTeamRepo) UpdateMemberRole(ctx context.Context, userID, teamID string, isAdmin bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE team_memberships SET is_admin = $3 WHERE user_id = $1 AND team_id = $2`,
		userID, teamID, isAdmin,
	)
	if err != nil {
		return fmt.Errorf("failed to update team member role: %w", err)
	}
	return nil
}

// RemoveMember はチームメンバーシップを削除する。削除した場合はtrueを返す。
func (r *PostgresTeamRepo) RemoveMember(ctx context.Context, userID, teamID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM team_memberships WHERE user_id = $1 AND team_id = $2`,
		userID, teamID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove team member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// RemoveAllMembers はチームの全メンバーシップを削除する。
func (r *PostgresTeamRepo) RemoveAllMembers(ctx context.Context, teamID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM team_memberships WHERE team_id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("failed to remove team members: %w", err)
	}
	return nil
}

// RemoveMemberFromOrgTeams は組織配下の全チームからユーザーのメンバーシップを削除する。
func (r *PostgresTeamRepo) RemoveMemberFromOrgTeams(ctx context.Context, userID, orgID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM team_memberships
		 WHERE user_id = $1
		   AND team_id IN (SELECT id FROM teams WHERE org_id = $2)`,
		userID, orgID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member from org teams: %w", err)
	}
	return nil
}

// ListMembers はチームメンバーの一覧をユーザー名順で返す。
func (r *PostgresTeamRepo) ListMembers(ctx context.Context, teamID string) ([]TeamMemberRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.user_id, m.team_id, m.is_admin, u.username
		 FROM team_memberships m
		 INNER JOIN users u ON u.id = m.user_id
		 WHERE m.team_id = $1
		 ORDER BY u.username ASC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	var members []TeamMemberRow
	for rows.Next() {
		var m TeamMemberRow
		if err := rows.Scan(&m.UserID, &m.TeamID, &m.IsAdmin, &m.Username); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate team members: %w", err)
	}
	return members, nil
}

// compile-time interface check
var _ TeamRepository = (*PostgresTeamRepo)(nil)
