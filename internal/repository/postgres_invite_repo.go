package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/teamcal/internal/model"
)

// PostgresInviteRepo はPostgreSQLを使用したチーム招待リポジトリ。
type PostgresInviteRepo struct {
	db Querier
}

// NewPostgresInviteRepo はPostgresInviteRepoを生成する。
func NewPostgresInviteRepo(db Querier) *PostgresInviteRepo {
	return &PostgresInviteRepo{db: db}
}

// IDExists は指定IDの招待が存在するかどうかを返す。
func (r *PostgresInviteRepo) IDExists(ctx context.Context, id string) (bool, error) {
	return idExists(ctx, r.db, "team_invites", id)
}

// Create は招待を作成する。
func (r *PostgresInviteRepo) Create(ctx context.Context, invite *model.TeamInvite) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO team_invites (id, team_id, create_time, used) VALUES ($1, $2, $3, $4)`,
		invite.ID, invite.TeamID, invite.CreateTime, invite.Used,
	)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", translateError(err))
	}
	return nil
}

// FindByIDForUpdate は指定IDの招待をFOR UPDATEで取得する。見つからない場合はnilを返す。
// 同時に償還された場合は後続のトランザクションが使用済みの状態を読む。
func (r *PostgresInviteRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.TeamInvite, error) {
	invite := &model.TeamInvite{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, team_id, create_time, used FROM team_invites WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&invite.ID, &invite.TeamID, &invite.CreateTime, &invite.Used)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invite: %w", err)
	}
	return invite, nil
}

// MarkUsed は招待を使用済みにする。
func (r *PostgresInviteRepo) MarkUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE team_invites SET used = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark invite used: %w", err)
	}
	return nil
}

// DeleteByTeamID はチームの全招待を削除する。
func (r *PostgresInviteRepo) DeleteByTeamID(ctx context.Context, teamID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM team_invites WHERE team_id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete team invites: %w", err)
	}
	return nil
}

// DeleteCreatedBefore はcutoffより前に作成された招待を削除し、削除件数を返す。
func (r *PostgresInviteRepo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM team_invites WHERE create_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old invites: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ InviteRepository = (*PostgresInviteRepo)(nil)
