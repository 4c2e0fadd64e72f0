package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/teamcal/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db Querier
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db Querier) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// IDExists は指定IDのセッションが存在するかどうかを返す（期限切れを含む）。
func (r *PostgresSessionRepo) IDExists(ctx context.Context, id string) (bool, error) {
	return idExists(ctx, r.db, "sessions", id)
}

// FindLatestValidByUserID はユーザーの有効なセッションのうち最も有効期限が遅いものを
// FOR UPDATEで取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindLatestValidByUserID(ctx context.Context, userID string, now time.Time) (*model.Session, error) {
	return r.findOne(ctx,
		`SELECT id, user_id, expiration_time, last_activity_time
		 FROM sessions
		 WHERE user_id = $1 AND expiration_time > $2
		 ORDER BY expiration_time DESC
		 LIMIT 1
		 FOR UPDATE`,
		userID, now,
	)
}

// FindValidByID は指定IDの有効なセッションをFOR UPDATEで取得する。
// 期限切れまたは存在しない場合はnilを返す。
func (r *PostgresSessionRepo) FindValidByID(ctx context.Context, id string, now time.Time) (*model.Session, error) {
	return r.findOne(ctx,
		`SELECT id, user_id, expiration_time, last_activity_time
		 FROM sessions
		 WHERE id = $1 AND expiration_time > $2
		 FOR UPDATE`,
		id, now,
	)
}

// FindByID は指定IDのセッションを有効期限に関係なく取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return r.findOne(ctx,
		`SELECT id, user_id, expiration_time, last_activity_time
		 FROM sessions
		 WHERE id = $1
		 FOR UPDATE`,
		id,
	)
}

func (r *PostgresSessionRepo) findOne(ctx context.Context, query string, args ...interface{}) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&session.ID, &session.UserID, &session.ExpirationTime, &session.LastActivityTime)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expiration_time, last_activity_time)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, session.ExpirationTime, session.LastActivityTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", translateError(err))
	}
	return nil
}

// UpdateExpiration はセッションの有効期限と最終アクティビティ時刻を更新する。
func (r *PostgresSessionRepo) UpdateExpiration(ctx context.Context, id string, expiration, lastActivity time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expiration_time = $2, last_activity_time = $3 WHERE id = $1`,
		id, expiration, lastActivity,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// DeleteExpiredBefore はcutoffより前に期限切れとなったセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expiration_time < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
